package origin

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const maxDatagramSize = 65535

// EchoServer answers every datagram with its own payload. It exists so
// the client driver and the proxy have something to measure RTT against.
type EchoServer struct {
	addr   string
	logger zerolog.Logger

	pc      net.PacketConn
	wg      sync.WaitGroup
	stopped chan struct{}
}

// NewEchoServer creates a new EchoServer
func NewEchoServer(addr string, logger zerolog.Logger) *EchoServer {
	return &EchoServer{
		addr:    addr,
		logger:  logger.With().Str("component", "echo").Logger(),
		stopped: make(chan struct{}),
	}
}

// Start binds the socket and begins echoing
func (s *EchoServer) Start() error {
	pc, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("bind udp %s: %w", s.addr, err)
	}
	s.pc = pc

	s.logger.Info().Str("addr", pc.LocalAddr().String()).Msg("echo server listening")

	s.wg.Add(1)
	go s.loop()

	return nil
}

// Addr returns the bound address, valid after Start
func (s *EchoServer) Addr() net.Addr {
	return s.pc.LocalAddr()
}

// Close stops the echo loop
func (s *EchoServer) Close() error {
	close(s.stopped)
	err := s.pc.Close()
	s.wg.Wait()
	return err
}

func (s *EchoServer) loop() {
	defer s.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		if err := s.pc.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return
		}

		n, addr, err := s.pc.ReadFrom(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			select {
			case <-s.stopped:
				return
			default:
			}
			s.logger.Error().Err(err).Msg("read failed")
			continue
		}

		if _, err := s.pc.WriteTo(buf[:n], addr); err != nil {
			s.logger.Error().Str("peer", addr.String()).Err(err).Msg("echo write failed")
			continue
		}

		s.logger.Debug().
			Str("peer", addr.String()).
			Int("bytes", n).
			Msg("echoed datagram")
	}
}
