package relay

import (
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"

	"netgauge/internal/upstream"
)

const maxDatagramSize = 65535

// pollInterval bounds how long Run blocks in a read before re-checking
// for shutdown. An expired wait is ordinary no-traffic idling, never an
// error.
const pollInterval = time.Second

// UDPRelay forwards datagrams between test clients and the origin echo
// server. Each datagram is an independent, stateless exchange: the loop
// keeps no per-client sessions and treats payloads as opaque bytes.
type UDPRelay struct {
	pc       net.PacketConn
	upstream *upstream.Client
	logger   zerolog.Logger
	done     chan struct{}
}

// UDPRelayConfig for creating a new UDPRelay
type UDPRelayConfig struct {
	Conn     net.PacketConn
	Upstream *upstream.Client
	Logger   zerolog.Logger
}

// NewUDPRelay creates a new UDPRelay on an already bound packet socket
func NewUDPRelay(cfg UDPRelayConfig) *UDPRelay {
	return &UDPRelay{
		pc:       cfg.Conn,
		upstream: cfg.Upstream,
		logger:   cfg.Logger.With().Str("component", "udp").Logger(),
		done:     make(chan struct{}),
	}
}

// Run receives datagrams until Close is called. Upstream forwarding uses
// a fresh outbound socket per exchange so replies cannot be confused with
// other clients' inbound traffic. A lost or failed exchange is logged and
// dropped; the loop itself only exits on shutdown.
func (r *UDPRelay) Run() {
	buf := make([]byte, maxDatagramSize)

	for {
		select {
		case <-r.done:
			return
		default:
		}

		if err := r.pc.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return
		}

		n, clientAddr, err := r.pc.ReadFrom(buf)
		if err != nil {
			if errors.Is(upstream.Classify(err), upstream.ErrTimeout) {
				// No traffic yet, keep waiting.
				continue
			}
			select {
			case <-r.done:
				return
			default:
			}
			r.logger.Error().Err(err).Msg("read from client failed")
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		r.forward(payload, clientAddr)
	}
}

// Close stops the relay loop. The owning acceptor closes the socket.
func (r *UDPRelay) Close() {
	close(r.done)
}

func (r *UDPRelay) forward(payload []byte, clientAddr net.Addr) {
	reply, rtt, err := r.upstream.Exchange(payload)
	if err != nil {
		if errors.Is(err, upstream.ErrTimeout) {
			r.logger.Warn().
				Str("client", clientAddr.String()).
				Msg("timeout waiting for origin echo, dropping exchange")
			return
		}
		r.logger.Error().
			Str("client", clientAddr.String()).
			Err(err).
			Msg("exchange with origin failed")
		return
	}

	if _, err := r.pc.WriteTo(reply, clientAddr); err != nil {
		r.logger.Error().
			Str("client", clientAddr.String()).
			Err(err).
			Msg("write to client failed")
		return
	}

	r.logger.Info().
		Str("client", clientAddr.String()).
		Int("bytes", len(payload)).
		Float64("rttMs", float64(rtt.Microseconds())/1000.0).
		Msg("relayed datagram")
}
