package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"netgauge/internal/cache"
	"netgauge/internal/config"
	"netgauge/internal/relay"
	"netgauge/internal/upstream"
)

// Server is the connection acceptor: it owns the two inbound listeners,
// dispatches each accepted TCP connection to its own handler goroutine
// and drives the UDP relay loop. It performs no business logic beyond
// dispatch.
type Server struct {
	cfg     *config.Config
	cache   cache.Cache
	client  *upstream.Client
	handler *relay.TCPHandler
	logger  zerolog.Logger

	listener net.Listener
	pc       net.PacketConn
	udpRelay *relay.UDPRelay

	wg      sync.WaitGroup
	stopped chan struct{}
}

// New creates a new Server
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	respCache, err := buildCache(cfg, logger)
	if err != nil {
		return nil, err
	}

	client := upstream.NewClient(upstream.Config{
		HTTPAddr: cfg.TargetHTTPAddr(),
		EchoAddr: cfg.TargetUDPAddr(),
		Timeout:  cfg.GetSocketTimeout(),
		Logger:   logger,
	})

	handler := relay.NewTCPHandler(relay.TCPHandlerConfig{
		Cache:    respCache,
		Upstream: client,
		Timeout:  cfg.GetSocketTimeout(),
		MaxBytes: cfg.MaxRequestBytes,
		Logger:   logger,
	})

	return &Server{
		cfg:     cfg,
		cache:   respCache,
		client:  client,
		handler: handler,
		logger:  logger.With().Str("component", "server").Logger(),
		stopped: make(chan struct{}),
	}, nil
}

// buildCache selects the cache implementation from config
func buildCache(cfg *config.Config, logger zerolog.Logger) (cache.Cache, error) {
	if !cfg.CacheEnabled {
		logger.Info().Msg("cache disabled")
		return cache.NewNoopCache(), nil
	}

	if cfg.CacheMaxEntries > 0 {
		c, err := cache.NewLRUCache(cfg.CacheMaxEntries)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		logger.Info().Int("maxEntries", cfg.CacheMaxEntries).Msg("bounded cache enabled")
		return c, nil
	}

	logger.Info().Msg("cache enabled")
	return cache.NewMemoryCache(), nil
}

// Start binds both inbound endpoints and begins accepting. Failure to
// bind either port is returned to the caller, which is expected to treat
// it as fatal.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.TCPAddr())
	if err != nil {
		return fmt.Errorf("bind tcp %s: %w", s.cfg.TCPAddr(), err)
	}
	s.listener = listener

	pc, err := net.ListenPacket("udp", s.cfg.UDPAddr())
	if err != nil {
		listener.Close()
		return fmt.Errorf("bind udp %s: %w", s.cfg.UDPAddr(), err)
	}
	s.pc = pc

	s.udpRelay = relay.NewUDPRelay(relay.UDPRelayConfig{
		Conn:     pc,
		Upstream: s.client,
		Logger:   s.logger,
	})

	s.logger.Info().
		Str("addr", listener.Addr().String()).
		Str("target", s.cfg.TargetHTTPAddr()).
		Msg("TCP relay listening")
	s.logger.Info().
		Str("addr", pc.LocalAddr().String()).
		Str("target", s.cfg.TargetUDPAddr()).
		Msg("UDP relay listening")

	s.wg.Add(2)
	go s.acceptLoop()
	go func() {
		defer s.wg.Done()
		s.udpRelay.Run()
	}()

	return nil
}

// acceptLoop dispatches every accepted connection to an independent
// handler goroutine. In-flight handlers are intentionally unbounded.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopped:
				return
			default:
			}
			s.logger.Error().Err(err).Msg("accept failed")
			continue
		}

		s.logger.Debug().
			Str("peer", conn.RemoteAddr().String()).
			Msg("accepted connection")

		go s.handler.Handle(conn)
	}
}

// TCPAddr returns the bound TCP address, valid after Start
func (s *Server) TCPAddr() net.Addr {
	return s.listener.Addr()
}

// UDPAddr returns the bound UDP address, valid after Start
func (s *Server) UDPAddr() net.Addr {
	return s.pc.LocalAddr()
}

// Stop closes both listeners and waits for the accept and relay loops to
// exit. In-flight TCP handlers are not awaited; their connections die
// with the process, matching the harness's shutdown semantics.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down proxy...")

	close(s.stopped)

	var closeErr error
	if s.listener != nil {
		closeErr = errors.Join(closeErr, s.listener.Close())
	}
	if s.udpRelay != nil {
		s.udpRelay.Close()
	}
	if s.pc != nil {
		closeErr = errors.Join(closeErr, s.pc.Close())
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.cache.Close()

	s.logger.Info().Msg("proxy stopped")
	return closeErr
}
