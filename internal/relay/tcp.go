package relay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"netgauge/internal/cache"
	"netgauge/internal/upstream"
)

const readChunkSize = 4096

var headerTerminator = []byte("\r\n\r\n")

// TCPHandler relays one inbound HTTP-style request to the origin server,
// consulting the response cache first. One handler instance serves the
// whole proxy; Handle is invoked on its own goroutine per accepted
// connection and must be safe for arbitrary concurrent calls.
type TCPHandler struct {
	cache    cache.Cache
	upstream *upstream.Client
	timeout  time.Duration
	maxBytes int
	logger   zerolog.Logger
}

// TCPHandlerConfig for creating a new TCPHandler
type TCPHandlerConfig struct {
	Cache    cache.Cache
	Upstream *upstream.Client
	Timeout  time.Duration
	MaxBytes int
	Logger   zerolog.Logger
}

// NewTCPHandler creates a new TCPHandler
func NewTCPHandler(cfg TCPHandlerConfig) *TCPHandler {
	return &TCPHandler{
		cache:    cfg.Cache,
		upstream: cfg.Upstream,
		timeout:  cfg.Timeout,
		maxBytes: cfg.MaxBytes,
		logger:   cfg.Logger.With().Str("component", "tcp").Logger(),
	}
}

// Handle serves one accepted inbound connection end to end and closes it
// on every exit path. A client that disconnects before sending anything
// gets no response and no error-level log.
func (h *TCPHandler) Handle(conn net.Conn) {
	defer conn.Close()

	peer := conn.RemoteAddr().String()

	req, err := h.readRequest(conn)
	if err != nil && len(req) == 0 {
		h.logger.Debug().Str("peer", peer).Err(err).Msg("read failed before any data")
		return
	}
	if len(req) == 0 {
		// Peer closed without sending a request.
		return
	}

	key := cache.Key(req)

	if resp, ok := h.cache.Lookup(key); ok {
		if _, err := conn.Write(resp); err != nil {
			h.logger.Warn().Str("peer", peer).Err(err).Msg("write to client failed")
			return
		}
		h.logger.Info().
			Str("peer", peer).
			Str("target", h.upstream.HTTPAddr()).
			Str("cache", "HIT").
			Int("bytes", len(resp)).
			Msg("relayed from cache")
		return
	}

	resp, err := h.upstream.Fetch(req)
	if err != nil {
		resp = h.synthesize(err, peer)
	} else {
		h.cache.Store(key, resp)
	}

	if _, err := conn.Write(resp); err != nil {
		h.logger.Warn().Str("peer", peer).Err(err).Msg("write to client failed")
		return
	}

	h.logger.Info().
		Str("peer", peer).
		Str("target", h.upstream.HTTPAddr()).
		Str("cache", "MISS").
		Int("bytes", len(resp)).
		Msg("relayed from upstream")
}

// readRequest accumulates inbound bytes until the header terminator, the
// peer closing, the idle deadline, or the size cap. Whatever was read by
// then is the request; a deadline or cap with data in hand is not an
// error, only an empty read is.
func (h *TCPHandler) readRequest(conn net.Conn) ([]byte, error) {
	var req []byte
	buf := make([]byte, readChunkSize)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(h.timeout)); err != nil {
			return req, err
		}

		n, err := conn.Read(buf)
		req = append(req, buf[:n]...)

		if bytes.Contains(req, headerTerminator) {
			return req, nil
		}
		if len(req) >= h.maxBytes {
			// Best-effort: treat the oversized prefix as the request.
			h.logger.Warn().Int("bytes", len(req)).Msg("request exceeded size cap without terminator")
			return req, nil
		}
		if err == io.EOF {
			return req, nil
		}
		if err != nil {
			if len(req) > 0 && errors.Is(upstream.Classify(err), upstream.ErrTimeout) {
				return req, nil
			}
			return req, err
		}
	}
}

// synthesize builds the local error response written when the origin
// cannot be reached: 504 for a timeout, 502 for anything else. The
// inbound peer always gets a complete response.
func (h *TCPHandler) synthesize(err error, peer string) []byte {
	status := "502 Bad Gateway"
	if errors.Is(err, upstream.ErrTimeout) {
		status = "504 Gateway Timeout"
	}

	h.logger.Error().
		Str("peer", peer).
		Str("target", h.upstream.HTTPAddr()).
		Str("status", status).
		Err(err).
		Msg("upstream failed")

	return []byte(fmt.Sprintf(
		"HTTP/1.1 %s\r\nContent-Length: 0\r\nContent-Type: text/html; charset=utf-8\r\nConnection: close\r\n\r\n",
		status))
}
