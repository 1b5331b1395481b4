package origin

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"netgauge/internal/config"
)

const readChunkSize = 4096

var headerTerminator = []byte("\r\n\r\n")

// HTTPServer is the origin static-file responder: a GET-only server that
// reads one request per connection, maps the path into the served root
// and writes a close-delimited response. It runs either sequentially or
// with a fixed worker pool, mirroring the two origin modes the harness
// is used to compare.
type HTTPServer struct {
	cfg    *config.OriginConfig
	logger zerolog.Logger

	listener net.Listener
	jobs     chan net.Conn
	acceptWg sync.WaitGroup
	workerWg sync.WaitGroup
	stopped  chan struct{}
}

// NewHTTPServer creates a new HTTPServer
func NewHTTPServer(cfg *config.OriginConfig, logger zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		cfg:     cfg,
		logger:  logger.With().Str("component", "http").Logger(),
		stopped: make(chan struct{}),
	}
}

// Start binds the listener and begins serving in the configured mode
func (s *HTTPServer) Start() error {
	listener, err := net.Listen("tcp", s.cfg.HTTPAddr())
	if err != nil {
		return fmt.Errorf("bind tcp %s: %w", s.cfg.HTTPAddr(), err)
	}
	s.listener = listener

	if s.cfg.Mode == config.ModePooled {
		s.jobs = make(chan net.Conn)
		for i := 0; i < s.cfg.Workers; i++ {
			s.workerWg.Add(1)
			go s.workerLoop()
		}
		s.logger.Info().
			Str("addr", listener.Addr().String()).
			Int("workers", s.cfg.Workers).
			Str("root", s.cfg.Root).
			Msg("pooled server listening")
	} else {
		s.logger.Info().
			Str("addr", listener.Addr().String()).
			Str("root", s.cfg.Root).
			Msg("single server listening")
	}

	s.acceptWg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the bound address, valid after Start
func (s *HTTPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops accepting and waits for the accept loop and workers. The
// jobs channel is closed only after the accept loop has exited so a
// blocked dispatch can never hit a closed channel.
func (s *HTTPServer) Close() error {
	close(s.stopped)
	err := s.listener.Close()
	s.acceptWg.Wait()
	if s.jobs != nil {
		close(s.jobs)
	}
	s.workerWg.Wait()
	return err
}

func (s *HTTPServer) acceptLoop() {
	defer s.acceptWg.Done()

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

		if s.cfg.Mode == config.ModePooled {
			select {
			case s.jobs <- conn:
			case <-s.stopped:
				conn.Close()
				return
			}
		} else {
			// Single mode: one connection at a time on this goroutine.
			s.handle(conn)
		}
	}
}

func (s *HTTPServer) workerLoop() {
	defer s.workerWg.Done()
	for conn := range s.jobs {
		s.handle(conn)
	}
}

// handle serves one connection: read the request, parse the request
// line, resolve the file and write the response. GET only.
func (s *HTTPServer) handle(conn net.Conn) {
	defer conn.Close()

	start := time.Now()
	peer := conn.RemoteAddr().String()

	raw, err := readRequest(conn, s.cfg.GetSocketTimeout())
	if err != nil || len(raw) == 0 {
		return
	}

	method, path, _, ok := ParseRequestLine(raw)
	if !ok {
		s.respond(conn, peer, 400, []byte("<h1>400 Bad Request</h1>"), htmlContentType)
		return
	}

	if method != "GET" {
		s.respond(conn, peer, 405, []byte("<h1>405 Method Not Allowed</h1>"), htmlContentType)
		return
	}

	filePath, ok := ResolvePath(s.cfg.Root, path)
	if !ok {
		s.respond(conn, peer, 403, []byte("<h1>403 Forbidden</h1>"), htmlContentType)
		return
	}

	body, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.respond(conn, peer, 404, []byte("<h1>404 Not Found</h1>"), htmlContentType)
		} else {
			s.respond(conn, peer, 500, []byte("<h1>500 Internal Server Error</h1>"), htmlContentType)
		}
		return
	}

	s.respond(conn, peer, 200, body, ContentType(filePath))

	s.logger.Info().
		Str("peer", peer).
		Str("path", path).
		Str("file", filepath.Base(filePath)).
		Int("bytes", len(body)).
		Float64("ms", float64(time.Since(start).Microseconds())/1000.0).
		Msg("served request")
}

func (s *HTTPServer) respond(conn net.Conn, peer string, status int, body []byte, contentType string) {
	if _, err := conn.Write(BuildResponse(status, body, contentType)); err != nil {
		s.logger.Warn().Str("peer", peer).Err(err).Msg("write response failed")
	}
}

// readRequest accumulates bytes until the header terminator, EOF, the
// idle deadline or the size cap, same framing as the proxy side.
func readRequest(conn net.Conn, timeout time.Duration) ([]byte, error) {
	var raw []byte
	buf := make([]byte, readChunkSize)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return raw, err
		}

		n, err := conn.Read(buf)
		raw = append(raw, buf[:n]...)

		if bytes.Contains(raw, headerTerminator) {
			return raw, nil
		}
		if len(raw) > config.DefaultMaxRequestBytes {
			return raw, nil
		}
		if err == io.EOF {
			return raw, nil
		}
		if err != nil {
			if len(raw) > 0 && isTimeout(err) {
				return raw, nil
			}
			return raw, err
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ParseRequestLine extracts method, path and version from the raw
// request bytes. ok is false when the first line does not have the
// three-part shape.
func ParseRequestLine(raw []byte) (method, path, version string, ok bool) {
	line := string(raw)
	if i := strings.Index(line, "\r\n"); i >= 0 {
		line = line[:i]
	}

	parts := strings.Fields(line)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return strings.ToUpper(parts[0]), parts[1], parts[2], true
}

// ResolvePath maps a URL path to a file under root, rejecting anything
// that escapes the served directory. The query string is discarded and
// "/" maps to index.html.
func ResolvePath(root, urlPath string) (string, bool) {
	clean := urlPath
	if i := strings.Index(clean, "?"); i >= 0 {
		clean = clean[:i]
	}

	clean = strings.TrimPrefix(clean, "/")
	if clean == "" {
		clean = "index.html"
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}

	joined, err := filepath.Abs(filepath.Join(rootAbs, filepath.FromSlash(clean)))
	if err != nil {
		return "", false
	}

	if joined != rootAbs && !strings.HasPrefix(joined, rootAbs+string(filepath.Separator)) {
		return "", false
	}
	return joined, true
}
