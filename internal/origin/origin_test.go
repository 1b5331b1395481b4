package origin

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"netgauge/internal/config"
	"netgauge/internal/probe"
)

func TestParseRequestLine(t *testing.T) {
	tests := []struct {
		raw     string
		method  string
		path    string
		version string
		ok      bool
	}{
		{"GET / HTTP/1.1\r\nHost: x\r\n\r\n", "GET", "/", "HTTP/1.1", true},
		{"get /index.html HTTP/1.0\r\n\r\n", "GET", "/index.html", "HTTP/1.0", true},
		{"POST /form HTTP/1.1\r\n\r\n", "POST", "/form", "HTTP/1.1", true},
		{"GET /\r\n\r\n", "", "", "", false},
		{"", "", "", "", false},
		{"garbage", "", "", "", false},
	}

	for _, tt := range tests {
		method, path, version, ok := ParseRequestLine([]byte(tt.raw))
		if ok != tt.ok {
			t.Errorf("ParseRequestLine(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			continue
		}
		if method != tt.method || path != tt.path || version != tt.version {
			t.Errorf("ParseRequestLine(%q) = %q %q %q, want %q %q %q",
				tt.raw, method, path, version, tt.method, tt.path, tt.version)
		}
	}
}

func TestResolvePath(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		urlPath string
		want    string // relative to root; empty means rejected
		ok      bool
	}{
		{"/", "index.html", true},
		{"/index.html", "index.html", true},
		{"/assets/a.png", filepath.Join("assets", "a.png"), true},
		{"/index.html?x=1", "index.html", true},
		{"/../etc/passwd", "", false},
		{"/a/../../escape", "", false},
	}

	for _, tt := range tests {
		got, ok := ResolvePath(root, tt.urlPath)
		if ok != tt.ok {
			t.Errorf("ResolvePath(%q) ok = %v, want %v", tt.urlPath, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		want := filepath.Join(root, tt.want)
		if got != want {
			t.Errorf("ResolvePath(%q) = %q, want %q", tt.urlPath, got, want)
		}
	}
}

func TestBuildResponse(t *testing.T) {
	body := []byte("<h1>hi</h1>")
	resp := BuildResponse(200, body, "text/html; charset=utf-8")

	if !bytes.HasPrefix(resp, []byte("HTTP/1.1 200 OK\r\n")) {
		t.Errorf("missing status line: %q", resp)
	}
	if !bytes.Contains(resp, []byte("Content-Length: 11\r\n")) {
		t.Errorf("missing content length: %q", resp)
	}
	if !bytes.Contains(resp, []byte("Connection: close\r\n")) {
		t.Errorf("missing connection close: %q", resp)
	}
	if !bytes.HasSuffix(resp, append([]byte("\r\n\r\n"), body...)) {
		t.Errorf("body not terminated by blank line: %q", resp)
	}
}

func TestContentType(t *testing.T) {
	if ct := ContentType("index.html"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("ContentType(html) = %q", ct)
	}
	if ct := ContentType("data.bin.unknownext"); ct != "application/octet-stream" {
		t.Errorf("ContentType(unknown) = %q", ct)
	}
}

func startHTTPServer(t *testing.T, mode config.Mode) (*HTTPServer, string) {
	t.Helper()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>home</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.OriginConfig{
		Host:          "127.0.0.1",
		Root:          root,
		Mode:          mode,
		Workers:       3,
		SocketTimeout: 1000,
		LogLevel:      "info",
	}

	srv := NewHTTPServer(cfg, zerolog.Nop())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if err := srv.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	return srv, srv.Addr().String()
}

func TestHTTPServer_ServesFile(t *testing.T) {
	_, addr := startHTTPServer(t, config.ModeSingle)

	res, err := probe.HTTPGet(addr, "127.0.0.1", "/", time.Second)
	if err != nil {
		t.Fatalf("HTTPGet: %v", err)
	}
	if string(res.Body) != "<h1>home</h1>" {
		t.Errorf("body = %q, want index.html content", res.Body)
	}
}

func TestHTTPServer_NotFound(t *testing.T) {
	_, addr := startHTTPServer(t, config.ModeSingle)

	resp := rawRequest(t, addr, "GET /missing.html HTTP/1.1\r\nHost: x\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 404 Not Found\r\n") {
		t.Errorf("response = %q, want 404", resp)
	}
}

func TestHTTPServer_MethodNotAllowed(t *testing.T) {
	_, addr := startHTTPServer(t, config.ModeSingle)

	resp := rawRequest(t, addr, "POST / HTTP/1.1\r\nHost: x\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 405 Method Not Allowed\r\n") {
		t.Errorf("response = %q, want 405", resp)
	}
}

func TestHTTPServer_TraversalForbidden(t *testing.T) {
	_, addr := startHTTPServer(t, config.ModeSingle)

	resp := rawRequest(t, addr, "GET /../secret HTTP/1.1\r\nHost: x\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 403 Forbidden\r\n") {
		t.Errorf("response = %q, want 403", resp)
	}
}

func TestHTTPServer_PooledMode_Concurrent(t *testing.T) {
	_, addr := startHTTPServer(t, config.ModePooled)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := probe.HTTPGet(addr, "127.0.0.1", "/", 2*time.Second)
			if err != nil {
				t.Errorf("HTTPGet: %v", err)
				return
			}
			if string(res.Body) != "<h1>home</h1>" {
				t.Errorf("body = %q", res.Body)
			}
		}()
	}
	wg.Wait()
}

func TestEchoServer_Echoes(t *testing.T) {
	srv := NewEchoServer("127.0.0.1:0", zerolog.Nop())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if err := srv.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	conn, err := net.Dial("udp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	payload := []byte("3;1700000000.500000xxxx")
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 65535)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("no echo: %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Errorf("echo = %q, want %q", buf[:n], payload)
	}
}

func rawRequest(t *testing.T, addr, req string) string {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var sb strings.Builder
	buf := make([]byte, 4096)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		n, err := conn.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return sb.String()
}
