package probe

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HTTPResult captures one timed HTTP transfer
type HTTPResult struct {
	Duration time.Duration
	Bytes    int    // full response size including headers
	Body     []byte // response body after the first blank line
}

// HTTPGet performs one GET over a raw TCP connection and times the full
// transfer, connect included. The response is read until the server
// closes the connection.
func HTTPGet(addr, host, path string, timeout time.Duration) (HTTPResult, error) {
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return HTTPResult{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return HTTPResult{}, err
	}

	req := fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", path, host)
	if _, err := conn.Write([]byte(req)); err != nil {
		return HTTPResult{}, fmt.Errorf("write request: %w", err)
	}

	var resp bytes.Buffer
	if _, err := io.Copy(&resp, conn); err != nil {
		return HTTPResult{}, fmt.Errorf("read response: %w", err)
	}

	duration := time.Since(start)

	raw := resp.Bytes()
	var body []byte
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		body = raw[i+4:]
	}

	return HTTPResult{
		Duration: duration,
		Bytes:    len(raw),
		Body:     body,
	}, nil
}

// SaveBody writes the response body to a file
func SaveBody(res HTTPResult, path string) error {
	return os.WriteFile(path, res.Body, 0o644)
}

// HTTPMulti runs n parallel GETs against the same address and returns
// the successful results in completion order. Failures are logged and
// dropped; the point is to load the server, not to abort the run.
func HTTPMulti(addr, host, path string, n int, timeout time.Duration, logger zerolog.Logger) []HTTPResult {
	results := make([]HTTPResult, 0, n)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			res, err := HTTPGet(addr, host, path, timeout)
			if err != nil {
				logger.Error().Int("client", idx).Err(err).Msg("request failed")
				return
			}

			logger.Info().
				Int("client", idx).
				Int("bytes", res.Bytes).
				Float64("seconds", res.Duration.Seconds()).
				Msg("request done")

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(i)
	}

	wg.Wait()
	return results
}
