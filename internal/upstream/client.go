package upstream

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"
)

const readChunkSize = 4096

// Client reaches the origin server on behalf of the relay. Every call is
// a single attempt on a fresh connection bounded by the configured
// timeout; retries belong to the test client, not here.
type Client struct {
	httpAddr string
	echoAddr string
	timeout  time.Duration
	logger   zerolog.Logger
}

// Config for creating a new Client
type Config struct {
	HTTPAddr string
	EchoAddr string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// NewClient creates a new upstream Client
func NewClient(cfg Config) *Client {
	return &Client{
		httpAddr: cfg.HTTPAddr,
		echoAddr: cfg.EchoAddr,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger.With().Str("component", "upstream").Logger(),
	}
}

// HTTPAddr returns the origin HTTP address
func (c *Client) HTTPAddr() string {
	return c.httpAddr
}

// Fetch opens a fresh TCP connection to the origin, writes the request
// bytes verbatim and reads the response until the origin closes the
// connection. The accumulated bytes are the response; the origin signals
// completion by closing, not by framing.
func (c *Client) Fetch(req []byte) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", c.httpAddr, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.httpAddr, Classify(err))
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := conn.Write(req); err != nil {
		return nil, fmt.Errorf("write request: %w", Classify(err))
	}

	var resp []byte
	buf := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(buf)
		resp = append(resp, buf[:n]...)
		if err == io.EOF {
			return resp, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read response: %w", Classify(err))
		}
	}
}

// Exchange sends one datagram to the origin echo server from a fresh
// outbound socket and waits for the reply. It returns the reply payload
// and the measured round trip time between send and receive.
func (c *Client) Exchange(payload []byte) ([]byte, time.Duration, error) {
	conn, err := net.Dial("udp", c.echoAddr)
	if err != nil {
		return nil, 0, fmt.Errorf("dial %s: %w", c.echoAddr, Classify(err))
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, 0, err
	}

	t0 := time.Now()
	if _, err := conn.Write(payload); err != nil {
		return nil, 0, fmt.Errorf("send datagram: %w", Classify(err))
	}

	buf := make([]byte, 65535)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, 0, fmt.Errorf("await echo: %w", Classify(err))
	}
	rtt := time.Since(t0)

	reply := make([]byte, n)
	copy(reply, buf[:n])
	return reply, rtt, nil
}
