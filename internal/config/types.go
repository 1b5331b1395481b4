package config

import "time"

// Mode defines how the origin HTTP server schedules connections
type Mode string

const (
	// ModeSingle handles one connection at a time on the accept goroutine
	ModeSingle Mode = "single"
	// ModePooled dispatches connections to a fixed pool of workers
	ModePooled Mode = "pooled"
)

// Config represents the proxy configuration
type Config struct {
	Host            string // bind address for both listeners
	TCPPort         int    // inbound HTTP relay port
	UDPPort         int    // inbound datagram relay port
	TargetHost      string // origin server host
	TargetHTTPPort  int    // origin HTTP port
	TargetUDPPort   int    // origin echo port
	SocketTimeout   int    // ms - idle timeout for every socket operation
	MaxRequestBytes int    // cap on a buffered inbound request
	CacheEnabled    bool
	CacheMaxEntries int // 0 means unbounded
	LogLevel        string
}

// OriginConfig represents the origin web/echo server configuration
type OriginConfig struct {
	Host          string
	HTTPPort      int
	UDPPort       int
	Root          string // directory served by the HTTP file responder
	Mode          Mode
	Workers       int // pool size when Mode is pooled
	SocketTimeout int // ms
	LogLevel      string
}

// Default values
const (
	DefaultHost            = "0.0.0.0"
	DefaultTCPPort         = 8080
	DefaultUDPPort         = 9090
	DefaultTargetHTTPPort  = 8000
	DefaultTargetUDPPort   = 9000
	DefaultSocketTimeout   = 8000 // ms
	DefaultMaxRequestBytes = 64 * 1024
	DefaultCacheEnabled    = true
	DefaultLogLevel        = "info"
	DefaultOriginHTTPPort  = 8000
	DefaultOriginUDPPort   = 9000
	DefaultOriginRoot      = "www"
	DefaultOriginWorkers   = 5
)

// GetSocketTimeout returns the socket timeout as time.Duration
func (c *Config) GetSocketTimeout() time.Duration {
	return time.Duration(c.SocketTimeout) * time.Millisecond
}

// GetSocketTimeout returns the socket timeout as time.Duration
func (c *OriginConfig) GetSocketTimeout() time.Duration {
	return time.Duration(c.SocketTimeout) * time.Millisecond
}

// TCPAddr returns the proxy's inbound TCP listen address
func (c *Config) TCPAddr() string {
	return joinHostPort(c.Host, c.TCPPort)
}

// UDPAddr returns the proxy's inbound UDP listen address
func (c *Config) UDPAddr() string {
	return joinHostPort(c.Host, c.UDPPort)
}

// TargetHTTPAddr returns the origin HTTP address the proxy forwards to
func (c *Config) TargetHTTPAddr() string {
	return joinHostPort(c.TargetHost, c.TargetHTTPPort)
}

// TargetUDPAddr returns the origin echo address the proxy forwards to
func (c *Config) TargetUDPAddr() string {
	return joinHostPort(c.TargetHost, c.TargetUDPPort)
}

// HTTPAddr returns the origin HTTP listen address
func (c *OriginConfig) HTTPAddr() string {
	return joinHostPort(c.Host, c.HTTPPort)
}

// EchoAddr returns the origin UDP echo listen address
func (c *OriginConfig) EchoAddr() string {
	return joinHostPort(c.Host, c.UDPPort)
}
