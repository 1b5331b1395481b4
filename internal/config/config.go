package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// There is no config file: both binaries build a Config from flags and run
// it through ApplyDefaults and Validate before anything binds a socket.

// ApplyDefaults sets default values for unset fields
func ApplyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.TCPPort == 0 {
		cfg.TCPPort = DefaultTCPPort
	}
	if cfg.UDPPort == 0 {
		cfg.UDPPort = DefaultUDPPort
	}
	if cfg.TargetHTTPPort == 0 {
		cfg.TargetHTTPPort = DefaultTargetHTTPPort
	}
	if cfg.TargetUDPPort == 0 {
		cfg.TargetUDPPort = DefaultTargetUDPPort
	}
	if cfg.SocketTimeout == 0 {
		cfg.SocketTimeout = DefaultSocketTimeout
	}
	if cfg.MaxRequestBytes == 0 {
		cfg.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

// Validate checks the proxy configuration for errors
func Validate(cfg *Config) error {
	if cfg.TargetHost == "" {
		return errors.New("target host is required")
	}

	if err := validatePort("tcpPort", cfg.TCPPort); err != nil {
		return err
	}
	if err := validatePort("udpPort", cfg.UDPPort); err != nil {
		return err
	}
	if err := validatePort("targetHttpPort", cfg.TargetHTTPPort); err != nil {
		return err
	}
	if err := validatePort("targetUdpPort", cfg.TargetUDPPort); err != nil {
		return err
	}

	if cfg.SocketTimeout < 0 {
		return fmt.Errorf("socketTimeout must be non-negative")
	}

	if cfg.MaxRequestBytes < 0 {
		return fmt.Errorf("maxRequestBytes must be non-negative")
	}

	if cfg.CacheMaxEntries < 0 {
		return fmt.Errorf("cacheMaxEntries must be non-negative")
	}

	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	return nil
}

// ApplyOriginDefaults sets default values for unset origin fields
func ApplyOriginDefaults(cfg *OriginConfig) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultOriginHTTPPort
	}
	if cfg.UDPPort == 0 {
		cfg.UDPPort = DefaultOriginUDPPort
	}
	if cfg.Root == "" {
		cfg.Root = DefaultOriginRoot
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSingle
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultOriginWorkers
	}
	if cfg.SocketTimeout == 0 {
		cfg.SocketTimeout = DefaultSocketTimeout
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

// ValidateOrigin checks the origin configuration for errors
func ValidateOrigin(cfg *OriginConfig) error {
	if err := validatePort("httpPort", cfg.HTTPPort); err != nil {
		return err
	}
	if err := validatePort("udpPort", cfg.UDPPort); err != nil {
		return err
	}

	if cfg.Mode != ModeSingle && cfg.Mode != ModePooled {
		return fmt.Errorf("mode must be 'single' or 'pooled'")
	}

	if cfg.Mode == ModePooled && cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1 in pooled mode")
	}

	if cfg.SocketTimeout < 0 {
		return fmt.Errorf("socketTimeout must be non-negative")
	}

	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	return nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535", name)
	}
	return nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
