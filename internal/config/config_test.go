package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{TargetHost: "10.0.0.2"}
	ApplyDefaults(cfg)

	if cfg.Host != DefaultHost {
		t.Errorf("Host = %q, want %q", cfg.Host, DefaultHost)
	}
	if cfg.TCPPort != DefaultTCPPort || cfg.UDPPort != DefaultUDPPort {
		t.Errorf("ports = %d/%d, want %d/%d", cfg.TCPPort, cfg.UDPPort, DefaultTCPPort, DefaultUDPPort)
	}
	if cfg.SocketTimeout != DefaultSocketTimeout {
		t.Errorf("SocketTimeout = %d, want %d", cfg.SocketTimeout, DefaultSocketTimeout)
	}
	if cfg.MaxRequestBytes != DefaultMaxRequestBytes {
		t.Errorf("MaxRequestBytes = %d, want %d", cfg.MaxRequestBytes, DefaultMaxRequestBytes)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("Validate after defaults: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	base := func() *Config {
		cfg := &Config{TargetHost: "10.0.0.2"}
		ApplyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing target host", func(c *Config) { c.TargetHost = "" }},
		{"tcp port too large", func(c *Config) { c.TCPPort = 70000 }},
		{"udp port zero", func(c *Config) { c.UDPPort = -1 }},
		{"negative timeout", func(c *Config) { c.SocketTimeout = -1 }},
		{"negative cache bound", func(c *Config) { c.CacheMaxEntries = -1 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		cfg := base()
		tt.mutate(cfg)
		if err := Validate(cfg); err == nil {
			t.Errorf("%s: Validate accepted invalid config", tt.name)
		}
	}
}

func TestGetSocketTimeout(t *testing.T) {
	cfg := &Config{SocketTimeout: 8000}
	if got := cfg.GetSocketTimeout(); got != 8*time.Second {
		t.Errorf("GetSocketTimeout = %v, want 8s", got)
	}
}

func TestConfig_Addrs(t *testing.T) {
	cfg := &Config{
		Host:           "0.0.0.0",
		TCPPort:        8080,
		UDPPort:        9090,
		TargetHost:     "192.168.1.3",
		TargetHTTPPort: 8000,
		TargetUDPPort:  9000,
	}

	if got := cfg.TCPAddr(); got != "0.0.0.0:8080" {
		t.Errorf("TCPAddr = %q", got)
	}
	if got := cfg.TargetHTTPAddr(); got != "192.168.1.3:8000" {
		t.Errorf("TargetHTTPAddr = %q", got)
	}
	if got := cfg.TargetUDPAddr(); got != "192.168.1.3:9000" {
		t.Errorf("TargetUDPAddr = %q", got)
	}
}

func TestValidateOrigin(t *testing.T) {
	cfg := &OriginConfig{}
	ApplyOriginDefaults(cfg)

	if cfg.Mode != ModeSingle {
		t.Errorf("Mode = %q, want single", cfg.Mode)
	}
	if err := ValidateOrigin(cfg); err != nil {
		t.Errorf("ValidateOrigin after defaults: %v", err)
	}

	cfg.Mode = "threaded"
	if err := ValidateOrigin(cfg); err == nil {
		t.Error("ValidateOrigin accepted unknown mode")
	}

	cfg.Mode = ModePooled
	cfg.Workers = 0
	if err := ValidateOrigin(cfg); err == nil {
		t.Error("ValidateOrigin accepted pooled mode without workers")
	}
}
