package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"netgauge/internal/config"
	"netgauge/internal/logging"
	"netgauge/internal/server"
)

func main() {
	cfg := &config.Config{}

	flag.StringVar(&cfg.Host, "host", config.DefaultHost, "bind address")
	flag.IntVar(&cfg.TCPPort, "tcp-port", config.DefaultTCPPort, "inbound TCP relay port")
	flag.IntVar(&cfg.UDPPort, "udp-port", config.DefaultUDPPort, "inbound UDP relay port")
	flag.StringVar(&cfg.TargetHost, "target-host", "", "origin server host (required)")
	flag.IntVar(&cfg.TargetHTTPPort, "target-http-port", config.DefaultTargetHTTPPort, "origin HTTP port")
	flag.IntVar(&cfg.TargetUDPPort, "target-udp-port", config.DefaultTargetUDPPort, "origin UDP echo port")
	flag.IntVar(&cfg.SocketTimeout, "timeout", config.DefaultSocketTimeout, "socket timeout in ms")
	flag.BoolVar(&cfg.CacheEnabled, "cache", config.DefaultCacheEnabled, "enable the response cache")
	flag.IntVar(&cfg.CacheMaxEntries, "cache-max-entries", 0, "bound cache size (0 = unbounded)")
	flag.StringVar(&cfg.LogLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	flag.Parse()

	config.ApplyDefaults(cfg)

	if err := config.Validate(cfg); err != nil {
		// Basic logger for startup errors
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := logging.Setup(cfg.LogLevel)
	logger.Info().
		Str("host", cfg.Host).
		Int("tcpPort", cfg.TCPPort).
		Int("udpPort", cfg.UDPPort).
		Str("targetHttp", cfg.TargetHTTPAddr()).
		Str("targetUdp", cfg.TargetUDPAddr()).
		Msg("starting proxy")

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create proxy")
	}

	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start proxy")
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
}
