package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"netgauge/internal/config"
	"netgauge/internal/logging"
	"netgauge/internal/origin"
)

func main() {
	cfg := &config.OriginConfig{}
	var mode string

	flag.StringVar(&cfg.Host, "host", config.DefaultHost, "bind address")
	flag.IntVar(&cfg.HTTPPort, "http-port", config.DefaultOriginHTTPPort, "HTTP server port")
	flag.IntVar(&cfg.UDPPort, "udp-port", config.DefaultOriginUDPPort, "UDP echo server port")
	flag.StringVar(&cfg.Root, "www", config.DefaultOriginRoot, "directory of files to serve")
	flag.StringVar(&mode, "mode", string(config.ModeSingle), "scheduling mode: single or pooled")
	flag.IntVar(&cfg.Workers, "workers", config.DefaultOriginWorkers, "worker count in pooled mode")
	flag.IntVar(&cfg.SocketTimeout, "timeout", config.DefaultSocketTimeout, "socket timeout in ms")
	flag.StringVar(&cfg.LogLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	flag.Parse()

	cfg.Mode = config.Mode(mode)
	config.ApplyOriginDefaults(cfg)

	if err := config.ValidateOrigin(cfg); err != nil {
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := logging.Setup(cfg.LogLevel)

	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		logger.Fatal().Err(err).Str("root", cfg.Root).Msg("failed to create www root")
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("httpPort", cfg.HTTPPort).
		Int("udpPort", cfg.UDPPort).
		Str("mode", string(cfg.Mode)).
		Msg("starting origin server")

	echo := origin.NewEchoServer(cfg.EchoAddr(), logger)
	if err := echo.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start echo server")
	}

	httpSrv := origin.NewHTTPServer(cfg, logger)
	if err := httpSrv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start HTTP server")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	if err := httpSrv.Close(); err != nil {
		logger.Error().Err(err).Msg("error closing HTTP server")
	}
	if err := echo.Close(); err != nil {
		logger.Error().Err(err).Msg("error closing echo server")
	}
}
