package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"netgauge/internal/logging"
	"netgauge/internal/probe"
)

const defaultTimeout = 8 * time.Second

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logger := logging.Setup("info")

	var err error
	switch os.Args[1] {
	case "http":
		err = runHTTP(os.Args[2:], logger)
	case "http-multi":
		err = runHTTPMulti(os.Args[2:], logger)
	case "udp-test":
		err = runUDPTest(os.Args[2:], logger)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Fatal().Err(err).Msg("test failed")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: client <http|http-multi|udp-test> [flags]")
	fmt.Fprintln(os.Stderr, "  http       single timed HTTP GET")
	fmt.Fprintln(os.Stderr, "  http-multi parallel HTTP GETs")
	fmt.Fprintln(os.Stderr, "  udp-test   UDP QoS test (loss, RTT, jitter, throughput)")
}

func runHTTP(args []string, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("http", flag.ExitOnError)
	host := fs.String("host", "", "server host (required)")
	port := fs.Int("port", 8000, "server port")
	path := fs.String("path", "/", "request path")
	save := fs.String("save", "", "save response body to file")
	fs.Parse(args)

	if *host == "" {
		return fmt.Errorf("host is required")
	}

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	res, err := probe.HTTPGet(addr, *host, *path, defaultTimeout)
	if err != nil {
		return err
	}

	logger.Info().
		Int("bytes", res.Bytes).
		Float64("seconds", res.Duration.Seconds()).
		Msg("received response")

	if *save != "" {
		if err := probe.SaveBody(res, *save); err != nil {
			return err
		}
		logger.Info().Str("file", *save).Msg("body saved")
	}

	return nil
}

func runHTTPMulti(args []string, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("http-multi", flag.ExitOnError)
	host := fs.String("host", "", "server host (required)")
	port := fs.Int("port", 8000, "server port")
	path := fs.String("path", "/", "request path")
	num := fs.Int("num", 5, "number of parallel clients")
	fs.Parse(args)

	if *host == "" {
		return fmt.Errorf("host is required")
	}

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	results := probe.HTTPMulti(addr, *host, *path, *num, defaultTimeout, logger)

	logger.Info().
		Int("requested", *num).
		Int("completed", len(results)).
		Msg("multi-client run done")

	return nil
}

func runUDPTest(args []string, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("udp-test", flag.ExitOnError)
	host := fs.String("host", "", "server host (required)")
	port := fs.Int("port", 9000, "server port")
	num := fs.Int("num", 50, "number of packets")
	size := fs.Int("size", 100, "payload size in bytes")
	interval := fs.Float64("interval", 0.05, "seconds between packets")
	csvFile := fs.String("csv", "", "write per-packet RTT detail to CSV file")
	fs.Parse(args)

	if *host == "" {
		return fmt.Errorf("host is required")
	}

	pacing := time.Duration(*interval * float64(time.Second))
	timeout := 2 * pacing
	if timeout < time.Second {
		timeout = time.Second
	}

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	report, err := probe.UDPTest(addr, probe.QoSConfig{
		Packets:  *num,
		Size:     *size,
		Interval: pacing,
		Timeout:  timeout,
	}, logger)
	if err != nil {
		return err
	}

	if *csvFile != "" {
		f, err := os.Create(*csvFile)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := probe.WriteCSV(f, report); err != nil {
			return err
		}
		logger.Info().Str("file", *csvFile).Msg("RTT detail saved")
	}

	return nil
}
