package probe

import (
	"encoding/csv"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const maxDatagramSize = 65535

// QoSConfig parameterizes one UDP QoS run
type QoSConfig struct {
	Packets  int           // datagrams to send
	Size     int           // payload size, padded if the header is shorter
	Interval time.Duration // pacing between sends
	Timeout  time.Duration // per-packet echo wait
}

// Sample is the per-packet outcome of a QoS run
type Sample struct {
	Seq int
	RTT time.Duration
}

// QoSReport aggregates one UDP QoS run: loss, latency, jitter and
// throughput, computed the same way the harness's CSV consumers expect.
type QoSReport struct {
	Sent          int
	Received      int
	LossPercent   float64
	AvgLatencyMs  float64
	JitterMs      float64
	ThroughputBps float64
	Samples       []Sample
}

// UDPTest sends sequence-numbered datagrams to addr and measures the
// echo behavior. Payloads carry "<seq>;<unix-ts>" padded with 'x' to the
// configured size; a reply is matched on the sequence number it carries,
// so late echoes of earlier packets still count. A timed-out packet is
// recorded as lost and the run continues.
func UDPTest(addr string, cfg QoSConfig, logger zerolog.Logger) (QoSReport, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return QoSReport{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	logger.Info().
		Str("addr", addr).
		Int("packets", cfg.Packets).
		Int("size", cfg.Size).
		Dur("interval", cfg.Interval).
		Msg("starting UDP QoS test")

	sendTimes := make(map[int]time.Time, cfg.Packets)
	samples := make([]Sample, 0, cfg.Packets)
	buf := make([]byte, maxDatagramSize)

	start := time.Now()

	for seq := 1; seq <= cfg.Packets; seq++ {
		payload := BuildPayload(seq, cfg.Size)

		sendTime := time.Now()
		sendTimes[seq] = sendTime

		if _, err := conn.Write(payload); err != nil {
			logger.Error().Int("seq", seq).Err(err).Msg("send failed")
			continue
		}

		if err := conn.SetReadDeadline(time.Now().Add(cfg.Timeout)); err != nil {
			return QoSReport{}, err
		}

		n, err := conn.Read(buf)
		if err != nil {
			logger.Warn().Int("seq", seq).Msg("timeout waiting for echo")
		} else {
			recvTime := time.Now()
			if respSeq, ok := ParseSeq(buf[:n]); ok {
				if sent, known := sendTimes[respSeq]; known {
					rtt := recvTime.Sub(sent)
					samples = append(samples, Sample{Seq: respSeq, RTT: rtt})
					logger.Info().
						Int("seq", respSeq).
						Float64("rttMs", float64(rtt.Microseconds())/1000.0).
						Msg("received echo")
				}
			}
		}

		if elapsed := time.Since(sendTime); elapsed < cfg.Interval {
			time.Sleep(cfg.Interval - elapsed)
		}
	}

	total := time.Since(start)

	report := buildReport(cfg, samples, total)
	logReport(logger, report)
	return report, nil
}

// BuildPayload formats the "<seq>;<unix-ts>" payload padded with 'x'
// bytes up to size.
func BuildPayload(seq, size int) []byte {
	payload := []byte(fmt.Sprintf("%d;%.6f", seq, float64(time.Now().UnixMicro())/1e6))
	for len(payload) < size {
		payload = append(payload, 'x')
	}
	return payload
}

// ParseSeq extracts the sequence number from an echoed payload
func ParseSeq(payload []byte) (int, bool) {
	text := string(payload)
	if i := strings.Index(text, ";"); i >= 0 {
		text = text[:i]
	}
	seq, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// buildReport computes the aggregate QoS statistics from raw samples
func buildReport(cfg QoSConfig, samples []Sample, total time.Duration) QoSReport {
	report := QoSReport{
		Sent:     cfg.Packets,
		Received: len(samples),
		Samples:  samples,
	}

	if cfg.Packets > 0 {
		report.LossPercent = float64(cfg.Packets-len(samples)) / float64(cfg.Packets) * 100.0
	}

	if len(samples) > 0 {
		var sum time.Duration
		for _, s := range samples {
			sum += s.RTT
		}
		report.AvgLatencyMs = float64(sum.Microseconds()) / 1000.0 / float64(len(samples))

		// Jitter: mean absolute delta between successive RTTs.
		var diffSum time.Duration
		for i := 1; i < len(samples); i++ {
			d := samples[i].RTT - samples[i-1].RTT
			if d < 0 {
				d = -d
			}
			diffSum += d
		}
		if len(samples) > 1 {
			report.JitterMs = float64(diffSum.Microseconds()) / 1000.0 / float64(len(samples)-1)
		}
	}

	if total > 0 {
		totalBits := float64(len(samples)*cfg.Size) * 8
		report.ThroughputBps = totalBits / total.Seconds()
	}

	return report
}

func logReport(logger zerolog.Logger, r QoSReport) {
	logger.Info().
		Int("sent", r.Sent).
		Int("received", r.Received).
		Float64("lossPercent", r.LossPercent).
		Float64("avgLatencyMs", r.AvgLatencyMs).
		Float64("jitterMs", r.JitterMs).
		Float64("throughputBps", r.ThroughputBps).
		Msg("QoS result")
}

// WriteCSV emits the per-packet RTT detail as "seq,rtt_ms" rows
func WriteCSV(w io.Writer, r QoSReport) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"seq", "rtt_ms"}); err != nil {
		return err
	}
	for _, s := range r.Samples {
		rttMs := strconv.FormatFloat(float64(s.RTT.Microseconds())/1000.0, 'f', 3, 64)
		if err := cw.Write([]string{strconv.Itoa(s.Seq), rttMs}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
