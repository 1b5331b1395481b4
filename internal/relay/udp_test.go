package relay

import (
	"bytes"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"netgauge/internal/upstream"
)

// startEcho runs a mock origin echo server. skipFirst makes it swallow
// the first datagram so tests can force an upstream timeout.
func startEcho(t *testing.T, skipFirst bool) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("echo listen: %v", err)
	}

	var seen atomic.Int32
	go func() {
		buf := make([]byte, 65535)
		for {
			n, addr, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			if skipFirst && seen.Add(1) == 1 {
				continue
			}
			pc.WriteTo(buf[:n], addr)
		}
	}()

	t.Cleanup(func() { pc.Close() })
	return pc.LocalAddr().String()
}

func startUDPRelay(t *testing.T, echoAddr string, timeout time.Duration) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("relay listen: %v", err)
	}

	client := upstream.NewClient(upstream.Config{
		EchoAddr: echoAddr,
		Timeout:  timeout,
		Logger:   zerolog.Nop(),
	})
	r := NewUDPRelay(UDPRelayConfig{
		Conn:     pc,
		Upstream: client,
		Logger:   zerolog.Nop(),
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run()
	}()

	t.Cleanup(func() {
		r.Close()
		pc.Close()
		<-done
	})

	return pc.LocalAddr().String()
}

func exchange(t *testing.T, conn net.Conn, payload []byte, timeout time.Duration) ([]byte, error) {
	t.Helper()

	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 65535)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func TestUDPRelay_RoundTrip(t *testing.T) {
	echoAddr := startEcho(t, false)
	relayAddr := startUDPRelay(t, echoAddr, time.Second)

	conn, err := net.Dial("udp", relayAddr)
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}
	defer conn.Close()

	payload := []byte(fmt.Sprintf("1;%.6f", float64(time.Now().UnixMicro())/1e6))
	start := time.Now()
	reply, err := exchange(t, conn, payload, 2*time.Second)
	rtt := time.Since(start)
	if err != nil {
		t.Fatalf("no reply from relay: %v", err)
	}

	if !bytes.Equal(reply, payload) {
		t.Errorf("reply = %q, want %q relayed verbatim", reply, payload)
	}
	if rtt < 0 || rtt >= time.Second {
		t.Errorf("round trip took %v, want within the relay timeout", rtt)
	}
}

func TestUDPRelay_UpstreamTimeout_DropsAndSurvives(t *testing.T) {
	echoAddr := startEcho(t, true) // first datagram is never echoed
	relayTimeout := 200 * time.Millisecond
	relayAddr := startUDPRelay(t, echoAddr, relayTimeout)

	conn, err := net.Dial("udp", relayAddr)
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}
	defer conn.Close()

	// First exchange must be dropped: no reply at all.
	if reply, err := exchange(t, conn, []byte("1;lost"), 2*relayTimeout); err == nil {
		t.Fatalf("expected no reply after upstream timeout, got %q", reply)
	}

	// The loop must still be alive and serve the next datagram.
	payload := []byte("2;recovered")
	reply, err := exchange(t, conn, payload, 2*time.Second)
	if err != nil {
		t.Fatalf("relay loop dead after a timed-out exchange: %v", err)
	}
	if !bytes.Equal(reply, payload) {
		t.Errorf("reply = %q, want %q", reply, payload)
	}
}

func TestUDPRelay_IndependentClients(t *testing.T) {
	echoAddr := startEcho(t, false)
	relayAddr := startUDPRelay(t, echoAddr, time.Second)

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("udp", relayAddr)
		if err != nil {
			t.Fatalf("dial relay: %v", err)
		}

		payload := []byte(fmt.Sprintf("client-%d", i))
		reply, err := exchange(t, conn, payload, 2*time.Second)
		conn.Close()
		if err != nil {
			t.Fatalf("client %d got no reply: %v", i, err)
		}
		if !bytes.Equal(reply, payload) {
			t.Errorf("client %d reply = %q, want %q", i, reply, payload)
		}
	}
}
