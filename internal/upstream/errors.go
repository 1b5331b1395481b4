package upstream

import (
	"errors"
	"net"
	"os"
)

// ErrTimeout reports that the upstream did not respond within the
// configured bound. Callers recover from it locally (a synthesized 504 on
// the TCP path, a dropped exchange on the UDP path); it is never fatal.
var ErrTimeout = errors.New("upstream timeout")

// Classify folds transport errors into the harness taxonomy: any
// deadline-style failure becomes ErrTimeout, everything else passes
// through unchanged and is treated as a structural upstream error.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return err
}
