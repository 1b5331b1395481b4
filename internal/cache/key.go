package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// Key derives a cache key from the raw bytes of an inbound request.
//
// Only the request line (method, path, version) participates in the key,
// so two requests for the same resource hit the same entry even when their
// headers differ. The flip side is that the cached response is returned
// for any request sharing the line, regardless of the rest of the bytes.
// When no line terminator is present the whole buffer is hashed.
func Key(req []byte) string {
	line := req
	if i := bytes.Index(req, []byte("\r\n")); i >= 0 {
		line = req[:i]
	}

	hash := sha256.Sum256(line)
	return "req:" + hex.EncodeToString(hash[:8])
}
