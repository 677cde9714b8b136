package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"mercator-hq/aegis/pkg/safety"
)

// Fingerprint identifies a request for caching. Two requests share a
// fingerprint only when their text and context are byte-for-byte equal.
type Fingerprint string

// NewFingerprint computes the fingerprint of req. Context and text are
// length-prefixed so their boundary cannot shift between requests.
func NewFingerprint(req safety.Request) Fingerprint {
	h := sha256.New()

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(req.Context)))
	h.Write(n[:])
	h.Write([]byte(req.Context))

	binary.BigEndian.PutUint64(n[:], uint64(len(req.Text)))
	h.Write(n[:])
	h.Write([]byte(req.Text))

	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// Short returns an abbreviated form for logs.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}
