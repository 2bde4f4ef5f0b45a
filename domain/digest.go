package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Digest is a 32-byte opaque hash carried through the core unmodified
// (anomalies and verification digests of a trust report).
type Digest [32]byte

// ParseDigest decodes a 64-character hex string with optional 0x prefix.
// An empty string decodes to the zero digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return d, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, WrapError(CodeMalformedReport, "digest is not hex", err)
	}
	if len(b) != len(d) {
		return d, NewError(CodeMalformedReport, fmt.Sprintf("digest must be %d bytes, got %d", len(d), len(b)))
	}
	copy(d[:], b)
	return d, nil
}

func (d Digest) String() string { return "0x" + hex.EncodeToString(d[:]) }

// IsZero reports whether every byte of d is zero.
func (d Digest) IsZero() bool { return d == Digest{} }

func (d Digest) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Digest) UnmarshalText(b []byte) error {
	parsed, err := ParseDigest(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
