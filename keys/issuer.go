package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// Signature algorithms accepted for issuer keys.
const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"
)

// IssuerKeyFromPublicKey encodes an Ed25519 public key as an issuer key.
func IssuerKeyFromPublicKey(pub ed25519.PublicKey) (string, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return "", fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return AlgEd25519 + ":" + base64.StdEncoding.EncodeToString(pub), nil
}

// IssuerKeyFromDilithium3 encodes a Dilithium3 public key as an issuer key.
func IssuerKeyFromDilithium3(pub *mode3.PublicKey) (string, error) {
	if pub == nil {
		return "", errors.New("missing dilithium3 public key")
	}
	b, err := pub.MarshalBinary()
	if err != nil {
		return "", err
	}
	return AlgDilithium3 + ":" + base64.StdEncoding.EncodeToString(b), nil
}

// ParseIssuerKey splits an issuer key into its algorithm and raw public key
// bytes, validating the key length for the algorithm.
func ParseIssuerKey(issuer string) (alg string, pub []byte, err error) {
	if issuer == "" {
		return "", nil, errors.New("missing issuer key")
	}
	alg, enc, ok := strings.Cut(issuer, ":")
	if !ok {
		return "", nil, errors.New("invalid issuer key encoding")
	}
	pub, err = decodeBase64(enc)
	if err != nil {
		return "", nil, fmt.Errorf("invalid issuer key base64: %w", err)
	}
	switch alg {
	case AlgEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return "", nil, errors.New("invalid ed25519 public key length")
		}
	case AlgDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return "", nil, fmt.Errorf("invalid dilithium3 public key: %w", err)
		}
	default:
		return "", nil, fmt.Errorf("unsupported issuer key algorithm %q", alg)
	}
	return alg, pub, nil
}

func decodeBase64(s string) ([]byte, error) {
	// Prefer standard padded encoding, but accept raw encoding too.
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
