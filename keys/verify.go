package keys

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// ErrSignatureInvalid is returned when a well-formed signature does not
// verify under the issuer key.
var ErrSignatureInvalid = errors.New("signature invalid")

// Verify checks a base64 signature over hash(message) against issuer.
// sigAlg must match the issuer key algorithm.
func Verify(issuer, sigAlg, hashAlg string, message []byte, sigB64 string) error {
	alg, pub, err := ParseIssuerKey(issuer)
	if err != nil {
		return err
	}
	if sigAlg != alg {
		return fmt.Errorf("issuer key alg %q does not match signature alg %q", alg, sigAlg)
	}
	if sigB64 == "" {
		return errors.New("missing signature")
	}
	sig, err := decodeBase64(sigB64)
	if err != nil {
		return fmt.Errorf("invalid signature base64: %w", err)
	}
	digest, err := Digest(hashAlg, message)
	if err != nil {
		return err
	}

	switch alg {
	case AlgEd25519:
		if len(sig) != ed25519.SignatureSize {
			return errors.New("invalid ed25519 signature length")
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), digest, sig) {
			return ErrSignatureInvalid
		}
		return nil
	case AlgDilithium3:
		if len(sig) != mode3.SignatureSize {
			return errors.New("invalid dilithium3 signature length")
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return fmt.Errorf("invalid dilithium3 public key: %w", err)
		}
		if !mode3.Verify(&pk, digest, sig) {
			return ErrSignatureInvalid
		}
		return nil
	default:
		return fmt.Errorf("unsupported signature algorithm %q", alg)
	}
}
