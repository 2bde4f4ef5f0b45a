package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// Hash algorithms applied to a message before signing.
const (
	HashSHA256   = "sha256"
	HashSHA512   = "sha512"
	HashSHA3_256 = "sha3-256"
)

// Digest returns hash(message) for one of the supported hash algorithms.
func Digest(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case HashSHA256:
		s := sha256.Sum256(message)
		return s[:], nil
	case HashSHA512:
		s := sha512.Sum512(message)
		return s[:], nil
	case HashSHA3_256:
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// Signer produces base64 signatures over hash(message) and names the issuer
// key a verifier needs to check them.
type Signer interface {
	Algorithm() string
	IssuerKey() string
	Sign(message []byte, hashAlg string) (string, error)
}

// Ed25519Signer signs with an Ed25519 private key.
type Ed25519Signer struct {
	priv   ed25519.PrivateKey
	issuer string
}

// NewEd25519Signer derives the signer for a 32-byte seed.
func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes", ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	issuer, err := IssuerKeyFromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Ed25519Signer{priv: priv, issuer: issuer}, nil
}

func (s *Ed25519Signer) Algorithm() string { return AlgEd25519 }
func (s *Ed25519Signer) IssuerKey() string { return s.issuer }

func (s *Ed25519Signer) Sign(message []byte, hashAlg string) (string, error) {
	digest, err := Digest(hashAlg, message)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(s.priv, digest)), nil
}

// Dilithium3Signer signs with a post-quantum Dilithium3 key.
type Dilithium3Signer struct {
	priv   *mode3.PrivateKey
	issuer string
}

// NewDilithium3Signer derives a Dilithium3 keypair from a 32-byte seed.
func NewDilithium3Signer(seed []byte) (*Dilithium3Signer, error) {
	if len(seed) != mode3.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes", mode3.SeedSize)
	}
	var s [mode3.SeedSize]byte
	copy(s[:], seed)
	pub, priv := mode3.NewKeyFromSeed(&s)
	issuer, err := IssuerKeyFromDilithium3(pub)
	if err != nil {
		return nil, err
	}
	return &Dilithium3Signer{priv: priv, issuer: issuer}, nil
}

// GenerateDilithium3Signer creates a fresh Dilithium3 signer from rand.
func GenerateDilithium3Signer(rand io.Reader) (*Dilithium3Signer, error) {
	pub, priv, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	issuer, err := IssuerKeyFromDilithium3(pub)
	if err != nil {
		return nil, err
	}
	return &Dilithium3Signer{priv: priv, issuer: issuer}, nil
}

func (s *Dilithium3Signer) Algorithm() string { return AlgDilithium3 }
func (s *Dilithium3Signer) IssuerKey() string { return s.issuer }

func (s *Dilithium3Signer) Sign(message []byte, hashAlg string) (string, error) {
	if s.priv == nil {
		return "", errors.New("missing private key")
	}
	digest, err := Digest(hashAlg, message)
	if err != nil {
		return "", err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.priv, digest, sig)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// NewSigner builds a signer of the given algorithm from a seed.
func NewSigner(alg string, seed []byte) (Signer, error) {
	switch alg {
	case AlgEd25519, "":
		return NewEd25519Signer(seed)
	case AlgDilithium3:
		return NewDilithium3Signer(seed)
	default:
		return nil, fmt.Errorf("unsupported signature algorithm %q", alg)
	}
}
