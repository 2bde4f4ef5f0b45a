package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
)

const derivationLabel = "trustchain-keys-v1"

// IssuerKeyFromSeed returns the Ed25519 issuer key string for a seed.
func IssuerKeyFromSeed(seed []byte) (string, error) {
	s, err := NewEd25519Signer(seed)
	if err != nil {
		return "", err
	}
	return s.IssuerKey(), nil
}

// DeriveRoleSeed deterministically derives a role-specific seed (for example
// "attestor" or "admin") from a root seed, so one root identity can hold
// separate keys per duty.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckName(role); err != nil {
		return nil, fmt.Errorf("role: %w", err)
	}

	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(derivationLabel))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("role:"))
	_, _ = h.Write([]byte(role))
	sum := h.Sum(nil)
	if len(sum) < ed25519.SeedSize {
		return nil, errors.New("kdf output too short")
	}
	out := make([]byte, ed25519.SeedSize)
	copy(out, sum[:ed25519.SeedSize])
	return out, nil
}

// CheckName validates identifiers and role names: ASCII letters, digits,
// '-' and '_'.
func CheckName(name string) error {
	if name == "" {
		return errors.New("name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q", char)
	}
	return nil
}
