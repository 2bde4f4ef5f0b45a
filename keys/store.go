package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore keeps attestor and admin seeds on the local filesystem.
//
// Layout:
//
//	<dir>/<identity>/root.key
//	<dir>/<identity>/roles/<role>.key
//
// Each file holds one hex-encoded 32-byte seed. A seed yields either an
// Ed25519 or a Dilithium3 signer, chosen when the signer is loaded.
type KeyStore struct {
	Dir string
}

// Identity lists one identity and the role keys derived from it.
type Identity struct {
	Name  string
	Roles []string
}

// DefaultDir returns ~/.trustchain/keys.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".trustchain", "keys"), nil
}

// OpenKeyStore returns a store rooted at dir, or at DefaultDir when dir is
// empty. The directory is created lazily on first write.
func OpenKeyStore(dir string) (*KeyStore, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return nil, err
		}
	}
	return &KeyStore{Dir: dir}, nil
}

func (ks *KeyStore) rootPath(name string) string {
	return filepath.Join(ks.Dir, name, "root.key")
}

func (ks *KeyStore) rolePath(name, role string) string {
	return filepath.Join(ks.Dir, name, "roles", role+".key")
}

// ParseSeedHex decodes a 32-byte hex seed, tolerating a 0x prefix.
func ParseSeedHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return seed, nil
}

func writeSeed(path string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("seed must be %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return f.Close()
}

func readSeed(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(b))
}

// InitRoot stores seed as the root key of name and returns its Ed25519
// issuer key.
func (ks *KeyStore) InitRoot(name string, seed []byte, overwrite bool) (issuer string, path string, err error) {
	if err := CheckName(name); err != nil {
		return "", "", err
	}
	path = ks.rootPath(name)
	if err := writeSeed(path, seed, overwrite); err != nil {
		return "", "", err
	}
	issuer, err = IssuerKeyFromSeed(seed)
	return issuer, path, err
}

// DeriveRole derives and stores the role key of name.
func (ks *KeyStore) DeriveRole(name, role string, overwrite bool) (issuer string, path string, err error) {
	if err := CheckName(name); err != nil {
		return "", "", err
	}
	root, err := readSeed(ks.rootPath(name))
	if err != nil {
		return "", "", err
	}
	seed, err := DeriveRoleSeed(root, role)
	if err != nil {
		return "", "", err
	}
	path = ks.rolePath(name, role)
	if err := writeSeed(path, seed, overwrite); err != nil {
		return "", "", err
	}
	issuer, err = IssuerKeyFromSeed(seed)
	return issuer, path, err
}

// Seed loads the root seed of name, or its role seed when role is set.
func (ks *KeyStore) Seed(name, role string) ([]byte, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	if role == "" {
		return readSeed(ks.rootPath(name))
	}
	if err := CheckName(role); err != nil {
		return nil, fmt.Errorf("role: %w", err)
	}
	return readSeed(ks.rolePath(name, role))
}

// Signer loads a stored seed and builds a signer of the given algorithm.
func (ks *KeyStore) Signer(name, role, alg string) (Signer, error) {
	seed, err := ks.Seed(name, role)
	if err != nil {
		return nil, err
	}
	return NewSigner(alg, seed)
}

// ResolveSeed picks a seed from the first source provided: a literal hex
// seed, a key file, or a stored identity.
func (ks *KeyStore) ResolveSeed(seedHex, keyFile, name, role string) ([]byte, error) {
	switch {
	case seedHex != "":
		return ParseSeedHex(seedHex)
	case keyFile != "":
		return readSeed(keyFile)
	case name != "":
		return ks.Seed(name, role)
	}
	return nil, errors.New("no signer provided")
}

// List returns every stored identity with its role keys, sorted by name.
func (ks *KeyStore) List() ([]Identity, error) {
	entries, err := os.ReadDir(ks.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Identity
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := Identity{Name: e.Name()}
		roleEntries, err := os.ReadDir(filepath.Join(ks.Dir, e.Name(), "roles"))
		if err == nil {
			for _, r := range roleEntries {
				if !r.IsDir() && strings.HasSuffix(r.Name(), ".key") {
					id.Roles = append(id.Roles, strings.TrimSuffix(r.Name(), ".key"))
				}
			}
			sort.Strings(id.Roles)
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
