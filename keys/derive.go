package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// deriveInfo domain-separates role derivation from any other HKDF use of
// the same seed.
const deriveInfo = "prompt-fence-keystore-v1:role:"

// DeriveRoleSeed deterministically derives a role-specific Ed25519 seed
// from a root seed using HKDF-SHA256.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}
	r := hkdf.New(sha256.New, rootSeed, nil, []byte(deriveInfo+role))
	out := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
