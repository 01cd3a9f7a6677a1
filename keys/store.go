package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anuraag-khare/prompt-fence/fence"
)

// KeyStore is a simple local-first key management system.
//
// Features:
// - Ed25519 keys only; seeds stored Base64-encoded in 0600 files
// - Named root keys plus deterministic role subkeys
// - Plain directories, no external services
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Name  string
	Roles []string
}

func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".prompt-fence", "keys"), nil
}

// Open returns a KeyStore rooted at directory, or the default directory
// when empty.
func Open(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootKeyPath(name string) string {
	return filepath.Join(ks.Directory, name, "root.key")
}

func (ks *KeyStore) roleKeyPath(name, role string) string {
	return filepath.Join(ks.Directory, name, "roles", role+".key")
}

func CheckKeyName(name string) error {
	if name == "" {
		return errors.New("key name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in key name", char)
	}
	return nil
}

func CheckRole(role string) error {
	if role == "" {
		return errors.New("role cannot be empty")
	}
	for _, char := range role {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in role", char)
	}
	return nil
}

func (ks *KeyStore) saveSeedToFile(filePath string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(base64.StdEncoding.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

func (ks *KeyStore) loadSeedFromFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return fence.DecodeKey(strings.TrimSpace(string(data)))
}

// Generate creates and stores a fresh root keypair under name, returning
// the key material as Base64 text.
func (ks *KeyStore) Generate(name string, overwrite bool) (privateKey, publicKey string, err error) {
	if err := CheckKeyName(name); err != nil {
		return "", "", err
	}
	privateKey, publicKey, err = fence.GenerateKeypair()
	if err != nil {
		return "", "", err
	}
	seed, err := fence.DecodeKey(privateKey)
	if err != nil {
		return "", "", err
	}
	if err := ks.saveSeedToFile(ks.rootKeyPath(name), seed, overwrite); err != nil {
		return "", "", err
	}
	return privateKey, publicKey, nil
}

// DeriveRole derives and stores a deterministic role subkey from the named
// root key. Re-deriving the same role always yields the same keypair.
func (ks *KeyStore) DeriveRole(name, role string, overwrite bool) (privateKey, publicKey string, err error) {
	if err := CheckKeyName(name); err != nil {
		return "", "", err
	}
	if err := CheckRole(role); err != nil {
		return "", "", err
	}
	rootSeed, err := ks.loadSeedFromFile(ks.rootKeyPath(name))
	if err != nil {
		return "", "", err
	}
	roleSeed, err := DeriveRoleSeed(rootSeed, role)
	if err != nil {
		return "", "", err
	}
	if err := ks.saveSeedToFile(ks.roleKeyPath(name, role), roleSeed, overwrite); err != nil {
		return "", "", err
	}
	return EncodeKeypairFromSeed(roleSeed)
}

// Export returns the stored keypair for name, or for the named role subkey
// when role is non-empty.
func (ks *KeyStore) Export(name, role string) (privateKey, publicKey string, err error) {
	if err := CheckKeyName(name); err != nil {
		return "", "", err
	}
	var seed []byte
	if role == "" {
		seed, err = ks.loadSeedFromFile(ks.rootKeyPath(name))
	} else {
		if err := CheckRole(role); err != nil {
			return "", "", err
		}
		seed, err = ks.loadSeedFromFile(ks.roleKeyPath(name, role))
	}
	if err != nil {
		return "", "", err
	}
	return EncodeKeypairFromSeed(seed)
}

// List returns the stored key names and their role subkeys, sorted.
func (ks *KeyStore) List() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var result []KeyEntry
	for _, name := range names {
		rolesDir := filepath.Join(ks.Directory, name, "roles")
		roleEntries, rerr := os.ReadDir(rolesDir)
		var roles []string
		if rerr == nil {
			for _, roleEntry := range roleEntries {
				if roleEntry.IsDir() {
					continue
				}
				if strings.HasSuffix(roleEntry.Name(), ".key") {
					roles = append(roles, strings.TrimSuffix(roleEntry.Name(), ".key"))
				}
			}
			sort.Strings(roles)
		}
		result = append(result, KeyEntry{Name: name, Roles: roles})
	}
	return result, nil
}

// EncodeKeypairFromSeed returns the Base64 keypair for a raw Ed25519 seed.
func EncodeKeypairFromSeed(seed []byte) (privateKey, publicKey string, err error) {
	if len(seed) != ed25519.SeedSize {
		return "", "", fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return base64.StdEncoding.EncodeToString(seed),
		base64.StdEncoding.EncodeToString(pub), nil
}
