package keys

import (
	"os"
	"sync"

	"github.com/anuraag-khare/prompt-fence/fence"
)

// Environment variables consulted for process-default keys.
const (
	EnvPrivateKey = "PROMPT_FENCE_PRIVATE_KEY"
	EnvPublicKey  = "PROMPT_FENCE_PUBLIC_KEY"
)

// Provider supplies process-default key material when a caller passes no
// explicit key. The second return reports whether a default exists.
type Provider interface {
	DefaultPrivateKey() (string, bool)
	DefaultPublicKey() (string, bool)
}

// EnvProvider resolves defaults from PROMPT_FENCE_PRIVATE_KEY and
// PROMPT_FENCE_PUBLIC_KEY.
type EnvProvider struct{}

func (EnvProvider) DefaultPrivateKey() (string, bool) {
	v := os.Getenv(EnvPrivateKey)
	return v, v != ""
}

func (EnvProvider) DefaultPublicKey() (string, bool) {
	v := os.Getenv(EnvPublicKey)
	return v, v != ""
}

var (
	providerMu sync.RWMutex
	provider   Provider = EnvProvider{}
)

// SetProvider replaces the process-wide default-key provider. Intended for
// startup wiring (e.g. a secrets-manager integration); passing nil
// restores the environment provider.
func SetProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	if p == nil {
		p = EnvProvider{}
	}
	provider = p
}

func currentProvider() Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider
}

// ResolvePrivateKey returns explicit when non-empty, else the provider
// default. Resolution failure is a configuration error, not a crypto one:
// no key material was present to be malformed.
func ResolvePrivateKey(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if k, ok := currentProvider().DefaultPrivateKey(); ok {
		return k, nil
	}
	return "", &fence.Error{
		Kind:    fence.KindConfig,
		RuleID:  "FENCE-CFG-101",
		Message: "private key must be provided, or set " + EnvPrivateKey,
	}
}

// ResolvePublicKey returns explicit when non-empty, else the provider
// default.
func ResolvePublicKey(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if k, ok := currentProvider().DefaultPublicKey(); ok {
		return k, nil
	}
	return "", &fence.Error{
		Kind:    fence.KindConfig,
		RuleID:  "FENCE-CFG-102",
		Message: "public key must be provided, or set " + EnvPublicKey,
	}
}
