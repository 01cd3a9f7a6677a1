package fence

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// KeySize is the raw byte length of both a private seed and a public key.
const KeySize = 32

// GenerateKeypair returns a fresh Ed25519 keypair as Base64 text: the
// 32-byte private seed and the 32-byte public key.
func GenerateKeypair() (privateKey, publicKey string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", wrapError(KindInternal, "FENCE-CRYPTO-001", "keypair generation failed", err)
	}
	return base64.StdEncoding.EncodeToString(priv.Seed()),
		base64.StdEncoding.EncodeToString(pub), nil
}

// DecodeKey decodes Base64 key material and enforces the 32-byte length.
// The two failure modes carry distinct rule IDs so callers can tell
// "not valid Base64" from "wrong decoded length".
func DecodeKey(key string) ([]byte, error) {
	raw, err := decodeBase64(key)
	if err != nil {
		return nil, wrapError(KindCrypto, "FENCE-CRYPTO-111", "key is not valid base64", err)
	}
	if len(raw) != KeySize {
		return nil, newError(KindCrypto, "FENCE-CRYPTO-112",
			fmt.Sprintf("key must decode to %d bytes, got %d", KeySize, len(raw)))
	}
	return raw, nil
}

// Sign signs sha256(canonical) with the Base64-encoded Ed25519 seed and
// returns the Base64 signature.
//
// Any 32 bytes are a syntactically valid seed, including a public key's
// bytes. Signing with a swapped key therefore succeeds and produces a
// structurally valid signature; the confusion surfaces only when Verify
// against the true public key returns false. That is deliberate and must
// not be special-cased here.
func Sign(canonical []byte, privateKey string) (string, error) {
	seed, err := DecodeKey(privateKey)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(canonical)
	sig := ed25519.Sign(ed25519.NewKeyFromSeed(seed), digest[:])
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks the Base64 signature over sha256(canonical) against the
// Base64 public key. A mismatched, garbage, or undecodable signature is a
// false result, never an error; only malformed key material errors.
func Verify(canonical []byte, signature, publicKey string) (bool, error) {
	pub, err := DecodeKey(publicKey)
	if err != nil {
		return false, err
	}
	sig, err := decodeBase64(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	digest := sha256.Sum256(canonical)
	return ed25519.Verify(ed25519.PublicKey(pub), digest[:], sig), nil
}

func decodeBase64(s string) ([]byte, error) {
	// Prefer standard padded encoding, but accept raw encoding too.
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
