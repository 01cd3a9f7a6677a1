// Package keys provides key material handling around the fence protocol:
// default-key resolution, a local filesystem keystore, and deterministic
// role-seed derivation.
//
// The protocol itself only ever sees 32-byte Ed25519 key material as
// Base64 text; everything in this package exists to get that text into
// the hands of build and validate callers.
package keys
