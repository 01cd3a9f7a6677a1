package storage

import (
	"unicode/utf8"

	"github.com/ipfs/go-cid"

	"github.com/anuraag-khare/prompt-fence/cidutil"
)

// Archive binds a CAS to the fence domain: it stores the assembled prompt
// text a consumer saw, keyed by the CID of those exact bytes. Validation
// of a loaded prompt therefore covers precisely what was archived.
type Archive struct {
	CAS CAS
}

// Store archives an assembled prompt and returns its CID.
func (a Archive) Store(assembled string) (cid.Cid, error) {
	return a.CAS.Put([]byte(assembled))
}

// Load retrieves an archived prompt and re-checks that the bytes match the
// requested CID before handing them back as text.
func (a Archive) Load(id cid.Cid) (string, error) {
	b, err := a.CAS.Get(id)
	if err != nil {
		return "", err
	}
	got, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return "", err
	}
	if got != id {
		return "", ErrCIDMismatch
	}
	if !utf8.Valid(b) {
		return "", ErrNotText
	}
	return string(b), nil
}

// Has reports whether a prompt with this CID is archived.
func (a Archive) Has(id cid.Cid) bool {
	return a.CAS.Has(id)
}
