package fence

// VerificationResult reports the outcome of validating a single fence.
// Err carries the classified reason when Valid is false; a forged
// signature is reported here, never raised.
type VerificationResult struct {
	Valid   bool
	Content string
	Type    FenceType
	Rating  FenceRating
	Source  string
	Err     error
}

// Validate extracts every fence block in text and verifies each against
// publicKey. The result is the logical AND of all per-fence results:
// fail-closed, one invalid or structurally malformed fence invalidates the
// whole input.
//
// A text containing zero fences is invalid. The protocol exists to bind
// trust claims; an input carrying none makes no claim this validator could
// endorse, and treating it as vacuously valid would let an attacker strip
// fences wholesale.
//
// Only an undecodable public key is an error. Structural problems in the
// input absorb into false.
func Validate(text, publicKey string) (bool, error) {
	if _, err := DecodeKey(publicKey); err != nil {
		return false, err
	}
	results, err := ValidateAll(text, publicKey)
	if err != nil {
		return false, nil
	}
	if len(results) == 0 {
		return false, nil
	}
	for _, r := range results {
		if !r.Valid {
			return false, nil
		}
	}
	return true, nil
}

// ValidateAll extracts and verifies every fence in text, returning one
// result per fence in order of appearance. Unlike Validate it surfaces
// structural errors, so callers such as policy evaluation can distinguish
// "forged" from "broken".
func ValidateAll(text, publicKey string) ([]VerificationResult, error) {
	if _, err := DecodeKey(publicKey); err != nil {
		return nil, err
	}
	raws, err := Extract(text)
	if err != nil {
		return nil, err
	}
	results := make([]VerificationResult, 0, len(raws))
	for _, rf := range raws {
		seg, err := segmentFromRaw(rf)
		if err != nil {
			return nil, err
		}
		results = append(results, verifySegment(seg, publicKey))
	}
	return results, nil
}

// ValidateFence parses exactly one fence block and verifies it.
// Structurally malformed input is a typed error; a bad signature is a
// valid=false result.
func ValidateFence(block, publicKey string) (*VerificationResult, error) {
	if _, err := DecodeKey(publicKey); err != nil {
		return nil, err
	}
	raws, err := Extract(block)
	if err != nil {
		return nil, err
	}
	if len(raws) != 1 {
		return nil, newError(KindStructural, "FENCE-STR-105", "expected exactly one fence block")
	}
	seg, err := segmentFromRaw(raws[0])
	if err != nil {
		return nil, err
	}
	r := verifySegment(seg, publicKey)
	return &r, nil
}

func verifySegment(seg Segment, publicKey string) VerificationResult {
	r := VerificationResult{
		Content: seg.Content,
		Type:    seg.Type,
		Rating:  seg.Rating,
		Source:  seg.Source,
	}
	ok, err := Verify(CanonicalBytes(seg), seg.Signature, publicKey)
	if err != nil {
		r.Err = err
		return r
	}
	if !ok {
		r.Err = newError(KindCrypto, "FENCE-CRYPTO-401", "fence signature invalid")
		return r
	}
	r.Valid = true
	return r
}
