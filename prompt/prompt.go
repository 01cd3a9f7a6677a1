package prompt

import (
	"github.com/anuraag-khare/prompt-fence/cidutil"
	"github.com/anuraag-khare/prompt-fence/fence"
	"github.com/anuraag-khare/prompt-fence/keys"
)

// FencedPrompt is the immutable result of Build: the signed segments in
// insertion order, the preamble used, and the cached assembled string.
//
// The cached string is the sole artifact validated by default. It is fixed
// at construction; nothing done to the prompt afterwards changes it.
type FencedPrompt struct {
	segments  []fence.Segment
	assembled string
	preamble  string
}

// String returns the assembled prompt. Two calls always return
// byte-identical output.
func (p *FencedPrompt) String() string { return p.assembled }

// Len returns the length of the assembled string.
func (p *FencedPrompt) Len() int { return len(p.assembled) }

// Segments returns the signed segments in insertion order. The slice is a
// copy; the prompt cannot be mutated through it.
func (p *FencedPrompt) Segments() []fence.Segment {
	out := make([]fence.Segment, len(p.segments))
	copy(out, p.segments)
	return out
}

// TrustedSegments returns the segments rated trusted, in order.
func (p *FencedPrompt) TrustedSegments() []fence.Segment {
	return p.filter(fence.RatingTrusted)
}

// UntrustedSegments returns the segments rated untrusted, in order.
func (p *FencedPrompt) UntrustedSegments() []fence.Segment {
	return p.filter(fence.RatingUntrusted)
}

func (p *FencedPrompt) filter(rating fence.FenceRating) []fence.Segment {
	var out []fence.Segment
	for _, s := range p.segments {
		if s.Rating == rating {
			out = append(out, s)
		}
	}
	return out
}

// HasAwareness reports whether a non-empty preamble was prepended.
func (p *FencedPrompt) HasAwareness() bool { return p.preamble != "" }

// Awareness returns the preamble used at build time.
func (p *FencedPrompt) Awareness() string { return p.preamble }

// CID returns a deterministic content identifier (CIDv1, raw + sha2-256)
// for the assembled string, suitable as an archive key.
func (p *FencedPrompt) CID() string {
	return cidutil.CIDv1RawSHA256([]byte(p.assembled))
}

// Validate verifies every fence in the cached assembled string, so the
// result matches exactly what any string view of the prompt exposes.
// publicKey may be empty, in which case the process default is resolved.
func (p *FencedPrompt) Validate(publicKey string) (bool, error) {
	key, err := keys.ResolvePublicKey(publicKey)
	if err != nil {
		return false, err
	}
	return fence.Validate(p.assembled, key)
}
