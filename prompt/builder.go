// Package prompt assembles fenced prompts: an ordered builder of unsigned
// segments, and the immutable FencedPrompt it produces.
package prompt

import (
	"strings"

	"github.com/anuraag-khare/prompt-fence/fence"
	"github.com/anuraag-khare/prompt-fence/keys"
)

type pending struct {
	content   string
	typ       fence.FenceType
	rating    fence.FenceRating
	source    string
	timestamp string
}

// Option customizes a single appended segment.
type Option func(*pending)

// WithSource overrides the type-specific default source.
func WithSource(source string) Option {
	return func(p *pending) { p.source = source }
}

// WithTimestamp pins the segment timestamp. It must match
// fence.TimestampLayout; explicit timestamps are how callers get
// deterministic output.
func WithTimestamp(ts string) Option {
	return func(p *pending) { p.timestamp = ts }
}

// Builder accumulates segments in insertion order. Every append returns
// the same builder, so calls chain.
type Builder struct {
	segments []pending
}

func NewBuilder() *Builder {
	return &Builder{}
}

// TrustedInstructions appends a trusted instructions segment.
func (b *Builder) TrustedInstructions(text string, opts ...Option) *Builder {
	return b.append(text, fence.TypeInstructions, fence.RatingTrusted, opts)
}

// PartiallyTrustedContent appends a partially-trusted content segment.
func (b *Builder) PartiallyTrustedContent(text string, opts ...Option) *Builder {
	return b.append(text, fence.TypeContent, fence.RatingPartiallyTrusted, opts)
}

// UntrustedContent appends an untrusted content segment.
func (b *Builder) UntrustedContent(text string, opts ...Option) *Builder {
	return b.append(text, fence.TypeContent, fence.RatingUntrusted, opts)
}

// DataSegment appends a data segment with an explicit rating.
func (b *Builder) DataSegment(text string, rating fence.FenceRating, opts ...Option) *Builder {
	return b.append(text, fence.TypeData, rating, opts)
}

// CustomSegment appends a segment with an explicit type and rating.
func (b *Builder) CustomSegment(text string, typ fence.FenceType, rating fence.FenceRating, opts ...Option) *Builder {
	return b.append(text, typ, rating, opts)
}

func (b *Builder) append(text string, typ fence.FenceType, rating fence.FenceRating, opts []Option) *Builder {
	p := pending{content: text, typ: typ, rating: rating}
	for _, opt := range opts {
		opt(&p)
	}
	b.segments = append(b.segments, p)
	return b
}

// Len returns the number of accumulated segments.
func (b *Builder) Len() int { return len(b.segments) }

// Build signs every segment in insertion order and assembles the result:
// the configured awareness preamble (when non-empty) followed by the
// encoded fences, newline-separated. privateKey may be empty, in which
// case the process default is resolved; if neither exists Build fails with
// a configuration error, not a crypto error.
func (b *Builder) Build(privateKey string) (*FencedPrompt, error) {
	key, err := keys.ResolvePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}

	preamble := fence.AwarenessInstructions()
	signed := make([]fence.Segment, 0, len(b.segments))
	parts := make([]string, 0, len(b.segments)+1)
	if preamble != "" {
		parts = append(parts, preamble)
	}
	for _, p := range b.segments {
		seg, err := fence.NewSegment(p.content, p.typ, p.rating, p.source, p.timestamp)
		if err != nil {
			return nil, err
		}
		seg.Signature, err = fence.Sign(fence.CanonicalBytes(seg), key)
		if err != nil {
			return nil, err
		}
		block, err := fence.Encode(seg)
		if err != nil {
			return nil, err
		}
		signed = append(signed, seg)
		parts = append(parts, block)
	}

	return &FencedPrompt{
		segments:  signed,
		assembled: strings.Join(parts, "\n"),
		preamble:  preamble,
	}, nil
}
