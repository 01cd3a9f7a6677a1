// Package fence implements the fence protocol: canonical segment encoding,
// Ed25519-over-SHA-256 signing and verification, the textual fence tag
// format, the extractor, and the fail-closed aggregate validator.
package fence

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FenceType classifies what a fenced segment carries.
type FenceType int

const (
	TypeInstructions FenceType = iota
	TypeContent
	TypeData
)

// String returns the wire value used in tags and canonical bytes.
func (t FenceType) String() string {
	switch t {
	case TypeInstructions:
		return "instructions"
	case TypeContent:
		return "content"
	case TypeData:
		return "data"
	default:
		return fmt.Sprintf("FenceType(%d)", int(t))
	}
}

// DefaultSource is the source recorded when the caller supplies none.
func (t FenceType) DefaultSource() string {
	switch t {
	case TypeInstructions:
		return "system"
	case TypeContent:
		return "external"
	case TypeData:
		return "data"
	default:
		return "unknown"
	}
}

// ParseFenceType parses a wire value into a FenceType.
func ParseFenceType(s string) (FenceType, error) {
	switch s {
	case "instructions":
		return TypeInstructions, nil
	case "content":
		return TypeContent, nil
	case "data":
		return TypeData, nil
	default:
		return 0, newError(KindStructural, "FENCE-STR-101", fmt.Sprintf("unknown fence type: %q", s))
	}
}

// FenceRating is the declared provenance class of a segment.
//
// Ratings are ordered: Untrusted < PartiallyTrusted < Trusted.
type FenceRating int

const (
	RatingUntrusted FenceRating = iota
	RatingPartiallyTrusted
	RatingTrusted
)

// String returns the wire value used in tags and canonical bytes.
func (r FenceRating) String() string {
	switch r {
	case RatingUntrusted:
		return "untrusted"
	case RatingPartiallyTrusted:
		return "partially_trusted"
	case RatingTrusted:
		return "trusted"
	default:
		return fmt.Sprintf("FenceRating(%d)", int(r))
	}
}

// AtLeast reports whether r meets the floor m.
func (r FenceRating) AtLeast(m FenceRating) bool { return r >= m }

// ParseFenceRating parses a wire value into a FenceRating.
func ParseFenceRating(s string) (FenceRating, error) {
	switch s {
	case "untrusted":
		return RatingUntrusted, nil
	case "partially_trusted":
		return RatingPartiallyTrusted, nil
	case "trusted":
		return RatingTrusted, nil
	default:
		return 0, newError(KindStructural, "FENCE-STR-102", fmt.Sprintf("unknown fence rating: %q", s))
	}
}

// TimestampLayout is the fence timestamp format: ISO-8601 with millisecond
// precision, UTC, trailing Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp renders t in the fence timestamp format.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Segment is one fenced unit of a prompt. Content is the literal byte
// sequence covered by the signature; it is never normalized. A segment is
// immutable once signed.
type Segment struct {
	ID        string
	Type      FenceType
	Rating    FenceRating
	Source    string
	Timestamp string
	Content   string

	// Signature is the Base64 Ed25519 signature over sha256(canonical bytes).
	// Present only after signing.
	Signature string
}

// NewSegment constructs an unsigned segment, filling in a fresh id, the
// type-specific default source, and a now-UTC millisecond timestamp where
// the caller leaves them empty. An explicit timestamp must match
// TimestampLayout exactly; supplying one is how callers get determinism.
func NewSegment(content string, typ FenceType, rating FenceRating, source, timestamp string) (Segment, error) {
	if source == "" {
		source = typ.DefaultSource()
	}
	if timestamp == "" {
		timestamp = Timestamp(time.Now())
	} else if _, err := time.Parse(TimestampLayout, timestamp); err != nil {
		return Segment{}, wrapError(KindStructural, "FENCE-STR-103",
			fmt.Sprintf("timestamp %q is not ISO-8601 millisecond UTC", timestamp), err)
	}
	return Segment{
		ID:        uuid.NewString(),
		Type:      typ,
		Rating:    rating,
		Source:    source,
		Timestamp: timestamp,
		Content:   content,
	}, nil
}
