package fence

import (
	"bytes"
	"sort"
)

// CanonicalBytes is the single mandatory canonicalization choke point.
//
// It produces the exact byte sequence that is signed and verified: the
// metadata pairs {id, rating, source, ts, type} sorted by name, each
// rendered as name=value on its own line, then a blank line, then the
// literal content bytes. Rendering order of attributes in a tag never
// affects this sequence; any change to any field or to the content does.
//
// All fence signing and verification MUST pass through CanonicalBytes.
func CanonicalBytes(s Segment) []byte {
	pairs := []struct {
		name, value string
	}{
		{"id", s.ID},
		{"rating", s.Rating.String()},
		{"source", s.Source},
		{"ts", s.Timestamp},
		{"type", s.Type.String()},
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].name < pairs[j].name })

	var b bytes.Buffer
	for _, p := range pairs {
		b.WriteString(p.name)
		b.WriteByte('=')
		b.WriteString(p.value)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(s.Content)
	return b.Bytes()
}
