package fence

import (
	"fmt"
	"strings"
)

// RawFence is one fence block as it appears in a text, before any
// cryptographic checks. Attrs and Content are unescaped.
type RawFence struct {
	Attrs   map[string]string
	Content string
	Raw     string
}

// Extract returns every fence block found anywhere in text, in order of
// first appearance. Ordinary prose outside any tag is ignored, including a
// bare "<sec:fence>" with no attributes: the awareness preamble names the
// tag in prose, and a real fence always carries attributes.
//
// An opening token followed by attributes that cannot be completed into a
// well-formed block is a structural error, not a skip: the aggregate
// validator is fail-closed and must see malformed fences rather than
// silently losing them.
//
// Known limitation, kept deliberately: content is taken up to the first
// closing sequence. A hand-crafted block whose raw content contains the
// closing sequence unescaped terminates early, and the trailing remainder
// then fails structurally. Any fix changes the wire format and is a
// versioned design decision, not a patch.
func Extract(text string) ([]RawFence, error) {
	var fences []RawFence
	pos := 0
	for {
		i := strings.Index(text[pos:], openToken)
		if i < 0 {
			return fences, nil
		}
		start := pos + i
		rest := text[start+len(openToken):]

		// Guard against a longer tag name sharing the prefix.
		if rest == "" {
			return nil, newError(KindStructural, "FENCE-STR-120", "unterminated fence tag")
		}
		if c := rest[0]; c != ' ' && c != '\t' && c != '\n' && c != '>' {
			pos = start + len(openToken)
			continue
		}

		attrs, attrLen, err := parseAttrs(rest)
		if err != nil {
			return nil, err
		}
		if len(attrs) == 0 {
			// Prose mentioning the tag, not an opening tag.
			pos = start + len(openToken) + attrLen
			continue
		}
		body := rest[attrLen:]
		end := strings.Index(body, closeToken)
		if end < 0 {
			return nil, newError(KindStructural, "FENCE-STR-121", "fence block missing closing tag")
		}
		raw := text[start : start+len(openToken)+attrLen+end+len(closeToken)]
		fences = append(fences, RawFence{
			Attrs:   attrs,
			Content: unescaper.Replace(body[:end]),
			Raw:     raw,
		})
		pos = start + len(raw)
	}
}

// parseAttrs consumes name="value" pairs from s up to and including the
// closing '>' of the opening tag, returning the attribute map and the
// number of bytes consumed.
func parseAttrs(s string) (map[string]string, int, error) {
	attrs := make(map[string]string)
	i := 0
	for {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n') {
			i++
		}
		if i >= len(s) {
			return nil, 0, newError(KindStructural, "FENCE-STR-122", "unterminated fence attributes")
		}
		if s[i] == '>' {
			return attrs, i + 1, nil
		}

		eq := strings.IndexByte(s[i:], '=')
		if eq <= 0 {
			return nil, 0, newError(KindStructural, "FENCE-STR-123", "malformed fence attribute")
		}
		name := s[i : i+eq]
		if strings.ContainsAny(name, " \t\n>\"") {
			return nil, 0, newError(KindStructural, "FENCE-STR-123", "malformed fence attribute")
		}
		i += eq + 1
		if i >= len(s) || s[i] != '"' {
			return nil, 0, newError(KindStructural, "FENCE-STR-124", "fence attribute value must be quoted")
		}
		i++
		q := strings.IndexByte(s[i:], '"')
		if q < 0 {
			return nil, 0, newError(KindStructural, "FENCE-STR-125", "unterminated fence attribute value")
		}
		if _, dup := attrs[name]; dup {
			return nil, 0, newError(KindStructural, "FENCE-STR-126",
				fmt.Sprintf("duplicate fence attribute: %s", name))
		}
		attrs[name] = unescaper.Replace(s[i : i+q])
		i += q + 1
	}
}

// requiredAttrs is the fixed attribute set every fence must carry.
var requiredAttrs = []string{"id", "type", "rating", "source", "ts", "sig"}

// segmentFromRaw rebuilds the signed Segment a raw fence claims to carry.
// Missing or unknown-valued attributes are structural errors.
func segmentFromRaw(rf RawFence) (Segment, error) {
	for _, name := range requiredAttrs {
		if _, ok := rf.Attrs[name]; !ok {
			return Segment{}, newError(KindStructural, "FENCE-STR-104",
				fmt.Sprintf("fence missing required attribute: %s", name))
		}
	}
	typ, err := ParseFenceType(rf.Attrs["type"])
	if err != nil {
		return Segment{}, err
	}
	rating, err := ParseFenceRating(rf.Attrs["rating"])
	if err != nil {
		return Segment{}, err
	}
	return Segment{
		ID:        rf.Attrs["id"],
		Type:      typ,
		Rating:    rating,
		Source:    rf.Attrs["source"],
		Timestamp: rf.Attrs["ts"],
		Content:   rf.Content,
		Signature: rf.Attrs["sig"],
	}, nil
}
