package fence

import "strings"

const (
	openToken  = "<sec:fence"
	closeToken = "</sec:fence>"
)

// displayOrder fixes how attributes are rendered in a tag. It is
// independent of, and irrelevant to, the canonical signing order: the
// extractor tolerates any attribute order and canonicalization re-sorts.
var displayOrder = []string{"id", "type", "rating", "source", "ts", "sig"}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

var unescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&amp;", "&",
)

// Encode renders a signed segment as a fence block. Attribute values and
// content are entity-escaped for transport; the signature covers the
// unescaped literals, so decoding restores exactly what was signed.
func Encode(s Segment) (string, error) {
	if s.Signature == "" {
		return "", newError(KindStructural, "FENCE-STR-110", "cannot encode an unsigned segment")
	}
	attrs := map[string]string{
		"id":     s.ID,
		"type":   s.Type.String(),
		"rating": s.Rating.String(),
		"source": s.Source,
		"ts":     s.Timestamp,
		"sig":    s.Signature,
	}

	var b strings.Builder
	b.WriteString(openToken)
	for _, name := range displayOrder {
		b.WriteByte(' ')
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(escaper.Replace(attrs[name]))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	b.WriteString(escaper.Replace(s.Content))
	b.WriteString(closeToken)
	return b.String(), nil
}
