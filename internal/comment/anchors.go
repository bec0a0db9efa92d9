package comment

import (
	"strings"

	"github.com/dgallion1/docrev/internal/wordml"
)

const (
	tagRangeStart = "w:commentRangeStart"
	tagRangeEnd   = "w:commentRangeEnd"
)

// AnchorID identifies a comment anchor range (w:commentRangeStart/End w:id).
// Producers usually reuse the comment id, but the two are read separately.
type AnchorID string

// ScanAnchors returns the plain text enclosed by each anchor range of a document.
// Offsets are byte positions in the w:t text seen so far, which is kept as valid
// UTF-8 so every range slices on character boundaries. When a marker is repeated
// the last one wins; a start without an end yields no entry.
func ScanAnchors(documentXML string) map[AnchorID]string {
	var (
		full   strings.Builder
		starts = make(map[AnchorID]int)
		ends   = make(map[AnchorID]int)
		order  []AnchorID
	)

	onText := func(text string) {
		full.WriteString(strings.ToValidUTF8(text, "\uFFFD"))
	}
	onTag := func(tok wordml.Token) {
		if tok.Kind == wordml.EndTagToken {
			return
		}
		switch tok.Name {
		case tagRangeStart:
			if id, ok := anchorID(tok); ok {
				if _, seen := starts[id]; !seen {
					order = append(order, id)
				}
				starts[id] = full.Len()
			}
		case tagRangeEnd:
			if id, ok := anchorID(tok); ok {
				ends[id] = full.Len()
			}
		}
	}
	wordml.ScanLeaves(documentXML, wordml.TagText, onText, onTag)

	text := full.String()
	ranges := make(map[AnchorID]string, len(order))
	for _, id := range order {
		end, ok := ends[id]
		if !ok {
			continue
		}
		start := starts[id]
		if end < start {
			start, end = end, start
		}
		ranges[id] = text[start:end]
	}
	return ranges
}

func anchorID(tok wordml.Token) (AnchorID, bool) {
	v, ok := tok.Attr(wordml.AttrID)
	if !ok || v == "" {
		return "", false
	}
	return AnchorID(v), true
}
