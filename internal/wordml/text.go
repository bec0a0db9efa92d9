package wordml

import "strings"

// PlainText concatenates the content of every w:t leaf below n in document order.
func PlainText(n *Node) string {
	return LeafText(n, TagText)
}

// DeletedText concatenates the content of every w:delText leaf below n.
func DeletedText(n *Node) string {
	return LeafText(n, TagDelText)
}

// LeafText concatenates the character data of every element named tag below n
// (n itself included). Markup nested inside a leaf contributes its text too.
func LeafText(n *Node, tag string) string {
	var sb strings.Builder
	Walk(n, func(c *Node) bool {
		if c.IsElement(tag) {
			collectText(c, &sb)
			return false
		}
		return true
	})
	return sb.String()
}

func collectText(n *Node, sb *strings.Builder) {
	for _, c := range n.Children {
		if c.Kind == TextNode {
			sb.WriteString(c.Text)
			continue
		}
		collectText(c, sb)
	}
}

// ScanText extracts w:t content straight from raw markup without building a tree.
// It never fails: untokenizable input is treated as text outside any leaf.
func ScanText(src string) string {
	var sb strings.Builder
	ScanLeaves(src, TagText, func(text string) { sb.WriteString(text) }, nil)
	return sb.String()
}

// ScanLeaves walks raw markup and calls onText with the decoded character data of
// every element named tag. onTag, when non-nil, sees every other tag token in
// order, interleaved with the onText calls.
func ScanLeaves(src, tag string, onText func(string), onTag func(Token)) {
	sc := NewScanner(src)
	depth := 0
	for {
		tok, ok := sc.Next()
		if !ok {
			return
		}
		switch tok.Kind {
		case TextToken:
			if depth > 0 {
				onText(decodeText(src[tok.Start:tok.End]))
			}
		case CDataToken:
			if depth > 0 {
				onText(src[tok.Start+len("<![CDATA[") : tok.End-len("]]>")])
			}
		case StartTagToken:
			if tok.Name == tag {
				depth++
			} else if onTag != nil {
				onTag(tok)
			}
		case EndTagToken:
			if tok.Name == tag {
				if depth > 0 {
					depth--
				}
			} else if onTag != nil {
				onTag(tok)
			}
		case SelfClosingTagToken:
			if tok.Name != tag && onTag != nil {
				onTag(tok)
			}
		}
	}
}
