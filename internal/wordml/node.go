// Package wordml reads WordprocessingML markup into an order-preserving tree.
//
// Tag and attribute names are kept verbatim, prefix included ("w:ins",
// "w15:commentEx"); no namespace resolution is performed. The reader tolerates
// the quirks of real producers: self-closing elements, stray end tags and
// elements left open at end of input.
package wordml

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Common WordprocessingML tag and attribute names.
const (
	TagParagraph = "w:p"
	TagRun       = "w:r"
	TagText      = "w:t"
	TagDelText   = "w:delText"
	TagIns       = "w:ins"
	TagDel       = "w:del"

	AttrID     = "w:id"
	AttrAuthor = "w:author"
	AttrDate   = "w:date"
)

// NodeKind distinguishes element nodes from text nodes.
type NodeKind int

const (
	ElementNode NodeKind = iota
	TextNode
)

// Node is either an element (Tag, Attrs, Children) or a run of character data
// (Text). Start and End delimit the node in the source markup; for elements the
// span covers the closing tag when one was present.
type Node struct {
	Kind     NodeKind
	Tag      string
	Attrs    []Attr // values entity-decoded
	Children []*Node
	Text     string

	Start int
	End   int
}

// Attr returns the decoded value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the named attribute or fallback when it is missing or empty.
func (n *Node) AttrOr(name, fallback string) string {
	if v, ok := n.Attr(name); ok && v != "" {
		return v
	}
	return fallback
}

// IsElement reports whether n is an element with the given tag.
func (n *Node) IsElement(tag string) bool {
	return n != nil && n.Kind == ElementNode && n.Tag == tag
}

// Document is a parsed markup source. Root is a synthetic element with an empty
// tag holding the top-level nodes.
type Document struct {
	Root   *Node
	Source string
}

// Parse tokenizes src and builds the tree. It fails only when the markup cannot
// be tokenized; unbalanced tags are repaired.
func Parse(src string) (*Document, error) {
	root := &Node{Kind: ElementNode, Start: 0, End: len(src)}
	stack := []*Node{root}
	top := func() *Node { return stack[len(stack)-1] }

	sc := newStrictScanner(src)
	for {
		tok, ok := sc.Next()
		if !ok {
			break
		}
		switch tok.Kind {
		case TextToken:
			appendText(top(), decodeText(src[tok.Start:tok.End]), tok)
		case CDataToken:
			raw := src[tok.Start+len("<![CDATA[") : tok.End-len("]]>")]
			appendText(top(), raw, tok)
		case StartTagToken, SelfClosingTagToken:
			el := &Node{
				Kind:  ElementNode,
				Tag:   tok.Name,
				Attrs: decodeAttrs(tok.Attrs),
				Start: tok.Start,
				End:   tok.End,
			}
			parent := top()
			parent.Children = append(parent.Children, el)
			if tok.Kind == StartTagToken {
				stack = append(stack, el)
			}
		case EndTagToken:
			// Pop to the nearest open element with this name; ignore strays.
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].Tag != tok.Name {
					continue
				}
				for j := len(stack) - 1; j >= i; j-- {
					stack[j].End = tok.End
				}
				stack = stack[:i]
				break
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	// Elements left open run to the end of input.
	for _, el := range stack[1:] {
		el.End = len(src)
	}
	return &Document{Root: root, Source: src}, nil
}

func appendText(parent *Node, text string, tok Token) {
	if text == "" {
		return
	}
	if n := len(parent.Children); n > 0 && parent.Children[n-1].Kind == TextNode {
		last := parent.Children[n-1]
		last.Text += text
		last.End = tok.End
		return
	}
	parent.Children = append(parent.Children, &Node{
		Kind:  TextNode,
		Text:  text,
		Start: tok.Start,
		End:   tok.End,
	})
}

func decodeAttrs(attrs []Attr) []Attr {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]Attr, len(attrs))
	for i, a := range attrs {
		out[i] = Attr{Name: a.Name, Value: decodeText(a.Value)}
	}
	return out
}

var xmlEntities = map[string]string{
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
	"quot": `"`,
	"apos": "'",
}

// decodeText resolves the predefined XML entities and numeric character
// references. Any other '&' is kept literally.
func decodeText(s string) string {
	if strings.IndexByte(s, '&') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for {
		i := strings.IndexByte(s, '&')
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i:]

		end := strings.IndexByte(s, ';')
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		ref := s[1:end]
		if v, ok := xmlEntities[ref]; ok {
			b.WriteString(v)
		} else if isCharRef(ref) {
			b.WriteString(html.UnescapeString(s[:end+1]))
		} else {
			b.WriteByte('&')
			s = s[1:]
			continue
		}
		s = s[end+1:]
	}
}

// isCharRef reports whether ref (without '&' and ';') is "#123" or "#x7B".
func isCharRef(ref string) bool {
	if len(ref) < 2 || ref[0] != '#' {
		return false
	}
	digits, hex := ref[1:], false
	if digits[0] == 'x' || digits[0] == 'X' {
		digits, hex = digits[1:], true
	}
	if digits == "" {
		return false
	}
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		switch {
		case c >= '0' && c <= '9':
		case hex && (c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'):
		default:
			return false
		}
	}
	return true
}

// SourceOf returns the markup the node was parsed from.
func (d *Document) SourceOf(n *Node) string {
	if n == nil || n.Start < 0 || n.End > len(d.Source) || n.Start > n.End {
		return ""
	}
	return d.Source[n.Start:n.End]
}

// Walk visits n and its descendants in document order. Returning false from fn
// skips the children of the visited node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// FindAll returns every element with the given tag below n, in document order,
// including elements nested inside other matches.
func FindAll(n *Node, tag string) []*Node {
	var out []*Node
	Walk(n, func(c *Node) bool {
		if c != n && c.IsElement(tag) {
			out = append(out, c)
		}
		return true
	})
	return out
}
