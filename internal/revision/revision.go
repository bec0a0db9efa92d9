// Package revision extracts tracked insertions and deletions from document markup.
package revision

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docrev/internal/wordml"
)

// Kind is the type of tracked change.
type Kind string

const (
	Insert Kind = "insert"
	Delete Kind = "delete"
)

// UnknownAuthor is reported when a revision carries no w:author.
const UnknownAuthor = "Unknown"

// DefaultContextLength is the context window size used when none is given.
const DefaultContextLength = 50

// ID identifies a revision element (w:ins/w:del w:id). It is a separate
// identifier space from comment and anchor ids.
type ID string

// Context holds the plain text surrounding a revision inside its paragraph.
type Context struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// Revision is a single tracked change.
type Revision struct {
	ID             ID       `json:"id"`
	Type           Kind     `json:"type"`
	Text           string   `json:"text"`
	Author         string   `json:"author"`
	Date           string   `json:"date"`
	ParagraphIndex int      `json:"paragraphIndex"`
	Context        *Context `json:"context"`
}

// Options controls extraction.
type Options struct {
	IncludeContext bool
	ContextLength  int
}

// Parse reads document.xml markup and extracts its revisions.
func Parse(documentXML string, opts Options) ([]Revision, error) {
	doc, err := wordml.Parse(documentXML)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return Extract(doc, opts), nil
}

// Extract walks every paragraph of doc in order and returns its revisions.
// Revisions whose text resolves to nothing are skipped.
func Extract(doc *wordml.Document, opts Options) []Revision {
	contextLen := opts.ContextLength
	if contextLen < 0 {
		contextLen = 0
	}

	revisions := []Revision{}
	for idx, para := range wordml.FindAll(doc.Root, wordml.TagParagraph) {
		var paraText string
		if opts.IncludeContext {
			paraText = wordml.ScanText(doc.SourceOf(para))
		}

		for _, el := range changeElements(para) {
			rev := Revision{
				ID:             ID(el.AttrOr(wordml.AttrID, "")),
				Author:         el.AttrOr(wordml.AttrAuthor, UnknownAuthor),
				Date:           el.AttrOr(wordml.AttrDate, ""),
				ParagraphIndex: idx,
			}
			if el.Tag == wordml.TagIns {
				rev.Type = Insert
				rev.Text = wordml.PlainText(el)
			} else {
				rev.Type = Delete
				rev.Text = wordml.DeletedText(el)
			}
			if rev.Text == "" {
				continue
			}
			if opts.IncludeContext {
				rev.Context = extractContext(paraText, rev.Text, contextLen)
			}
			revisions = append(revisions, rev)
		}
	}
	return revisions
}

// changeElements returns the w:ins and w:del elements of a paragraph in encounter
// order. Nested paragraphs are left to their own pass, and a change element is
// not searched for further changes.
func changeElements(para *wordml.Node) []*wordml.Node {
	var out []*wordml.Node
	wordml.Walk(para, func(n *wordml.Node) bool {
		if n == para {
			return true
		}
		if n.Kind != wordml.ElementNode {
			return false
		}
		switch n.Tag {
		case wordml.TagParagraph:
			return false
		case wordml.TagIns, wordml.TagDel:
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// extractContext returns the windows around the first occurrence of target in
// paragraph. Lengths are counted in characters.
func extractContext(paragraph, target string, length int) *Context {
	idx := strings.Index(paragraph, target)
	if idx < 0 {
		return &Context{}
	}
	before := []rune(paragraph[:idx])
	after := []rune(paragraph[idx+len(target):])
	if len(before) > length {
		before = before[len(before)-length:]
	}
	if len(after) > length {
		after = after[:length]
	}
	return &Context{Before: string(before), After: string(after)}
}
