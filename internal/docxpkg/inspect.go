package docxpkg

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// Inspection summarizes a package without touching its tracked changes.
type Inspection struct {
	Size                int      `json:"size"`
	Members             []Member `json:"members"`
	HasDocument         bool     `json:"hasDocument"`
	HasComments         bool     `json:"hasComments"`
	HasCommentsExtended bool     `json:"hasCommentsExtended"`
	Outline             *Outline `json:"outline,omitempty"`
	OutlineError        string   `json:"outlineError,omitempty"`
}

// Outline is the body structure as seen by the document object model.
type Outline struct {
	Paragraphs int       `json:"paragraphs"`
	Tables     int       `json:"tables"`
	Headings   []Heading `json:"headings"`
}

// Heading is a paragraph styled Heading1..Heading6.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Inspect describes the package. The outline needs the main document; when the
// object model cannot load it the failure is reported in OutlineError.
func (p *Package) Inspect() Inspection {
	in := Inspection{
		Size:                p.Size(),
		Members:             p.Members(),
		HasDocument:         p.Has(DocumentPath),
		HasComments:         p.Has(CommentsPath),
		HasCommentsExtended: p.Has(CommentsExtendedPath),
	}
	if !in.HasDocument {
		return in
	}
	outline, err := p.outline()
	if err != nil {
		in.OutlineError = err.Error()
		return in
	}
	in.Outline = outline
	return in
}

func (p *Package) outline() (out *Outline, err error) {
	// go-docx panics on some producer output instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("parse docx: %v", r)
		}
	}()

	doc, err := docx.Parse(bytes.NewReader(p.data), int64(len(p.data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	out = &Outline{Headings: []Heading{}}
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			out.Paragraphs++
			level := headingLevel(it)
			if level == 0 {
				continue
			}
			if text := paragraphText(it); text != "" {
				out.Headings = append(out.Headings, Heading{Level: level, Text: text})
			}
		case *docx.Table:
			out.Tables++
		}
	}
	return out, nil
}

func headingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	return headingLevelOf(para.Properties.Style.Val)
}

func headingLevelOf(style string) int {
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if !strings.HasPrefix(style, "heading") || len(style) != len("heading")+1 {
		return 0
	}
	if d := style[len(style)-1]; d >= '1' && d <= '6' {
		return int(d - '0')
	}
	return 0
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
