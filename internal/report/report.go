// Package report renders a review report for a document: statistics, the
// tracked changes and the comment threads, as Markdown or HTML.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"

	"github.com/dgallion1/docrev/internal/comment"
	"github.com/dgallion1/docrev/internal/docxpkg"
	"github.com/dgallion1/docrev/internal/revision"
	"github.com/dgallion1/docrev/internal/stats"
)

// DefaultTitle is used when no title is given.
const DefaultTitle = "Review report"

// Report holds everything a rendered report shows.
type Report struct {
	Title     string
	Stats     stats.Document
	Revisions []revision.Revision
	Comments  []comment.Comment
}

// Generate collects revisions, comments (resolved included) and statistics
// with an author breakdown from a package. The archive is opened once.
func Generate(data []byte, title string) (*Report, error) {
	pkg, err := docxpkg.Open(data)
	if err != nil {
		return nil, err
	}
	parts, err := pkg.Parts()
	if err != nil {
		return nil, err
	}
	if err := parts.RequireDocument(); err != nil {
		return nil, err
	}

	revs, err := revision.Parse(parts.Document, revision.Options{})
	if err != nil {
		return nil, err
	}
	comments, err := comment.Extract(parts.Comments, parts.CommentsExtended, parts.Document, comment.DefaultOptions())
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return &Report{
		Title:     title,
		Stats:     stats.Compute(revs, comments, true),
		Revisions: revs,
		Comments:  comments,
	}, nil
}

// Markdown renders the report.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", inline(r.Title))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Count |\n|---|---|\n")
	fmt.Fprintf(&b, "| Revisions | %d |\n", r.Stats.Revisions.Total)
	fmt.Fprintf(&b, "| Insertions | %d |\n", r.Stats.Revisions.Insertions)
	fmt.Fprintf(&b, "| Deletions | %d |\n", r.Stats.Revisions.Deletions)
	fmt.Fprintf(&b, "| Comments | %d |\n", r.Stats.Comments.Total)
	fmt.Fprintf(&b, "| Replies | %d |\n", r.Stats.Comments.Replies)
	fmt.Fprintf(&b, "| Resolved | %d |\n", r.Stats.Comments.Resolved)
	fmt.Fprintf(&b, "| Unresolved | %d |\n", r.Stats.Comments.Unresolved)
	b.WriteString("\n")

	if len(r.Stats.AuthorBreakdown) > 0 {
		b.WriteString("## Authors\n\n")
		b.WriteString("| Author | Insertions | Deletions | Comments |\n|---|---|---|---|\n")
		for _, a := range r.Stats.AuthorBreakdown {
			fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", cell(a.Author), a.Insertions, a.Deletions, a.Comments)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Revisions\n\n")
	if len(r.Revisions) == 0 {
		b.WriteString("No tracked changes.\n\n")
	} else {
		b.WriteString("| ID | Type | Author | Date | Paragraph | Text |\n|---|---|---|---|---|---|\n")
		for _, rev := range r.Revisions {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %s |\n",
				cell(string(rev.ID)), rev.Type, cell(rev.Author), cell(rev.Date), rev.ParagraphIndex, cell(rev.Text))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Comments\n\n")
	if len(r.Comments) == 0 {
		b.WriteString("No comments.\n")
	}
	for _, c := range r.Comments {
		marker := ""
		if c.Resolved {
			marker = " (resolved)"
		}
		fmt.Fprintf(&b, "- **%s**%s: %s\n", inline(c.Author), marker, inline(c.Text))
		if c.TargetText != nil {
			fmt.Fprintf(&b, "  - on: _%s_\n", inline(*c.TargetText))
		}
		for _, reply := range c.Replies {
			fmt.Fprintf(&b, "  - **%s**: %s\n", inline(reply.Author), inline(reply.Text))
		}
	}
	return b.String()
}

// HTML renders the report as a standalone HTML document.
func (r *Report) HTML() ([]byte, error) {
	return RenderHTML(r.Title, r.Markdown())
}

// RenderHTML converts Markdown to HTML and wraps it in a minimal page.
func RenderHTML(title, markdown string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString(title))
	out.WriteString("</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

var inlineEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;",
)

// inline escapes Markdown emphasis and link syntax and folds newlines.
func inline(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return inlineEscaper.Replace(s)
}

// cell escapes a table cell.
func cell(s string) string {
	return strings.ReplaceAll(inline(s), "|", `\|`)
}
