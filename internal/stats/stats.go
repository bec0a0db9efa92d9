// Package stats combines revision and comment summaries into document statistics.
package stats

import (
	"github.com/dgallion1/docrev/internal/comment"
	"github.com/dgallion1/docrev/internal/revision"
)

// RevisionStats is the revision half of Document.
type RevisionStats struct {
	Total      int      `json:"total"`
	Insertions int      `json:"insertions"`
	Deletions  int      `json:"deletions"`
	Authors    []string `json:"authors"`
}

// CommentStats is the comment half of Document.
type CommentStats struct {
	Total      int      `json:"total"`
	Replies    int      `json:"replies"`
	Resolved   int      `json:"resolved"`
	Unresolved int      `json:"unresolved"`
	Authors    []string `json:"authors"`
}

// AuthorBreakdown counts one author's contributions. Replies count as comments.
type AuthorBreakdown struct {
	Author     string `json:"author"`
	Insertions int    `json:"insertions"`
	Deletions  int    `json:"deletions"`
	Comments   int    `json:"comments"`
}

// Document holds combined statistics for one document.
type Document struct {
	Revisions       RevisionStats     `json:"revisions"`
	Comments        CommentStats      `json:"comments"`
	AuthorBreakdown []AuthorBreakdown `json:"authorBreakdown,omitempty"`
}

// Compute builds document statistics. The author breakdown is only filled when
// requested.
func Compute(revisions []revision.Revision, comments []comment.Comment, withBreakdown bool) Document {
	rs := revision.Summarize(revisions)
	cs := comment.Summarize(comments)
	doc := Document{
		Revisions: RevisionStats{
			Total:      rs.TotalRevisions,
			Insertions: rs.Insertions,
			Deletions:  rs.Deletions,
			Authors:    rs.Authors,
		},
		Comments: CommentStats{
			Total:      cs.TotalComments,
			Replies:    cs.TotalReplies,
			Resolved:   cs.Resolved,
			Unresolved: cs.Unresolved,
			Authors:    cs.Authors,
		},
	}
	if withBreakdown {
		doc.AuthorBreakdown = Breakdown(revisions, comments)
	}
	return doc
}

// Breakdown attributes every revision, comment and reply to its author. Authors
// appear in order of first contribution, revisions before comments.
func Breakdown(revisions []revision.Revision, comments []comment.Comment) []AuthorBreakdown {
	out := []AuthorBreakdown{}
	index := make(map[string]int)
	entry := func(author string) *AuthorBreakdown {
		i, ok := index[author]
		if !ok {
			i = len(out)
			index[author] = i
			out = append(out, AuthorBreakdown{Author: author})
		}
		return &out[i]
	}

	for _, r := range revisions {
		e := entry(r.Author)
		if r.Type == revision.Insert {
			e.Insertions++
		} else {
			e.Deletions++
		}
	}
	for _, c := range comments {
		entry(c.Author).Comments++
		for _, reply := range c.Replies {
			entry(reply.Author).Comments++
		}
	}
	return out
}
