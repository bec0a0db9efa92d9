// Package comment extracts comment threads from a document package.
//
// Three markup sources feed a thread: word/comments.xml holds the comments
// themselves, word/commentsExtended.xml records resolution and reply linkage,
// and word/document.xml carries the anchor ranges that give each comment its
// target text. Only the first is required.
package comment

import (
	"fmt"

	"github.com/dgallion1/docrev/internal/wordml"
)

const (
	tagComment   = "w:comment"
	tagCommentEx = "w15:commentEx"

	attrParaID       = "w14:paraId"
	attrExParaID     = "w15:paraId"
	attrExParent     = "w15:paraIdParent"
	attrExDone       = "w15:done"
	unknownAuthor    = "Unknown"
	resolvedMarkDone = "1"
)

// ID identifies a comment (w:comment w:id).
type ID string

// Comment is a top-level comment with its replies.
type Comment struct {
	ID         ID      `json:"id"`
	Author     string  `json:"author"`
	Date       string  `json:"date"`
	Text       string  `json:"text"`
	TargetText *string `json:"targetText"`
	Resolved   bool    `json:"resolved"`
	Replies    []Reply `json:"replies"`
}

// Reply is a comment linked to a parent thread.
type Reply struct {
	ID     ID     `json:"id"`
	Author string `json:"author"`
	Date   string `json:"date"`
	Text   string `json:"text"`
}

// Options controls extraction.
type Options struct {
	IncludeReplies  bool
	IncludeResolved bool
}

// DefaultOptions merges replies and keeps resolved comments.
func DefaultOptions() Options {
	return Options{IncludeReplies: true, IncludeResolved: true}
}

// Extract builds comment threads. Empty sources are treated as absent: with no
// comments source the result is empty, without the extended source nothing is
// resolved or merged, and without the document no target text is attached.
func Extract(commentsXML, commentsExtendedXML, documentXML string, opts Options) ([]Comment, error) {
	result := []Comment{}
	if commentsXML == "" {
		return result, nil
	}

	commentsDoc, err := wordml.Parse(commentsXML)
	if err != nil {
		return nil, fmt.Errorf("parse comments: %w", err)
	}
	set := readComments(commentsDoc)

	if commentsExtendedXML != "" {
		exDoc, err := wordml.Parse(commentsExtendedXML)
		if err != nil {
			return nil, fmt.Errorf("parse extended comments: %w", err)
		}
		ext := readExtended(exDoc)
		for _, pid := range ext.resolved {
			if c := set.get(set.resolve(pid)); c != nil {
				c.Resolved = true
			}
		}
		if opts.IncludeReplies {
			for _, link := range ext.links {
				set.attach(set.resolve(link.child), set.resolve(link.parent))
			}
		}
	}

	if documentXML != "" {
		targets := ScanAnchors(documentXML)
		for _, id := range set.order {
			c := set.get(id)
			if c == nil {
				continue
			}
			// Anchor ids follow the producer convention of reusing the comment id.
			if text, ok := targets[AnchorID(id)]; ok && text != "" {
				t := text
				c.TargetText = &t
			}
		}
	}

	for _, id := range set.order {
		c := set.get(id)
		if c == nil {
			continue
		}
		if !opts.IncludeResolved && c.Resolved {
			continue
		}
		result = append(result, *c)
	}
	return result, nil
}

// commentSet keeps comments keyed by id in first-seen order. Removing a comment
// leaves its slot in order so later lookups skip it.
type commentSet struct {
	byID  map[ID]*Comment
	order []ID
	// paraToID maps w14:paraId values of comment paragraphs to their comment.
	paraToID map[string]ID
}

func readComments(doc *wordml.Document) *commentSet {
	set := &commentSet{
		byID:     make(map[ID]*Comment),
		paraToID: make(map[string]ID),
	}
	for _, el := range wordml.FindAll(doc.Root, tagComment) {
		id := ID(el.AttrOr(wordml.AttrID, ""))
		c := &Comment{
			ID:      id,
			Author:  el.AttrOr(wordml.AttrAuthor, unknownAuthor),
			Date:    el.AttrOr(wordml.AttrDate, ""),
			Text:    wordml.PlainText(el),
			Replies: []Reply{},
		}
		if _, seen := set.byID[id]; !seen {
			set.order = append(set.order, id)
		}
		set.byID[id] = c
		for _, p := range wordml.FindAll(el, wordml.TagParagraph) {
			if pid, ok := p.Attr(attrParaID); ok && pid != "" {
				set.paraToID[pid] = id
			}
		}
	}
	return set
}

func (s *commentSet) get(id ID) *Comment {
	return s.byID[id]
}

// resolve maps an extended-comment paraId to a comment id. Producers key the
// extended source by the paraId of the comment's paragraph; when no paragraph
// carries it the value is taken as the comment id itself.
func (s *commentSet) resolve(paraID string) ID {
	if id, ok := s.paraToID[paraID]; ok {
		return id
	}
	return ID(paraID)
}

// attach moves child into parent's replies. Both must still be top-level.
func (s *commentSet) attach(childID, parentID ID) {
	if childID == parentID {
		return
	}
	child, parent := s.byID[childID], s.byID[parentID]
	if child == nil || parent == nil {
		return
	}
	parent.Replies = append(parent.Replies, Reply{
		ID:     child.ID,
		Author: child.Author,
		Date:   child.Date,
		Text:   child.Text,
	})
	parent.Replies = append(parent.Replies, child.Replies...)
	delete(s.byID, childID)
}

type link struct {
	child  string
	parent string
}

type extended struct {
	resolved []string
	links    []link
}

// readExtended collects resolved paraIds and child→parent links in marker
// order. A paraId listed twice keeps its first position and its last parent.
func readExtended(doc *wordml.Document) extended {
	var ext extended
	linkIdx := make(map[string]int)
	for _, el := range wordml.FindAll(doc.Root, tagCommentEx) {
		pid, _ := el.Attr(attrExParaID)
		if pid == "" {
			continue
		}
		if done, _ := el.Attr(attrExDone); done == resolvedMarkDone {
			ext.resolved = append(ext.resolved, pid)
		}
		parent, _ := el.Attr(attrExParent)
		if parent == "" {
			continue
		}
		if i, ok := linkIdx[pid]; ok {
			ext.links[i].parent = parent
			continue
		}
		linkIdx[pid] = len(ext.links)
		ext.links = append(ext.links, link{child: pid, parent: parent})
	}
	return ext
}
