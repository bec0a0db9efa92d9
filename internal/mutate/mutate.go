// Package mutate accepts and rejects tracked changes by rewriting raw document
// markup. Only the bytes of the touched elements change; everything else,
// including markup a strict parser would refuse, is copied through as is.
package mutate

import (
	"strings"

	"github.com/dgallion1/docrev/internal/wordml"
)

// Action selects how a tracked change is resolved.
type Action int

const (
	Accept Action = iota
	Reject
)

func (a Action) String() string {
	if a == Reject {
		return "reject"
	}
	return "accept"
}

// Result is the outcome of a mutation. ProcessedIDs and WarningIDs never share
// an id for a single call.
type Result struct {
	XML          string   `json:"xml"`
	ProcessedIDs []string `json:"processedIds"`
	WarningIDs   []string `json:"warningIds"`
}

func newResult(xml string) Result {
	return Result{XML: xml, ProcessedIDs: []string{}, WarningIDs: []string{}}
}

// form is one structural shape of a change element.
type form struct {
	tag         string
	selfClosing bool
}

// searchOrder is the order in which element shapes are tried.
var searchOrder = []form{
	{wordml.TagIns, true},
	{wordml.TagIns, false},
	{wordml.TagDel, true},
	{wordml.TagDel, false},
}

// AcceptOne accepts the change element carrying id.
func AcceptOne(xml, id string) Result { return one(xml, id, Accept) }

// RejectOne rejects the change element carrying id.
func RejectOne(xml, id string) Result { return one(xml, id, Reject) }

// AcceptAll accepts every change in the markup.
func AcceptAll(xml string) Result { return all(xml, Accept) }

// RejectAll rejects every change in the markup.
func RejectAll(xml string) Result { return all(xml, Reject) }

// AcceptIDs accepts each id in turn, feeding every step the previous output.
func AcceptIDs(xml string, ids []string) Result { return many(xml, ids, Accept) }

// RejectIDs rejects each id in turn, feeding every step the previous output.
func RejectIDs(xml string, ids []string) Result { return many(xml, ids, Reject) }

// Apply runs action over ids, or over every change when ids is empty and
// everything is set.
func Apply(xml string, action Action, everything bool, ids []string) Result {
	if everything {
		return all(xml, action)
	}
	return many(xml, ids, action)
}

// one tries each element shape in search order. The first shape with a match
// is applied to every element of that shape carrying id. With no match the
// input is returned untouched.
func one(xml, id string, action Action) Result {
	res := newResult(xml)
	if id == "" {
		res.WarningIDs = append(res.WarningIDs, id)
		return res
	}

	toks := tokenize(xml)
	for _, f := range searchOrder {
		ms := findMatches(toks, f, id)
		if len(ms) == 0 {
			continue
		}
		res.XML = rewrite(xml, toks, ms, f, action)
		res.ProcessedIDs = append(res.ProcessedIDs, id)
		return res
	}
	res.WarningIDs = append(res.WarningIDs, id)
	return res
}

func many(xml string, ids []string, action Action) Result {
	res := newResult(xml)
	for _, id := range ids {
		step := one(res.XML, id, action)
		res.XML = step.XML
		res.ProcessedIDs = append(res.ProcessedIDs, step.ProcessedIDs...)
		res.WarningIDs = append(res.WarningIDs, step.WarningIDs...)
	}
	return res
}

// all records every change id first, then sweeps each element shape in search
// order until nothing changes. Nested or unbalanced change markup can survive a
// single sweep; whatever tags still remain after that are dropped.
func all(xml string, action Action) Result {
	res := newResult(xml)
	res.ProcessedIDs = CollectIDs(xml)

	out := xml
	for {
		next := out
		for _, f := range searchOrder {
			toks := tokenize(next)
			if ms := findMatches(toks, f, ""); len(ms) > 0 {
				next = rewrite(next, toks, ms, f, action)
			}
		}
		if next == out {
			break
		}
		out = next
	}
	res.XML = dropChangeTags(out)
	return res
}

// CollectIDs returns the w:id of every insertion and deletion element, self
// closing or not, in textual order. Duplicates are kept.
func CollectIDs(xml string) []string {
	ids := []string{}
	sc := wordml.NewScanner(xml)
	for {
		tok, ok := sc.Next()
		if !ok {
			return ids
		}
		if !tok.IsOpen(wordml.TagIns) && !tok.IsOpen(wordml.TagDel) {
			continue
		}
		if id, ok := tok.DecodedAttr(wordml.AttrID); ok && id != "" {
			ids = append(ids, id)
		}
	}
}

func tokenize(xml string) []wordml.Token {
	var toks []wordml.Token
	sc := wordml.NewScanner(xml)
	for {
		tok, ok := sc.Next()
		if !ok {
			return toks
		}
		toks = append(toks, tok)
	}
}

// match is a located element: open and close are token indices. close is -1 for
// a self-closing element.
type match struct {
	open, close int
}

// findMatches locates non-overlapping elements of shape f, left to right. A
// paired element closes at the nearest following end tag of the same name. An
// empty id matches any element.
func findMatches(toks []wordml.Token, f form, id string) []match {
	var ms []match
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok.Name != f.tag {
			continue
		}
		if f.selfClosing && tok.Kind != wordml.SelfClosingTagToken {
			continue
		}
		if !f.selfClosing && tok.Kind != wordml.StartTagToken {
			continue
		}
		if id != "" {
			if v, ok := tok.DecodedAttr(wordml.AttrID); !ok || v != id {
				continue
			}
		}
		if f.selfClosing {
			ms = append(ms, match{open: i, close: -1})
			continue
		}
		end := closingTag(toks, i, f.tag)
		if end < 0 {
			continue
		}
		ms = append(ms, match{open: i, close: end})
		i = end
	}
	return ms
}

func closingTag(toks []wordml.Token, from int, tag string) int {
	for j := from + 1; j < len(toks); j++ {
		if toks[j].Kind == wordml.EndTagToken && toks[j].Name == tag {
			return j
		}
	}
	return -1
}

// keepsContent reports whether resolving an element of tag with action unwraps it
// rather than removing it with its content.
func keepsContent(tag string, action Action) bool {
	return (tag == wordml.TagIns && action == Accept) || (tag == wordml.TagDel && action == Reject)
}

// rewrite replaces each match in xml. ms must be ordered and non-overlapping.
func rewrite(xml string, toks []wordml.Token, ms []match, f form, action Action) string {
	var sb strings.Builder
	sb.Grow(len(xml))
	pos := 0
	for _, m := range ms {
		open := toks[m.open]
		sb.WriteString(xml[pos:open.Start])
		if m.close < 0 {
			pos = open.End
			continue
		}
		closeTok := toks[m.close]
		if keepsContent(f.tag, action) {
			for _, inner := range toks[m.open+1 : m.close] {
				if f.tag == wordml.TagDel {
					sb.WriteString(restoreDeletedText(xml, inner))
				} else {
					sb.WriteString(xml[inner.Start:inner.End])
				}
			}
		}
		pos = closeTok.End
	}
	sb.WriteString(xml[pos:])
	return sb.String()
}

// restoreDeletedText renames a w:delText tag to w:t, keeping its attributes and
// spacing verbatim. Other tokens are returned unchanged.
func restoreDeletedText(xml string, tok wordml.Token) string {
	if tok.Name != wordml.TagDelText {
		return xml[tok.Start:tok.End]
	}
	switch tok.Kind {
	case wordml.StartTagToken, wordml.SelfClosingTagToken:
		return "<" + wordml.TagText + xml[tok.NameEnd:tok.End]
	case wordml.EndTagToken:
		return "</" + wordml.TagText + xml[tok.NameEnd:tok.End]
	}
	return xml[tok.Start:tok.End]
}

// dropChangeTags removes any w:ins or w:del tag left without a partner.
func dropChangeTags(xml string) string {
	var sb strings.Builder
	sb.Grow(len(xml))
	changed := false
	for _, tok := range tokenize(xml) {
		if tok.Kind != wordml.TextToken && (tok.Name == wordml.TagIns || tok.Name == wordml.TagDel) {
			changed = true
			continue
		}
		sb.WriteString(xml[tok.Start:tok.End])
	}
	if !changed {
		return xml
	}
	return sb.String()
}
