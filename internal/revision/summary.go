package revision

// Summary aggregates a set of revisions.
type Summary struct {
	TotalRevisions int      `json:"totalRevisions"`
	Insertions     int      `json:"insertions"`
	Deletions      int      `json:"deletions"`
	Authors        []string `json:"authors"`
}

// Summarize counts revisions by kind and collects distinct authors in order of
// first appearance.
func Summarize(revisions []Revision) Summary {
	s := Summary{
		TotalRevisions: len(revisions),
		Authors:        []string{},
	}
	seen := make(map[string]bool)
	for _, r := range revisions {
		if r.Type == Insert {
			s.Insertions++
		} else {
			s.Deletions++
		}
		if !seen[r.Author] {
			seen[r.Author] = true
			s.Authors = append(s.Authors, r.Author)
		}
	}
	return s
}
