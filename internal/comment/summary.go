package comment

// Summary aggregates a set of comment threads.
type Summary struct {
	TotalComments int      `json:"totalComments"`
	TotalReplies  int      `json:"totalReplies"`
	Resolved      int      `json:"resolved"`
	Unresolved    int      `json:"unresolved"`
	Authors       []string `json:"authors"`
}

// Summarize counts threads and replies. Authors covers both comment and reply
// authors, in order of first appearance.
func Summarize(comments []Comment) Summary {
	s := Summary{
		TotalComments: len(comments),
		Authors:       []string{},
	}
	seen := make(map[string]bool)
	add := func(author string) {
		if !seen[author] {
			seen[author] = true
			s.Authors = append(s.Authors, author)
		}
	}
	for _, c := range comments {
		s.TotalReplies += len(c.Replies)
		if c.Resolved {
			s.Resolved++
		}
		add(c.Author)
		for _, r := range c.Replies {
			add(r.Author)
		}
	}
	s.Unresolved = s.TotalComments - s.Resolved
	return s
}
