package lookup

import (
	"strings"

	"github.com/gitlab-lookup/gitlab-lookup/internal/gitlab"
	"golang.org/x/text/cases"
)

// matcher tests work items against a query. Every whitespace separated term
// must match:
//
//	~x  a label containing x
//	@x  the author (or, for issues, an assignee) whose name or username contains x
//	x   the title containing x
//
// Comparison is case-insensitive. A matcher is not safe for concurrent use.
type matcher struct {
	terms []string
	fold  cases.Caser
}

func newMatcher(query string) *matcher {
	m := &matcher{fold: cases.Fold()}
	for _, term := range strings.Fields(query) {
		m.terms = append(m.terms, m.fold.String(term))
	}
	return m
}

func (m *matcher) contains(s, substr string) bool {
	return strings.Contains(m.fold.String(s), substr)
}

func (m *matcher) user(u gitlab.User, q string) bool {
	return m.contains(u.Name, q) || m.contains(u.Username, q)
}

func (m *matcher) anyUser(users []gitlab.User, q string) bool {
	for _, u := range users {
		if m.user(u, q) {
			return true
		}
	}
	return false
}

func (m *matcher) anyLabel(labels []string, q string) bool {
	for _, l := range labels {
		if m.contains(l, q) {
			return true
		}
	}
	return false
}

func (m *matcher) issue(i gitlab.Issue) bool {
	for _, term := range m.terms {
		var ok bool
		if q, found := strings.CutPrefix(term, "~"); found {
			ok = m.anyLabel(i.Labels, q)
		} else if q, found := strings.CutPrefix(term, "@"); found {
			ok = m.user(i.Author, q) || m.anyUser(i.Assignees, q)
		} else {
			ok = m.contains(i.Title, term)
		}
		if !ok {
			return false
		}
	}
	return true
}

func (m *matcher) mergeRequest(mr gitlab.MergeRequest) bool {
	for _, term := range m.terms {
		var ok bool
		if q, found := strings.CutPrefix(term, "~"); found {
			ok = m.anyLabel(mr.Labels, q)
		} else if q, found := strings.CutPrefix(term, "@"); found {
			ok = m.user(mr.Author, q)
		} else {
			ok = m.contains(mr.Title, term)
		}
		if !ok {
			return false
		}
	}
	return true
}

// rank orders work items so that those involving the configured user come
// first: assigned before authored.
type rank struct {
	user string
	m    *matcher
}

func newRank(user string) rank {
	m := newMatcher("")
	return rank{user: m.fold.String(strings.TrimSpace(user)), m: m}
}

func (r rank) issue(i gitlab.Issue) int {
	if r.user == "" {
		return 0
	}
	score := 0
	if r.m.anyUser(i.Assignees, r.user) {
		score += 2
	}
	if r.m.user(i.Author, r.user) {
		score++
	}
	return score
}

func (r rank) mergeRequest(mr gitlab.MergeRequest) int {
	if r.user == "" || !r.m.user(mr.Author, r.user) {
		return 0
	}
	return 1
}
