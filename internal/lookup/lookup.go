// Package lookup turns a launcher query into result items.
//
// A query is a command name optionally followed by search terms:
//
//	""            list all commands
//	"wo"          commands matching the partial name
//	"work ~bug"   run the "work" command with the query "~bug"
package lookup

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/gitlab-lookup/gitlab-lookup/internal/alfred"
	"github.com/gitlab-lookup/gitlab-lookup/internal/config"
	"github.com/gitlab-lookup/gitlab-lookup/internal/gitlab"
	"github.com/sahilm/fuzzy"
)

// Lookup answers queries.
type Lookup struct {
	Commands []config.Command
	Provider Provider

	// User is the GitLab user whose work items are listed first.
	User string

	// BaseURL of the GitLab instance, without a trailing slash.
	BaseURL string

	Now func() time.Time
}

// Run answers arg.
func (l *Lookup) Run(ctx context.Context, arg string) ([]alfred.Item, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if arg == "" {
		return l.commandItems(l.Commands), nil
	}

	name, query := arg, ""
	if i := strings.IndexFunc(arg, unicode.IsSpace); i >= 0 {
		name, query = arg[:i], strings.TrimSpace(arg[i:])
	}

	for _, cmd := range l.Commands {
		if cmd.Name == name {
			return l.Exec(ctx, cmd, query)
		}
	}
	return l.commandItems(l.MatchCommands(name)), nil
}

// Exec runs cmd with query.
func (l *Lookup) Exec(ctx context.Context, cmd config.Command, query string) ([]alfred.Item, error) {
	now := l.now()
	m := newMatcher(query)
	r := newRank(l.User)

	switch cmd.Kind {
	case config.KindIssues:
		var items []alfred.Item
		if q, ok := strings.CutPrefix(query, "/"); ok {
			for _, e := range extras {
				if strings.HasPrefix(e.name, q) {
					items = append(items, e.item(l.baseURL(), cmd.Project))
				}
			}
		}

		issues, err := l.Provider.Issues(ctx, cmd)
		if err != nil {
			return nil, err
		}
		slices.SortStableFunc(issues, func(a, b gitlab.Issue) int {
			return r.issue(b) - r.issue(a)
		})
		for _, i := range issues {
			if m.issue(i) {
				items = append(items, issueItem(i, now))
			}
		}
		return items, nil

	case config.KindMergeRequests:
		mrs, err := l.Provider.MergeRequests(ctx, cmd)
		if err != nil {
			return nil, err
		}
		slices.SortStableFunc(mrs, func(a, b gitlab.MergeRequest) int {
			return r.mergeRequest(b) - r.mergeRequest(a)
		})
		var items []alfred.Item
		for _, mr := range mrs {
			if m.mergeRequest(mr) {
				items = append(items, mergeRequestItem(mr, now))
			}
		}
		return items, nil
	}

	return nil, fmt.Errorf("%w: %q", config.ErrUnknownKind, cmd.Kind)
}

// MatchCommands returns the commands whose name starts with partial,
// followed by those that fuzzy match it, best first.
func (l *Lookup) MatchCommands(partial string) []config.Command {
	var (
		matched []config.Command
		seen    = make(map[int]bool)
	)
	for i, cmd := range l.Commands {
		if strings.HasPrefix(cmd.Name, partial) {
			matched = append(matched, cmd)
			seen[i] = true
		}
	}
	for _, match := range fuzzy.FindFrom(partial, commandNames(l.Commands)) {
		if !seen[match.Index] {
			matched = append(matched, l.Commands[match.Index])
			seen[match.Index] = true
		}
	}
	return matched
}

func (l *Lookup) commandItems(commands []config.Command) []alfred.Item {
	items := make([]alfred.Item, 0, len(commands))
	for _, cmd := range commands {
		items = append(items, commandItem(l.baseURL(), cmd))
	}
	return items
}

func (l *Lookup) baseURL() string {
	if l.BaseURL == "" {
		return gitlab.DefaultBaseURL
	}
	return strings.TrimRight(l.BaseURL, "/")
}

func (l *Lookup) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

type commandNames []config.Command

func (c commandNames) String(i int) string { return c[i].Name }
func (c commandNames) Len() int            { return len(c) }
