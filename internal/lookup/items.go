package lookup

import (
	"fmt"
	"strings"
	"time"

	"github.com/gitlab-lookup/gitlab-lookup/internal/alfred"
	"github.com/gitlab-lookup/gitlab-lookup/internal/config"
	"github.com/gitlab-lookup/gitlab-lookup/internal/gitlab"
	"github.com/gitlab-lookup/gitlab-lookup/internal/human"
)

func commandItem(base string, cmd config.Command) alfred.Item {
	what := "issues"
	if cmd.Kind == config.KindMergeRequests {
		what = "merge requests"
	}
	return alfred.Item{
		Title:        cmd.Name,
		Subtitle:     fmt.Sprintf("Search %s in %s", what, cmd.Project),
		Arg:          fmt.Sprintf("%s/%s;%s", base, cmd.Project, cmd.Name),
		Autocomplete: cmd.Name + " ",
	}
}

func issueItem(i gitlab.Issue, now time.Time) alfred.Item {
	ago := human.Since(i.CreatedAt, now)
	subtitle := fmt.Sprintf("%s, authored by %s", ago, i.Author.Name)
	if len(i.Assignees) > 0 {
		names := make([]string, len(i.Assignees))
		for j, a := range i.Assignees {
			names[j] = a.Name
		}
		subtitle = fmt.Sprintf("%s, assigned to %s", ago, strings.Join(names, ", "))
	}
	return workItem(i.Title, subtitle, i.WebURL, i.Description)
}

func mergeRequestItem(mr gitlab.MergeRequest, now time.Time) alfred.Item {
	subtitle := fmt.Sprintf("%s by %s", human.Since(mr.CreatedAt, now), mr.Author.Name)
	return workItem(mr.Title, subtitle, mr.WebURL, mr.Description)
}

func workItem(title, subtitle, url, description string) alfred.Item {
	large := title
	if excerpt := Excerpt(description); excerpt != "" {
		large = title + "\n\n" + excerpt
	}
	return alfred.Item{
		Title:       title,
		Subtitle:    subtitle,
		Arg:         url + ";" + title,
		Text:        &alfred.Text{Copy: url, LargeType: large},
		Description: description,
	}
}

type extra struct {
	name string
	item func(base, project string) alfred.Item
}

// extras are shortcuts offered by issue commands when the query starts
// with '/'.
var extras = []extra{
	{"new", newIssueItem},
	{"boards", boardsItem},
	{"list", listItem},
}

func newIssueItem(base, project string) alfred.Item {
	return alfred.Item{
		Title:    "/new",
		Subtitle: "Create a new issue in " + project,
		Arg:      fmt.Sprintf("%s/%s/issues/new", base, project),
	}
}

// boardsItem links the group boards of the project's parent group.
func boardsItem(base, project string) alfred.Item {
	group := strings.TrimRight(project, "/")
	if i := strings.LastIndex(group, "/"); i >= 0 {
		group = group[:i]
	}
	return alfred.Item{
		Title:    "/boards",
		Subtitle: "Open the issue boards for " + project,
		Arg:      fmt.Sprintf("%s/groups/%s/-/boards", base, group),
	}
}

func listItem(base, project string) alfred.Item {
	return alfred.Item{
		Title:    "/list",
		Subtitle: "Open the issue list for " + project,
		Arg:      fmt.Sprintf("%s/%s/-/issues", base, project),
	}
}
