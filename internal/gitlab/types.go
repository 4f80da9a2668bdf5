package gitlab

import "time"

// User is an issue or merge request participant.
type User struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Issue is an open issue of a project.
type Issue struct {
	IID         string    `json:"iid"`
	Title       string    `json:"title"`
	WebURL      string    `json:"web_url"`
	CreatedAt   time.Time `json:"created_at"`
	Author      User      `json:"author"`
	Assignees   []User    `json:"assignees,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Description string    `json:"description,omitempty"`
}

// MergeRequest is an open merge request of a project.
type MergeRequest struct {
	IID         string    `json:"iid"`
	Title       string    `json:"title"`
	WebURL      string    `json:"web_url"`
	CreatedAt   time.Time `json:"created_at"`
	Author      User      `json:"author"`
	Labels      []string  `json:"labels,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Wire shapes of the GraphQL responses.

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type labelNodes struct {
	Nodes []struct {
		Title string `json:"title"`
	} `json:"nodes"`
}

func (l labelNodes) titles() []string {
	if len(l.Nodes) == 0 {
		return nil
	}
	titles := make([]string, len(l.Nodes))
	for i, n := range l.Nodes {
		titles[i] = n.Title
	}
	return titles
}

type userNodes struct {
	Nodes []User `json:"nodes"`
}

type issueNode struct {
	IID         string     `json:"iid"`
	Title       string     `json:"title"`
	WebURL      string     `json:"webUrl"`
	CreatedAt   time.Time  `json:"createdAt"`
	Description string     `json:"description"`
	Author      *User      `json:"author"`
	Assignees   userNodes  `json:"assignees"`
	Labels      labelNodes `json:"labels"`
}

func (n issueNode) issue() Issue {
	i := Issue{
		IID:         n.IID,
		Title:       n.Title,
		WebURL:      n.WebURL,
		CreatedAt:   n.CreatedAt,
		Assignees:   n.Assignees.Nodes,
		Labels:      n.Labels.titles(),
		Description: n.Description,
	}
	if n.Author != nil {
		i.Author = *n.Author
	}
	return i
}

type mergeRequestNode struct {
	IID         string     `json:"iid"`
	Title       string     `json:"title"`
	WebURL      string     `json:"webUrl"`
	CreatedAt   time.Time  `json:"createdAt"`
	Description string     `json:"description"`
	Author      *User      `json:"author"`
	Labels      labelNodes `json:"labels"`
}

func (n mergeRequestNode) mergeRequest() MergeRequest {
	mr := MergeRequest{
		IID:         n.IID,
		Title:       n.Title,
		WebURL:      n.WebURL,
		CreatedAt:   n.CreatedAt,
		Labels:      n.Labels.titles(),
		Description: n.Description,
	}
	if n.Author != nil {
		mr.Author = *n.Author
	}
	return mr
}

type issuesData struct {
	Project *struct {
		Issues struct {
			Nodes    []issueNode `json:"nodes"`
			PageInfo pageInfo    `json:"pageInfo"`
		} `json:"issues"`
	} `json:"project"`
}

type mergeRequestsData struct {
	Project *struct {
		MergeRequests struct {
			Nodes    []mergeRequestNode `json:"nodes"`
			PageInfo pageInfo           `json:"pageInfo"`
		} `json:"mergeRequests"`
	} `json:"project"`
}
