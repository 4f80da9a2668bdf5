// Package gitlab is a small client for the GitLab GraphQL API, limited to
// listing the open issues and merge requests of a project.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is used when no instance URL is configured.
	DefaultBaseURL = "https://gitlab.com"

	// DefaultMaxPages bounds pagination at 100 nodes per page.
	DefaultMaxPages = 10

	defaultRequestsPerSecond = 5
	defaultTimeout           = 30 * time.Second
	maxErrorBody             = 512
)

var (
	// ErrProjectNotFound is returned when the project does not exist or is
	// not visible with the configured token.
	ErrProjectNotFound = errors.New("project not found")
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gitlab: %s", http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("gitlab: %s: %s", http.StatusText(e.StatusCode), e.Body)
}

// QueryError collects the errors array of a GraphQL response.
type QueryError struct {
	Messages []string
}

func (e *QueryError) Error() string {
	return "gitlab: " + strings.Join(e.Messages, "; ")
}

// Options configures a Client.
type Options struct {
	BaseURL           string
	Token             string
	HTTPClient        *http.Client
	RequestsPerSecond float64
	MaxPages          int
}

// Client talks to one GitLab instance.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	maxPages int
}

// NewClient creates a client for opts.BaseURL.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	return &Client{
		endpoint: base + "/api/graphql",
		token:    opts.Token,
		http:     httpClient,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		maxPages: maxPages,
	}
}

// Issues returns the open issues of project.
func (c *Client) Issues(ctx context.Context, project string) ([]Issue, error) {
	var issues []Issue
	after := ""
	for page := 0; page < c.maxPages; page++ {
		var data issuesData
		if err := c.query(ctx, IssuesQuery, project, after, &data); err != nil {
			return nil, err
		}
		if data.Project == nil {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, project)
		}

		conn := data.Project.Issues
		for _, n := range conn.Nodes {
			issues = append(issues, n.issue())
		}
		if !conn.PageInfo.HasNextPage || conn.PageInfo.EndCursor == "" {
			break
		}
		after = conn.PageInfo.EndCursor
	}
	return issues, nil
}

// MergeRequests returns the open merge requests of project.
func (c *Client) MergeRequests(ctx context.Context, project string) ([]MergeRequest, error) {
	var mrs []MergeRequest
	after := ""
	for page := 0; page < c.maxPages; page++ {
		var data mergeRequestsData
		if err := c.query(ctx, MergeRequestsQuery, project, after, &data); err != nil {
			return nil, err
		}
		if data.Project == nil {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, project)
		}

		conn := data.Project.MergeRequests
		for _, n := range conn.Nodes {
			mrs = append(mrs, n.mergeRequest())
		}
		if !conn.PageInfo.HasNextPage || conn.PageInfo.EndCursor == "" {
			break
		}
		after = conn.PageInfo.EndCursor
	}
	return mrs, nil
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) query(ctx context.Context, query, project, after string, out any) error {
	vars := map[string]any{"project": project}
	if after != "" {
		vars["after"] = after
	}
	body, err := json.Marshal(request{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gitlab request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(r.Errors) > 0 {
		qe := &QueryError{}
		for _, e := range r.Errors {
			qe.Messages = append(qe.Messages, e.Message)
		}
		return qe
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
