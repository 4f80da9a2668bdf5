package lookup

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gitlab-lookup/gitlab-lookup/internal/cache"
	"github.com/gitlab-lookup/gitlab-lookup/internal/config"
	"github.com/gitlab-lookup/gitlab-lookup/internal/gitlab"
	"golang.org/x/sync/singleflight"
)

// Fetcher lists work items from GitLab. *gitlab.Client implements it.
type Fetcher interface {
	Issues(ctx context.Context, project string) ([]gitlab.Issue, error)
	MergeRequests(ctx context.Context, project string) ([]gitlab.MergeRequest, error)
}

// Provider returns the work items a command searches.
type Provider interface {
	Issues(ctx context.Context, cmd config.Command) ([]gitlab.Issue, error)
	MergeRequests(ctx context.Context, cmd config.Command) ([]gitlab.MergeRequest, error)
}

// Source serves work items from the freshness cache, refreshing them from
// GitLab as needed.
type Source struct {
	store   *cache.Store
	fetcher Fetcher
	group   singleflight.Group
}

var _ Provider = (*Source)(nil)

// NewSource creates a Source.
func NewSource(store *cache.Store, fetcher Fetcher) *Source {
	return &Source{store: store, fetcher: fetcher}
}

// Key is the cache key of a command.
func Key(cmd config.Command) string {
	return string(cmd.Kind) + "-" + cmd.Name
}

// Fingerprint identifies the request a command makes.
func Fingerprint(cmd config.Command) cache.Fingerprint {
	return gitlab.QueryFingerprint(query(cmd.Kind), cmd.Project)
}

func query(kind config.Kind) string {
	if kind == config.KindMergeRequests {
		return gitlab.MergeRequestsQuery
	}
	return gitlab.IssuesQuery
}

// Issues returns the cached issues of cmd's project.
func (s *Source) Issues(ctx context.Context, cmd config.Command) ([]gitlab.Issue, error) {
	var issues []gitlab.Issue
	if err := s.load(ctx, cmd, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// MergeRequests returns the cached merge requests of cmd's project.
func (s *Source) MergeRequests(ctx context.Context, cmd config.Command) ([]gitlab.MergeRequest, error) {
	var mrs []gitlab.MergeRequest
	if err := s.load(ctx, cmd, &mrs); err != nil {
		return nil, err
	}
	return mrs, nil
}

// Refresh fetches cmd's items and stores them, unless a refresh of the same
// command is already running.
func (s *Source) Refresh(ctx context.Context, cmd config.Command) error {
	return s.store.Refresh(ctx, Key(cmd), Fingerprint(cmd), s.fetch(cmd))
}

// load decodes the cached payload of cmd into out. Concurrent loads of one
// command share a single cache read.
func (s *Source) load(ctx context.Context, cmd config.Command, out any) error {
	key := Key(cmd)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.store.Load(ctx, key, Fingerprint(cmd), s.fetch(cmd))
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(v.(json.RawMessage), out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Source) fetch(cmd config.Command) cache.FetchFunc {
	return func(ctx context.Context) (json.RawMessage, error) {
		switch cmd.Kind {
		case config.KindIssues:
			issues, err := s.fetcher.Issues(ctx, cmd.Project)
			if err != nil {
				return nil, err
			}
			if issues == nil {
				issues = []gitlab.Issue{}
			}
			return json.Marshal(issues)
		case config.KindMergeRequests:
			mrs, err := s.fetcher.MergeRequests(ctx, cmd.Project)
			if err != nil {
				return nil, err
			}
			if mrs == nil {
				mrs = []gitlab.MergeRequest{}
			}
			return json.Marshal(mrs)
		default:
			return nil, fmt.Errorf("%w: %q", config.ErrUnknownKind, cmd.Kind)
		}
	}
}
