// Package config resolves the process-wide configuration of a lookup
// invocation: credentials, the configured commands and the cache root. It is
// resolved once at startup and passed to the components that need it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
)

// AppName names the per-user config and cache directories.
const AppName = "gitlab-lookup"

// DefaultBaseURL is the GitLab instance used when none is configured.
const DefaultBaseURL = "https://gitlab.com"

const (
	issuesPrefix        = "GITLAB_ISSUES_"
	mergeRequestsPrefix = "GITLAB_MERGE_REQUESTS_"
)

// ErrUnknownKind is returned for a command kind that is neither issues nor
// merge requests.
var ErrUnknownKind = errors.New("unknown command kind")

// Kind is the kind of work item a command searches.
type Kind string

const (
	KindIssues        Kind = "issues"
	KindMergeRequests Kind = "merge-requests"
)

// ParseKind accepts the canonical names plus a few spellings people use in
// config files.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "issues", "issue":
		return KindIssues, nil
	case "merge-requests", "merge_requests", "mergerequests", "mrs", "mr":
		return KindMergeRequests, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Command is one named search over a GitLab project.
type Command struct {
	Kind    Kind   `mapstructure:"kind"`
	Name    string `mapstructure:"name"`
	Project string `mapstructure:"project"`
}

// Env is the fixed part of the environment.
type Env struct {
	Token   string `env:"GITLAB_TOKEN"`
	User    string `env:"GITLAB_USER"`
	BaseURL string `env:"GITLAB_URL"`

	// Set by Alfred when running as a workflow.
	WorkflowCache string `env:"alfred_workflow_cache"`
	BundleID      string `env:"alfred_workflow_bundleid" envDefault:"gitlab-lookup"`
	Debug         bool   `env:"alfred_debug"`
}

// Config is the resolved configuration.
type Config struct {
	Env

	Commands []Command

	// CacheDir is the storage root of the freshness cache.
	CacheDir string
}

// Options are the settings that come from flags and the config file.
type Options struct {
	// Commands are added to those defined in the environment.
	Commands []Command

	// CacheDir takes precedence over the launcher's cache directory.
	CacheDir string

	// BaseURL is used when GITLAB_URL is unset.
	BaseURL string
}

// Load resolves the configuration from the process environment and opts.
func Load(opts Options) (*Config, error) {
	return load(os.Environ(), opts, userCacheDir)
}

func load(environ []string, opts Options, fallback func(app string) (string, error)) (*Config, error) {
	vars := envMap(environ)

	e, err := env.ParseAsWithOptions[Env](env.Options{Environment: vars})
	if err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}
	if e.BaseURL == "" {
		e.BaseURL = opts.BaseURL
	}
	if e.BaseURL == "" {
		e.BaseURL = DefaultBaseURL
	}
	e.BaseURL = strings.TrimRight(e.BaseURL, "/")

	commands, err := mergeCommands(CommandsFromEnv(vars), opts.Commands)
	if err != nil {
		return nil, err
	}

	dir, err := resolveCacheDir(opts.CacheDir, e, fallback)
	if err != nil {
		return nil, err
	}

	return &Config{
		Env:      e,
		Commands: commands,
		CacheDir: dir,
	}, nil
}

// CommandsFromEnv collects GITLAB_ISSUES_<NAME>=<project> and
// GITLAB_MERGE_REQUESTS_<NAME>=<project> variables. Names are lowercased with
// underscores turned into dashes; empty values are ignored.
func CommandsFromEnv(vars map[string]string) []Command {
	var commands []Command
	for k, v := range vars {
		if v == "" {
			continue
		}
		if name, ok := strings.CutPrefix(k, issuesPrefix); ok {
			commands = append(commands, Command{Kind: KindIssues, Name: commandName(name), Project: v})
		} else if name, ok := strings.CutPrefix(k, mergeRequestsPrefix); ok {
			commands = append(commands, Command{Kind: KindMergeRequests, Name: commandName(name), Project: v})
		}
	}
	sortCommands(commands)
	return commands
}

func commandName(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "_", "-")
}

// mergeCommands adds the config file commands to the environment ones. The
// environment wins when both define the same name.
func mergeCommands(fromEnv, extra []Command) ([]Command, error) {
	seen := make(map[string]bool, len(fromEnv))
	for _, c := range fromEnv {
		seen[c.Name] = true
	}

	commands := fromEnv
	for _, c := range extra {
		if c.Name == "" || c.Project == "" {
			return nil, fmt.Errorf("command %q: name and project are required", c.Name)
		}
		kind, err := ParseKind(string(c.Kind))
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", c.Name, err)
		}
		c.Kind = kind
		c.Name = commandName(c.Name)
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		commands = append(commands, c)
	}
	sortCommands(commands)
	return commands, nil
}

func sortCommands(commands []Command) {
	sort.Slice(commands, func(i, j int) bool {
		return commands[i].Name < commands[j].Name
	})
}

// resolveCacheDir picks the cache root: an explicit directory, then the
// launcher-provided one, then the per-user cache directory named after the
// bundle.
func resolveCacheDir(explicit string, e Env, fallback func(app string) (string, error)) (string, error) {
	if explicit != "" {
		dir, err := homedir.Expand(explicit)
		if err != nil {
			return "", fmt.Errorf("expand cache dir: %w", err)
		}
		return filepath.Abs(dir)
	}
	if e.WorkflowCache != "" {
		return e.WorkflowCache, nil
	}

	dir, err := fallback(e.BundleID)
	if err != nil {
		return "", fmt.Errorf("could not find cache directory: %w", err)
	}
	return dir, nil
}

func userCacheDir(app string) (string, error) {
	return gap.NewScope(gap.User, app).CacheDir()
}

func envMap(environ []string) map[string]string {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars
}
