package config

import (
	"errors"
	"path/filepath"
	"testing"
)

func fixedCacheDir(dir string) func(string) (string, error) {
	return func(app string) (string, error) {
		return filepath.Join(dir, app), nil
	}
}

func TestLoad_CommandsFromEnv(t *testing.T) {
	environ := []string{
		"GITLAB_TOKEN=secret",
		"GITLAB_ISSUES_WORK=group/work",
		"GITLAB_MERGE_REQUESTS_CORE_API=group/core",
		"GITLAB_ISSUES_EMPTY=",
		"HOME=/home/test",
	}

	cfg, err := load(environ, Options{}, fixedCacheDir("/cache"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Token != "secret" {
		t.Errorf("token = %q", cfg.Token)
	}
	if cfg.BaseURL != "https://gitlab.com" {
		t.Errorf("base url default = %q", cfg.BaseURL)
	}

	want := []Command{
		{Kind: KindMergeRequests, Name: "core-api", Project: "group/core"},
		{Kind: KindIssues, Name: "work", Project: "group/work"},
	}
	if len(cfg.Commands) != len(want) {
		t.Fatalf("got %d commands, want %d: %+v", len(cfg.Commands), len(want), cfg.Commands)
	}
	for i := range want {
		if cfg.Commands[i] != want[i] {
			t.Errorf("command %d = %+v, want %+v", i, cfg.Commands[i], want[i])
		}
	}

	if _, ok := findCommand(cfg, "work"); !ok {
		t.Error("work command missing")
	}
	if _, ok := findCommand(cfg, "empty"); ok {
		t.Error("empty variable should not define a command")
	}
}

func TestLoad_ConfigFileCommands(t *testing.T) {
	environ := []string{"GITLAB_ISSUES_WORK=group/work"}
	extra := []Command{
		{Kind: "mr", Name: "Docs_Site", Project: "group/docs"},
		{Kind: "issues", Name: "work", Project: "group/ignored"},
	}

	cfg, err := load(environ, Options{Commands: extra}, fixedCacheDir("/cache"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.Commands) != 2 {
		t.Fatalf("got %d commands: %+v", len(cfg.Commands), cfg.Commands)
	}

	docs, ok := findCommand(cfg, "docs-site")
	if !ok || docs.Kind != KindMergeRequests {
		t.Errorf("docs-site = %+v, %v", docs, ok)
	}
	work, _ := findCommand(cfg, "work")
	if work.Project != "group/work" {
		t.Errorf("environment should win, got project %q", work.Project)
	}
}

func TestLoad_InvalidConfigFileCommand(t *testing.T) {
	tests := []Command{
		{Kind: "epics", Name: "x", Project: "p"},
		{Kind: "issues", Name: "", Project: "p"},
		{Kind: "issues", Name: "x", Project: ""},
	}
	for _, c := range tests {
		if _, err := load(nil, Options{Commands: []Command{c}}, fixedCacheDir("/cache")); err == nil {
			t.Errorf("expected error for %+v", c)
		}
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"issues":         KindIssues,
		"Issue":          KindIssues,
		"merge-requests": KindMergeRequests,
		"merge_requests": KindMergeRequests,
		"MR":             KindMergeRequests,
	} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseKind("wiki"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestResolveCacheDir(t *testing.T) {
	tmp := t.TempDir()

	tests := []struct {
		name     string
		explicit string
		environ  []string
		want     string
	}{
		{
			name:    "per-user cache dir named after bundle",
			environ: []string{"alfred_workflow_bundleid=com.example.lookup"},
			want:    filepath.Join(tmp, "com.example.lookup"),
		},
		{
			name:    "default bundle",
			environ: nil,
			want:    filepath.Join(tmp, "gitlab-lookup"),
		},
		{
			name:    "launcher cache",
			environ: []string{"alfred_workflow_cache=/launcher/cache"},
			want:    "/launcher/cache",
		},
		{
			name:     "explicit wins",
			explicit: filepath.Join(tmp, "explicit"),
			environ:  []string{"alfred_workflow_cache=/launcher/cache"},
			want:     filepath.Join(tmp, "explicit"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(tt.environ, Options{CacheDir: tt.explicit}, fixedCacheDir(tmp))
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if cfg.CacheDir != tt.want {
				t.Errorf("CacheDir = %q, want %q", cfg.CacheDir, tt.want)
			}
		})
	}
}

func TestResolveCacheDir_Fallback(t *testing.T) {
	_, err := load(nil, Options{}, func(string) (string, error) {
		return "", errors.New("no home")
	})
	if err == nil {
		t.Fatal("expected error when no cache dir can be found")
	}
}

func TestLoad_BaseURL(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
		fromCfg string
		want    string
	}{
		{"default", nil, "", "https://gitlab.com"},
		{"config file", nil, "https://gitlab.example.com/", "https://gitlab.example.com"},
		{"environment wins", []string{"GITLAB_URL=https://git.corp"}, "https://gitlab.example.com", "https://git.corp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(tt.environ, Options{BaseURL: tt.fromCfg}, fixedCacheDir(t.TempDir()))
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if cfg.BaseURL != tt.want {
				t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, tt.want)
			}
		})
	}
}

func findCommand(cfg *Config, name string) (Command, bool) {
	for _, cmd := range cfg.Commands {
		if cmd.Name == name {
			return cmd, true
		}
	}
	return Command{}, false
}
