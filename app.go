package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gitlab-lookup/gitlab-lookup/internal/cache"
	"github.com/gitlab-lookup/gitlab-lookup/internal/config"
	"github.com/gitlab-lookup/gitlab-lookup/internal/gitlab"
	"github.com/gitlab-lookup/gitlab-lookup/internal/lookup"
	"github.com/spf13/viper"
)

// app is everything a lookup needs, resolved once per process.
type app struct {
	cfg    *config.Config
	store  *cache.Store
	source *lookup.Source
	lookup *lookup.Lookup
}

func loadConfig() (*config.Config, error) {
	var commands []config.Command
	if err := viper.UnmarshalKey("commands", &commands); err != nil {
		return nil, fmt.Errorf("invalid commands in config file: %w", err)
	}
	return config.Load(config.Options{
		Commands: commands,
		CacheDir: viper.GetString("cache.dir"),
		BaseURL:  viper.GetString("gitlab.url"),
	})
}

func newApp(spawner cache.Spawner) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := cache.New(cache.Options{
		Dir:              cfg.CacheDir,
		TTL:              viper.GetDuration("cache.ttl"),
		ColdStartTimeout: viper.GetDuration("cache.cold_start_timeout"),
		Compress:         viper.GetBool("cache.compress"),
		Spawner:          spawner,
		Logger:           log.Default().WithPrefix("cache"),
	})
	if err != nil {
		return nil, err
	}

	client := gitlab.NewClient(gitlab.Options{
		BaseURL:           cfg.BaseURL,
		Token:             cfg.Token,
		RequestsPerSecond: viper.GetFloat64("gitlab.requests_per_second"),
		MaxPages:          viper.GetInt("gitlab.max_pages"),
	})
	source := lookup.NewSource(store, client)

	return &app{
		cfg:    cfg,
		store:  store,
		source: source,
		lookup: &lookup.Lookup{
			Commands: cfg.Commands,
			Provider: source,
			User:     cfg.User,
			BaseURL:  cfg.BaseURL,
		},
	}, nil
}

// processSpawner refreshes keys in a detached child running the refresh
// command, so refreshes outlive the short-lived launcher invocation.
func processSpawner() *cache.ProcessSpawner {
	return &cache.ProcessSpawner{
		Args: func(req cache.RefreshRequest) []string {
			args := []string{"refresh", req.Key}
			if dir := viper.GetString("cache.dir"); dir != "" {
				args = append(args, "--cache-dir", dir)
			}
			if f := viper.ConfigFileUsed(); f != "" {
				args = append(args, "--config", f)
			}
			return args
		},
	}
}

func rerunInterval() time.Duration {
	return viper.GetDuration("rerun")
}

// commandNames lists the configured commands for shell completion.
func commandNames() []string {
	cfg, err := loadConfig()
	if err != nil {
		return nil
	}
	names := make([]string, len(cfg.Commands))
	for i, c := range cfg.Commands {
		names[i] = c.Name
	}
	return names
}
