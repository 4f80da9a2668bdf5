package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gitlab-lookup/gitlab-lookup/internal/cache"
	"github.com/gitlab-lookup/gitlab-lookup/internal/config"
	"github.com/gitlab-lookup/gitlab-lookup/internal/human"
	"github.com/gitlab-lookup/gitlab-lookup/internal/lookup"
	"github.com/spf13/cobra"
)

// refreshCmd is what a detached refresh runs. It fetches one key and writes
// it to the cache, then exits.
var refreshCmd = &cobra.Command{
	Use:    "refresh KEY",
	Short:  "Refresh one cache entry",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		a, err := newApp(&cache.GoroutineSpawner{})
		if err != nil {
			return err
		}
		return refreshKey(context.Background(), a, args[0])
	},
}

func refreshKey(ctx context.Context, a *app, key string) error {
	cmd, err := commandForKey(a.cfg.Commands, key)
	if err != nil {
		return err
	}

	last := "never"
	if e, err := a.store.Get(key); err == nil {
		last = human.Since(e.LastRefresh, time.Now())
	}
	log.Debug("refreshing", "key", key, "project", cmd.Project, "last", last)

	if err := a.source.Refresh(ctx, cmd); err != nil {
		log.Error("refresh failed", "key", key, "error", err)
		return err
	}
	return nil
}

func commandForKey(commands []config.Command, key string) (config.Command, error) {
	for _, c := range commands {
		if lookup.Key(c) == key {
			return c, nil
		}
	}
	return config.Command{}, fmt.Errorf("no command for cache key %q", key)
}
