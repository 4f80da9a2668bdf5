package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/gitlab-lookup/gitlab-lookup/internal/cache"
	"github.com/gitlab-lookup/gitlab-lookup/ui"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var tuiCmd = &cobra.Command{
	Use:     "tui [COMMAND [QUERY...]]",
	Short:   "Search interactively",
	Long:    paragraph(fmt.Sprintf("\n%s issues and merge requests as you type. Results refresh while the cache is updated in the background.", keyword("Search"))),
	Example: paragraph("gitlab-lookup tui\ngitlab-lookup tui work ~bug"),
	Args:    cobra.ArbitraryArgs,
	RunE: func(_ *cobra.Command, args []string) error {
		return runTUI(strings.Join(args, " "))
	},
}

func runTUI(query string) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	// use style set in env, or the configured one if unset
	if _, ok := os.LookupEnv("GLAMOUR_STYLE"); !ok {
		cfg.GlamourStyle = viper.GetString("tui.style")
	}
	if err := validateStyle(cfg.GlamourStyle); err != nil {
		return err
	}

	cfg.GlamourMaxWidth = viper.GetUint("tui.width")
	cfg.EnableMouse = viper.GetBool("tui.mouse")
	cfg.Query = query
	cfg.RefreshInterval = rerunInterval()

	a, err := newApp(&cache.GoroutineSpawner{})
	if err != nil {
		return err
	}

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, a.lookup).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func validateStyle(style string) error {
	if style == styles.AutoStyle || styles.DefaultStyles[style] != nil {
		return nil
	}
	path, err := homedir.Expand(style)
	if err != nil {
		return fmt.Errorf("invalid style path %q: %w", style, err)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("specified style does not exist: %s", style)
	} else if err != nil {
		return fmt.Errorf("unable to stat style %s: %w", style, err)
	}
	return nil
}
