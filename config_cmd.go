package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/gitlab-lookup/gitlab-lookup/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# cache settings
cache:
  # storage root (default: the launcher's cache dir, else the per-user one)
  # dir: "~/.cache/gitlab-lookup"
  # how old an entry may get before it is refreshed in the background
  ttl: "60s"
  # how long a first lookup waits for its data
  cold_start_timeout: "5s"
  # zstd-compress entries on disk
  compress: false

# GitLab instance (GITLAB_URL wins); the token comes from GITLAB_TOKEN
gitlab:
  url: "https://gitlab.com"
  requests_per_second: 5
  max_pages: 10

# commands, in addition to GITLAB_ISSUES_<NAME> and GITLAB_MERGE_REQUESTS_<NAME>
commands:
  # - name: "work"
  #   kind: "issues"
  #   project: "my-group/my-project"
  # - name: "core"
  #   kind: "merge-requests"
  #   project: "my-group/core"

# how soon the launcher asks for results again
rerun: "1s"

# TUI settings
tui:
  # style name or JSON path
  style: "auto"
  # word-wrap descriptions at width
  width: 100
  mouse: false
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the gitlab-lookup config file",
	Long:    paragraph(fmt.Sprintf("\n%s the gitlab-lookup config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("gitlab-lookup config\ngitlab-lookup config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd(config.AppName, configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
