// Package main provides the entry point for the gitlab-lookup CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gitlab-lookup/gitlab-lookup/internal/alfred"
	"github.com/gitlab-lookup/gitlab-lookup/internal/config"
	"github.com/gitlab-lookup/gitlab-lookup/internal/printer"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// Output formats.
const (
	formatAuto   = "auto"
	formatAlfred = "alfred"
	formatText   = "text"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile   string
	outputFormat string
	debug        bool
	cacheDir     string

	rootCmd = &cobra.Command{
		Use:   "gitlab-lookup [COMMAND [QUERY...]]",
		Short: "Look up GitLab issues and merge requests, fast",
		Long: paragraph(
			fmt.Sprintf("\nLook up GitLab issues and merge requests %s.", keyword("from a launcher or the terminal")) +
				"\n\nCommands are defined with GITLAB_ISSUES_<NAME>=<project> and " +
				"GITLAB_MERGE_REQUESTS_<NAME>=<project>, or in the config file. " +
				"Results are served from a local cache that is refreshed in the background.",
		),
		Example: paragraph("gitlab-lookup\ngitlab-lookup work ~bug @jane\ngitlab-lookup --format text core deps"),
		SilenceErrors:    true,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ArbitraryArgs,
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return commandNames(), cobra.ShellCompDirectiveNoFileComp
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	// grab config values from Viper
	outputFormat = viper.GetString("format")
	debug = viper.GetBool("debug")
	cacheDir = viper.GetString("cache.dir")

	switch outputFormat {
	case formatAuto, formatAlfred, formatText:
	default:
		return fmt.Errorf("invalid format %q: use %s, %s or %s", outputFormat, formatAuto, formatAlfred, formatText)
	}
	if outputFormat == formatAuto {
		outputFormat = detectFormat()
	}

	if err := setupLog(debug); err != nil {
		log.Warn("Could not set up log file", "error", err)
	}

	if viper.GetDuration("cache.ttl") < 0 {
		return errors.New("cache.ttl cannot be negative")
	}
	if viper.GetDuration("cache.cold_start_timeout") < 0 {
		return errors.New("cache.cold_start_timeout cannot be negative")
	}
	return nil
}

// detectFormat picks the launcher format unless a person is looking at the
// output.
func detectFormat() string {
	if os.Getenv("alfred_version") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		return formatAlfred
	}
	return formatText
}

func execute(_ *cobra.Command, args []string) error {
	items, err := runLookup(strings.Join(args, " "))
	if err != nil {
		log.Error("lookup failed", "args", args, "error", err)
	}
	return writeResult(os.Stdout, outputFormat, items, err)
}

func runLookup(query string) ([]alfred.Item, error) {
	a, err := newApp(processSpawner())
	if err != nil {
		return nil, err
	}
	return a.lookup.Run(context.Background(), query)
}

// writeResult reports items, or err, in the given format. In the launcher
// format errors are shown as an item, so they are not returned.
func writeResult(w io.Writer, format string, items []alfred.Item, err error) error {
	if format == formatAlfred {
		if err != nil {
			items = []alfred.Item{alfred.ErrorItem(err)}
		}
		return alfred.Output{Rerun: rerunInterval(), Items: items}.Write(w)
	}

	if err != nil {
		return err
	}
	return printer.New(w, terminalWidth(w)).Print(items)
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		printer.New(os.Stderr, 0).PrintError(err) //nolint:errcheck
	}
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", formatAuto, "output format: auto, alfred or text")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "cache directory (default: the launcher's, else the per-user cache dir)")

	// Config bindings
	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("cache.dir", rootCmd.PersistentFlags().Lookup("cache-dir"))

	viper.SetDefault("format", formatAuto)
	viper.SetDefault("rerun", alfred.DefaultRerun)
	viper.SetDefault("cache.ttl", "60s")
	viper.SetDefault("cache.cold_start_timeout", "5s")
	viper.SetDefault("cache.compress", false)
	viper.SetDefault("gitlab.requests_per_second", 5)
	viper.SetDefault("gitlab.max_pages", 10)
	viper.SetDefault("tui.style", "auto")
	viper.SetDefault("tui.width", 100)
	viper.SetDefault("tui.mouse", false)

	rootCmd.AddCommand(configCmd, manCmd, refreshCmd, tuiCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, config.AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, config.AppName)}, dirs...)
	}

	if c := os.Getenv("GITLAB_LOOKUP_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("gitlab_lookup")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	// Created on demand by the config command.
	configFile = filepath.Join(dirs[0], config.AppName+".yml")
}
