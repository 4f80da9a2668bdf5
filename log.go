package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/gitlab-lookup/gitlab-lookup/internal/config"
)

var (
	logFile *os.File

	// logFallback receives logs when there is no log file.
	logFallback io.Writer = os.Stderr
)

func getLogFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.CacheDir, config.AppName+".log")
}

// setupLog sends logs to a file in the cache directory, and to stderr too
// when debugging. stdout carries results only.
func setupLog(debug bool) (err error) {
	log.SetOutput(io.Discard)
	defer func() {
		if err != nil {
			log.SetOutput(logFallback)
		}
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	debug = debug || cfg.Debug

	path := getLogFilePath(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return err
	}
	_ = closeLog()
	logFile = f

	var w io.Writer = f
	level := log.InfoLevel
	if debug {
		w = io.MultiWriter(f, os.Stderr)
		level = log.DebugLevel
	}
	log.SetOutput(w)
	log.SetLevel(level)
	log.SetReportTimestamp(true)
	return nil
}

func closeLog() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}
