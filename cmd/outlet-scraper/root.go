package main

import (
	"log/slog"
	"strings"

	"github.com/maltedev/outlet-scraper/internal/config"
	"github.com/maltedev/outlet-scraper/pkg/logger"
	"github.com/spf13/cobra"
)

const appName = "outlet-scraper"

// app carries what PersistentPreRunE prepared for the subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	logLevel  string
	logFormat string
	outputDir string
	sinks     string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Capture outlet pages and extract their product tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "log format (json, text)")
	flags.StringVar(&a.outputDir, "output-dir", "", "directory for data.json, section.png and section.html")
	flags.StringVar(&a.sinks, "sinks", "", "comma separated sinks (file, sqlite, postgres)")

	root.AddCommand(
		newCaptureCmd(a),
		newExtractCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return a.fail("failed to load config", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	if flags.Changed("output-dir") {
		cfg.Target.OutputDir = a.outputDir
	}
	if flags.Changed("sinks") {
		cfg.Storage.Sinks = splitList(a.sinks)
	}

	a.logger = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(a.logger)

	if err := cfg.Validate(); err != nil {
		return a.fail("invalid config", err)
	}
	a.cfg = cfg
	return nil
}

// fail logs err and hands it back so cobra exits non-zero.
func (a *app) fail(msg string, err error) error {
	l := a.logger
	if l == nil {
		l = slog.Default()
	}
	l.Error(msg, "error", err)
	return err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
