package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/scitrain/config"
	"github.com/YuminosukeSato/scitrain/pkg/log"
	"github.com/YuminosukeSato/scitrain/telemetry"
)

// app holds what every subcommand shares.
type app struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	logger   log.Logger
	metrics  *telemetry.Recorder
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "scitrain",
		Short:         "Train, select and serve a tabular regression model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "config/config.yaml", "Path to the YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	root.AddCommand(
		newTrainCmd(a),
		newEvaluateCmd(a),
		newPredictCmd(a),
		newServeCmd(a),
		newRunsCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, warn := config.Load(a.configPath)
	a.cfg = cfg

	levelName := cfg.Logging.Level
	if a.logLevel != "" {
		levelName = a.logLevel
	}
	level, err := log.ParseLevel(levelName)
	if err != nil {
		return err
	}
	logger, closeLog, err := log.Setup(log.Options{
		Level:   level,
		Console: cfg.Logging.Console,
		Dir:     cfg.Logging.Dir,
	})
	if err != nil {
		return err
	}
	a.logger = logger
	a.closeLog = closeLog
	a.metrics = telemetry.NewRecorder()
	log.RouteWarnings(logger)

	if warn != nil {
		logger.Warn("Configuration not loaded, using defaults",
			log.PathKey, a.configPath,
			log.ErrAttrKey, warn.Error(),
		)
	}
	return nil
}

func (a *app) teardown() error {
	if a.closeLog == nil {
		return nil
	}
	return a.closeLog()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
