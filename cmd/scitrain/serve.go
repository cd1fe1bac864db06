package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/scitrain/pipeline"
	"github.com/YuminosukeSato/scitrain/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pc := a.cfg.Pipeline
			pp := pipeline.NewPredictPipeline(pc.ModelPath, pc.PreprocessorPath, a.logger)
			srv := server.New(pp, a.logger, a.metrics)
			a.logger.Info("Starting prediction API",
				"addr", a.cfg.API.Addr(),
				"debug", a.cfg.API.Debug,
			)
			return srv.ListenAndServe(ctx, a.cfg.API.Addr())
		},
	}
}
