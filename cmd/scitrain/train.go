package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/scitrain/pipeline"
	"github.com/YuminosukeSato/scitrain/pkg/log"
	"github.com/YuminosukeSato/scitrain/registry"
	"github.com/YuminosukeSato/scitrain/telemetry"
)

func newTrainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Run ingestion, transformation, model selection and evaluation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tracer, shutdown, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
				Endpoint:    a.cfg.Telemetry.OTLPEndpoint,
				ServiceName: a.cfg.Telemetry.ServiceName,
				Insecure:    a.cfg.Telemetry.Insecure,
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					a.logger.Warn("Trace exporter shutdown failed", log.ErrAttrKey, err.Error())
				}
			}()

			p := pipeline.NewTrainingPipeline(a.cfg, a.logger)
			p.Tracer = tracer
			p.Metrics = a.metrics
			if reg := a.openRegistry(ctx); reg != nil {
				defer reg.Close()
				p.Registry = reg
			}

			result, err := p.Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

// openRegistry returns nil when the registry is disabled or unreachable.
func (a *app) openRegistry(ctx context.Context) *registry.Registry {
	rc := a.cfg.Registry
	if rc.DSN == "" {
		return nil
	}
	reg, err := registry.Open(ctx, rc.Driver, rc.DSN)
	if err != nil {
		a.logger.Warn("Run registry unavailable", "driver", rc.Driver, log.ErrAttrKey, err.Error())
		return nil
	}
	return reg
}
