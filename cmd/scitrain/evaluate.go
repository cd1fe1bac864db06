package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/scitrain/components/evaluation"
	"github.com/YuminosukeSato/scitrain/core/stage"
)

func newEvaluateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Score the saved model on the held-out split",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pc := a.cfg.Pipeline
			sc := stage.New(uuid.NewString(), a.logger, nil, a.metrics)
			ev := evaluation.New(evaluation.Config{
				Task:                 evaluation.Task(a.cfg.Evaluation.Task),
				PerformanceThreshold: a.cfg.Evaluation.PerformanceThreshold,
				TargetColumn:         pc.TargetColumn,
				PlotPath:             pc.PredictionPlotPath,
			}, sc)
			result, err := ev.Evaluate(cmd.Context(), pc.TestDataPath, pc.ModelPath, pc.PreprocessorPath)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}
