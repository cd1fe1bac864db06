package main

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/scitrain/pipeline"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

func newPredictCmd(a *app) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the records of a JSON file",
		Long: `Predict the records of a JSON file. The file holds one object,
an array of objects, or {"data": [...]} as accepted by /batch_predict.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(input)
			if err != nil {
				return errors.NewIOError("read", input, err)
			}
			records, err := decodeRecords(raw)
			if err != nil {
				return errors.NewSchemaError(input, err.Error())
			}
			pp := pipeline.NewPredictPipeline(a.cfg.Pipeline.ModelPath, a.cfg.Pipeline.PreprocessorPath, a.logger)
			preds, err := pp.Predict(cmd.Context(), records)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"predictions": preds,
				"count":       len(preds),
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "JSON file with the records to predict")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func decodeRecords(raw []byte) ([]map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty input")
	}
	if trimmed[0] == '[' {
		var records []map[string]interface{}
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	if _, ok := obj["data"]; ok && len(obj) == 1 {
		var batch struct {
			Data []map[string]interface{} `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, err
		}
		return batch.Data, nil
	}
	return []map[string]interface{}{obj}, nil
}
