// Package scitrain trains, selects and serves a tabular regression model.
//
// A training run moves a CSV through four stages. Each stage reads the
// previous stage's artifacts from disk:
//
//   - ingest: copy the source CSV and split it 80/20 into train and test files
//   - transform: impute, scale and one-hot encode the features, then persist the preprocessor
//   - train: grid-search every catalog candidate and keep the best one if its R² is at least 0.6
//   - evaluate: score the saved model on the held-out test file
//
// The resulting model and preprocessor are loaded by the prediction pipeline,
// which backs both the HTTP server and the `scitrain predict` command.
//
// # Quick Start
//
//	scitrain train --config config/config.yaml
//	scitrain predict --input rows.json
//	scitrain serve
//
// # Packages
//
//   - cmd/scitrain: cobra CLI (train, evaluate, predict, serve, runs)
//   - pipeline: training and prediction pipelines
//   - components/...: ingestion, transformation, trainer and evaluation stages
//   - catalog: the fixed list of candidate estimators and their search spaces
//   - sklearn/...: estimators (linear_model, tree, ensemble, lightgbm) and model_selection
//   - preprocessing, dataset, metrics: the numeric building blocks
//   - artifact, registry: model persistence and the run history database
//   - server: HTTP inference API
//   - config, telemetry, report: configuration, metrics/tracing and plots
//   - core/..., pkg/...: estimator contracts, stage runner, errors and logging
package scitrain
