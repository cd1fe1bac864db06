// Standard attribute keys for pipeline and model-selection logging.
//
// Keys follow a hierarchical naming convention ("model.name",
// "data.samples") so log analysis can filter on them.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies a candidate estimator by its catalog name.
	// Examples: "Random Forest", "Linear Regression"
	ModelNameKey = "model.name"

	// OperationKey specifies the machine learning operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"

	// HyperParamsKey contains the chosen hyperparameters.
	HyperParamsKey = "model.hyperparams"
)

// Pipeline context
const (
	// RunIDKey correlates every record emitted during one pipeline run.
	RunIDKey = "pipeline.run_id"

	// StageKey names the pipeline stage (ingest, transform, train, evaluate).
	StageKey = "pipeline.stage"

	// PathKey records the file an artifact or dataset was read from or written to.
	PathKey = "artifact.path"

	// RequestIDKey correlates records of one HTTP request.
	RequestIDKey = "http.request_id"
)

// Data Shape
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	FoldsKey    = "data.folds"
)

// Performance
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// R2ScoreKey records R² coefficient of determination for regression.
	// Range [-∞, 1.0], with 1.0 being perfect prediction.
	R2ScoreKey = "metrics.r2_score"

	// TrainScoreKey records the R² on the training split (diagnostic only).
	TrainScoreKey = "metrics.train_r2_score"

	// ThresholdKey records the quality threshold a score is compared to.
	ThresholdKey = "metrics.threshold"

	// CombinationsKey records the size of a hyperparameter grid.
	CombinationsKey = "search.combinations"

	// WorkersKey records the size of a worker pool.
	WorkersKey = "infra.workers"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error context
const (
	// ErrorTypeKey categorizes the type of error or warning encountered.
	ErrorTypeKey = "error.type"

	// ErrorKindKey records the error taxonomy kind (io, schema, ...).
	ErrorKindKey = "error.kind"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
