package log

// Model and operation context.
const (
	// ModelNameKey identifies the component being fit, e.g. "MinMaxScaler".
	ModelNameKey = "model.name"

	// OperationKey is one of the Operation* values below.
	OperationKey = "ml.operation"

	// ComponentKey is the logger name set by GetLoggerWithName.
	ComponentKey = "ml.component"

	// PhaseKey is one of the Phase* values below.
	PhaseKey = "ml.phase"

	// RunIDKey carries the pipeline run id.
	RunIDKey = "run.id"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ClassesKey  = "data.classes"
	RowKey      = "data.row"
	ColumnKey   = "data.column"
	PathKey     = "data.path"
)

// Training and evaluation.
const (
	DurationMsKey        = "perf.duration_ms"
	AccuracyKey          = "metrics.accuracy"
	MacroAccuracyKey     = "metrics.macro_accuracy"
	LossKey              = "metrics.loss"
	IterationKey         = "training.iteration"
	TreesKey             = "training.trees"
	LearningRateKey      = "hyperparams.learning_rate"
	NumLeavesKey         = "hyperparams.num_leaves"
	RandomSeedKey        = "config.random_seed"
	BundleVersionKey     = "bundle.version"
	FeatureImportanceKey = "model.feature_importance"
)

// Error context.
const (
	ErrorKey      = "error"
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationEvaluate  = "evaluate"
	OperationLoad      = "load"
	OperationSave      = "save"

	PhaseTraining      = "training"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
