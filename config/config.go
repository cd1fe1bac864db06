// Package config loads the scitrain configuration.
//
// Values come from a YAML file and can be overridden by SCITRAIN_*
// environment variables, e.g. SCITRAIN_API_PORT=8080 or
// SCITRAIN_PIPELINE_N_JOBS=4. A missing or unreadable file is not fatal:
// Load reports it as a warning and continues with defaults.
package config

import (
	"net"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "SCITRAIN"

// Config is the root of the configuration file.
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

type APIConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Dir     string `mapstructure:"dir"`
	Console bool   `mapstructure:"console"`
}

type PipelineConfig struct {
	SourcePath         string  `mapstructure:"source_path"`
	RawDataPath        string  `mapstructure:"raw_data_path"`
	TrainDataPath      string  `mapstructure:"train_data_path"`
	TestDataPath       string  `mapstructure:"test_data_path"`
	PreprocessorPath   string  `mapstructure:"preprocessor_path"`
	ModelPath          string  `mapstructure:"model_path"`
	TargetColumn       string  `mapstructure:"target_column"`
	TestSize           float64 `mapstructure:"test_size"`
	Seed               uint64  `mapstructure:"seed"`
	NJobs              int     `mapstructure:"n_jobs"`
	CVFolds            int     `mapstructure:"cv_folds"`
	MinimumScore       float64 `mapstructure:"minimum_score"`
	ReportPlotPath     string  `mapstructure:"report_plot_path"`
	PredictionPlotPath string  `mapstructure:"prediction_plot_path"`
}

type EvaluationConfig struct {
	Task                 string  `mapstructure:"task"`
	PerformanceThreshold float64 `mapstructure:"performance_threshold"`
}

// RegistryConfig selects the run history database. An empty DSN disables
// the registry.
type RegistryConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// TelemetryConfig configures trace export. An empty endpoint keeps tracing
// in-process only.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
	Insecure     bool   `mapstructure:"insecure"`
}

// Addr returns host:port for the HTTP server.
func (c APIConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 5000)
	v.SetDefault("api.debug", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dir", "logs")
	v.SetDefault("logging.console", true)

	v.SetDefault("pipeline.source_path", "data/raw/data.csv")
	v.SetDefault("pipeline.raw_data_path", "data/raw/data.csv")
	v.SetDefault("pipeline.train_data_path", "data/train.csv")
	v.SetDefault("pipeline.test_data_path", "data/test.csv")
	v.SetDefault("pipeline.preprocessor_path", "models/preprocessor.gob")
	v.SetDefault("pipeline.model_path", "models/model.gob")
	v.SetDefault("pipeline.target_column", "target")
	v.SetDefault("pipeline.test_size", 0.2)
	v.SetDefault("pipeline.seed", 42)
	v.SetDefault("pipeline.n_jobs", -1)
	v.SetDefault("pipeline.cv_folds", 3)
	v.SetDefault("pipeline.minimum_score", 0.6)
	v.SetDefault("pipeline.report_plot_path", "")
	v.SetDefault("pipeline.prediction_plot_path", "")

	v.SetDefault("evaluation.task", "regression")
	v.SetDefault("evaluation.performance_threshold", 0.6)

	v.SetDefault("registry.driver", "sqlite3")
	v.SetDefault("registry.dsn", "")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "scitrain")
	v.SetDefault("telemetry.insecure", true)
}

func newViper(env bool) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	if env {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}
	return v
}

// Default returns the built-in configuration with environment overrides.
// Overrides that cannot be decoded are ignored.
func Default() *Config {
	if cfg, err := decode(newViper(true)); err == nil {
		return cfg
	}
	cfg, _ := decode(newViper(false))
	return cfg
}

// Load reads path. cfg is never nil; warn is non-nil when the file could
// not be read or decoded, in which case cfg holds the defaults.
func Load(path string) (cfg *Config, warn error) {
	if path == "" {
		return Default(), nil
	}
	v := newViper(true)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Default(), errors.NewIOError("read config", path, err)
	}
	cfg, err := decode(v)
	if err != nil {
		return Default(), errors.NewSchemaError(path, err.Error())
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
