// Package ingestion reads the source table, keeps a raw copy and writes the
// deterministic train/test split.
package ingestion

import (
	"context"
	"path/filepath"

	"github.com/YuminosukeSato/scitrain/core/stage"
	"github.com/YuminosukeSato/scitrain/dataset"
	"github.com/YuminosukeSato/scitrain/pkg/log"
)

// Config holds the ingestion paths and split settings.
type Config struct {
	SourcePath    string
	RawDataPath   string
	TrainDataPath string
	TestDataPath  string
	TestSize      float64
	Seed          uint64
}

// DefaultConfig は data/ 以下の既定パスと 80/20・seed 42 の分割を返す
func DefaultConfig() Config {
	return Config{
		SourcePath:    filepath.Join("data", "raw", "data.csv"),
		RawDataPath:   filepath.Join("data", "raw", "data.csv"),
		TrainDataPath: filepath.Join("data", "train.csv"),
		TestDataPath:  filepath.Join("data", "test.csv"),
		TestSize:      0.2,
		Seed:          42,
	}
}

// Output lists the files written by the stage.
type Output struct {
	RawDataPath   string
	TrainDataPath string
	TestDataPath  string
	TrainRows     int
	TestRows      int
}

// Ingestor runs the ingestion stage.
type Ingestor struct {
	cfg    Config
	logger log.Logger
}

// New returns an Ingestor bound to the run context.
func New(cfg Config, sc *stage.Context) *Ingestor {
	return &Ingestor{cfg: cfg, logger: sc.StageLogger(stage.Ingest)}
}

// Ingest reads the source, writes the raw copy, splits and writes both parts.
func (in *Ingestor) Ingest(_ context.Context) (*Output, error) {
	in.logger.Info("Reading source data", log.PathKey, in.cfg.SourcePath)
	frame, err := dataset.ReadCSV(in.cfg.SourcePath)
	if err != nil {
		return nil, err
	}
	in.logger.Debug("Source data loaded",
		log.SamplesKey, frame.Len(),
		log.FeaturesKey, len(frame.Header),
	)

	if err := dataset.WriteCSV(in.cfg.RawDataPath, frame); err != nil {
		return nil, err
	}

	train, test, err := dataset.TrainTestSplit(frame, in.cfg.TestSize, in.cfg.Seed)
	if err != nil {
		return nil, err
	}
	if err := dataset.WriteCSV(in.cfg.TrainDataPath, train); err != nil {
		return nil, err
	}
	if err := dataset.WriteCSV(in.cfg.TestDataPath, test); err != nil {
		return nil, err
	}

	in.logger.Info("Train/test split written",
		log.RandomSeedKey, in.cfg.Seed,
		"train_rows", train.Len(),
		"test_rows", test.Len(),
	)
	return &Output{
		RawDataPath:   in.cfg.RawDataPath,
		TrainDataPath: in.cfg.TrainDataPath,
		TestDataPath:  in.cfg.TestDataPath,
		TrainRows:     train.Len(),
		TestRows:      test.Len(),
	}, nil
}
