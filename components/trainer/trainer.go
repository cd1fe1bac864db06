package trainer

import (
	"context"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/artifact"
	"github.com/YuminosukeSato/scitrain/catalog"
	"github.com/YuminosukeSato/scitrain/core/stage"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/pkg/log"
	"github.com/YuminosukeSato/scitrain/report"
	"github.com/YuminosukeSato/scitrain/telemetry"
)

const (
	// MinimumScore is the test R² the best candidate must reach to be saved.
	MinimumScore = 0.6

	// nearTieTolerance flags scores that differ from the best by rounding
	// noise only. They are logged, never used to change the winner.
	nearTieTolerance = 1e-12
)

// Split is the transformed train/test pair. The last column of each
// matrix is the target.
type Split struct {
	Train *mat.Dense
	Test  *mat.Dense
}

// TrainXY returns the training features and target.
func (s Split) TrainXY() (X, y *mat.Dense, err error) {
	return separate(s.Train, "train")
}

// TestXY returns the test features and target.
func (s Split) TestXY() (X, y *mat.Dense, err error) {
	return separate(s.Test, "test")
}

func separate(m *mat.Dense, name string) (*mat.Dense, *mat.Dense, error) {
	if m == nil || m.IsEmpty() {
		return nil, nil, errors.NewValueError("Split", name+" array is empty")
	}
	r, c := m.Dims()
	if c < 2 {
		return nil, nil, errors.NewValueError("Split", name+" array needs at least one feature column and the target")
	}
	X := mat.DenseCopyOf(m.Slice(0, r, 0, c-1))
	y := mat.DenseCopyOf(m.Slice(0, r, c-1, c))
	return X, y, nil
}

// Config controls the trainer.
type Config struct {
	ModelPath    string
	MinimumScore float64
	// NJobs sizes the grid-search pool, <= 0 uses every CPU.
	NJobs int
	Folds int
	// ReportPlotPath, when set, receives a bar chart of the test scores.
	ReportPlotPath string
}

// DefaultConfig returns models/model.gob, the 0.6 gate and three folds.
func DefaultConfig() Config {
	return Config{
		ModelPath:    filepath.Join("models", "model.gob"),
		MinimumScore: MinimumScore,
		NJobs:        -1,
		Folds:        DefaultFolds,
	}
}

// Outcome is the result of a successful Train call.
type Outcome struct {
	BestName  string
	BestScore float64
	Report    *Report
	ModelPath string
}

// Trainer selects and persists the best candidate.
type Trainer struct {
	cfg     Config
	engine  *Engine
	store   *artifact.Store
	logger  log.Logger
	metrics *telemetry.Recorder
}

// New returns a Trainer bound to the run context.
func New(cfg Config, store *artifact.Store, sc *stage.Context) *Trainer {
	if cfg.MinimumScore == 0 {
		cfg.MinimumScore = MinimumScore
	}
	logger := sc.StageLogger(stage.Train)
	engine := NewEngine(cfg.NJobs, logger)
	if cfg.Folds > 0 {
		engine.Folds = cfg.Folds
	}
	engine.Tracer = sc.Tracer
	return &Trainer{
		cfg:     cfg,
		engine:  engine,
		store:   store,
		logger:  logger,
		metrics: sc.Metrics,
	}
}

// SelectBest returns the first entry, in catalog order, whose test score
// equals the maximum. NaN scores never win. ok is false when no entry has
// a comparable score. nearTies lists other entries within rounding noise
// of the winner.
func SelectBest(r *Report) (best ReportEntry, nearTies []string, ok bool) {
	idx := -1
	for i, e := range r.Entries {
		if math.IsNaN(e.TestScore) {
			continue
		}
		if idx < 0 || e.TestScore > r.Entries[idx].TestScore {
			idx = i
		}
	}
	if idx < 0 {
		return ReportEntry{}, nil, false
	}
	best = r.Entries[idx]
	for i, e := range r.Entries {
		if i == idx || e.TestScore == best.TestScore {
			continue
		}
		if math.Abs(e.TestScore-best.TestScore) <= nearTieTolerance {
			nearTies = append(nearTies, e.Name)
		}
	}
	return best, nearTies, true
}

// Train evaluates every candidate, applies the quality gate and writes the
// winner to ModelPath. When the best test R² is below MinimumScore an
// InsufficientPerformanceError is returned and nothing is written.
func (t *Trainer) Train(ctx context.Context, split Split, candidates []catalog.Candidate) (*Outcome, error) {
	if len(candidates) == 0 {
		return nil, errors.NewValueError("Trainer.Train", "no candidates")
	}
	trainX, trainY, err := split.TrainXY()
	if err != nil {
		return nil, err
	}
	testX, testY, err := split.TestXY()
	if err != nil {
		return nil, err
	}
	n, p := trainX.Dims()
	t.logger.Info("Model selection started",
		log.SamplesKey, n,
		log.FeaturesKey, p,
		"candidates", catalog.Names(candidates),
	)

	rep, err := t.engine.Evaluate(ctx, trainX, trainY, testX, testY, candidates)
	if err != nil {
		return nil, err
	}
	for _, e := range rep.Entries {
		t.metrics.SetCandidateScore(e.Name, e.TestScore)
	}
	t.plotReport(rep)

	best, nearTies, ok := SelectBest(rep)
	if !ok {
		return nil, errors.NewModelError("Trainer.Train", "no comparable scores",
			errors.Newf("%d candidates produced NaN scores", len(rep.Entries)))
	}
	if len(nearTies) > 0 {
		t.logger.Warn("Candidates tie with the best score within rounding noise",
			log.ModelNameKey, best.Name,
			"near_ties", nearTies,
		)
	}
	t.logger.Info("Best model selected",
		log.ModelNameKey, best.Name,
		log.R2ScoreKey, best.TestScore,
		log.HyperParamsKey, best.BestParams,
	)

	if best.TestScore < t.cfg.MinimumScore {
		return nil, errors.NewInsufficientPerformanceError(best.Name, best.TestScore, t.cfg.MinimumScore)
	}

	winner := candidates[indexOf(rep, best.Name)].Estimator
	recomputed, err := score(winner, testX, testY)
	if err != nil {
		return nil, errors.NewModelError("Trainer.Train", best.Name, err)
	}
	if recomputed != best.TestScore {
		return nil, errors.NewModelError("Trainer.Train", "score mismatch",
			errors.Newf("%s: recorded %v, recomputed %v", best.Name, best.TestScore, recomputed))
	}

	if err := t.store.SaveModel(t.cfg.ModelPath, winner); err != nil {
		return nil, err
	}
	t.logger.Info("Best model saved", log.ModelNameKey, best.Name, log.PathKey, t.cfg.ModelPath)

	return &Outcome{
		BestName:  best.Name,
		BestScore: best.TestScore,
		Report:    rep,
		ModelPath: t.cfg.ModelPath,
	}, nil
}

func (t *Trainer) plotReport(rep *Report) {
	if t.cfg.ReportPlotPath == "" {
		return
	}
	if err := report.PlotModelReport(rep.Names(), rep.TestScores(), t.cfg.ReportPlotPath); err != nil {
		t.logger.Warn("Model report chart failed", log.PathKey, t.cfg.ReportPlotPath, log.ErrAttrKey, err.Error())
		return
	}
	t.logger.Debug("Model report chart written", log.PathKey, t.cfg.ReportPlotPath)
}

func indexOf(r *Report, name string) int {
	for i, e := range r.Entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}
