// Package artifact persists fitted estimators and preprocessors.
//
// Artifacts are gob streams compressed with xz. Writes go to a temporary
// file in the target directory and are renamed into place, so a reader
// never observes a partially written artifact.
package artifact

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/pkg/log"
	"github.com/YuminosukeSato/scitrain/preprocessing"
)

// envelope carries the concrete value behind an interface so gob can
// restore it. Concrete types are registered by their own packages.
type envelope struct {
	Value interface{}
}

// Store reads and writes artifacts on the local filesystem.
type Store struct {
	logger log.Logger
}

// NewStore returns a Store. logger may be nil.
func NewStore(logger log.Logger) *Store {
	return &Store{logger: logger}
}

// Save writes v to path.
func (s *Store) Save(path string, v interface{}) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewIOError("mkdir", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.NewIOError("create", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	xw, err := xz.NewWriter(bw)
	if err != nil {
		return errors.NewSerializationError("compress", path, err)
	}
	if err := model.SaveModelToWriter(&envelope{Value: v}, xw); err != nil {
		return errors.NewSerializationError("encode", path, err)
	}
	if err := xw.Close(); err != nil {
		return errors.NewSerializationError("compress", path, err)
	}
	if err := bw.Flush(); err != nil {
		return errors.NewIOError("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewIOError("close", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.NewIOError("rename", path, err)
	}
	if s.logger != nil {
		s.logger.Debug("Artifact saved", log.PathKey, path)
	}
	return nil
}

// Load reads the value stored at path.
func (s *Store) Load(path string) (interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer f.Close()

	xr, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, errors.NewSerializationError("decompress", path, err)
	}
	var env envelope
	if err := model.LoadModelFromReader(&env, xr); err != nil {
		return nil, errors.NewSerializationError("decode", path, err)
	}
	if s.logger != nil {
		s.logger.Debug("Artifact loaded", log.PathKey, path)
	}
	return env.Value, nil
}

// SaveModel persists a fitted estimator.
func (s *Store) SaveModel(path string, est model.Estimator) error {
	return s.Save(path, est)
}

// LoadModel restores an estimator written by SaveModel.
func (s *Store) LoadModel(path string) (model.Estimator, error) {
	v, err := s.Load(path)
	if err != nil {
		return nil, err
	}
	est, ok := v.(model.Estimator)
	if !ok {
		return nil, errors.NewSerializationError("decode", path,
			errors.Newf("artifact holds %T, not an estimator", v))
	}
	return est, nil
}

// SavePreprocessor persists a fitted column transformer.
func (s *Store) SavePreprocessor(path string, ct *preprocessing.ColumnTransformer) error {
	return s.Save(path, ct)
}

// LoadPreprocessor restores a column transformer written by SavePreprocessor.
func (s *Store) LoadPreprocessor(path string) (*preprocessing.ColumnTransformer, error) {
	v, err := s.Load(path)
	if err != nil {
		return nil, err
	}
	ct, ok := v.(*preprocessing.ColumnTransformer)
	if !ok {
		return nil, errors.NewSerializationError("decode", path,
			errors.Newf("artifact holds %T, not a preprocessor", v))
	}
	return ct, nil
}
