package model

import (
	"sync"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// StateManager manages the fitted state of a model in a thread-safe manner.
// Estimators hold it as an exported field so gob persists it with them.
type StateManager struct {
	Fitted bool // Public for gob encoding
	mu     sync.RWMutex

	// Metadata recorded at Fit time - Public for gob encoding
	NFeatures int
	NSamples  int
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// MarkFitted records the training shape and marks the model as fitted.
func (s *StateManager) MarkFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}

// RequireFitted returns a NotFittedError unless the model has been fitted,
// and a DimensionError when X's width differs from the training width.
func (s *StateManager) RequireFitted(modelName, method string, nFeatures int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.Fitted {
		return errors.NewNotFittedError(modelName, method)
	}
	if nFeatures != s.NFeatures {
		return errors.NewDimensionError(modelName+"."+method, s.NFeatures, nFeatures, 1)
	}
	return nil
}
