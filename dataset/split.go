package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// TrainTestSplit shuffles the rows of f with a PCG source seeded by seed and
// returns (train, test). The test part holds ceil(testSize*n) rows. The same
// frame, testSize and seed always yield the same partition.
func TrainTestSplit(f *Frame, testSize float64, seed uint64) (*Frame, *Frame, error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	n := f.Len()
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			"not enough rows to split: need at least one training and one test row")
	}

	r := rand.New(rand.NewPCG(seed, seed))
	perm := r.Perm(n)

	return f.Subset(perm[nTest:]), f.Subset(perm[:nTest]), nil
}
