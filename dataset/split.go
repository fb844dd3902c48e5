package dataset

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/polishequity/analytics/pkg/errors"
	"github.com/polishequity/analytics/schema"
)

// TrainTestSplit partitions v into train and test views with a seeded
// shuffle. Each partition keeps the original row order. The test partition
// holds round(testFraction*n) rows, at least one, and at least one row is
// left for training.
func TrainTestSplit(v *View, testFraction float64, seed uint64) (train, test *View, err error) {
	if !(testFraction > 0 && testFraction < 1) {
		return nil, nil, errors.NewValidationError("test_fraction", "must be in (0, 1)", testFraction)
	}

	records, err := Collect(v.Records())
	if err != nil {
		return nil, nil, err
	}
	n := len(records)
	if n < 2 {
		return nil, nil, errors.NewInsufficientDataError("TrainTestSplit", n, 2)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	r := rand.New(rand.NewPCG(seed, seed))
	r.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	nTest := int(math.Round(testFraction * float64(n)))
	nTest = max(1, min(nTest, n-1))

	testIdx := append([]int(nil), indices[:nTest]...)
	trainIdx := append([]int(nil), indices[nTest:]...)
	sort.Ints(testIdx)
	sort.Ints(trainIdx)

	return &View{records: pick(records, trainIdx)}, &View{records: pick(records, testIdx)}, nil
}

func pick(records []schema.InputRecord, idx []int) []schema.InputRecord {
	out := make([]schema.InputRecord, len(idx))
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}
