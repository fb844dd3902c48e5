package lightgbm

import (
	"sort"
)

// binMapper discretises one feature. Bin k holds values in
// (bounds[k], bounds[k+1]].
type binMapper struct {
	bounds []float64
}

func newBinMapper(values []float64, maxBin int) binMapper {
	return binMapper{bounds: findBinBoundaries(values, maxBin)}
}

func (b binMapper) numBins() int {
	return len(b.bounds) - 1
}

// bin returns the bin of v. Values outside the training range fall into
// the first or last bin.
func (b binMapper) bin(v float64) int {
	i := sort.SearchFloat64s(b.bounds, v) - 1
	return max(0, min(i, b.numBins()-1))
}

// threshold is the split value that sends bins 0..bin left.
func (b binMapper) threshold(bin int) float64 {
	return b.bounds[bin+1]
}

// findBinBoundaries returns at most maxBin+1 increasing boundaries. With few
// distinct values every value gets its own bin; otherwise bins hold roughly
// equal numbers of distinct values and cut halfway between neighbours.
func findBinBoundaries(values []float64, maxBin int) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	unique := []float64{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			unique = append(unique, sorted[i])
		}
	}

	if len(unique) <= maxBin {
		bounds := make([]float64, len(unique)+1)
		for i := 0; i < len(unique); i++ {
			bounds[i] = unique[i] - 1e-10
		}
		bounds[len(unique)] = unique[len(unique)-1] + 1e-10
		return bounds
	}

	bounds := make([]float64, 0, maxBin+1)
	bounds = append(bounds, unique[0]-1e-10)
	for k := 1; k < maxBin; k++ {
		i := k * len(unique) / maxBin
		bounds = append(bounds, (unique[i-1]+unique[i])/2)
	}
	bounds = append(bounds, unique[len(unique)-1]+1e-10)
	return bounds
}
