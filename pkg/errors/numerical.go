package errors

import (
	"math"
	"strconv"
)

// CheckFinite returns a ValueError naming op when any value is NaN or Inf.
func CheckFinite(op string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewValueError(op, "non-finite value at index "+strconv.Itoa(i))
		}
	}
	return nil
}

// ClipValue clips a value to the range [lo, hi].
func ClipValue(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// LogSumExp computes log(sum(exp(values))) without overflow.
func LogSumExp(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(-1)
	}

	maxVal := values[0]
	for _, v := range values[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	if math.IsInf(maxVal, -1) {
		return math.Inf(-1)
	}

	sum := 0.0
	for _, v := range values {
		sum += math.Exp(v - maxVal)
	}
	return maxVal + math.Log(sum)
}

// Softmax writes the softmax of raw into out and returns out. out may alias raw.
func Softmax(raw, out []float64) []float64 {
	lse := LogSumExp(raw)
	for i, v := range raw {
		out[i] = math.Exp(v - lse)
	}
	return out
}
