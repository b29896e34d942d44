package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// trailingMean returns the mean of the last n values, or nil if fewer exist.
func trailingMean(values []float64, n int) *float64 {
	if len(values) < n {
		return nil
	}
	w := values[len(values)-n:]
	if isConstant(w) {
		return ptr(w[0])
	}
	// Averaging offsets from the first value keeps the magnitude of the
	// summed terms small.
	offsets := make([]float64, n)
	for i, v := range w {
		offsets[i] = v - w[0]
	}
	m := w[0] + stat.Mean(offsets, nil)
	return &m
}

// trailingStdDev returns the sample standard deviation (n-1 denominator)
// of the last n values, or nil if fewer exist.
func trailingStdDev(values []float64, n int) *float64 {
	if len(values) < n || n < 2 {
		return nil
	}
	w := values[len(values)-n:]
	if isConstant(w) {
		return ptr(0)
	}
	sd := stat.StdDev(w, nil)
	if math.IsNaN(sd) || sd < 0 {
		sd = 0
	}
	return &sd
}

// isConstant reports whether every value in w equals the first one.
func isConstant(w []float64) bool {
	for _, v := range w[1:] {
		if v != w[0] {
			return false
		}
	}
	return true
}

// sortedHistory is an ascending multiset of observations.
type sortedHistory struct {
	values []float64
}

// add inserts v keeping the slice sorted.
func (h *sortedHistory) add(v float64) {
	i := sort.SearchFloat64s(h.values, v)
	h.values = append(h.values, 0)
	copy(h.values[i+1:], h.values[i:])
	h.values[i] = v
}

// quantile uses linear interpolation between closest ranks,
// index = p*(n-1) on the sorted observations.
func (h *sortedHistory) quantile(p float64) float64 {
	sorted := h.values
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func ptr(v float64) *float64 { return &v }
