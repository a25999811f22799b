package util

import (
	"math"

	gometrics "github.com/rcrowley/go-metrics"
)

// --------------------------------------------------------------------------
// Series statistics
// --------------------------------------------------------------------------

// Stats summarizes a series of values.
type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes Stats over values (population standard deviation). An empty series yields the
// zero value.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	s := Stats{Min: values[0], Max: values[0], MinMaxRatio: 1}
	var sum float64
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = sum / float64(len(values))

	var squares float64
	for _, v := range values {
		squares += (v - s.Mean) * (v - s.Mean)
	}
	s.StdDeviation = math.Sqrt(squares / float64(len(values)))

	if s.Max > 0 {
		s.MinMaxRatio = s.Min / s.Max
	}
	return s
}

// DistributionStats rates how evenly entries are spread, e.g. over the shards of an engine.
type DistributionStats struct {
	Stats
	// DistributionQuality is 1 for a perfectly even spread and approaches 0 for a skewed one.
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats rates the spread of sizes by the coefficient of variation and the min/max
// ratio, weighted equally.
func NewDistributionStats(sizes []float64) DistributionStats {
	stats := NewStats(sizes)
	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}
	return DistributionStats{
		Stats:               stats,
		DistributionQuality: (1-math.Min(1, cv))*0.5 + stats.MinMaxRatio*0.5,
	}
}

// --------------------------------------------------------------------------
// SizeHistogram
// --------------------------------------------------------------------------

// reservoirSize bounds the samples a SizeHistogram keeps.
const reservoirSize = 1028

// SizeHistogram estimates the size distribution of stored entries from a uniform reservoir of
// samples, so engines can report sizes without a full scan.
//
// Thread-safety: all methods are safe for concurrent use.
type SizeHistogram struct {
	h gometrics.Histogram
}

// NewSizeHistogram creates an empty histogram.
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{h: gometrics.NewHistogram(gometrics.NewUniformSample(reservoirSize))}
}

// AddSample records the size of one entry in bytes.
func (h *SizeHistogram) AddSample(size int) {
	h.h.Update(int64(size))
}

// Count returns the number of recorded samples.
func (h *SizeHistogram) Count() int64 {
	return h.h.Count()
}

// AverageSize returns the mean sample size, 0 without samples.
func (h *SizeHistogram) AverageSize() int {
	return int(h.h.Mean())
}

// MedianEstimate returns the median of the sampled sizes, 0 without samples.
func (h *SizeHistogram) MedianEstimate() int {
	return h.Percentile(0.5)
}

// Percentile returns the p-quantile (0..1) of the sampled sizes.
func (h *SizeHistogram) Percentile(p float64) int {
	return int(h.h.Percentile(p))
}
