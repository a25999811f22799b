package util

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashStringDependsOnSeed(t *testing.T) {
	assert.Equal(t, HashString("key", 1), HashString("key", 1))
	assert.NotEqual(t, HashString("key", 1), HashString("key", 2))
	assert.NotEqual(t, HashString("key", 1), HashString("kez", 1))
}

func TestNewStats(t *testing.T) {
	assert.Equal(t, Stats{}, NewStats(nil))

	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
	assert.Equal(t, 5.0, s.Mean)
	assert.Equal(t, 2.0, s.StdDeviation)
	assert.InDelta(t, 2.0/9.0, s.MinMaxRatio, 1e-9)
}

func TestDistributionQuality(t *testing.T) {
	assert.Equal(t, 1.0, NewDistributionStats([]float64{10, 10, 10}).DistributionQuality)
	assert.Less(t, NewDistributionStats([]float64{0, 0, 30}).DistributionQuality, 0.5)
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	assert.Equal(t, 0, h.AverageSize())
	assert.Equal(t, 0, h.MedianEstimate())

	var wg sync.WaitGroup
	for i := 1; i <= 4; i++ {
		wg.Add(1)
		go func(size int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				h.AddSample(size * 10)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(100), h.Count())
	assert.Equal(t, 25, h.AverageSize())
	assert.GreaterOrEqual(t, h.MedianEstimate(), 20)
	assert.LessOrEqual(t, h.MedianEstimate(), 30)
	assert.Equal(t, 40, h.Percentile(1))
}
