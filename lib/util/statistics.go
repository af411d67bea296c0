package util

import (
	"math"
)

// ----------------------------------------------------------------------------
// Summary statistics
// ----------------------------------------------------------------------------

// Stats summarises a series of counts, e.g. the keys that landed on each shard
type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats summarises values in a single pass (Welford's update for the variance).
// The deviation is the population deviation. An empty series yields the zero value.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	s := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	var m2 float64
	for i, v := range values {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)

		delta := v - s.Mean
		s.Mean += delta / float64(i+1)
		m2 += delta * (v - s.Mean)
	}
	s.StdDeviation = math.Sqrt(m2 / float64(len(values)))

	// all shards empty counts as perfectly even
	s.MinMaxRatio = 1
	if s.Max > 0 {
		s.MinMaxRatio = s.Min / s.Max
	}
	return s
}

// DistributionStats rates how evenly keys spread over the shards of a cluster
type DistributionStats struct {
	Stats
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats rates the keys per shard between 0 and 1. Half of the score comes
// from the coefficient of variation (capped at 1), half from the smallest to largest shard
// ratio, so 1 means every shard holds the same number of keys and 0 means at least one shard
// is empty while the spread is as large as the mean.
func NewDistributionStats(keysPerShard []float64) DistributionStats {
	stats := NewStats(keysPerShard)

	var variation float64
	if stats.Mean > 0 {
		variation = math.Min(1, stats.StdDeviation/stats.Mean)
	}

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: 0.5*(1-variation) + 0.5*stats.MinMaxRatio,
	}
}

// ----------------------------------------------------------------------------
// Slot distribution
// ----------------------------------------------------------------------------

// ShardOfSlot returns the shard owning slot when slotCount slots are split into shards
// contiguous ranges of (almost) equal size, the way a fresh cluster assigns them.
func ShardOfSlot(slot, slotCount, shards int) int {
	if shards <= 1 || slotCount <= 0 {
		return 0
	}
	return min(slot*shards/slotCount, shards-1)
}

// ShardSizes counts how many of the slots fall on each shard
func ShardSizes(slots []int, slotCount, shards int) []float64 {
	sizes := make([]float64, max(shards, 1))
	for _, slot := range slots {
		sizes[ShardOfSlot(slot, slotCount, shards)]++
	}
	return sizes
}
