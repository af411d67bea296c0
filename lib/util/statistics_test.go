package util

import (
	"math"
	"reflect"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewStats(t *testing.T) {
	stats := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if !almostEqual(stats.Mean, 5) || stats.Min != 2 || stats.Max != 9 {
		t.Errorf("stats = %+v", stats)
	}
	if !almostEqual(stats.StdDeviation, 2) {
		t.Errorf("std deviation = %f, want 2", stats.StdDeviation)
	}
	if !almostEqual(stats.MinMaxRatio, 2.0/9.0) {
		t.Errorf("min/max ratio = %f", stats.MinMaxRatio)
	}

	single := NewStats([]float64{7})
	if single.Mean != 7 || single.StdDeviation != 0 || single.MinMaxRatio != 1 {
		t.Errorf("NewStats([7]) = %+v", single)
	}

	if got := NewStats(nil); got != (Stats{}) {
		t.Errorf("NewStats(nil) = %+v", got)
	}
}

func TestNewDistributionStats(t *testing.T) {
	tests := []struct {
		name  string
		sizes []float64
		want  float64
	}{
		{"even", []float64{10, 10, 10, 10}, 1},
		{"one empty shard", []float64{0, 10}, 0},
		{"all empty", []float64{0, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewDistributionStats(tt.sizes).DistributionQuality
			if !almostEqual(got, tt.want) {
				t.Errorf("quality = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestShardSizes(t *testing.T) {
	tests := []struct {
		slot, shards, want int
	}{
		{0, 3, 0},
		{5460, 3, 0},
		{5462, 3, 1},
		{16383, 3, 2},
		{100, 1, 0},
		{100, 0, 0},
	}
	for _, tt := range tests {
		if got := ShardOfSlot(tt.slot, 16384, tt.shards); got != tt.want {
			t.Errorf("ShardOfSlot(%d, %d) = %d, want %d", tt.slot, tt.shards, got, tt.want)
		}
	}

	got := ShardSizes([]int{0, 1, 16383, 8192}, 16384, 2)
	if want := []float64{2, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("ShardSizes = %v, want %v", got, want)
	}
}
