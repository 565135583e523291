// Package series holds the canonical time-series types and the
// normalization and reconciliation steps that turn provider readings into
// per-channel usage and cost.
package series

import "sort"

// Sample is one bucket-aligned consumption value.
type Sample struct {
	Unix int64
	KWh  float64
}

// Series is an ordered run of samples. Within a series timestamps are
// strictly increasing and aligned to the series' bucket size.
type Series []Sample

// ChannelSet maps a channel name (meter register, device nickname, or the
// derived residual label) to its series.
type ChannelSet map[string]Series

// FromMap builds a sorted Series from a timestamp→kWh map.
func FromMap(values map[int64]float64) Series {
	if len(values) == 0 {
		return nil
	}
	out := make(Series, 0, len(values))
	for ts, v := range values {
		out = append(out, Sample{Unix: ts, KWh: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Unix < out[j].Unix })
	return out
}

// ToMap is the inverse of FromMap.
func (s Series) ToMap() map[int64]float64 {
	out := make(map[int64]float64, len(s))
	for _, sample := range s {
		out[sample.Unix] = sample.KWh
	}
	return out
}

// Timestamps returns the ordered timestamp index of the series.
func (s Series) Timestamps() []int64 {
	out := make([]int64, len(s))
	for i, sample := range s {
		out[i] = sample.Unix
	}
	return out
}

// Clip returns the samples inside the inclusive [start, end] window.
func (s Series) Clip(start, end int64) Series {
	lo := sort.Search(len(s), func(i int) bool { return s[i].Unix >= start })
	hi := sort.Search(len(s), func(i int) bool { return s[i].Unix > end })
	if lo >= hi {
		return nil
	}
	return s[lo:hi]
}

// Sum returns total consumption across the series.
func (s Series) Sum() float64 {
	var total float64
	for _, sample := range s {
		total += sample.KWh
	}
	return total
}

// Mean returns average consumption per bucket, 0 for an empty series.
func (s Series) Mean() float64 {
	if len(s) == 0 {
		return 0
	}
	return s.Sum() / float64(len(s))
}
