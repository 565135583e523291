package series

import (
	"fmt"
	"sort"
)

// ReconcileConfig names the channels taking part in the residual
// computation. Which raw channel is the gross metered total is deployment
// configuration, never inferred from channel names.
type ReconcileConfig struct {
	// Gross is the whole-premise metered channel the known loads are
	// subtracted from.
	Gross string
	// Known lists the individually metered load channels.
	Known []string
	// Residual is the name given to the derived leftover channel. The gross
	// channel is replaced by it: keeping both would double count.
	Residual string
	// Rename maps raw channel names to report names, applied last.
	Rename map[string]string
	// Offsets adds a constant kWh per bucket to a channel before the
	// subtraction, for known-but-unmetered appliances.
	Offsets map[string]float64
}

// Reconcile aligns all series on the union of their timestamps, fills gaps
// with zero (a missing reading is zero consumption, not missing data),
// applies offsets, and derives the residual channel pointwise as
// gross − Σ(known). Every series in the result shares the same index.
func Reconcile(set ChannelSet, cfg ReconcileConfig) (ChannelSet, error) {
	if _, ok := set[cfg.Gross]; !ok {
		return nil, fmt.Errorf("reconcile: gross channel %q not present", cfg.Gross)
	}
	for _, name := range cfg.Known {
		if _, ok := set[name]; !ok {
			return nil, fmt.Errorf("reconcile: known load channel %q not present", name)
		}
	}
	if cfg.Residual == "" {
		return nil, fmt.Errorf("reconcile: residual channel name is empty")
	}
	if _, ok := set[cfg.Residual]; ok && cfg.Residual != cfg.Gross {
		return nil, fmt.Errorf("reconcile: residual name %q collides with an input channel", cfg.Residual)
	}

	index := unionIndex(set)

	aligned := make(map[string]map[int64]float64, len(set))
	for channel, s := range set {
		values := s.ToMap()
		filled := make(map[int64]float64, len(index))
		offset := cfg.Offsets[channel]
		for _, ts := range index {
			filled[ts] = values[ts] + offset
		}
		aligned[channel] = filled
	}

	residual := aligned[cfg.Gross]
	for _, name := range cfg.Known {
		known := aligned[name]
		for _, ts := range index {
			residual[ts] -= known[ts]
		}
	}
	delete(aligned, cfg.Gross)
	aligned[cfg.Residual] = residual

	out := make(ChannelSet, len(aligned))
	for channel, values := range aligned {
		name := channel
		if renamed, ok := cfg.Rename[channel]; ok {
			name = renamed
		}
		out[name] = FromMap(values)
	}
	return out, nil
}

func unionIndex(set ChannelSet) []int64 {
	union := make(map[int64]struct{})
	for _, s := range set {
		for _, sample := range s {
			union[sample.Unix] = struct{}{}
		}
	}
	index := make([]int64, 0, len(union))
	for ts := range union {
		index = append(index, ts)
	}
	sort.Slice(index, func(i, j int) bool { return index[i] < index[j] })
	return index
}

// Usage is the billing-window reduction of one channel.
type Usage struct {
	TotalKWh float64
	MeanKWh  float64
	Cost     float64
}

// Summarize restricts every channel to the inclusive [start, end] window
// and reduces it: total, per-bucket mean, and total × the channel's per-kWh
// rate. Channels without a configured rate cost zero.
func Summarize(set ChannelSet, start, end int64, rates map[string]float64) map[string]Usage {
	out := make(map[string]Usage, len(set))
	for channel, s := range set {
		window := s.Clip(start, end)
		usage := Usage{
			TotalKWh: window.Sum(),
			MeanKWh:  window.Mean(),
		}
		usage.Cost = usage.TotalKWh * rates[channel]
		out[channel] = usage
	}
	return out
}
