package series

import (
	"fmt"
	"strings"
	"time"

	"github.com/Cyph1x/PowerContribution/pkg/provider"
)

// Civil timestamp layouts seen across provider exports.
var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
}

// Normalizer converts raw provider readings into canonical series: UTC
// epoch-second timestamps floored to BucketSeconds, values in kWh,
// deduplicated, sorted.
type Normalizer struct {
	BucketSeconds int64
	// Location interprets civil timestamps. Providers report in the
	// account's local time, which differs per provider and account, so the
	// zone is explicit configuration rather than process-global state.
	Location *time.Location
}

// Normalize groups readings by channel and bucket. Multiple sub-readings
// inside one bucket are summed (consumption is additive); readings carrying
// the exact same pre-bucket timestamp on a channel are chunk-overlap
// duplicates and only the first is kept, since a meter reading never changes
// retroactively. An empty input yields an empty set.
func (n Normalizer) Normalize(readings []provider.RawReading) (ChannelSet, error) {
	if n.BucketSeconds <= 0 {
		return nil, fmt.Errorf("normalize: bucket size must be positive, got %d", n.BucketSeconds)
	}
	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}

	buckets := make(map[string]map[int64]float64)
	seen := make(map[string]map[int64]bool)

	for _, r := range readings {
		ts, err := n.instant(r, loc)
		if err != nil {
			return nil, err
		}
		kwh, err := toKWh(r)
		if err != nil {
			return nil, err
		}

		if seen[r.Channel] == nil {
			seen[r.Channel] = make(map[int64]bool)
			buckets[r.Channel] = make(map[int64]float64)
		}
		if seen[r.Channel][ts] {
			continue
		}
		seen[r.Channel][ts] = true

		bucket := ts / n.BucketSeconds * n.BucketSeconds
		// Negative timestamps floor toward the earlier boundary.
		if ts < 0 && ts%n.BucketSeconds != 0 {
			bucket -= n.BucketSeconds
		}
		buckets[r.Channel][bucket] += kwh
	}

	out := make(ChannelSet, len(buckets))
	for channel, values := range buckets {
		out[channel] = FromMap(values)
	}
	return out, nil
}

func (n Normalizer) instant(r provider.RawReading, loc *time.Location) (int64, error) {
	if r.LocalTimestamp == "" {
		return r.Unix, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, r.LocalTimestamp, loc); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, &provider.SchemaError{
		Provider: "normalize",
		Reason:   fmt.Sprintf("unparseable timestamp %q on channel %q", r.LocalTimestamp, r.Channel),
	}
}

func toKWh(r provider.RawReading) (float64, error) {
	switch strings.ToLower(r.Unit) {
	case "", "kwh":
		return r.Value, nil
	case "wh":
		return r.Value / 1000, nil
	default:
		return 0, &provider.SchemaError{
			Provider: "normalize",
			Reason:   fmt.Sprintf("unknown read unit %q on channel %q", r.Unit, r.Channel),
		}
	}
}
