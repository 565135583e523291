package tplink

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyph1x/PowerContribution/pkg/provider"
	"github.com/Cyph1x/PowerContribution/pkg/series"
)

// hourlyChunk answers one get_energy_data call with `count` hourly values
// starting at the requested window start. Values encode the serving chunk
// and position so tests can tell observations apart.
func hourlyChunk(count int) func(params map[string]any, chunkIndex int) string {
	return func(params map[string]any, chunkIndex int) string {
		start := int64(params["start_timestamp"].(float64))
		data := make([]float64, count)
		for i := range data {
			data[i] = float64(chunkIndex*1000 + i)
		}
		out, _ := json.Marshal(map[string]any{
			"energy_data": map[string]any{
				"start_timestamp": start,
				"end_timestamp":   start + int64(count)*3600,
				"interval":        60,
				"data":            data,
			},
		})
		return string(out)
	}
}

func TestEnergyDataHourly(t *testing.T) {
	cloud := newTestCloud(t)
	cloud.usageRespond = hourlyChunk(24)
	client := cloud.login(t)

	start := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3)

	readings, err := client.EnergyData(context.Background(), "thing-1", "heater", start, end, GranularityHourly, time.UTC)
	require.NoError(t, err)

	// One request per day, 24 hourly values each.
	require.Len(t, cloud.usageRequests, 3)
	require.Len(t, readings, 72)

	assert.Equal(t, float64(start.Unix()), cloud.usageRequests[0]["start_timestamp"])
	assert.Equal(t, float64(60), cloud.usageRequests[0]["interval"])

	seen := make(map[int64]bool)
	for _, r := range readings {
		assert.Equal(t, "heater", r.Channel)
		assert.Equal(t, provider.UnitWh, r.Unit)
		assert.False(t, seen[r.Unix], "timestamp %d reported twice", r.Unix)
		seen[r.Unix] = true
	}
	assert.Equal(t, start.Unix(), readings[0].Unix)
	assert.Equal(t, end.Add(-time.Hour).Unix(), readings[71].Unix)
}

func TestEnergyDataOverlapDedup(t *testing.T) {
	// Each chunk spills one hour into the next day; the normalizer keeps the
	// first observation of the shared instant.
	cloud := newTestCloud(t)
	cloud.usageRespond = hourlyChunk(25)
	client := cloud.login(t)

	start := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3)

	readings, err := client.EnergyData(context.Background(), "thing-1", "heater", start, end, GranularityHourly, time.UTC)
	require.NoError(t, err)
	require.Len(t, readings, 75)

	set, err := series.Normalizer{BucketSeconds: 3600}.Normalize(readings)
	require.NoError(t, err)
	require.Len(t, set["heater"], 73)

	// Hour 24 was reported by both chunk 1 (value 1024 Wh) and chunk 2
	// (value 2000 Wh); chunk 1 wins.
	byTime := set["heater"].ToMap()
	assert.InDelta(t, 1.024, byTime[start.Unix()+24*3600], 1e-9)
}

func TestEnergyDataDaily(t *testing.T) {
	cloud := newTestCloud(t)
	cloud.usageRespond = func(params map[string]any, chunkIndex int) string {
		start := int64(params["start_timestamp"].(float64))
		assert.Equal(t, float64(1440), params["interval"])
		out, _ := json.Marshal(map[string]any{
			"energy_data": map[string]any{
				"start_timestamp": start,
				"end_timestamp":   start + 2*86400,
				"interval":        1440,
				"data":            []float64{5000, 6000},
			},
		})
		return string(out)
	}
	client := cloud.login(t)

	start := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	readings, err := client.EnergyData(context.Background(), "thing-1", "heater", start, end, GranularityDaily, time.UTC)
	require.NoError(t, err)

	// One month-aligned window covers the whole range.
	require.Len(t, cloud.usageRequests, 1)
	require.Len(t, readings, 2)

	feb1 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC).Unix()
	assert.Equal(t, feb1, readings[0].Unix)
	assert.Equal(t, feb1+86400, readings[1].Unix)
}

func TestEnergyDataErrors(t *testing.T) {
	t.Run("UnknownGranularity", func(t *testing.T) {
		cloud := newTestCloud(t)
		client := cloud.login(t)

		_, err := client.EnergyData(context.Background(), "thing-1", "heater", time.Now().Add(-time.Hour), time.Now(), "weekly", time.UTC)
		require.Error(t, err)
	})

	t.Run("NotLoggedIn", func(t *testing.T) {
		client := NewClient(nil)
		_, err := client.EnergyData(context.Background(), "thing-1", "heater", time.Now().Add(-time.Hour), time.Now(), GranularityHourly, time.UTC)

		var aerr *provider.AuthError
		require.ErrorAs(t, err, &aerr)
	})

	t.Run("ClientErrorNotRetried", func(t *testing.T) {
		cloud := newTestCloud(t)
		cloud.usageStatus = http.StatusNotFound
		client := cloud.login(t)

		start := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
		_, err := client.EnergyData(context.Background(), "thing-1", "heater", start, start.AddDate(0, 0, 1), GranularityHourly, time.UTC)

		var fetchErr *provider.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, http.StatusNotFound, fetchErr.Status)
		assert.Len(t, cloud.usageRequests, 1)
	})

	t.Run("MissingEnergyData", func(t *testing.T) {
		cloud := newTestCloud(t)
		cloud.usageRespond = func(map[string]any, int) string { return `{"ok":true}` }
		client := cloud.login(t)

		start := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
		_, err := client.EnergyData(context.Background(), "thing-1", "heater", start, start.AddDate(0, 0, 1), GranularityHourly, time.UTC)

		var schemaErr *provider.SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Contains(t, schemaErr.Missing, "energy_data")
	})
}
