// Package report renders the billing-window summary as text, PDF or XLSX.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Cyph1x/PowerContribution/pkg/series"
)

type ChannelUsage struct {
	Channel    string
	TotalKWh   float64
	MeanKWh    float64
	RatePerKWh float64
	Cost       float64
}

type Data struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Granularity string
	RatesSource string
	Channels    []ChannelUsage
	TotalKWh    float64
	TotalCost   float64
	GeneratedAt time.Time
}

// Build flattens per-channel summaries into report rows, sorted by cost
// descending then name, with the residual's rate looked up like any other
// channel.
func Build(usage map[string]series.Usage, rates map[string]float64, windowStart, windowEnd time.Time, granularity, ratesSource string) Data {
	data := Data{
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Granularity: granularity,
		RatesSource: ratesSource,
		GeneratedAt: time.Now(),
	}

	for channel, u := range usage {
		data.Channels = append(data.Channels, ChannelUsage{
			Channel:    channel,
			TotalKWh:   u.TotalKWh,
			MeanKWh:    u.MeanKWh,
			RatePerKWh: rates[channel],
			Cost:       u.Cost,
		})
		data.TotalKWh += u.TotalKWh
		data.TotalCost += u.Cost
	}

	sort.Slice(data.Channels, func(i, j int) bool {
		if data.Channels[i].Cost != data.Channels[j].Cost {
			return data.Channels[i].Cost > data.Channels[j].Cost
		}
		return data.Channels[i].Channel < data.Channels[j].Channel
	})
	return data
}

// RenderText prints the fixed-width report table.
func RenderText(w io.Writer, d Data) {
	fmt.Fprintf(w, "Power Usage Report\n")
	fmt.Fprintf(w, "==================\n")
	fmt.Fprintf(w, "Window:      %s to %s\n", d.WindowStart.Format(time.RFC3339), d.WindowEnd.Format(time.RFC3339))
	fmt.Fprintf(w, "Granularity: %s\n", d.Granularity)
	fmt.Fprintf(w, "Rates from:  %s\n\n", d.RatesSource)

	fmt.Fprintf(w, "%-20s %12s %12s %10s %12s\n", "CHANNEL", "TOTAL kWh", "MEAN kWh", "$/kWh", "COST $")
	fmt.Fprintln(w, "======================================================================")
	for _, ch := range d.Channels {
		fmt.Fprintf(w, "%-20s %12.3f %12.3f %10.4f %12.2f\n",
			truncate(ch.Channel, 20), ch.TotalKWh, ch.MeanKWh, ch.RatePerKWh, ch.Cost)
	}
	fmt.Fprintln(w, "======================================================================")
	fmt.Fprintf(w, "%-20s %12.3f %12s %10s %12.2f\n", "TOTAL", d.TotalKWh, "", "", d.TotalCost)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
