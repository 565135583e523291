package pricing

import "context"

// Provider supplies per-kWh tariff rates keyed by report channel from a
// backing source (config, MCP, etc.).
type Provider interface {
	ChannelRates(ctx context.Context) (map[string]float64, error)
	Source() string
}
