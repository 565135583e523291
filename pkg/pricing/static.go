package pricing

import "context"

// StaticProvider returns fixed per-channel rates configured in config.yaml.
type StaticProvider struct {
	rates map[string]float64
}

func NewStaticProvider(rates map[string]float64) *StaticProvider {
	copied := make(map[string]float64, len(rates))
	for channel, rate := range rates {
		copied[channel] = rate
	}
	return &StaticProvider{rates: copied}
}

func (p *StaticProvider) ChannelRates(_ context.Context) (map[string]float64, error) {
	return p.rates, nil
}

func (p *StaticProvider) Source() string {
	return "config"
}
