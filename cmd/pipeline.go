package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Cyph1x/PowerContribution/pkg/config"
	"github.com/Cyph1x/PowerContribution/pkg/ovo"
	"github.com/Cyph1x/PowerContribution/pkg/pricing"
	"github.com/Cyph1x/PowerContribution/pkg/provider"
	"github.com/Cyph1x/PowerContribution/pkg/series"
	"github.com/Cyph1x/PowerContribution/pkg/tplink"
)

var cfg *config.Config

func init() {
	// Try to load config, fall back to defaults
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	var err error
	cfg, err = config.Load(path)
	if err != nil {
		cfg = config.DefaultConfig()
	}
}

// LoadConfig replaces the active configuration. The root command calls this
// when --config is given, before any subcommand runs.
func LoadConfig(path string) error {
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// pipelineResult is everything one full acquisition run produces.
type pipelineResult struct {
	Reconciled  series.ChannelSet
	Usage       map[string]series.Usage
	Rates       map[string]float64
	RatesSource string
	Start       time.Time
	End         time.Time
}

// runPipeline executes the whole batch: log in to both providers, fetch all
// sources concurrently under one deadline, normalize onto the configured
// bucket grid, reconcile the residual channel, and reduce over the billing
// window. Any failure aborts the run; there is no partial report.
func runPipeline(ctx context.Context, logger *zap.Logger, start, end time.Time, ratesProvider pricing.Provider) (*pipelineResult, error) {
	creds, err := config.CredentialsFromEnv(cfg)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	bucketSeconds, err := cfg.BucketSeconds()
	if err != nil {
		return nil, err
	}
	granularity := tplink.Granularity(cfg.Fetch.Granularity)

	ovoSession := ovo.NewSession(logger)
	var tplinkOpts []tplink.Option
	if cfg.TPLink.GatewayURL != "" {
		tplinkOpts = append(tplinkOpts, tplink.WithGatewayURL(cfg.TPLink.GatewayURL))
	}
	plugClient := tplink.NewClient(logger, tplinkOpts...)

	// Logins run concurrently across providers but are never retried:
	// repeating one can trip provider-side lockouts.
	loginGroup, loginCtx := errgroup.WithContext(ctx)
	loginGroup.Go(func() error {
		return ovoSession.Login(loginCtx, creds.OvoUsername, creds.OvoPassword)
	})
	loginGroup.Go(func() error {
		return plugClient.Login(loginCtx, creds.TPLinkUsername, creds.TPLinkPassword)
	})
	if err := loginGroup.Wait(); err != nil {
		return nil, err
	}

	var ovoReadings []provider.RawReading
	deviceReadings := make([][]provider.RawReading, len(cfg.TPLink.Devices))

	fetchGroup, fetchCtx := errgroup.WithContext(ctx)
	fetchGroup.Go(func() error {
		var err error
		ovoReadings, err = ovoSession.HourlyUsage(fetchCtx, creds.OvoAccountID)
		return err
	})
	for i, device := range cfg.TPLink.Devices {
		i, device := i, device
		fetchGroup.Go(func() error {
			var err error
			deviceReadings[i], err = plugClient.EnergyData(fetchCtx, device.ThingName, device.Channel, start, end, granularity, loc)
			return err
		})
	}
	if err := fetchGroup.Wait(); err != nil {
		return nil, err
	}

	all := ovoReadings
	for _, readings := range deviceReadings {
		all = append(all, readings...)
	}

	normalizer := series.Normalizer{BucketSeconds: bucketSeconds, Location: loc}
	channels, err := normalizer.Normalize(all)
	if err != nil {
		return nil, err
	}

	known := cfg.Channels.Known
	if len(known) == 0 {
		for _, device := range cfg.TPLink.Devices {
			known = append(known, device.Channel)
		}
	}

	reconciled, err := series.Reconcile(channels, series.ReconcileConfig{
		Gross:    cfg.Channels.Gross,
		Known:    known,
		Residual: cfg.Channels.Residual,
		Rename:   cfg.Channels.Rename,
		Offsets:  cfg.Channels.Offsets,
	})
	if err != nil {
		return nil, err
	}

	rates, err := ratesProvider.ChannelRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve tariff rates: %w", err)
	}

	logger.Info("run reconciled",
		zap.Int("channels", len(reconciled)),
		zap.Time("window_start", start),
		zap.Time("window_end", end))

	return &pipelineResult{
		Reconciled:  reconciled,
		Usage:       series.Summarize(reconciled, start.Unix(), end.Unix(), rates),
		Rates:       rates,
		RatesSource: ratesProvider.Source(),
		Start:       start,
		End:         end,
	}, nil
}

// resolveWindow turns flags into the billing window: explicit bounds win,
// otherwise the window is the configured lookback ending now.
func resolveWindow(days int, startFlag, endFlag string) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if endFlag != "" {
		parsed, err := parseTimeFlag(endFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end %q: %w", endFlag, err)
		}
		end = parsed
	}

	if startFlag != "" {
		start, err := parseTimeFlag(startFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start %q: %w", startFlag, err)
		}
		if !end.After(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("--start must be before --end")
		}
		return start, end, nil
	}

	if days <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("--days must be greater than 0")
	}
	return end.AddDate(0, 0, -days), end, nil
}

func parseTimeFlag(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("expected RFC3339 or YYYY-MM-DD")
}

func buildRatesProvider(source, mcpCommand string, mcpArgs []string) (pricing.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "", "config":
		return pricing.NewStaticProvider(cfg.Pricing.Rates), nil
	case "mcp":
		cmd := strings.TrimSpace(mcpCommand)
		if cmd == "" {
			return nil, fmt.Errorf("rates source mcp requires --rates-mcp-command or pricing.mcp.command in config.yaml")
		}
		return pricing.NewMCPProvider(cmd, mcpArgs), nil
	default:
		return nil, fmt.Errorf("invalid --rates-source %q (expected: config or mcp)", source)
	}
}
