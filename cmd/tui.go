package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cyph1x/PowerContribution/pkg/logging"
	"github.com/Cyph1x/PowerContribution/pkg/report"
	"github.com/Cyph1x/PowerContribution/pkg/tui"
)

func TuiCmd() *cobra.Command {
	days := cfg.Fetch.LookbackDays

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open interactive dashboard over the reconciled channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("days") {
				days = cfg.Fetch.LookbackDays
			}
			return runTui(days)
		},
	}

	cmd.Flags().IntVar(&days, "days", days, "Billing window length in days, ending now")
	return cmd
}

func runTui(days int) error {
	logger, err := logging.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	start, end, err := resolveWindow(days, "", "")
	if err != nil {
		return err
	}

	ratesProvider, err := buildRatesProvider("config", "", nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second)
	defer cancel()

	result, err := runPipeline(ctx, logger, start, end, ratesProvider)
	if err != nil {
		return err
	}

	data := report.Build(result.Usage, result.Rates, result.Start, result.End, cfg.Fetch.Granularity, result.RatesSource)

	view := tui.ReportData{
		TotalKWh:    data.TotalKWh,
		TotalCost:   data.TotalCost,
		Window:      fmt.Sprintf("%s to %s", data.WindowStart.Format(time.RFC3339), data.WindowEnd.Format(time.RFC3339)),
		Granularity: data.Granularity,
		RatesSource: data.RatesSource,
	}
	for _, ch := range data.Channels {
		view.Channels = append(view.Channels, tui.ChannelInfo{
			Channel:  ch.Channel,
			TotalKWh: ch.TotalKWh,
			MeanKWh:  ch.MeanKWh,
			Rate:     ch.RatePerKWh,
			Cost:     ch.Cost,
		})
	}
	for _, device := range cfg.TPLink.Devices {
		view.Devices = append(view.Devices, tui.DeviceInfo{
			Channel:   device.Channel,
			ThingName: device.ThingName,
		})
	}

	return tui.ShowDashboard(view)
}
