package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cyph1x/PowerContribution/pkg/logging"
	"github.com/Cyph1x/PowerContribution/pkg/report"
)

func ReportCmd() *cobra.Command {
	days := cfg.Fetch.LookbackDays
	startFlag := ""
	endFlag := ""
	granularity := cfg.Fetch.Granularity
	ratesSource := "config"
	mcpCommand := strings.TrimSpace(cfg.Pricing.MCP.Command)
	mcpArgs := append([]string{}, cfg.Pricing.MCP.Args...)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Fetch all sources, reconcile channels and print the usage/cost report",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Flag defaults were captured before --config could swap the
			// configuration; re-resolve anything the user did not set.
			if !cmd.Flags().Changed("days") {
				days = cfg.Fetch.LookbackDays
			}
			if !cmd.Flags().Changed("granularity") {
				granularity = cfg.Fetch.Granularity
			}
			if !cmd.Flags().Changed("rates-mcp-command") {
				mcpCommand = strings.TrimSpace(cfg.Pricing.MCP.Command)
			}
			if !cmd.Flags().Changed("rates-mcp-arg") {
				mcpArgs = append([]string{}, cfg.Pricing.MCP.Args...)
			}
			return runReport(days, startFlag, endFlag, granularity, ratesSource, mcpCommand, mcpArgs)
		},
	}

	cmd.Flags().IntVar(&days, "days", days, "Billing window length in days, ending now")
	cmd.Flags().StringVar(&startFlag, "start", startFlag, "Billing window start (RFC3339 or YYYY-MM-DD), overrides --days")
	cmd.Flags().StringVar(&endFlag, "end", endFlag, "Billing window end (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&granularity, "granularity", granularity, "Sample granularity: hourly or daily")
	cmd.Flags().StringVar(&ratesSource, "rates-source", ratesSource, "Tariff rates source: config or mcp")
	cmd.Flags().StringVar(&mcpCommand, "rates-mcp-command", mcpCommand, "Command used to fetch rates JSON from MCP wrapper")
	cmd.Flags().StringArrayVar(&mcpArgs, "rates-mcp-arg", mcpArgs, "Repeatable arg passed to --rates-mcp-command")

	return cmd
}

func runReport(days int, startFlag, endFlag, granularity, ratesSource, mcpCommand string, mcpArgs []string) error {
	cfg.Fetch.Granularity = granularity

	logger, err := logging.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	start, end, err := resolveWindow(days, startFlag, endFlag)
	if err != nil {
		return err
	}

	ratesProvider, err := buildRatesProvider(ratesSource, mcpCommand, mcpArgs)
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
	report.RenderText(os.Stdout, data)
	return nil
}
