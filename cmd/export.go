package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cyph1x/PowerContribution/pkg/logging"
	"github.com/Cyph1x/PowerContribution/pkg/report"
)

func ExportCmd() *cobra.Command {
	days := cfg.Fetch.LookbackDays
	format := "pdf"
	output := ""

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the usage/cost report to PDF or XLSX",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("days") {
				days = cfg.Fetch.LookbackDays
			}
			return runExport(days, format, output)
		},
	}

	cmd.Flags().IntVar(&days, "days", days, "Billing window length in days, ending now")
	cmd.Flags().StringVar(&format, "format", format, "Output format: pdf or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", output, "Output filename (default usage-report.<format>)")

	return cmd
}

func runExport(days int, format, output string) error {
	switch format {
	case "pdf", "xlsx":
	default:
		return fmt.Errorf("invalid --format %q (expected: pdf or xlsx)", format)
	}
	if output == "" {
		output = "usage-report." + format
	}

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

	switch format {
	case "pdf":
		err = report.GeneratePDF(data, output)
	case "xlsx":
		err = report.GenerateXLSX(data, output)
	}
	if err != nil {
		return fmt.Errorf("generate %s: %w", format, err)
	}

	fmt.Printf("Report saved to: %s\n", output)
	return nil
}
