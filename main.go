package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Cyph1x/PowerContribution/cmd"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "powercontribution",
	Short: "Reconcile electricity usage across meter and smart-plug data sources",
	Long: `PowerContribution pulls consumption series from the OVO Energy portal and
the TP-Link smart-plug cloud, aligns them onto one time grid, derives the
unmetered remainder, and prices every channel for a billing window.`,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		if configPath == "" {
			return nil
		}
		return cmd.LoadConfig(configPath)
	},
}

func init() {
	// Credentials may live in a local .env file; missing file is fine.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: CONFIG_FILE env or ./config.yaml)")

	rootCmd.AddCommand(cmd.ReportCmd())
	rootCmd.AddCommand(cmd.StatusCmd())
	rootCmd.AddCommand(cmd.ExportCmd())
	rootCmd.AddCommand(cmd.TuiCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
