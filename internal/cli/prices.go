package cli

import (
	"github.com/spf13/cobra"
)

var pricesDays int

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Print half-hourly prices grouped by day",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		days, err := resolveDays(a.Config, pricesDays)
		if err != nil {
			return err
		}
		return a.PrintPrices(cmd.Context(), cmd.OutOrStdout(), days)
	},
}

func init() {
	pricesCmd.Flags().IntVar(&pricesDays, "days", 0, "Number of past days to include (defaults to config)")
}
