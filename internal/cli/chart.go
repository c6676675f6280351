package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stuartb55/octopusagile/internal/config"
	"github.com/stuartb55/octopusagile/pkg/validation"
)

var (
	chartDays int
	chartOut  string
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render the price chart as PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		days, err := resolveDays(a.Config, chartDays)
		if err != nil {
			return err
		}
		if err := a.WriteChart(cmd.Context(), chartOut, days); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", chartOut)
		return nil
	},
}

func init() {
	chartCmd.Flags().IntVar(&chartDays, "days", 0, "Number of past days to include (defaults to config)")
	chartCmd.Flags().StringVar(&chartOut, "out", "prices.png", "Path to write PNG chart")
}

// resolveDays applies the days policy to a flag value; zero means default.
func resolveDays(cfg *config.Config, flag int) (int, error) {
	raw := ""
	if flag != 0 {
		raw = strconv.Itoa(flag)
	}
	days, err := validation.ValidateDaysParameter(raw, cfg.DaysBounds())
	if err != nil {
		return 0, fmt.Errorf("--days: %w", err)
	}
	return days, nil
}
