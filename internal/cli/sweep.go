package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pre-resolution-lab/internal/app"
)

var (
	sweepFlags   strategyFlags
	sweepFrom    string
	sweepTo      string
	sweepStep    time.Duration
	sweepSource  string
	sweepFixture string
	sweepCSV     string
	sweepPNG     string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Re-run the analysis at every step between two reference times",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sweepFrom == "" || sweepTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}

		from, err := parseTimeFlag("from", sweepFrom)
		if err != nil {
			return err
		}
		to, err := parseTimeFlag("to", sweepTo)
		if err != nil {
			return err
		}
		if to.Before(from) {
			return fmt.Errorf("--from must not be after --to")
		}

		params, err := sweepFlags.params(cmd)
		if err != nil {
			return err
		}

		opts := app.SweepOptions{
			Params:  params,
			Source:  sweepSource,
			Fixture: sweepFixture,
			From:    from,
			To:      to,
			Step:    sweepStep,
			CSVPath: sweepCSV,
			PNGPath: sweepPNG,
		}
		return getApp().Sweep(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	sweepFlags.register(sweepCmd.Flags())
	sweepCmd.Flags().StringVar(&sweepFrom, "from", "", "First reference time (RFC3339, inclusive)")
	sweepCmd.Flags().StringVar(&sweepTo, "to", "", "Last reference time (RFC3339, inclusive)")
	sweepCmd.Flags().DurationVar(&sweepStep, "step", 24*time.Hour, "Distance between reference times")
	sweepCmd.Flags().StringVar(&sweepSource, "source", "polymarket", "Data source to query")
	sweepCmd.Flags().StringVar(&sweepFixture, "fixture", "", "Sweep a JSON fixture instead of the store")
	sweepCmd.Flags().StringVar(&sweepCSV, "csv", "", "Write the sweep to this CSV file")
	sweepCmd.Flags().StringVar(&sweepPNG, "png", "", "Write win rate and EV over time to this PNG file")
}
