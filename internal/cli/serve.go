package cli

import (
	"github.com/spf13/cobra"

	"pre-resolution-lab/internal/app"
)

var (
	serveSource  string
	serveFixture string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context(), serveSource, serveFixture)
	},
}

var (
	watchSource    string
	watchFixture   string
	watchReference string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the analysis on a schedule and alert on a positive edge",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.WatchOptions{Source: watchSource, Fixture: watchFixture}
		return getApp().Watch(cmd.Context(), opts)
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Run one watch tick immediately and send its alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.WatchOptions{Source: watchSource, Fixture: watchFixture}
		if watchReference != "" {
			ref, err := parseTimeFlag("reference", watchReference)
			if err != nil {
				return err
			}
			opts.Reference = ref
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveSource, "source", "polymarket", "Data source to query")
	serveCmd.Flags().StringVar(&serveFixture, "fixture", "", "Serve a JSON fixture instead of the store")

	for _, cmd := range []*cobra.Command{watchCmd, simulateCmd} {
		cmd.Flags().StringVar(&watchSource, "source", "polymarket", "Data source to query")
		cmd.Flags().StringVar(&watchFixture, "fixture", "", "Analyze a JSON fixture instead of the store")
	}
	simulateCmd.Flags().StringVar(&watchReference, "reference", "", "Reference time replacing now (RFC3339)")
}
