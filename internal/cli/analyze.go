package cli

import (
	"github.com/spf13/cobra"

	"pre-resolution-lab/internal/app"
)

var (
	analyzeFlags     strategyFlags
	analyzeSource    string
	analyzeFixture   string
	analyzeDetails   bool
	analyzeJSON      bool
	analyzeCSV       string
	analyzePNG       string
	analyzeHistogram string
	analyzeNotify    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Backtest the pre-resolution strategy over the lookback window",
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := analyzeFlags.params(cmd)
		if err != nil {
			return err
		}

		opts := app.AnalyzeOptions{
			Params:        params,
			Source:        analyzeSource,
			Fixture:       analyzeFixture,
			Details:       analyzeDetails,
			JSON:          analyzeJSON,
			CSVPath:       analyzeCSV,
			PNGPath:       analyzePNG,
			HistogramPath: analyzeHistogram,
			Notify:        analyzeNotify,
		}
		return getApp().Analyze(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	analyzeFlags.register(analyzeCmd.Flags())
	analyzeCmd.Flags().StringVar(&analyzeSource, "source", "polymarket", "Data source to query")
	analyzeCmd.Flags().StringVar(&analyzeFixture, "fixture", "", "Analyze a JSON fixture instead of the store")
	analyzeCmd.Flags().BoolVar(&analyzeDetails, "details", false, "Print the per-trade table")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the result as JSON")
	analyzeCmd.Flags().StringVar(&analyzeCSV, "csv", "", "Write trades to this CSV file")
	analyzeCmd.Flags().StringVar(&analyzePNG, "png", "", "Write the win/loss pie chart to this PNG file")
	analyzeCmd.Flags().StringVar(&analyzeHistogram, "histogram", "", "Write the entry price histogram to this PNG file")
	analyzeCmd.Flags().BoolVar(&analyzeNotify, "notify", false, "Send the result through the configured alert channel")
}
