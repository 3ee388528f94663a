package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pre-resolution-lab/internal/app"
)

var (
	marketsFlags  strategyFlags
	marketsSource string
	marketsLimit  int
)

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List resolved markets inside the lookback window",
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := marketsFlags.params(cmd)
		if err != nil {
			return err
		}
		opts := app.MarketsOptions{Params: params, Source: marketsSource, Limit: marketsLimit}
		return getApp().Markets(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

var (
	priceSource     string
	priceAsset      string
	priceResolution string
	priceMinutes    int
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Show the pre-resolution and final fill price of one asset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if priceAsset == "" || priceResolution == "" {
			return fmt.Errorf("--asset and --resolution must be provided")
		}
		resolution, err := parseTimeFlag("resolution", priceResolution)
		if err != nil {
			return err
		}
		opts := app.PriceOptions{
			Source:        priceSource,
			Asset:         priceAsset,
			Resolution:    resolution,
			OffsetMinutes: priceMinutes,
		}
		return getApp().Price(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

var (
	upcomingSource    string
	upcomingLimit     int
	upcomingReference string
)

var upcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List active markets closest to their end date",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.UpcomingOptions{Source: upcomingSource, Limit: upcomingLimit}
		if upcomingReference != "" {
			ref, err := parseTimeFlag("reference", upcomingReference)
			if err != nil {
				return err
			}
			opts.Reference = ref
		}
		return getApp().Upcoming(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

var (
	querySource string
	queryFile   string
	queryCSV    bool
)

var queryCmd = &cobra.Command{
	Use:   "query [SQL]",
	Short: "Run an ad-hoc read query against a source",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sql, err := querySQL(args)
		if err != nil {
			return err
		}
		opts := app.QueryOptions{Source: querySource, SQL: sql, CSV: queryCSV}
		return getApp().Query(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func querySQL(args []string) (string, error) {
	switch {
	case queryFile != "" && len(args) > 0:
		return "", fmt.Errorf("pass either a SQL argument or --file, not both")
	case queryFile != "":
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return "", fmt.Errorf("read query file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case len(args) == 1:
		return strings.TrimSpace(args[0]), nil
	default:
		return "", fmt.Errorf("a SQL argument or --file is required")
	}
}

func init() {
	marketsFlags.register(marketsCmd.Flags())
	marketsCmd.Flags().StringVar(&marketsSource, "source", "polymarket", "Data source to query")
	marketsCmd.Flags().IntVar(&marketsLimit, "limit", 0, "Maximum markets to print (0 prints all)")

	priceCmd.Flags().StringVar(&priceSource, "source", "polymarket", "Data source to query")
	priceCmd.Flags().StringVar(&priceAsset, "asset", "", "CLOB token id (decimal or 0x hex)")
	priceCmd.Flags().StringVar(&priceResolution, "resolution", "", "Resolution time (RFC3339)")
	priceCmd.Flags().IntVar(&priceMinutes, "minutes", 2, "Minutes before resolution for the entry price")

	upcomingCmd.Flags().StringVar(&upcomingSource, "source", "polymarket", "Data source to query")
	upcomingCmd.Flags().IntVar(&upcomingLimit, "limit", 20, "Maximum events to list")
	upcomingCmd.Flags().StringVar(&upcomingReference, "reference", "", "Reference time replacing now (RFC3339)")

	queryCmd.Flags().StringVar(&querySource, "source", "polymarket", "Data source to query")
	queryCmd.Flags().StringVar(&queryFile, "file", "", "Read the query from this file")
	queryCmd.Flags().BoolVar(&queryCSV, "csv", false, "Print CSV instead of a table")
}
