package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"pre-resolution-lab/internal/storage"
	"pre-resolution-lab/internal/strategy"
)

// strategyFlags mirror strategy.Params. Unset flags fall back to the
// strategy section of the configuration.
type strategyFlags struct {
	days         int
	priceMin     float64
	priceMax     float64
	minutes      int
	minInclusive bool
	maxInclusive bool
	reference    string
}

func (f *strategyFlags) register(fs *pflag.FlagSet) {
	defaults := strategy.DefaultParams()
	fs.IntVar(&f.days, "days", defaults.LookbackDays, "Lookback window in days")
	fs.Float64Var(&f.priceMin, "price-min", defaults.PriceMin, "Lower bound of the entry price band")
	fs.Float64Var(&f.priceMax, "price-max", defaults.PriceMax, "Upper bound of the entry price band")
	fs.IntVar(&f.minutes, "minutes", defaults.OffsetMinutes, "Minutes before resolution to sample the price")
	fs.BoolVar(&f.minInclusive, "min-inclusive", false, "Include price-min in the band")
	fs.BoolVar(&f.maxInclusive, "max-inclusive", false, "Include price-max in the band")
	fs.StringVar(&f.reference, "reference", "", "Reference time replacing now (RFC3339)")
}

func (f *strategyFlags) params(cmd *cobra.Command) (strategy.Params, error) {
	p := getApp().Config.StrategyParams()
	fs := cmd.Flags()

	if fs.Changed("days") {
		p.LookbackDays = f.days
	}
	if fs.Changed("price-min") {
		p.PriceMin = f.priceMin
	}
	if fs.Changed("price-max") {
		p.PriceMax = f.priceMax
	}
	if fs.Changed("minutes") {
		p.OffsetMinutes = f.minutes
	}
	if fs.Changed("min-inclusive") {
		p.MinInclusive = f.minInclusive
	}
	if fs.Changed("max-inclusive") {
		p.MaxInclusive = f.maxInclusive
	}
	if f.reference != "" {
		ref, err := parseTimeFlag("reference", f.reference)
		if err != nil {
			return p, err
		}
		p.Reference = ref
	}
	return p, p.Validate()
}

func parseTimeFlag(name, raw string) (time.Time, error) {
	t, ok := storage.ParseTime(raw)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid --%s value %q", name, raw)
	}
	return t, nil
}
