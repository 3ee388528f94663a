package strategy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"pre-resolution-lab/internal/storage"
)

// ErrInvalidParams is returned for analysis inputs outside their domain.
var ErrInvalidParams = errors.New("strategy: invalid parameters")

// Upper bounds keep the window arithmetic inside time.Duration.
const (
	MaxLookbackDays  = 3650
	MaxOffsetMinutes = 7 * 24 * 60
)

// Params configure one pre-resolution analysis.
//
// The band is open on both ends unless the inclusive flags are set. A trade
// is a win when the market settled at or above PriceMin.
type Params struct {
	LookbackDays  int       `json:"lookback_days"`
	PriceMin      float64   `json:"price_min"`
	PriceMax      float64   `json:"price_max"`
	OffsetMinutes int       `json:"offset_minutes"`
	MinInclusive  bool      `json:"min_inclusive"`
	MaxInclusive  bool      `json:"max_inclusive"`
	Reference     time.Time `json:"reference_time"`
}

// DefaultParams matches the dashboard defaults: 7 days, (0.98, 1.00), 2 minutes.
func DefaultParams() Params {
	return Params{
		LookbackDays:  7,
		PriceMin:      0.98,
		PriceMax:      1.0,
		OffsetMinutes: 2,
	}
}

// Validate checks the parameter domain.
func (p Params) Validate() error {
	if p.LookbackDays < 1 || p.LookbackDays > MaxLookbackDays {
		return fmt.Errorf("%w: lookback_days must be in [1, %d], got %d", ErrInvalidParams, MaxLookbackDays, p.LookbackDays)
	}
	if p.OffsetMinutes < 1 || p.OffsetMinutes > MaxOffsetMinutes {
		return fmt.Errorf("%w: offset_minutes must be in [1, %d], got %d", ErrInvalidParams, MaxOffsetMinutes, p.OffsetMinutes)
	}
	if !unitInterval(p.PriceMin) || !unitInterval(p.PriceMax) {
		return fmt.Errorf("%w: prices must lie in [0,1], got [%g, %g]", ErrInvalidParams, p.PriceMin, p.PriceMax)
	}
	if p.PriceMin >= p.PriceMax {
		return fmt.Errorf("%w: price_min must be below price_max, got %g >= %g", ErrInvalidParams, p.PriceMin, p.PriceMax)
	}
	return nil
}

// unitInterval is false for NaN, so NaN bounds never reach the band checks.
func unitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Window converts the parameters into the storage join description.
func (p Params) Window() storage.Window {
	return storage.Window{
		Reference:     p.Reference.UTC(),
		LookbackDays:  p.LookbackDays,
		OffsetMinutes: p.OffsetMinutes,
		PriceMin:      p.PriceMin,
		PriceMax:      p.PriceMax,
		MinInclusive:  p.MinInclusive,
		MaxInclusive:  p.MaxInclusive,
	}
}
