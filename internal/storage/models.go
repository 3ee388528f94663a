package storage

import (
	"time"
)

// MarketMeta is one raw metadata row. The metadata table keeps several
// historical rows per asset; only the latest by UpdatedAt is authoritative.
type MarketMeta struct {
	AssetID      string    `json:"clob_token_id"`
	Question     string    `json:"question"`
	Outcome      string    `json:"outcome"`
	OutcomePrice string    `json:"outcome_price"`
	ClosedTime   string    `json:"closed_time"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ResolvedMarket is a deduplicated market outcome token with a fixed settlement.
type ResolvedMarket struct {
	AssetID        string    `json:"asset"`
	Question       string    `json:"question"`
	Outcome        string    `json:"outcome"`
	OutcomePrice   float64   `json:"outcome_price"`
	ResolutionTime time.Time `json:"resolution_time"`
}

// TradeFill is a single order fill. Amounts are in raw token units.
type TradeFill struct {
	AssetID        string    `json:"asset"`
	USDCAmount     float64   `json:"amount_usdc"`
	TokenAmount    float64   `json:"amount_token"`
	BlockTimestamp time.Time `json:"block_timestamp"`
}

// Price returns usdc/token. Fills without a positive token amount have no price.
func (f TradeFill) Price() (float64, bool) {
	if f.TokenAmount <= 0 {
		return 0, false
	}
	return f.USDCAmount / f.TokenAmount, true
}

// QualifyingTrade joins a resolved market to its last fill before the cutoff.
type QualifyingTrade struct {
	AssetID            string    `json:"asset"`
	Question           string    `json:"question"`
	PreResolutionPrice float64   `json:"pre_price"`
	PreResolutionTime  time.Time `json:"pre_time"`
	OutcomePrice       float64   `json:"outcome_price"`
	ResolutionTime     time.Time `json:"resolution_time"`
	Outcome            string    `json:"outcome"`
	Won                bool      `json:"won"`
}

// PricePoint is a derived fill price at a moment in time.
type PricePoint struct {
	Price     float64   `json:"price"`
	USDC      float64   `json:"usdc"`
	Tokens    float64   `json:"tokens"`
	Timestamp time.Time `json:"block_timestamp"`
}

// UpcomingEvent is an active market that has not reached its end date yet.
type UpcomingEvent struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	EndDate         time.Time `json:"end_date"`
	Volume24h       *float64  `json:"volume_24hr"`
	ImageURL        string    `json:"twitter_card_image"`
	SecondsToExpire int64     `json:"time_to_expire_seconds"`
}

// Window describes one resolution-window join. Reference replaces the
// store's current-time function so every query is reproducible.
type Window struct {
	Reference     time.Time
	LookbackDays  int
	OffsetMinutes int
	PriceMin      float64
	PriceMax      float64
	MinInclusive  bool
	MaxInclusive  bool
}

// Since is the earliest resolution time inside the lookback window.
func (w Window) Since() time.Time {
	return w.Reference.AddDate(0, 0, -w.LookbackDays)
}

// Offset is the distance between the cutoff and resolution.
func (w Window) Offset() time.Duration {
	return time.Duration(w.OffsetMinutes) * time.Minute
}

// InBand reports whether price falls inside the configured band.
func (w Window) InBand(price float64) bool {
	if w.MinInclusive {
		if price < w.PriceMin {
			return false
		}
	} else if price <= w.PriceMin {
		return false
	}
	if w.MaxInclusive {
		return price <= w.PriceMax
	}
	return price < w.PriceMax
}

func (w Window) minOperator() string {
	if w.MinInclusive {
		return ">="
	}
	return ">"
}

func (w Window) maxOperator() string {
	if w.MaxInclusive {
		return "<="
	}
	return "<"
}
