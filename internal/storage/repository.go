package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/math"
)

// ErrInvalidAssetID indicates a token id that is not a uint256.
var ErrInvalidAssetID = errors.New("storage: invalid asset id")

// NormalizeAssetID validates a CLOB token id (an ERC-1155 position id) and
// returns its decimal spelling. Hex input with a 0x prefix is accepted.
func NormalizeAssetID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAssetID)
	}
	n, ok := math.ParseBig256(trimmed)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAssetID, raw)
	}
	return n.String(), nil
}

// Repository runs the analysis queries through a Querier. It never writes.
type Repository struct {
	q Querier
}

// NewRepository wires a querier, usually a gateway session.
func NewRepository(q Querier) *Repository {
	return &Repository{q: q}
}

// ResolvedMarkets lists deduplicated markets resolved inside the window.
func (r *Repository) ResolvedMarkets(ctx context.Context, w Window) ([]ResolvedMarket, error) {
	rows, err := QueryRows(ctx, r.q, listResolvedMarketsSQL, windowArgs(w)...)
	if err != nil {
		return nil, fmt.Errorf("list resolved markets: %w", err)
	}

	markets := make([]ResolvedMarket, 0, len(rows))
	for _, row := range rows {
		resolvedAt, ok := asTime(row["resolution_time"])
		if !ok {
			continue
		}
		price, ok := asFloat(row["outcome_price"])
		if !ok {
			continue
		}
		markets = append(markets, ResolvedMarket{
			AssetID:        asString(row["asset"]),
			Question:       asString(row["question"]),
			Outcome:        asString(row["outcome"]),
			OutcomePrice:   price,
			ResolutionTime: resolvedAt,
		})
	}
	return markets, nil
}

// CountResolvedMarkets counts distinct markets resolved inside the window,
// qualifying or not. An empty result counts as zero.
func (r *Repository) CountResolvedMarkets(ctx context.Context, w Window) (int64, error) {
	rows, err := QueryRows(ctx, r.q, countResolvedMarketsSQL, windowArgs(w)...)
	if err != nil {
		return 0, fmt.Errorf("count resolved markets: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	count, ok := asInt64(rows[0]["count"])
	if !ok {
		return 0, fmt.Errorf("count resolved markets: unexpected value %v", rows[0]["count"])
	}
	return count, nil
}

// QualifyingTrades runs the resolution-window join. Won is left unset; the
// classification belongs to the strategy.
func (r *Repository) QualifyingTrades(ctx context.Context, w Window) ([]QualifyingTrade, error) {
	query, args := qualifyingTradesSQL(w)
	rows, err := QueryRows(ctx, r.q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query qualifying trades: %w", err)
	}

	trades := make([]QualifyingTrade, 0, len(rows))
	for i, row := range rows {
		prePrice, ok := asFloat(row["pre_price"])
		if !ok {
			return nil, fmt.Errorf("qualifying trade row %d: bad pre_price %v", i, row["pre_price"])
		}
		outcomePrice, ok := asFloat(row["outcome_price"])
		if !ok {
			return nil, fmt.Errorf("qualifying trade row %d: bad outcome_price %v", i, row["outcome_price"])
		}
		preTime, _ := asTime(row["pre_time"])
		resolvedAt, _ := asTime(row["resolution_time"])

		trades = append(trades, QualifyingTrade{
			AssetID:            asString(row["asset"]),
			Question:           asString(row["question"]),
			PreResolutionPrice: prePrice,
			PreResolutionTime:  preTime,
			OutcomePrice:       outcomePrice,
			ResolutionTime:     resolvedAt,
			Outcome:            asString(row["outcome"]),
		})
	}
	return trades, nil
}

// PriceBefore returns the last valid fill at least offset before resolution,
// or nil when the asset has no such fill.
func (r *Repository) PriceBefore(ctx context.Context, asset string, resolution time.Time, offset time.Duration) (*PricePoint, error) {
	return r.lastFill(ctx, asset, resolution.Add(-offset))
}

// FinalPrice returns the last valid fill at or before resolution.
func (r *Repository) FinalPrice(ctx context.Context, asset string, resolution time.Time) (*PricePoint, error) {
	return r.lastFill(ctx, asset, resolution)
}

func (r *Repository) lastFill(ctx context.Context, asset string, cutoff time.Time) (*PricePoint, error) {
	id, err := NormalizeAssetID(asset)
	if err != nil {
		return nil, err
	}

	rows, err := QueryRows(ctx, r.q, lastFillAtOrBeforeSQL, id, formatStoreTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("last fill for %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	price, ok := asFloat(row["price"])
	if !ok {
		return nil, fmt.Errorf("last fill for %s: bad price %v", id, row["price"])
	}
	usdc, _ := asFloat(row["usdc"])
	tokens, _ := asFloat(row["tokens"])
	ts, _ := asTime(row["block_timestamp"])
	return &PricePoint{Price: price, USDC: usdc, Tokens: tokens, Timestamp: ts}, nil
}

// UpcomingEvents lists active markets ending after ref, soonest first.
func (r *Repository) UpcomingEvents(ctx context.Context, ref time.Time, limit int) ([]UpcomingEvent, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("upcoming events: limit must be positive")
	}
	at := formatStoreTime(ref)
	rows, err := QueryRows(ctx, r.q, upcomingEventsSQL, at, at, limit)
	if err != nil {
		return nil, fmt.Errorf("upcoming events: %w", err)
	}

	events := make([]UpcomingEvent, 0, len(rows))
	for _, row := range rows {
		end, _ := asTime(row["end_date"])
		secs, _ := asInt64(row["time_to_expire_seconds"])
		event := UpcomingEvent{
			ID:              asString(row["id"]),
			Question:        asString(row["question"]),
			EndDate:         end,
			ImageURL:        asString(row["twitter_card_image"]),
			SecondsToExpire: secs,
		}
		if vol, ok := asFloat(row["volume_24hr"]); ok {
			event.Volume24h = &vol
		}
		events = append(events, event)
	}
	return events, nil
}
