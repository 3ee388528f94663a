package storage

import (
	"sort"
	"strconv"
	"strings"
)

// LatestWins keeps one row per asset: the one with the greatest UpdatedAt.
// Rows with equal UpdatedAt keep the earlier one. Output follows the order
// in which assets first appear.
func LatestWins(rows []MarketMeta) []MarketMeta {
	index := make(map[string]int, len(rows))
	out := make([]MarketMeta, 0, len(rows))
	for _, row := range rows {
		pos, seen := index[row.AssetID]
		if !seen {
			index[row.AssetID] = len(out)
			out = append(out, row)
			continue
		}
		if row.UpdatedAt.After(out[pos].UpdatedAt) {
			out[pos] = row
		}
	}
	return out
}

// ResolveMarkets mirrors the resolved-markets query in process: non-empty
// outcome, outcome price and close time, latest row per asset, parseable
// values, outcome price in [0,1], resolution inside the lookback window.
// Results are ordered by resolution time descending, then asset.
func ResolveMarkets(rows []MarketMeta, w Window) []ResolvedMarket {
	candidates := make([]MarketMeta, 0, len(rows))
	for _, row := range rows {
		if row.Outcome == "" || strings.TrimSpace(row.OutcomePrice) == "" || row.ClosedTime == "" {
			continue
		}
		candidates = append(candidates, row)
	}

	since := w.Since()
	markets := make([]ResolvedMarket, 0, len(candidates))
	for _, row := range LatestWins(candidates) {
		resolvedAt, ok := ParseTime(row.ClosedTime)
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(row.OutcomePrice), 64)
		if err != nil || price < 0 || price > 1 {
			continue
		}
		if resolvedAt.Before(since) || resolvedAt.After(w.Reference) {
			continue
		}
		markets = append(markets, ResolvedMarket{
			AssetID:        row.AssetID,
			Question:       row.Question,
			Outcome:        row.Outcome,
			OutcomePrice:   price,
			ResolutionTime: resolvedAt,
		})
	}

	sort.SliceStable(markets, func(i, j int) bool {
		if !markets[i].ResolutionTime.Equal(markets[j].ResolutionTime) {
			return markets[i].ResolutionTime.After(markets[j].ResolutionTime)
		}
		return markets[i].AssetID < markets[j].AssetID
	})
	return markets
}

// CountResolved mirrors the total-markets query: distinct assets whose latest
// row has an outcome and a close time inside the window. The outcome price
// is not required here.
func CountResolved(rows []MarketMeta, w Window) int {
	candidates := make([]MarketMeta, 0, len(rows))
	for _, row := range rows {
		if row.Outcome == "" || row.ClosedTime == "" {
			continue
		}
		candidates = append(candidates, row)
	}

	since := w.Since()
	count := 0
	for _, row := range LatestWins(candidates) {
		resolvedAt, ok := ParseTime(row.ClosedTime)
		if !ok || resolvedAt.Before(since) || resolvedAt.After(w.Reference) {
			continue
		}
		count++
	}
	return count
}
