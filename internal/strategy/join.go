package strategy

import (
	"sort"
	"time"

	"pre-resolution-lab/internal/storage"
)

// JoinWindow is the in-process resolution-window join. For every market it
// takes the last valid fill at or before resolution - offset and keeps the
// market when that fill's price is inside the band. A market contributes at
// most one trade; markets without a fill before the cutoff are dropped.
func JoinWindow(markets []storage.ResolvedMarket, fills []storage.TradeFill, w storage.Window) []storage.QualifyingTrade {
	byAsset := make(map[string][]storage.TradeFill)
	for _, f := range fills {
		byAsset[f.AssetID] = append(byAsset[f.AssetID], f)
	}

	trades := make([]storage.QualifyingTrade, 0)
	for _, m := range markets {
		fill, ok := LastFillAtOrBefore(byAsset[m.AssetID], m.ResolutionTime.Add(-w.Offset()))
		if !ok {
			continue
		}
		price, _ := fill.Price()
		if !w.InBand(price) {
			continue
		}
		trades = append(trades, storage.QualifyingTrade{
			AssetID:            m.AssetID,
			Question:           m.Question,
			PreResolutionPrice: price,
			PreResolutionTime:  fill.BlockTimestamp,
			OutcomePrice:       m.OutcomePrice,
			ResolutionTime:     m.ResolutionTime,
			Outcome:            m.Outcome,
		})
	}

	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].ResolutionTime.Equal(trades[j].ResolutionTime) {
			return trades[i].ResolutionTime.After(trades[j].ResolutionTime)
		}
		return trades[i].AssetID < trades[j].AssetID
	})
	return trades
}

// LastFillAtOrBefore picks the latest fill with a positive token amount whose
// timestamp is not after cutoff. Equal timestamps prefer the larger token
// amount, then the earlier position in fills.
func LastFillAtOrBefore(fills []storage.TradeFill, cutoff time.Time) (storage.TradeFill, bool) {
	var (
		best  storage.TradeFill
		found bool
	)
	for _, f := range fills {
		if _, ok := f.Price(); !ok {
			continue
		}
		if f.BlockTimestamp.After(cutoff) {
			continue
		}
		if !found ||
			f.BlockTimestamp.After(best.BlockTimestamp) ||
			(f.BlockTimestamp.Equal(best.BlockTimestamp) && f.TokenAmount > best.TokenAmount) {
			best = f
			found = true
		}
	}
	return best, found
}
