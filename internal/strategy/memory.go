package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"pre-resolution-lab/internal/storage"
)

// MemorySource answers the analysis from in-process metadata rows and fills.
// It follows the same dedup, window and tie-break rules as the SQL join.
type MemorySource struct {
	Meta  []storage.MarketMeta `json:"market_meta"`
	Fills []storage.TradeFill  `json:"fills"`
}

var _ Source = (*MemorySource)(nil)

// LoadFixture decodes a JSON document with market_meta and fills arrays.
func LoadFixture(r io.Reader) (*MemorySource, error) {
	var src MemorySource
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&src); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &src, nil
}

// QualifyingTrades implements Source.
func (m *MemorySource) QualifyingTrades(ctx context.Context, w storage.Window) ([]storage.QualifyingTrade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return JoinWindow(storage.ResolveMarkets(m.Meta, w), m.Fills, w), nil
}

// CountResolvedMarkets implements Source.
func (m *MemorySource) CountResolvedMarkets(ctx context.Context, w storage.Window) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(storage.CountResolved(m.Meta, w)), nil
}
