package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pre-resolution-lab/internal/storage"
)

var ref = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func resolvedMeta(asset, outcomePrice string, resolvedAt time.Time) storage.MarketMeta {
	return storage.MarketMeta{
		AssetID:      asset,
		Question:     fmt.Sprintf("Market %s?", asset),
		Outcome:      "Yes",
		OutcomePrice: outcomePrice,
		ClosedTime:   resolvedAt.Format(time.RFC3339),
		UpdatedAt:    resolvedAt.Add(time.Minute),
	}
}

func fill(asset string, price float64, at time.Time) storage.TradeFill {
	return storage.TradeFill{
		AssetID:        asset,
		USDCAmount:     price * 1_000_000,
		TokenAmount:    1_000_000,
		BlockTimestamp: at,
	}
}

func params() Params {
	p := DefaultParams()
	p.Reference = ref
	return p
}

func TestAnalyzeSyntheticWin(t *testing.T) {
	resolvedAt := ref.Add(-24 * time.Hour)
	src := &MemorySource{
		Meta:  []storage.MarketMeta{resolvedMeta("1", "1", resolvedAt)},
		Fills: []storage.TradeFill{fill("1", 0.99, resolvedAt.Add(-3*time.Minute))},
	}

	res, err := NewAnalyzer(src).Analyze(context.Background(), params())
	require.NoError(t, err)

	require.Equal(t, 1, res.QualifyingTrades)
	assert.Equal(t, 1, res.Wins)
	assert.Equal(t, 0, res.Losses)
	assert.Equal(t, 1.0, res.WinRate)
	assert.InDelta(t, 0.99, res.AverageEntryPrice, 1e-12)
	assert.InDelta(t, 0.01, res.ExpectedValue, 1e-12)
	assert.True(t, res.Trades[0].Won)
	assert.Equal(t, resolvedAt.Add(-3*time.Minute), res.Trades[0].PreResolutionTime)
}

func TestAnalyzeSyntheticLoss(t *testing.T) {
	resolvedAt := ref.Add(-24 * time.Hour)
	src := &MemorySource{
		Meta:  []storage.MarketMeta{resolvedMeta("2", "0", resolvedAt)},
		Fills: []storage.TradeFill{fill("2", 0.99, resolvedAt.Add(-3*time.Minute))},
	}

	res, err := NewAnalyzer(src).Analyze(context.Background(), params())
	require.NoError(t, err)
	require.Equal(t, 1, res.QualifyingTrades)
	assert.Equal(t, 0, res.Wins)
	assert.Equal(t, 1, res.Losses)
	assert.False(t, res.Trades[0].Won)
	assert.InDelta(t, -0.99, res.ExpectedValue, 1e-12)
}

func TestAnalyzeFillInsideOffsetIsIgnored(t *testing.T) {
	resolvedAt := ref.Add(-24 * time.Hour)
	src := &MemorySource{
		Meta: []storage.MarketMeta{resolvedMeta("3", "1", resolvedAt)},
		Fills: []storage.TradeFill{
			fill("3", 0.50, resolvedAt.Add(-10*time.Minute)),
			fill("3", 0.99, resolvedAt.Add(-1*time.Minute)),
		},
	}

	res, err := NewAnalyzer(src).Analyze(context.Background(), params())
	require.NoError(t, err)
	assert.Equal(t, 0, res.QualifyingTrades, "the 0.50 fill is the last one before the cutoff")
	assert.Equal(t, int64(1), res.TotalMarkets)
}

func TestAnalyzeEmptyResultKeepsTotal(t *testing.T) {
	resolvedAt := ref.Add(-48 * time.Hour)
	src := &MemorySource{
		Meta: []storage.MarketMeta{
			resolvedMeta("4", "1", resolvedAt),
			resolvedMeta("5", "0", resolvedAt),
			resolvedMeta("6", "", resolvedAt),
		},
	}

	res, err := NewAnalyzer(src).Analyze(context.Background(), params())
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.TotalMarkets)
	assert.Zero(t, res.QualifyingTrades)
	assert.Zero(t, res.Wins)
	assert.Zero(t, res.Losses)
	assert.Zero(t, res.WinRate)
	assert.Zero(t, res.ExpectedValue)
	assert.Zero(t, res.AverageEntryPrice)
	assert.NotNil(t, res.Trades)
	assert.Empty(t, res.Trades)
}

func TestSummarizeInvariants(t *testing.T) {
	resolvedAt := ref.Add(-time.Hour)
	var trades []storage.QualifyingTrade
	for i := 0; i < 25; i++ {
		outcome := 0.0
		if i%3 != 0 {
			outcome = 1.0
		}
		trades = append(trades, storage.QualifyingTrade{
			AssetID:            fmt.Sprint(i),
			PreResolutionPrice: 0.981 + float64(i%10)/1000,
			OutcomePrice:       outcome,
			ResolutionTime:     resolvedAt,
		})
	}

	res := Summarize(100, trades, 0.98)
	assert.Equal(t, res.QualifyingTrades, res.Wins+res.Losses)
	assert.GreaterOrEqual(t, res.WinRate, 0.0)
	assert.LessOrEqual(t, res.WinRate, 1.0)
	assert.Equal(t, res.WinRate*(1-res.AverageEntryPrice)-(1-res.WinRate)*res.AverageEntryPrice, res.ExpectedValue)
	assert.Equal(t, int64(100), res.TotalMarkets)
	for _, tr := range trades {
		assert.False(t, tr.Won, "input trades are not mutated")
	}
}

func TestSummarizeKeepsCountedTotal(t *testing.T) {
	trades := []storage.QualifyingTrade{{PreResolutionPrice: 0.99, OutcomePrice: 1}}
	res := Summarize(0, trades, 0.98)
	assert.Equal(t, int64(0), res.TotalMarkets)
	assert.Equal(t, 1, res.QualifyingTrades)
}

func TestAnalyzeRejectsNaNBandBeforeQuerying(t *testing.T) {
	source := &failingSource{}
	p := params()
	p.PriceMin = math.NaN()

	res, err := NewAnalyzer(source).Analyze(context.Background(), p)
	require.ErrorIs(t, err, ErrInvalidParams)
	assert.Zero(t, res.QualifyingTrades)
	assert.Empty(t, source.windows)
}

func TestParamsValidateBounds(t *testing.T) {
	p := params()
	p.LookbackDays = MaxLookbackDays
	p.OffsetMinutes = MaxOffsetMinutes
	require.NoError(t, p.Validate())
	assert.Equal(t, 7*24*time.Hour, p.Window().Offset())

	p.PriceMin, p.PriceMax = 0, 1
	assert.NoError(t, p.Validate())
}

func TestExpectedValueFormula(t *testing.T) {
	for _, wr := range []float64{0, 0.25, 0.5, 0.97, 1} {
		for _, p := range []float64{0, 0.1, 0.5, 0.985, 1} {
			assert.Equal(t, wr*(1-p)-(1-wr)*p, ExpectedValue(wr, p))
		}
	}
	assert.Equal(t, 0.0, ExpectedValue(0.99, 0.99))
}

func TestAnalyzeBandMonotonic(t *testing.T) {
	resolvedAt := ref.Add(-24 * time.Hour)
	src := &MemorySource{}
	prices := []float64{0.90, 0.93, 0.955, 0.97, 0.981, 0.99, 0.999}
	for i, p := range prices {
		asset := fmt.Sprint(100 + i)
		src.Meta = append(src.Meta, resolvedMeta(asset, "1", resolvedAt.Add(-time.Duration(i)*time.Hour)))
		src.Fills = append(src.Fills, fill(asset, p, resolvedAt.Add(-time.Duration(i)*time.Hour-5*time.Minute)))
	}

	analyzer := NewAnalyzer(src)
	prev := -1
	prevAssets := map[string]bool{}
	for _, lo := range []float64{0.98, 0.96, 0.94, 0.92, 0.89} {
		p := params()
		p.PriceMin = lo
		res, err := analyzer.Analyze(context.Background(), p)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.QualifyingTrades, prev)

		assets := map[string]bool{}
		for _, tr := range res.Trades {
			assets[tr.AssetID] = true
		}
		for a := range prevAssets {
			assert.True(t, assets[a], "widening the band keeps %s", a)
		}
		prev, prevAssets = res.QualifyingTrades, assets
	}
	assert.Equal(t, len(prices), prev)
}

func TestAnalyzeInvalidParams(t *testing.T) {
	analyzer := NewAnalyzer(&MemorySource{})
	cases := []func(*Params){
		func(p *Params) { p.LookbackDays = 0 },
		func(p *Params) { p.OffsetMinutes = 0 },
		func(p *Params) { p.PriceMin = 1.0; p.PriceMax = 0.5 },
		func(p *Params) { p.PriceMax = 1.5 },
		func(p *Params) { p.PriceMin = -0.1 },
		func(p *Params) { p.PriceMin = math.NaN() },
		func(p *Params) { p.PriceMax = math.NaN() },
		func(p *Params) { p.PriceMin = math.Inf(-1) },
		func(p *Params) { p.PriceMax = math.Inf(1) },
		func(p *Params) { p.OffsetMinutes = MaxOffsetMinutes + 1 },
		func(p *Params) { p.OffsetMinutes = 200_000_000 },
		func(p *Params) { p.LookbackDays = MaxLookbackDays + 1 },
	}
	for i, mutate := range cases {
		p := params()
		mutate(&p)
		_, err := analyzer.Analyze(context.Background(), p)
		assert.ErrorIs(t, err, ErrInvalidParams, "case %d", i)
	}
}

type failingSource struct {
	tradesErr error
	countErr  error
	windows   []storage.Window
}

func (f *failingSource) QualifyingTrades(_ context.Context, w storage.Window) ([]storage.QualifyingTrade, error) {
	f.windows = append(f.windows, w)
	return nil, f.tradesErr
}

func (f *failingSource) CountResolvedMarkets(_ context.Context, w storage.Window) (int64, error) {
	return 7, f.countErr
}

func TestAnalyzePropagatesSourceErrors(t *testing.T) {
	boom := errors.New("query failed")
	_, err := NewAnalyzer(&failingSource{tradesErr: boom}).Analyze(context.Background(), params())
	assert.ErrorIs(t, err, boom)

	_, err = NewAnalyzer(&failingSource{countErr: boom}).Analyze(context.Background(), params())
	assert.ErrorIs(t, err, boom)
}

func TestAnalyzeDefaultsReferenceToNow(t *testing.T) {
	src := &failingSource{}
	analyzer := NewAnalyzer(src)
	analyzer.now = func() time.Time { return ref }

	p := DefaultParams()
	res, err := analyzer.Analyze(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.TotalMarkets)
	require.Len(t, src.windows, 1)
	assert.Equal(t, ref, src.windows[0].Reference)
}
