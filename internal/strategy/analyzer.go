package strategy

import (
	"context"
	"fmt"
	"time"

	"pre-resolution-lab/internal/storage"
)

// Source supplies the joined trades and the market count for one window.
type Source interface {
	QualifyingTrades(ctx context.Context, w storage.Window) ([]storage.QualifyingTrade, error)
	CountResolvedMarkets(ctx context.Context, w storage.Window) (int64, error)
}

// Result aggregates one analysis run.
type Result struct {
	TotalMarkets      int64                     `json:"total_markets"`
	QualifyingTrades  int                       `json:"qualifying_trades"`
	Wins              int                       `json:"wins"`
	Losses            int                       `json:"losses"`
	WinRate           float64                   `json:"win_rate"`
	AverageEntryPrice float64                   `json:"avg_entry_price"`
	ExpectedValue     float64                   `json:"expected_value"`
	Trades            []storage.QualifyingTrade `json:"details"`
}

// Analyzer runs the strategy against a Source.
type Analyzer struct {
	source Source
	now    func() time.Time
}

// NewAnalyzer wires a source.
func NewAnalyzer(source Source) *Analyzer {
	return &Analyzer{source: source, now: time.Now}
}

// Analyze runs the join, counts the resolved markets and summarises. A zero
// Reference is replaced by the current time. Source errors are returned as is.
func (a *Analyzer) Analyze(ctx context.Context, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if p.Reference.IsZero() {
		p.Reference = a.now().UTC()
	}
	w := p.Window()

	trades, err := a.source.QualifyingTrades(ctx, w)
	if err != nil {
		return Result{}, err
	}

	total, err := a.source.CountResolvedMarkets(ctx, w)
	if err != nil {
		return Result{}, fmt.Errorf("count resolved markets: %w", err)
	}

	return Summarize(total, trades, p.PriceMin), nil
}

// Summarize classifies trades and derives the aggregate statistics. With no
// trades every derived field is zero and only TotalMarkets is carried.
func Summarize(totalMarkets int64, trades []storage.QualifyingTrade, priceMin float64) Result {
	res := Result{
		TotalMarkets: totalMarkets,
		Trades:       make([]storage.QualifyingTrade, 0, len(trades)),
	}
	if len(trades) == 0 {
		return res
	}

	var priceSum float64
	for _, t := range trades {
		t.Won = t.OutcomePrice >= priceMin
		if t.Won {
			res.Wins++
		}
		priceSum += t.PreResolutionPrice
		res.Trades = append(res.Trades, t)
	}

	n := len(trades)
	res.QualifyingTrades = n
	res.Losses = n - res.Wins
	res.WinRate = float64(res.Wins) / float64(n)
	res.AverageEntryPrice = priceSum / float64(n)
	res.ExpectedValue = ExpectedValue(res.WinRate, res.AverageEntryPrice)
	return res
}

// ExpectedValue of a binary contract bought at price: a win pays 1-price,
// a loss costs price.
func ExpectedValue(winRate, price float64) float64 {
	return winRate*(1.0-price) - (1-winRate)*price
}
