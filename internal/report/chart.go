package report

import (
	"errors"
	"fmt"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"pre-resolution-lab/internal/storage"
	"pre-resolution-lab/internal/strategy"
)

// ErrNothingToPlot is returned when a chart would have no data.
var ErrNothingToPlot = errors.New("report: nothing to plot")

var (
	winColor  = drawing.ColorFromHex("2ecc71")
	lossColor = drawing.ColorFromHex("e74c3c")
	barColor  = drawing.ColorFromHex("3498db")
)

// WritePieChart renders the win/loss split as a PNG.
func WritePieChart(w io.Writer, res strategy.Result) error {
	if res.QualifyingTrades == 0 {
		return ErrNothingToPlot
	}

	var values []chart.Value
	if res.Wins > 0 {
		values = append(values, chart.Value{
			Value: float64(res.Wins),
			Label: fmt.Sprintf("Wins (%d)", res.Wins),
			Style: chart.Style{FillColor: winColor},
		})
	}
	if res.Losses > 0 {
		values = append(values, chart.Value{
			Value: float64(res.Losses),
			Label: fmt.Sprintf("Losses (%d)", res.Losses),
			Style: chart.Style{FillColor: lossColor},
		})
	}

	pie := chart.PieChart{
		Title:  "Win/Loss Distribution",
		Width:  640,
		Height: 640,
		Values: values,
	}
	return pie.Render(chart.PNG, w)
}

// HistogramBins is the number of buckets used by WritePriceHistogram.
const HistogramBins = 10

// WritePriceHistogram renders the distribution of entry prices as a PNG bar
// chart. The bins span the observed price range.
func WritePriceHistogram(w io.Writer, trades []storage.QualifyingTrade) error {
	if len(trades) == 0 {
		return ErrNothingToPlot
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, t := range trades {
		lo = math.Min(lo, t.PreResolutionPrice)
		hi = math.Max(hi, t.PreResolutionPrice)
	}
	width := (hi - lo) / HistogramBins
	if width == 0 {
		width = 0.001
	}

	counts := make([]int, HistogramBins)
	for _, t := range trades {
		idx := int((t.PreResolutionPrice - lo) / width)
		if idx >= HistogramBins {
			idx = HistogramBins - 1
		}
		counts[idx]++
	}

	maxCount := 1
	bars := make([]chart.Value, 0, HistogramBins)
	for i, c := range counts {
		if c > maxCount {
			maxCount = c
		}
		bars = append(bars, chart.Value{
			Value: float64(c),
			Label: fmt.Sprintf("%.4f", lo+width*float64(i)),
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor},
		})
	}

	graph := chart.BarChart{
		Title:    "Distribution of Entry Prices",
		Width:    1280,
		Height:   720,
		BarWidth: 80,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: float64(maxCount)},
		},
		Bars: bars,
	}
	return graph.Render(chart.PNG, w)
}
