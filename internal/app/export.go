package app

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"pre-resolution-lab/internal/report"
)

// exportPath places relative output paths under export.dir when set.
func (a *App) exportPath(path string) string {
	if a.Config.Export.Dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(a.Config.Export.Dir, path)
}

// writeFile creates path, including parent directories, and hands it to render.
func writeFile(path string, render func(io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(file); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// SweepPoint is one analysis in a rolling sweep.
type SweepPoint struct {
	Reference        time.Time
	TotalMarkets     int64
	QualifyingTrades int
	WinRate          float64
	AvgEntryPrice    float64
	ExpectedValue    float64
}

func writeSweepCSV(w io.Writer, points []SweepPoint) error {
	writer := csv.NewWriter(w)

	header := []string{"reference_time", "total_markets", "qualifying_trades", "win_rate", "avg_entry_price", "expected_value"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		record := []string{
			p.Reference.Format(time.RFC3339),
			strconv.FormatInt(p.TotalMarkets, 10),
			strconv.Itoa(p.QualifyingTrades),
			formatDecimal(p.WinRate, 4),
			formatDecimal(p.AvgEntryPrice, 4),
			formatDecimal(p.ExpectedValue, 4),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeSweepPNG(w io.Writer, points []SweepPoint) error {
	if len(points) < 2 {
		return report.ErrNothingToPlot
	}

	x := make([]time.Time, len(points))
	winRate := make([]float64, len(points))
	ev := make([]float64, len(points))

	for i, p := range points {
		x[i] = p.Reference
		winRate[i] = p.WinRate
		ev[i] = p.ExpectedValue
	}

	evLow, evHigh := ev[0], ev[0]
	for _, v := range ev {
		evLow = math.Min(evLow, v)
		evHigh = math.Max(evHigh, v)
	}
	if evHigh-evLow < 1e-9 {
		evLow, evHigh = evLow-0.01, evHigh+0.01
	}

	formatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Win rate",
			ValueFormatter: formatter,
			Range:          &chart.ContinuousRange{Min: 0, Max: 1},
		},
		YAxisSecondary: chart.YAxis{
			Name:           "EV per $1",
			ValueFormatter: formatter,
			Range:          &chart.ContinuousRange{Min: evLow, Max: evHigh},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Win rate",
				XValues: x,
				YValues: winRate,
			},
			chart.TimeSeries{
				Name:    "Expected value",
				XValues: x,
				YValues: ev,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}
