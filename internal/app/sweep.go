package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"pre-resolution-lab/internal/strategy"
)

// Sweep re-runs the analysis at every step between From and To, each with
// its own reference time, and prints the series.
func (a *App) Sweep(ctx context.Context, opts SweepOptions, out io.Writer) error {
	if opts.Step <= 0 {
		return errors.New("--step must be greater than zero")
	}

	start := alignForward(opts.From.UTC(), opts.Step)
	end := opts.To.UTC()
	if start.After(end) {
		return errors.New("sweep range is empty; check --from/--to")
	}

	backend, err := a.newBackend(opts.Source, opts.Fixture)
	if err != nil {
		return err
	}

	var points []SweepPoint
	failed := 0
	for ref := start; !ref.After(end); ref = ref.Add(opts.Step) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		params := opts.Params
		params.Reference = ref
		res, err := backend.Analyze(ctx, params)
		a.Metrics.RecordAnalysis(res, err)
		if errors.Is(err, strategy.ErrInvalidParams) {
			return err
		}
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Time("reference", ref).Msg("sweep step failed")
			continue
		}
		points = append(points, SweepPoint{
			Reference:        ref,
			TotalMarkets:     res.TotalMarkets,
			QualifyingTrades: res.QualifyingTrades,
			WinRate:          res.WinRate,
			AvgEntryPrice:    res.AverageEntryPrice,
			ExpectedValue:    res.ExpectedValue,
		})
	}

	a.Logger.Info().Int("processed", len(points)).Int("failed", failed).Msg("sweep complete")

	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{
			p.Reference.Format(time.RFC3339),
			fmt.Sprint(p.TotalMarkets),
			fmt.Sprint(p.QualifyingTrades),
			formatDecimal(p.WinRate*100, 2) + "%",
			formatDecimal(p.AvgEntryPrice, 4),
			formatDecimal(p.ExpectedValue, 4),
		})
	}
	renderTable(out, []string{"Reference", "Markets", "Trades", "Win Rate", "Avg Price", "EV"}, rows)

	if opts.CSVPath != "" {
		if err := writeFile(a.exportPath(opts.CSVPath), func(w io.Writer) error { return writeSweepCSV(w, points) }); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	if opts.PNGPath != "" {
		if err := writeFile(a.exportPath(opts.PNGPath), func(w io.Writer) error { return writeSweepPNG(w, points) }); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d sweep steps failed; check the logs", failed)
	}
	return nil
}

func alignForward(t time.Time, interval time.Duration) time.Time {
	truncated := t.Truncate(interval)
	if truncated.Before(t) {
		return truncated.Add(interval)
	}
	return truncated
}
