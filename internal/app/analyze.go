package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"

	"pre-resolution-lab/internal/alerting"
	"pre-resolution-lab/internal/report"
	"pre-resolution-lab/internal/strategy"
)

// Analyze runs one strategy analysis and renders it to out.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions, out io.Writer) error {
	backend, err := a.newBackend(opts.Source, opts.Fixture)
	if err != nil {
		return err
	}

	params := opts.Params
	if params.Reference.IsZero() {
		params.Reference = time.Now().UTC()
	}
	runID := uuid.NewString()
	logger := a.Logger.With().Str("run_id", runID).Logger()

	started := time.Now()
	res, err := backend.Analyze(ctx, params)
	a.Metrics.RecordAnalysis(res, err)
	if err != nil {
		return err
	}
	logger.Info().
		Time("reference", params.Reference).
		Int64("total_markets", res.TotalMarkets).
		Int("qualifying_trades", res.QualifyingTrades).
		Dur("elapsed", time.Since(started)).
		Msg("analysis complete")

	text := report.Text(res, params.PriceMin, params.PriceMax)
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{
			"run_id": runID,
			"params": params,
			"result": res,
			"report": text,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, text)
		if opts.Details && len(res.Trades) > 0 {
			fmt.Fprintln(out)
			renderTable(out, report.DetailsHeader, report.Details(res.Trades))
		}
	}

	if err := a.writeArtifacts(opts, res); err != nil {
		return err
	}

	if opts.Notify {
		return a.notify(ctx, alerting.Notification{
			RunID:     runID,
			Reference: params.Reference,
			Params:    params,
			Result:    res,
			Threshold: a.Config.Watch.MinExpectedValue,
			Report:    text,
		})
	}
	return nil
}

func (a *App) writeArtifacts(opts AnalyzeOptions, res strategy.Result) error {
	if opts.CSVPath != "" {
		if err := writeFile(a.exportPath(opts.CSVPath), func(w io.Writer) error {
			return report.WriteCSV(w, res.Trades)
		}); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}

	charts := []struct {
		path   string
		render func(io.Writer) error
	}{
		{opts.PNGPath, func(w io.Writer) error { return report.WritePieChart(w, res) }},
		{opts.HistogramPath, func(w io.Writer) error { return report.WritePriceHistogram(w, res.Trades) }},
	}
	for _, c := range charts {
		if c.path == "" {
			continue
		}
		if res.QualifyingTrades == 0 {
			a.Logger.Warn().Str("path", c.path).Msg("no qualifying trades; chart skipped")
			continue
		}
		err := writeFile(a.exportPath(c.path), c.render)
		if errors.Is(err, report.ErrNothingToPlot) {
			continue
		}
		if err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
	}
	return nil
}

func (a *App) notify(ctx context.Context, note alerting.Notification) error {
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured; enable alerting.telegram")
	}
	err := notifier.Notify(ctx, note)
	a.Metrics.RecordNotification(err)
	return err
}

func renderTable(out io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(out)
	table.Header(toAny(header)...)
	for _, row := range rows {
		table.Append(toAny(row)...)
	}
	table.Render()
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
