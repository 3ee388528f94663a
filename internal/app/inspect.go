package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"pre-resolution-lab/internal/format"
	"pre-resolution-lab/internal/storage"
)

// Markets lists the deduplicated resolved markets inside the window.
func (a *App) Markets(ctx context.Context, opts MarketsOptions, out io.Writer) error {
	if err := opts.Params.Validate(); err != nil {
		return err
	}
	gw, err := a.openGateway(opts.Source)
	if err != nil {
		return err
	}

	params := opts.Params
	if params.Reference.IsZero() {
		params.Reference = time.Now().UTC()
	}

	var markets []storage.ResolvedMarket
	err = gw.WithSession(ctx, func(q storage.Querier) error {
		var err error
		markets, err = storage.NewRepository(q).ResolvedMarkets(ctx, params.Window())
		return err
	})
	if err != nil {
		return err
	}
	if len(markets) == 0 {
		fmt.Fprintln(out, "no resolved markets found")
		return nil
	}

	if opts.Limit > 0 && len(markets) > opts.Limit {
		markets = markets[:opts.Limit]
	}
	rows := make([][]string, 0, len(markets))
	for _, m := range markets {
		rows = append(rows, []string{
			m.AssetID,
			sanitizeInline(m.Question),
			m.Outcome,
			formatDecimal(m.OutcomePrice, 2),
			m.ResolutionTime.Format(time.RFC3339),
		})
	}
	renderTable(out, []string{"Asset", "Question", "Outcome", "Outcome Price", "Resolved"}, rows)
	return nil
}

// Price prints the pre-resolution and final price for one asset.
func (a *App) Price(ctx context.Context, opts PriceOptions, out io.Writer) error {
	if opts.Resolution.IsZero() {
		return errors.New("--resolution is required")
	}
	if opts.OffsetMinutes < 1 {
		return errors.New("--minutes must be >= 1")
	}
	asset, err := storage.NormalizeAssetID(opts.Asset)
	if err != nil {
		return err
	}
	gw, err := a.openGateway(opts.Source)
	if err != nil {
		return err
	}

	var before, final *storage.PricePoint
	err = gw.WithSession(ctx, func(q storage.Querier) error {
		repo := storage.NewRepository(q)
		var err error
		if before, err = repo.PriceBefore(ctx, asset, opts.Resolution, time.Duration(opts.OffsetMinutes)*time.Minute); err != nil {
			return err
		}
		final, err = repo.FinalPrice(ctx, asset, opts.Resolution)
		return err
	})
	if err != nil {
		return err
	}

	rows := [][]string{
		pricePointRow(fmt.Sprintf("%dm before", opts.OffsetMinutes), before),
		pricePointRow("final", final),
	}
	renderTable(out, []string{"Probe", "Price", "USDC", "Tokens", "Fill Time"}, rows)
	return nil
}

func pricePointRow(label string, p *storage.PricePoint) []string {
	if p == nil {
		return []string{label, "n/a", "", "", ""}
	}
	return []string{
		label,
		formatDecimal(p.Price, 4),
		formatDecimal(p.USDC, 2),
		formatDecimal(p.Tokens, 2),
		p.Timestamp.Format(time.RFC3339),
	}
}

// Upcoming lists active markets ordered by end date.
func (a *App) Upcoming(ctx context.Context, opts UpcomingOptions, out io.Writer) error {
	if opts.Limit <= 0 {
		return errors.New("--limit must be greater than zero")
	}
	gw, err := a.openGateway(opts.Source)
	if err != nil {
		return err
	}
	backend := &gatewayBackend{gateway: gw}

	ref := opts.Reference
	if ref.IsZero() {
		ref = time.Now().UTC()
	}
	events, err := backend.UpcomingEvents(ctx, ref, opts.Limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "no upcoming events")
		return nil
	}

	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			sanitizeInline(e.Question),
			e.EndDate.Format("2006-01-02 15:04"),
			format.TimeToExpire(e.SecondsToExpire),
			format.Volume(e.Volume24h),
		})
	}
	renderTable(out, []string{"Question", "Ends (UTC)", "Expires In", "24h Volume"}, rows)
	return nil
}

// Query runs ad-hoc read-only SQL against a source.
func (a *App) Query(ctx context.Context, opts QueryOptions, out io.Writer) error {
	if strings.TrimSpace(opts.SQL) == "" {
		return errors.New("query text is empty")
	}
	gw, err := a.openGateway(opts.Source)
	if err != nil {
		return err
	}

	frame, err := gw.QueryFrame(ctx, opts.SQL)
	if err != nil {
		return err
	}
	a.Logger.Debug().Str("source", gw.Source()).Int("rows", frame.Len()).Msg("query complete")

	rows := make([][]string, 0, frame.Len())
	for _, values := range frame.Rows {
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = sanitizeInline(storage.FormatValue(v))
		}
		rows = append(rows, row)
	}

	if opts.CSV {
		writer := csv.NewWriter(out)
		if err := writer.Write(frame.Columns); err != nil {
			return err
		}
		if err := writer.WriteAll(rows); err != nil {
			return err
		}
		return writer.Error()
	}

	renderTable(out, frame.Columns, rows)
	fmt.Fprintf(out, "(%d rows)\n", frame.Len())
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
