package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"pre-resolution-lab/internal/storage"
)

// CSVHeader is the column order written by WriteCSV.
var CSVHeader = []string{
	"asset",
	"question",
	"outcome",
	"pre_price",
	"pre_time",
	"outcome_price",
	"resolution_time",
	"won",
}

// WriteCSV writes one row per qualifying trade.
func WriteCSV(w io.Writer, trades []storage.QualifyingTrade) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return err
	}

	for _, t := range trades {
		record := []string{
			t.AssetID,
			t.Question,
			t.Outcome,
			price(t.PreResolutionPrice, 4),
			t.PreResolutionTime.UTC().Format(time.RFC3339),
			price(t.OutcomePrice, 4),
			t.ResolutionTime.UTC().Format(time.RFC3339),
			strconv.FormatBool(t.Won),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// DetailsHeader labels the rows produced by Details.
var DetailsHeader = []string{"Question", "Outcome", "Pre Price", "Pre Time", "Outcome Price", "Resolved", "Result"}

const maxQuestionRunes = 80

// Details formats trades for a terminal table.
func Details(trades []storage.QualifyingTrade) [][]string {
	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		result := "LOSS"
		if t.Won {
			result = "WIN"
		}
		rows = append(rows, []string{
			truncate(t.Question, maxQuestionRunes),
			t.Outcome,
			price(t.PreResolutionPrice, 4),
			t.PreResolutionTime.UTC().Format("2006-01-02 15:04:05"),
			price(t.OutcomePrice, 2),
			t.ResolutionTime.UTC().Format("2006-01-02 15:04:05"),
			result,
		})
	}
	return rows
}

func price(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
