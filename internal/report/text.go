// Package report renders analysis results as narrative text, CSV, terminal
// table rows and PNG charts. It performs no store access.
package report

import (
	"fmt"
	"math"
	"strings"

	"pre-resolution-lab/internal/strategy"
)

// NoTradesMessage is the whole report when nothing qualified.
const NoTradesMessage = "No qualifying trades found in the specified time period."

// Text renders the narrative for one result. The band bounds are only used
// for the description line.
func Text(res strategy.Result, priceMin, priceMax float64) string {
	if res.QualifyingTrades == 0 {
		return NoTradesMessage
	}

	wr := res.WinRate
	ev := res.ExpectedValue
	avg := res.AverageEntryPrice

	// The count and the join run as separate queries; a market can close
	// between them, so the total shown never drops below the trades found.
	total := max(res.TotalMarkets, int64(res.QualifyingTrades))

	var b strings.Builder
	b.WriteString("**Strategy Analysis Results**\n\n")
	fmt.Fprintf(&b, "Out of %d resolved markets, found %d qualifying trades\n", total, res.QualifyingTrades)
	fmt.Fprintf(&b, "where price was between %.2f and %.2f at the specified time before resolution.\n\n", priceMin, priceMax)

	fmt.Fprintf(&b, "**Average Entry Price**: %.4f\n", avg)
	fmt.Fprintf(&b, "**Win Rate**: %.2f%% (%d wins out of %d trades)\n\n", wr*100, res.Wins, res.QualifyingTrades)

	b.WriteString("**Probability Interpretation**:\n")
	fmt.Fprintf(&b, "In %d cases out of 100, you win $%.4f per $1 wagered.\n", int(wr*100), 1-avg)
	fmt.Fprintf(&b, "In %d cases out of 100, you lose $%.4f per $1 wagered.\n\n", int((1-wr)*100), avg)

	fmt.Fprintf(&b, "**Expected Value (EV)**: $%.4f per $1 wagered\n", ev)
	sign, verb := "negative", "lose"
	if ev > 0 {
		sign, verb = "positive", "gain"
	}
	fmt.Fprintf(&b, "This strategy has a **%s** expected value of %.2f%%.\n\n", sign, ev*100)

	b.WriteString("**Interpretation**:\n")
	fmt.Fprintf(&b, "- For every $100 wagered using this strategy, you can expect to %s $%.2f on average.\n", verb, math.Abs(ev*100))
	return b.String()
}
