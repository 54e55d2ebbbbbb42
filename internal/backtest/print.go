package backtest

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
)

// Print writes the report as aligned text tables.
func (r *Report) Print(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)

	fmt.Fprintln(w, "## Summary")
	fmt.Fprintf(w, "Cycles\t%d\n", r.Cycles)
	fmt.Fprintf(w, "Trades\t%d\n", r.TotalTrades)
	fmt.Fprintf(w, "Win rate\t%.2f%%\n", r.WinRate*100)
	fmt.Fprintf(w, "Net profit\t%.5f\n", r.NetProfit)
	fmt.Fprintf(w, "Profit factor\t%.2f\n", r.ProfitFactor)
	fmt.Fprintf(w, "Average win / loss\t%.5f / %.5f\n", r.AverageWin, r.AverageLoss)
	fmt.Fprintf(w, "Final balance\t%.2f\n", r.FinalBalance)
	fmt.Fprintf(w, "Max drawdown\t%.5f (%.2f%%)\n", r.MaxDrawdown, r.MaxDrawdownPct*100)
	fmt.Fprintf(w, "Max consecutive wins / losses\t%d / %d\n", r.MaxConsecutiveWins, r.MaxConsecutiveLosses)
	fmt.Fprintf(w, "TP / SL exits\t%d / %d\n", r.TakeProfitExits, r.StopLossExits)

	if len(r.PerPair) > 0 {
		fmt.Fprintln(w, "\n## Pairs")
		fmt.Fprintln(w, "Pair\tTrades\tWins\tNet profit")
		for _, pair := range sortedKeys(r.PerPair) {
			s := r.PerPair[pair]
			fmt.Fprintf(w, "%s\t%d\t%d\t%.5f\n", pair, s.Trades, s.Wins, s.NetProfit)
		}
	}

	if len(r.Outcomes) > 0 {
		fmt.Fprintln(w, "\n## Cycle outcomes")
		for _, outcome := range sortedKeys(r.Outcomes) {
			fmt.Fprintf(w, "%s\t%d\n", outcome, r.Outcomes[outcome])
		}
	}

	if len(r.MonthlyReturns) > 0 {
		fmt.Fprintln(w, "\n## Monthly")
		for _, month := range sortedKeys(r.MonthlyReturns) {
			fmt.Fprintf(w, "%s\t%.5f\n", month, r.MonthlyReturns[month])
		}
	}

	return w.Flush()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
