package backtest

import (
	"math"
	"sort"
	"time"

	"fxPredictBot/internal/domain"
)

// Report holds the performance of a replay.
type Report struct {
	// Basic Metrics
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	NetProfit     float64
	GrossProfit   float64
	GrossLoss     float64 // Positive sum of losing trades
	ProfitFactor  float64 // GrossProfit / GrossLoss, +Inf without losses
	AverageWin    float64
	AverageLoss   float64
	FinalBalance  float64

	// Risk Metrics
	MaxDrawdown          float64 // Largest peak-to-trough equity drop, in account currency
	MaxDrawdownPct       float64 // Same drop relative to the peak
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	StopLossExits        int
	TakeProfitExits      int

	PerPair        map[string]PairStats
	MonthlyReturns map[string]float64
	EquityCurve    []EquityPoint

	// Replay bookkeeping
	Cycles   int
	Outcomes map[string]int
}

// PairStats summarizes the trades of one pair.
type PairStats struct {
	Trades    int
	Wins      int
	NetProfit float64
}

// EquityPoint represents a point on the equity curve
type EquityPoint struct {
	Time     time.Time
	Value    float64
	Drawdown float64
}

// Analyze builds a report from closed trades. A trade with zero PnL counts as a loss.
func Analyze(trades []domain.ClosedTrade, initialBalance float64) *Report {
	r := &Report{
		FinalBalance:   initialBalance,
		PerPair:        make(map[string]PairStats),
		MonthlyReturns: make(map[string]float64),
		EquityCurve:    make([]EquityPoint, 0, len(trades)),
		Outcomes:       make(map[string]int),
	}
	if len(trades) == 0 {
		return r
	}

	sorted := make([]domain.ClosedTrade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ClosedAt.Before(sorted[j].ClosedAt)
	})

	balance, peak := initialBalance, initialBalance
	var wins, losses int
	for _, tr := range sorted {
		r.TotalTrades++
		ps := r.PerPair[tr.Pair]
		ps.Trades++
		ps.NetProfit += tr.PNL

		if tr.PNL > 0 {
			r.WinningTrades++
			r.GrossProfit += tr.PNL
			ps.Wins++
			wins++
			losses = 0
		} else {
			r.LosingTrades++
			r.GrossLoss -= tr.PNL
			losses++
			wins = 0
		}
		r.MaxConsecutiveWins = max(r.MaxConsecutiveWins, wins)
		r.MaxConsecutiveLosses = max(r.MaxConsecutiveLosses, losses)
		r.PerPair[tr.Pair] = ps

		switch tr.Reason {
		case domain.CloseReasonStopLoss:
			r.StopLossExits++
		case domain.CloseReasonTakeProfit:
			r.TakeProfitExits++
		}

		balance += tr.PNL
		r.MonthlyReturns[tr.ClosedAt.Format("2006-01")] += tr.PNL
		peak = math.Max(peak, balance)
		dd := peak - balance
		var ddPct float64
		if peak > 0 {
			ddPct = dd / peak
		}
		r.MaxDrawdown = math.Max(r.MaxDrawdown, dd)
		r.MaxDrawdownPct = math.Max(r.MaxDrawdownPct, ddPct)
		r.EquityCurve = append(r.EquityCurve, EquityPoint{Time: tr.ClosedAt, Value: balance, Drawdown: dd})
	}

	r.NetProfit = r.GrossProfit - r.GrossLoss
	r.FinalBalance = balance
	r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades)
	if r.WinningTrades > 0 {
		r.AverageWin = r.GrossProfit / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AverageLoss = -r.GrossLoss / float64(r.LosingTrades)
	}
	switch {
	case r.GrossLoss > 0:
		r.ProfitFactor = r.GrossProfit / r.GrossLoss
	case r.GrossProfit > 0:
		r.ProfitFactor = math.Inf(1)
	}
	return r
}
