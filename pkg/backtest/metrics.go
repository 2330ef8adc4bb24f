package backtest

import (
	"math"
)

// tradingDaysPerYear is the annualization factor for daily return series.
const tradingDaysPerYear = 252

// Metrics holds the summary statistics of one simulation run.
type Metrics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`      // percent
	ProfitFactor  float64 `json:"profit_factor"` // +Inf when no losses

	TotalReturnPct float64 `json:"total_return_pct"`
	CAGR           float64 `json:"cagr"` // percent
	SharpeRatio    float64 `json:"sharpe_ratio"`
	SortinoRatio   float64 `json:"sortino_ratio"`
	CalmarRatio    float64 `json:"calmar_ratio"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`

	AverageWin  float64 `json:"average_win"`
	AverageLoss float64 `json:"average_loss"`
	LargestWin  float64 `json:"largest_win"`
	LargestLoss float64 `json:"largest_loss"`

	MaxConsecutiveWins   int `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int `json:"max_consecutive_losses"`

	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`
}

// CalculateMetrics derives summary statistics from a trade ledger and equity
// curve.
func CalculateMetrics(trades []Trade, initialCapital, finalEquity, maxDrawdownPct float64, curve []EquityPoint) Metrics {
	m := Metrics{
		TotalTrades:    len(trades),
		MaxDrawdownPct: maxDrawdownPct,
		InitialCapital: initialCapital,
		FinalEquity:    finalEquity,
	}

	if initialCapital > 0 {
		m.TotalReturnPct = (finalEquity - initialCapital) / initialCapital * 100
	}

	calculateTradeStats(&m, trades)
	calculateReturnStats(&m, curve)

	m.CAGR = cagr(initialCapital, finalEquity, curve)
	if m.MaxDrawdownPct != 0 {
		m.CalmarRatio = m.CAGR / m.MaxDrawdownPct
	}

	return m
}

func calculateTradeStats(m *Metrics, trades []Trade) {
	var totalWin, totalLoss float64
	winStreak, lossStreak := 0, 0

	for _, t := range trades {
		if t.PnL > 0 {
			m.WinningTrades++
			totalWin += t.PnL
			if t.PnL > m.LargestWin {
				m.LargestWin = t.PnL
			}
			winStreak++
			lossStreak = 0
			if winStreak > m.MaxConsecutiveWins {
				m.MaxConsecutiveWins = winStreak
			}
		} else {
			m.LosingTrades++
			totalLoss += t.PnL
			if t.PnL < m.LargestLoss {
				m.LargestLoss = t.PnL
			}
			lossStreak++
			winStreak = 0
			if lossStreak > m.MaxConsecutiveLosses {
				m.MaxConsecutiveLosses = lossStreak
			}
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}
	if m.WinningTrades > 0 {
		m.AverageWin = totalWin / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = totalLoss / float64(m.LosingTrades)
	}

	switch {
	case totalLoss != 0:
		m.ProfitFactor = totalWin / math.Abs(totalLoss)
	case totalWin > 0:
		m.ProfitFactor = math.Inf(1)
	}
}

// calculateReturnStats derives Sharpe and Sortino from per-step equity
// returns, annualized over 252 trading days.
func calculateReturnStats(m *Metrics, curve []EquityPoint) {
	if len(curve) < 2 {
		return
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) == 0 {
		return
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	stdDev := math.Sqrt(variance)

	if stdDev > 0 {
		m.SharpeRatio = (mean * tradingDaysPerYear) / (stdDev * math.Sqrt(tradingDaysPerYear))
	}

	// Sortino penalizes only downside steps. When a run has no negative
	// steps the denominator is substituted with 1 rather than reporting an
	// infinite ratio; near that boundary the value understates real risk.
	downside := 0.0
	negatives := 0
	for _, r := range returns {
		if r < 0 {
			downside += r * r
			negatives++
		}
	}

	denominator := 1.0
	if negatives > 0 {
		denominator = math.Sqrt(downside/float64(negatives)) * math.Sqrt(tradingDaysPerYear)
	}
	if denominator > 0 {
		m.SortinoRatio = (mean * tradingDaysPerYear) / denominator
	}
}

// cagr computes the compound annual growth rate in percent from the equity
// curve's date span. Returns 0 when the elapsed time is not positive.
func cagr(initialCapital, finalEquity float64, curve []EquityPoint) float64 {
	if len(curve) < 2 || initialCapital <= 0 || finalEquity <= 0 {
		return 0
	}

	years := curve[len(curve)-1].Date.Sub(curve[0].Date).Hours() / 24 / 365.25
	if years <= 0 {
		return 0
	}

	return (math.Pow(finalEquity/initialCapital, 1/years) - 1) * 100
}
