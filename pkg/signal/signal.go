// Package signal converts indicator state at a bar index into factor scores,
// a market regime label, and a composite trading signal. Everything here is a
// pure function of the bar history and indicator arrays.
package signal

import (
	"math"

	"github.com/evoquant/evotrader/pkg/indicators"
	"github.com/evoquant/evotrader/pkg/market"
)

// Regime is a coarse market-state label derived from moving averages and ADX.
type Regime string

const (
	RegimeStrongUptrend   Regime = "strong_uptrend"
	RegimeUptrend         Regime = "uptrend"
	RegimeRanging         Regime = "ranging"
	RegimeDowntrend       Regime = "downtrend"
	RegimeStrongDowntrend Regime = "strong_downtrend"
	RegimeUnknown         Regime = "unknown"
)

// regimeWarmup is the minimum history required before a regime can be read.
const regimeWarmup = 50

// trendStrengthADX is the ADX level separating a strong trend from a weak one.
const trendStrengthADX = 25.0

// Weights holds the factor weights from the active configuration. They are
// expected to sum to 1.
type Weights struct {
	Technical  float64 `json:"technical"`
	Momentum   float64 `json:"momentum"`
	Volatility float64 `json:"volatility"`
	Volume     float64 `json:"volume"`
	Sentiment  float64 `json:"sentiment"`
}

// Components is the full signal decomposition at one bar.
type Components struct {
	Technical  float64 `json:"technical"`
	Momentum   float64 `json:"momentum"`
	Volatility float64 `json:"volatility"`
	Volume     float64 `json:"volume"`
	Sentiment  float64 `json:"sentiment"`
	Composite  float64 `json:"composite"`
	Confidence float64 `json:"confidence"`
	Regime     Regime  `json:"regime"`
}

// At computes the signal components for bars[idx].
func At(idx int, bars []market.Bar, ind *indicators.Set, w Weights) Components {
	c := Components{
		Regime: DetectRegime(idx, bars, ind),
	}

	c.Technical = technicalScore(idx, bars, ind)
	c.Momentum = momentumScore(idx, bars, ind)
	c.Volatility = volatilityScore(idx, ind)
	c.Volume = volumeScore(idx, bars)
	c.Sentiment = sentimentScore(idx, bars, c.Regime)

	c.Composite = c.Technical*w.Technical +
		c.Momentum*w.Momentum +
		c.Volatility*w.Volatility +
		c.Volume*w.Volume +
		c.Sentiment*w.Sentiment

	c.Confidence = confidence(c)

	return c
}

// DetectRegime classifies the market state at bars[idx] from the price's
// position relative to the 20/50 SMAs and trend strength via ADX.
func DetectRegime(idx int, bars []market.Bar, ind *indicators.Set) Regime {
	if idx < regimeWarmup || ind.SMA20[idx] == nil || ind.SMA50[idx] == nil {
		return RegimeUnknown
	}

	price := bars[idx].Close
	sma20 := *ind.SMA20[idx]
	sma50 := *ind.SMA50[idx]

	strongTrend := false
	if adx := ind.ADX[idx]; adx != nil {
		strongTrend = *adx > trendStrengthADX
	}

	aboveSMA20 := price > sma20
	aboveSMA50 := price > sma50
	sma20AboveSMA50 := sma20 > sma50

	switch {
	case aboveSMA20 && aboveSMA50 && sma20AboveSMA50:
		if strongTrend {
			return RegimeStrongUptrend
		}
		return RegimeUptrend
	case !aboveSMA20 && !aboveSMA50 && !sma20AboveSMA50:
		if strongTrend {
			return RegimeStrongDowntrend
		}
		return RegimeDowntrend
	default:
		return RegimeRanging
	}
}

// technicalScore averages up to four sub-signals (RSI, MACD histogram,
// Stochastic crossover, Bollinger band position). Sub-signals whose inputs
// are still warming up are skipped; if none contribute the score is 0.
func technicalScore(idx int, bars []market.Bar, ind *indicators.Set) float64 {
	sum := 0.0
	contributing := 0

	if rsi := ind.RSI[idx]; rsi != nil {
		v := 0.0
		switch {
		case *rsi < 30:
			v = 1.0
		case *rsi < 40:
			v = 0.5
		case *rsi > 70:
			v = -1.0
		case *rsi > 60:
			v = -0.5
		}
		sum += v
		contributing++
	}

	if hist := ind.MACDHist[idx]; hist != nil {
		v := 0.0
		if *hist > 0 {
			v = 0.5
		} else if *hist < 0 {
			v = -0.5
		}
		// A histogram beyond 0.2% of price marks a decisive cross.
		if math.Abs(*hist) > bars[idx].Close*0.002 {
			v *= 2
		}
		sum += v
		contributing++
	}

	if k, d := ind.StochK[idx], ind.StochD[idx]; k != nil && d != nil {
		v := 0.0
		switch {
		case *k < 20 && *k > *d:
			v = 1.0
		case *k < 20:
			v = 0.5
		case *k > 80 && *k < *d:
			v = -1.0
		case *k > 80:
			v = -0.5
		}
		sum += v
		contributing++
	}

	if u, l := ind.BollUpper[idx], ind.BollLower[idx]; u != nil && l != nil && *u > *l {
		pos := (bars[idx].Close - *l) / (*u - *l)
		sum += clamp((0.5-pos)*2, -1, 1)
		contributing++
	}

	if contributing == 0 {
		return 0
	}
	return sum / float64(contributing)
}

// momentumScore combines the EMA fast/slow spread, the 10-bar trailing
// return, and the stretch from SMA20 (faded beyond 15%).
func momentumScore(idx int, bars []market.Bar, ind *indicators.Set) float64 {
	score := 0.0
	price := bars[idx].Close

	if f, s := ind.EMAFast[idx], ind.EMASlow[idx]; f != nil && s != nil && *s != 0 {
		spread := (*f - *s) / *s
		score += clamp(spread*10, -0.4, 0.4)
	}

	if idx >= 10 && bars[idx-10].Close > 0 {
		trailing := (price - bars[idx-10].Close) / bars[idx-10].Close
		score += clamp(trailing*5, -0.3, 0.3)
	}

	if sma := ind.SMA20[idx]; sma != nil && *sma > 0 {
		dist := (price - *sma) / *sma
		if math.Abs(dist) > 0.15 {
			// Stretched far from the mean, fade the move.
			if dist > 0 {
				score -= 0.3
			} else {
				score += 0.3
			}
		} else {
			score += clamp(dist*2, -0.3, 0.3)
		}
	}

	return clamp(score, -1, 1)
}

// volatilityScore rewards a trending market (high ADX) with coiled bands and
// penalizes directionless or overextended volatility.
func volatilityScore(idx int, ind *indicators.Set) float64 {
	score := 0.0

	if adx := ind.ADX[idx]; adx != nil {
		switch {
		case *adx > 40:
			score += 0.5
		case *adx > 25:
			score += 0.3
		case *adx < 20:
			score -= 0.3
		}
	}

	if u, m, l := ind.BollUpper[idx], ind.BollMiddle[idx], ind.BollLower[idx]; u != nil && m != nil && l != nil && *m > 0 {
		width := (*u - *l) / *m
		switch {
		case width < 0.05:
			score += 0.5
		case width > 0.15:
			score -= 0.3
		}
	}

	return clamp(score, -1, 1)
}

// volumeWindow is the trailing average window for volume comparisons.
const volumeWindow = 20

// volumeScore compares the bar's volume to its trailing 20-bar average.
func volumeScore(idx int, bars []market.Bar) float64 {
	if idx < volumeWindow {
		return 0
	}

	sum := 0.0
	for i := idx - volumeWindow; i < idx; i++ {
		sum += bars[i].Volume
	}
	avg := sum / volumeWindow
	if avg == 0 {
		return 0
	}

	switch ratio := bars[idx].Volume / avg; {
	case ratio > 2.0:
		return 0.5
	case ratio > 1.5:
		return 0.3
	case ratio < 0.5:
		return -0.3
	default:
		return 0
	}
}

// sentimentScore proxies market sentiment from short/long-term return
// divergence, the detected regime, and volume-spike confirmation. There is no
// external sentiment feed.
func sentimentScore(idx int, bars []market.Bar, regime Regime) float64 {
	if idx < 30 {
		return 0
	}

	score := 0.0
	price := bars[idx].Close

	if bars[idx-5].Close > 0 && bars[idx-30].Close > 0 {
		shortRet := (price - bars[idx-5].Close) / bars[idx-5].Close
		longRet := (price - bars[idx-30].Close) / bars[idx-30].Close
		score += clamp((shortRet-longRet/6)*5, -0.5, 0.5)
	}

	switch regime {
	case RegimeStrongUptrend:
		score += 0.3
	case RegimeUptrend:
		score += 0.15
	case RegimeDowntrend:
		score -= 0.15
	case RegimeStrongDowntrend:
		score -= 0.3
	}

	// A volume spike confirms whichever way the day went.
	sum := 0.0
	for i := idx - volumeWindow; i < idx; i++ {
		sum += bars[i].Volume
	}
	if avg := sum / volumeWindow; avg > 0 && bars[idx].Volume/avg > 1.5 && bars[idx].Open > 0 {
		dayRet := (price - bars[idx].Open) / bars[idx].Open
		if dayRet > 0 {
			score += 0.2
		} else if dayRet < 0 {
			score -= 0.2
		}
	}

	return clamp(score, -1, 1)
}

// confidence rewards factor agreement and composite magnitude:
// min(1, alignment * |composite| * 2) where alignment is the larger share of
// factors agreeing in one direction.
func confidence(c Components) float64 {
	factors := [5]float64{c.Technical, c.Momentum, c.Volatility, c.Volume, c.Sentiment}

	positive, negative := 0, 0
	for _, f := range factors {
		if f > 0.2 {
			positive++
		} else if f < -0.2 {
			negative++
		}
	}

	aligned := positive
	if negative > aligned {
		aligned = negative
	}

	alignment := float64(aligned) / float64(len(factors))
	return math.Min(1, alignment*math.Abs(c.Composite)*2)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
