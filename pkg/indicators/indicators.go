// Package indicators computes aligned technical indicator series for a bar
// history. Each output array is aligned 1:1 with the input bars; entries are
// nil during the indicator's warm-up window.
package indicators

import (
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"

	"github.com/evoquant/evotrader/pkg/market"
)

// Config holds the tunable indicator periods. Zero values fall back to the
// conventional defaults.
type Config struct {
	RSIPeriod     int `json:"rsi_period"`
	EMAFastPeriod int `json:"ema_fast_period"`
	EMASlowPeriod int `json:"ema_slow_period"`
	ATRPeriod     int `json:"atr_period"`
}

const (
	defaultRSIPeriod     = 14
	defaultEMAFastPeriod = 12
	defaultEMASlowPeriod = 26
	defaultATRPeriod     = 14

	adxPeriod        = 14
	stochasticPeriod = 14
	stochasticSmooth = 3
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
	bollingerPeriod  = 20
	sma20Period      = 20
	sma50Period      = 50
)

func (c Config) withDefaults() Config {
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = defaultRSIPeriod
	}
	if c.EMAFastPeriod <= 0 {
		c.EMAFastPeriod = defaultEMAFastPeriod
	}
	if c.EMASlowPeriod <= 0 {
		c.EMASlowPeriod = defaultEMASlowPeriod
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = defaultATRPeriod
	}
	return c
}

// Set holds all indicator series for one symbol, aligned with the source bars.
type Set struct {
	RSI     []*float64
	SMA20   []*float64
	SMA50   []*float64
	EMAFast []*float64
	EMASlow []*float64
	ATR     []*float64
	ADX     []*float64

	StochK []*float64
	StochD []*float64

	MACDLine   []*float64
	MACDSignal []*float64
	MACDHist   []*float64

	BollUpper  []*float64
	BollMiddle []*float64
	BollLower  []*float64
}

// Compute derives the full indicator set for a bar history. The input is not
// modified. Arrays in the result all have len(bars) entries.
func Compute(bars []market.Bar, cfg Config) *Set {
	cfg = cfg.withDefaults()
	n := len(bars)

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	s := &Set{
		RSI:     alignSeries(n, computeChan(momentum.NewRsiWithPeriod[float64](cfg.RSIPeriod).Compute, closes)),
		SMA20:   alignSeries(n, computeChan(trend.NewSmaWithPeriod[float64](sma20Period).Compute, closes)),
		SMA50:   alignSeries(n, computeChan(trend.NewSmaWithPeriod[float64](sma50Period).Compute, closes)),
		EMAFast: alignSeries(n, computeChan(trend.NewEmaWithPeriod[float64](cfg.EMAFastPeriod).Compute, closes)),
		EMASlow: alignSeries(n, computeChan(trend.NewEmaWithPeriod[float64](cfg.EMASlowPeriod).Compute, closes)),
		ATR:     alignSeries(n, computeATR(highs, lows, closes, cfg.ATRPeriod)),
		ADX:     alignSeries(n, computeADX(highs, lows, closes, adxPeriod)),
	}

	macdLine, macdSignal := computeMACD(closes)
	s.MACDLine = alignSeries(n, macdLine)
	s.MACDSignal = alignSeries(n, macdSignal)
	s.MACDHist = histogram(s.MACDLine, s.MACDSignal)

	upper, middle, lower := computeBollinger(closes)
	s.BollUpper = alignSeries(n, upper)
	s.BollMiddle = alignSeries(n, middle)
	s.BollLower = alignSeries(n, lower)

	k, d := computeStochastic(highs, lows, closes, stochasticPeriod, stochasticSmooth)
	s.StochK = alignSeries(n, k)
	s.StochD = alignSeries(n, d)

	return s
}

// toChan converts a slice to the closed channel form cinar pipelines consume.
func toChan(vals []float64) chan float64 {
	c := make(chan float64, len(vals))
	for _, v := range vals {
		c <- v
	}
	close(c)
	return c
}

// computeChan runs a single-output cinar pipeline over vals and collects the
// result. Cinar emits nothing during an indicator's warm-up, so the output is
// shorter than the input.
func computeChan(compute func(<-chan float64) <-chan float64, vals []float64) []float64 {
	out := compute(toChan(vals))

	var collected []float64
	for v := range out {
		collected = append(collected, v)
	}
	return collected
}

// computeMACD runs the MACD pipeline and drains both outputs in lockstep.
func computeMACD(closes []float64) (line, signal []float64) {
	macd := trend.NewMacdWithPeriod[float64](macdFastPeriod, macdSlowPeriod, macdSignalPeriod)
	lineChan, signalChan := macd.Compute(toChan(closes))

	for {
		l, lok := <-lineChan
		s, sok := <-signalChan
		if !lok || !sok {
			break
		}
		line = append(line, l)
		signal = append(signal, s)
	}
	return line, signal
}

// computeBollinger runs the Bollinger Bands pipeline, draining the three band
// outputs in lockstep.
func computeBollinger(closes []float64) (upper, middle, lower []float64) {
	bb := volatility.NewBollingerBandsWithPeriod[float64](bollingerPeriod)
	upperChan, middleChan, lowerChan := bb.Compute(toChan(closes))

	for {
		u, uok := <-upperChan
		m, mok := <-middleChan
		l, lok := <-lowerChan
		if !uok || !mok || !lok {
			break
		}
		upper = append(upper, u)
		middle = append(middle, m)
		lower = append(lower, l)
	}
	return upper, middle, lower
}

// alignSeries left-pads a warm-up-trimmed series with nils so index i of the
// output corresponds to bar i of the source history.
func alignSeries(n int, vals []float64) []*float64 {
	aligned := make([]*float64, n)
	offset := n - len(vals)
	if offset < 0 {
		offset = 0
		vals = vals[len(vals)-n:]
	}
	for i := range vals {
		v := vals[i]
		aligned[offset+i] = &v
	}
	return aligned
}

// histogram returns MACD line minus signal wherever both are present.
func histogram(line, signal []*float64) []*float64 {
	hist := make([]*float64, len(line))
	for i := range line {
		if line[i] == nil || signal[i] == nil {
			continue
		}
		h := *line[i] - *signal[i]
		hist[i] = &h
	}
	return hist
}
