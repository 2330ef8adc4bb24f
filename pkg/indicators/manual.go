package indicators

import "math"

// ATR, ADX and the Stochastic Oscillator are not available in cinar/indicator
// v2, so they are computed here with Wilder's smoothing. Each function returns
// a warm-up-trimmed series that alignSeries pads back to bar alignment.

// computeATR returns the Average True Range series, first value at bar index
// `period`.
func computeATR(high, low, close []float64, period int) []float64 {
	n := len(close)
	if n <= period {
		return nil
	}

	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		tr[i] = math.Max(high[i]-low[i],
			math.Max(math.Abs(high[i]-close[i-1]),
				math.Abs(low[i]-close[i-1])))
	}

	out := make([]float64, 0, n-period)

	// First ATR is a simple average of the first `period` true ranges.
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out = append(out, atr)

	for i := period + 1; i < n; i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out = append(out, atr)
	}

	return out
}

// computeADX returns the Average Directional Index series, first value at bar
// index `2*period`.
func computeADX(high, low, close []float64, period int) []float64 {
	n := len(close)
	if n <= period*2 {
		return nil
	}

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)

	for i := 1; i < n; i++ {
		tr[i] = math.Max(high[i]-low[i],
			math.Max(math.Abs(high[i]-close[i-1]),
				math.Abs(low[i]-close[i-1])))

		upMove := high[i] - high[i-1]
		downMove := low[i-1] - low[i]

		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	smoothTR := smoothWilder(tr, period)
	smoothPlusDM := smoothWilder(plusDM, period)
	smoothMinusDM := smoothWilder(minusDM, period)

	dx := make([]float64, n)
	for i := period; i < n; i++ {
		if smoothTR[i] == 0 {
			continue
		}
		plusDI := 100 * smoothPlusDM[i] / smoothTR[i]
		minusDI := 100 * smoothMinusDM[i] / smoothTR[i]

		if diSum := plusDI + minusDI; diSum != 0 {
			dx[i] = 100 * math.Abs(plusDI-minusDI) / diSum
		}
	}

	adx := smoothWilder(dx, period)
	return adx[period*2:]
}

// smoothWilder applies Wilder's smoothing: the first value is a simple
// average, subsequent values decay with factor (period-1)/period.
func smoothWilder(data []float64, period int) []float64 {
	n := len(data)
	result := make([]float64, n)
	if n < period {
		return result
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += data[i]
	}
	result[period-1] = sum / float64(period)

	for i := period; i < n; i++ {
		result[i] = (result[i-1]*float64(period-1) + data[i]) / float64(period)
	}

	return result
}

// computeStochastic returns the %K and %D series of the Stochastic
// Oscillator. %K starts at bar index period-1, %D smooth-1 bars later.
func computeStochastic(high, low, close []float64, period, smooth int) (kOut, dOut []float64) {
	n := len(close)
	if n < period {
		return nil, nil
	}

	k := make([]float64, 0, n-period+1)
	for i := period - 1; i < n; i++ {
		hh := high[i]
		ll := low[i]
		for j := i - period + 1; j < i; j++ {
			hh = math.Max(hh, high[j])
			ll = math.Min(ll, low[j])
		}

		if hh == ll {
			k = append(k, 50)
			continue
		}
		k = append(k, 100*(close[i]-ll)/(hh-ll))
	}

	if len(k) < smooth {
		return k, nil
	}

	d := make([]float64, 0, len(k)-smooth+1)
	for i := smooth - 1; i < len(k); i++ {
		sum := 0.0
		for j := i - smooth + 1; j <= i; j++ {
			sum += k[j]
		}
		d = append(d, sum/float64(smooth))
	}

	return k, d
}
