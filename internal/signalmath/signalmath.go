// Package signalmath provides the shared numeric primitives of the decision
// pipeline. All functions are pure, side-effect free and NaN/Inf safe: every
// denominator is guarded and insufficient data degrades to a neutral value
// instead of an error.
package signalmath

import "math"

// EMA computes the exponential moving average of the series, seeded by the
// simple average of the first period points. If the series is shorter than
// period, it returns the simple mean of the whole series.
func EMA(series []float64, period int) float64 {
	if len(series) == 0 || period <= 0 {
		return 0
	}
	if len(series) < period {
		sum := 0.0
		for _, v := range series {
			sum += v
		}
		return sum / float64(len(series))
	}
	k := 2.0 / (float64(period) + 1)
	ema := 0.0
	for _, v := range series[:period] {
		ema += v
	}
	ema /= float64(period)
	for _, v := range series[period:] {
		ema = v*k + ema*(1-k)
	}
	return ema
}

// RSI computes the Wilder-smoothed relative strength index. It returns 50.0
// (neutral) when there is not enough data and 100.0 when the average loss is
// exactly zero.
func RSI(series []float64, period int) float64 {
	if period <= 0 || len(series) < period+1 {
		return 50.0
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := series[i] - series[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(series); i++ {
		change := series[i] - series[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// ATR computes a close-to-close average true range: the mean of absolute
// first differences over the trailing period window. Returns 0 for fewer than
// 2 points.
func ATR(series []float64, period int) float64 {
	if len(series) < 2 {
		return 0
	}
	trs := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		trs = append(trs, math.Abs(series[i]-series[i-1]))
	}
	if period > 0 && len(trs) > period {
		trs = trs[len(trs)-period:]
	}
	sum := 0.0
	for _, tr := range trs {
		sum += tr
	}
	return sum / float64(len(trs))
}

// LinearRegressionPredict fits a least-squares line over index vs. value and
// projects it stepsAhead points past the end of the series. It returns the
// projected value and the standard deviation of the fit residuals. With fewer
// than 3 points or zero variance in x it degenerates to (last value, 0).
func LinearRegressionPredict(series []float64, stepsAhead int) (predicted, residualStd float64) {
	n := len(series)
	if n == 0 {
		return 0, 0
	}
	last := series[n-1]
	if n < 3 {
		return last, 0
	}

	xMean := float64(n-1) / 2.0
	yMean := 0.0
	for _, v := range series {
		yMean += v
	}
	yMean /= float64(n)

	var num, den float64
	for i, v := range series {
		dx := float64(i) - xMean
		num += dx * (v - yMean)
		den += dx * dx
	}
	if den == 0 {
		return last, 0
	}

	b := num / den
	a := yMean - b*xMean
	predicted = a + b*(float64(n-1)+float64(stepsAhead))

	variance := 0.0
	for i, v := range series {
		r := v - (a + b*float64(i))
		variance += r * r
	}
	variance /= float64(n)
	return predicted, math.Sqrt(variance)
}

// EMAProject computes the EMA over the full series and extrapolates it
// stepsAhead points forward using the average slope of the last few EMA
// values.
func EMAProject(series []float64, period, stepsAhead int) float64 {
	if len(series) == 0 {
		return 0
	}
	if period > len(series) {
		period = len(series)
	}
	alpha := 2.0 / (float64(period) + 1)
	ema := series[0]
	emaSeries := make([]float64, 1, len(series))
	emaSeries[0] = ema
	for _, v := range series[1:] {
		ema = v*alpha + ema*(1-alpha)
		emaSeries = append(emaSeries, ema)
	}
	look := len(emaSeries) - 1
	if look > 5 {
		look = 5
	}
	slope := 0.0
	if look > 0 {
		slope = (emaSeries[len(emaSeries)-1] - emaSeries[len(emaSeries)-1-look]) / float64(look)
	}
	return ema + slope*float64(stepsAhead)
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Safe replaces NaN and ±Inf with 0.
func Safe(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
