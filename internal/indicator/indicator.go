// Package indicator is the single canonical implementation of the technical
// indicators used across the system. No other package recomputes these
// formulas. All functions take closes ordered oldest-first.
package indicator

import "math"

// SMA returns the arithmetic mean of the last period closes. The second
// return value is false when the series is shorter than period.
func SMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	var sum float64
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period), true
}

// EMA returns the exponential moving average seeded with the SMA of the
// first period closes. The second return value is false when the series is
// shorter than period.
func EMA(closes []float64, period int) (float64, bool) {
	series, ok := emaSeries(closes, period)
	if !ok {
		return 0, false
	}
	return series[len(series)-1], true
}

// emaSeries computes the EMA at every index from period-1 onward. The
// returned slice is aligned so series[i] corresponds to closes[i+period-1].
func emaSeries(closes []float64, period int) ([]float64, bool) {
	if period <= 0 || len(closes) < period {
		return nil, false
	}
	var seed float64
	for _, c := range closes[:period] {
		seed += c
	}
	seed /= float64(period)

	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(closes)-period+1)
	out = append(out, seed)
	ema := seed
	for _, c := range closes[period:] {
		ema = (c-ema)*k + ema
		out = append(out, ema)
	}
	return out, true
}

// RSI computes Wilder's relative strength index over the given period.
// Fewer than period+1 closes yields the neutral default 50; a series with
// no losses yields 100.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing over the remainder of the series.
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line (EMA12-EMA26), its EMA9 signal line, and the
// histogram (line minus signal). Fewer than 26 closes yields zeros.
func MACD(closes []float64) (line, signalLine, histogram float64) {
	const (
		fast   = 12
		slow   = 26
		smooth = 9
	)
	if len(closes) < slow {
		return 0, 0, 0
	}

	fastSeries, _ := emaSeries(closes, fast)
	slowSeries, _ := emaSeries(closes, slow)

	// Both series are defined from index slow-1 onward; align their tails.
	offset := len(fastSeries) - len(slowSeries)
	macd := make([]float64, len(slowSeries))
	for i := range slowSeries {
		macd[i] = fastSeries[i+offset] - slowSeries[i]
	}

	line = macd[len(macd)-1]
	if sig, ok := EMA(macd, smooth); ok {
		signalLine = sig
	} else {
		// Not enough MACD points to smooth yet; fall back to the line itself.
		signalLine = line
	}
	return line, signalLine, line - signalLine
}

// Bollinger returns the middle (SMA), upper, and lower bands using k
// standard deviations. With fewer than period closes the bands collapse to
// the latest close.
func Bollinger(closes []float64, period int, k float64) (middle, upper, lower float64) {
	if len(closes) == 0 {
		return 0, 0, 0
	}
	mid, ok := SMA(closes, period)
	if !ok {
		last := closes[len(closes)-1]
		return last, last, last
	}

	var variance float64
	for _, c := range closes[len(closes)-period:] {
		d := c - mid
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))
	return mid, mid + k*sd, mid - k*sd
}
