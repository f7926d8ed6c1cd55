package strategy

import (
	"math"

	"github.com/codeAPmind/tradingsystem/internal/series"
)

// linreg fits closes[len-n:] by least squares with x = 0..n-1 and returns
// slope and intercept. Callers must ensure len(closes) >= n and n >= 2.
func linreg(closes []float64, n int) (slope, intercept float64) {
	window := closes[len(closes)-n:]
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range window {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / fn
	}
	slope = (fn*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / fn
	return slope, intercept
}

// ema returns the full exponential moving average sequence for period n.
// The first n values seed with a simple average, matching common charting
// conventions.
func ema(values []float64, n int) []float64 {
	if len(values) < n || n <= 0 {
		return nil
	}
	out := make([]float64, len(values))
	var seed float64
	for i := 0; i < n; i++ {
		seed += values[i]
		out[i] = seed / float64(i+1)
	}
	alpha := 2.0 / (float64(n) + 1)
	for i := n; i < len(values); i++ {
		out[i] = values[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// rsiLast computes the relative strength index of the final bar using an
// n-period simple average of gains and losses.
func rsiLast(closes []float64, n int) (float64, bool) {
	if len(closes) < n+1 {
		return 0, false
	}
	var gain, loss float64
	for i := len(closes) - n; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(n)
	avgLoss := loss / float64(n)
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// macdLast returns the final MACD and signal line values.
func macdLast(closes []float64, fast, slow, smooth int) (macd, sig float64, ok bool) {
	if len(closes) < slow+smooth {
		return 0, 0, false
	}
	fastEMA := ema(closes, fast)
	slowEMA := ema(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sigLine := ema(line, smooth)
	last := len(closes) - 1
	return line[last], sigLine[last], true
}

// adxLast computes the average directional index of the final bar with
// Wilder smoothing. Needs highs and lows, so it takes the bar series rather
// than closes.
func adxLast(s series.Series, n int) (float64, bool) {
	if n <= 0 || len(s) < 2*n+1 {
		return 0, false
	}
	m := len(s) - 1
	tr := make([]float64, m)
	plusDM := make([]float64, m)
	minusDM := make([]float64, m)
	for i := 1; i < len(s); i++ {
		cur, prev := s[i], s[i-1]
		hl := cur.High - cur.Low
		hc := math.Abs(cur.High - prev.Close)
		lc := math.Abs(cur.Low - prev.Close)
		tr[i-1] = math.Max(hl, math.Max(hc, lc))
		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	var trSum, plusSum, minusSum float64
	for i := 0; i < n; i++ {
		trSum += tr[i]
		plusSum += plusDM[i]
		minusSum += minusDM[i]
	}
	dx := func() (float64, bool) {
		if trSum == 0 {
			return 0, false
		}
		pdi := 100 * plusSum / trSum
		mdi := 100 * minusSum / trSum
		if pdi+mdi == 0 {
			return 0, false
		}
		return 100 * math.Abs(pdi-mdi) / (pdi + mdi), true
	}

	var dxs []float64
	if v, ok := dx(); ok {
		dxs = append(dxs, v)
	}
	for i := n; i < m; i++ {
		trSum += tr[i] - trSum/float64(n)
		plusSum += plusDM[i] - plusSum/float64(n)
		minusSum += minusDM[i] - minusSum/float64(n)
		if v, ok := dx(); ok {
			dxs = append(dxs, v)
		}
	}
	if len(dxs) == 0 {
		return 0, false
	}
	seed := n
	if seed > len(dxs) {
		seed = len(dxs)
	}
	var adx float64
	for _, v := range dxs[:seed] {
		adx += v
	}
	adx /= float64(seed)
	for _, v := range dxs[seed:] {
		adx = (adx*float64(n-1) + v) / float64(n)
	}
	return adx, true
}

// meanStd returns the mean and population standard deviation of the last n
// values.
func meanStd(values []float64, n int) (mean, std float64, ok bool) {
	if len(values) < n || n <= 0 {
		return 0, 0, false
	}
	window := values[len(values)-n:]
	for _, v := range window {
		mean += v
	}
	mean /= float64(n)
	for _, v := range window {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(n))
	return mean, std, true
}
