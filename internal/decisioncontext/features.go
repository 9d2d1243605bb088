package decisioncontext

import (
	"math"

	"github.com/onlytrade/room-server/internal/marketdata"
)

// Trend classifies the short/long moving-average relationship.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Features is the per-candidate feature vector the ranking formulas and
// the deterministic fallback rationale both read from.
type Features struct {
	Ret5           float64
	Ret20          float64
	ATR14          float64
	VolRatio20     float64
	RSI14          float64
	SMA20          float64
	SMA60          float64
	Range20DPct    float64
	Trend          Trend
	PositionShares int64
}

// ComputeFeatures derives Features from ascending daily frames (len ≥ 60
// preferred; fewer is tolerated with degraded accuracy).
func ComputeFeatures(daily []marketdata.Frame, positionShares int64) Features {
	n := len(daily)
	if n == 0 {
		return Features{Trend: TrendFlat, PositionShares: positionShares}
	}

	closes := make([]float64, n)
	for i, f := range daily {
		closes[i] = f.Close
	}

	f := Features{PositionShares: positionShares}
	f.Ret5 = pctReturn(closes, 5)
	f.Ret20 = pctReturn(closes, 20)
	f.ATR14 = atr(daily, 14)
	f.VolRatio20 = volRatio(daily, 20)
	f.RSI14 = rsi(closes, 14)
	f.SMA20 = sma(closes, 20)
	f.SMA60 = sma(closes, 60)
	f.Range20DPct = range20DPct(daily, 20, closes[n-1])

	switch {
	case f.SMA20 > f.SMA60*1.001:
		f.Trend = TrendUp
	case f.SMA20 < f.SMA60*0.999:
		f.Trend = TrendDown
	default:
		f.Trend = TrendFlat
	}

	return f
}

func pctReturn(closes []float64, lookback int) float64 {
	n := len(closes)
	if n <= lookback || closes[n-1-lookback] == 0 {
		return 0
	}
	return (closes[n-1] - closes[n-1-lookback]) / closes[n-1-lookback]
}

func sma(closes []float64, window int) float64 {
	n := len(closes)
	if n == 0 {
		return 0
	}
	if window > n {
		window = n
	}
	sum := 0.0
	for _, c := range closes[n-window:] {
		sum += c
	}
	return sum / float64(window)
}

func atr(frames []marketdata.Frame, window int) float64 {
	n := len(frames)
	if n < 2 {
		return 0
	}
	if window > n-1 {
		window = n - 1
	}
	sum := 0.0
	for i := n - window; i < n; i++ {
		prevClose := frames[i-1].Close
		tr := math.Max(frames[i].High-frames[i].Low,
			math.Max(math.Abs(frames[i].High-prevClose), math.Abs(frames[i].Low-prevClose)))
		sum += tr
	}
	return sum / float64(window)
}

func volRatio(frames []marketdata.Frame, window int) float64 {
	n := len(frames)
	if n == 0 {
		return 1
	}
	if window > n {
		window = n
	}
	sum := 0.0
	for _, f := range frames[n-window:] {
		sum += f.Volume
	}
	avg := sum / float64(window)
	if avg == 0 {
		return 1
	}
	return frames[n-1].Volume / avg
}

func rsi(closes []float64, window int) float64 {
	n := len(closes)
	if n <= window {
		return 50
	}
	var gainSum, lossSum float64
	start := n - window
	for i := start; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(window)
	avgLoss := lossSum / float64(window)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func range20DPct(frames []marketdata.Frame, window int, lastClose float64) float64 {
	n := len(frames)
	if n == 0 || lastClose == 0 {
		return 0
	}
	if window > n {
		window = n
	}
	hi := frames[n-window].High
	lo := frames[n-window].Low
	for _, f := range frames[n-window:] {
		if f.High > hi {
			hi = f.High
		}
		if f.Low < lo {
			lo = f.Low
		}
	}
	return (hi - lo) / lastClose
}
