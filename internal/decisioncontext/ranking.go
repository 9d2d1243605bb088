package decisioncontext

import "github.com/onlytrade/room-server/internal/models"

// Score ranks one candidate under a trading style's per-style formula,
// plus the shared +0.05 held-position bonus.
func Score(style models.TradingStyle, f Features) float64 {
	var s float64
	switch style {
	case models.StyleMeanReversion:
		s = -1.0*f.Ret5 - 0.35*f.Ret20
		if f.RSI14 <= 45 {
			s += 0.35
		}
		if f.RSI14 >= 70 {
			s -= 0.25
		}
		if f.Trend == TrendDown {
			s -= 0.12
		}
	case models.StyleEventDriven:
		s = 0.8*f.Ret5 + 0.6*f.Ret20 + 0.22*maxFloat(0, f.VolRatio20-1)
		if f.Trend == TrendUp {
			s += 0.12
		}
		if f.Trend == TrendDown {
			s -= 0.12
		}
	case models.StyleMacroSwing:
		s = 1.3*f.Ret20 + 0.35*f.Ret5
		if f.Trend == TrendUp {
			s += 0.24
		}
		if f.Trend == TrendDown {
			s -= 0.22
		}
	default: // momentum_trend, balanced falls back to the default style
		s = 1.0*f.Ret20 + 0.8*f.Ret5 + 0.12*maxFloat(0, f.VolRatio20-1)
		if f.Trend == TrendUp {
			s += 0.2
		}
		if f.Trend == TrendDown {
			s -= 0.18
		}
	}

	if f.PositionShares > 0 {
		s += 0.05
	}
	return s
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
