// Package regime classifies the market state from volatility and drift:
// expansion, trend, or range, with a confidence in [0.3, 1.0].
package regime

import (
	"math"

	"pasignal/internal/model"
)

const (
	// DefaultATRPeriod is the true-range averaging window.
	DefaultATRPeriod = 14
	// DefaultSlopePeriod is the close-regression window.
	DefaultSlopePeriod = 20
	// historicalShift is how far back the reference ATR window ends.
	historicalShift = 25

	expansionRatio = 1.5
	trendSlopeMin  = 0.3
	rangeRatioMax  = 0.8
	rangeSlopeMax  = 0.2
	minConfidence  = 0.3
	maxConfidence  = 1.0
)

// ATR returns the simple mean of the last period true ranges. True range is
// max(high-low, |high-prevClose|, |low-prevClose|); the first candle has no
// previous close and uses high-low.
func ATR(candles []model.Candle, period int) float64 {
	if period <= 0 {
		period = DefaultATRPeriod
	}
	n := len(candles)
	if n == 0 {
		return 0
	}

	start := n - period
	if start < 0 {
		start = 0
	}
	sum := 0.0
	count := 0
	for i := start; i < n; i++ {
		tr := candles[i].High - candles[i].Low
		if i > 0 {
			prevClose := candles[i-1].Close
			tr = math.Max(tr, math.Abs(candles[i].High-prevClose))
			tr = math.Max(tr, math.Abs(candles[i].Low-prevClose))
		}
		sum += tr
		count++
	}
	return sum / float64(count)
}

// Slope returns the OLS slope of closes over the last period candles,
// normalised by the average close and scaled by 100.
func Slope(candles []model.Candle, period int) float64 {
	if period <= 0 {
		period = DefaultSlopePeriod
	}
	n := len(candles)
	if n < 2 {
		return 0
	}
	if n > period {
		candles = candles[n-period:]
		n = period
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, c := range candles {
		x := float64(i)
		sumX += x
		sumY += c.Close
		sumXY += x * c.Close
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	avg := sumY / fn
	if avg == 0 {
		return 0
	}
	return slope / avg * 100
}

// Detect classifies the regime from ATR expansion and normalised slope,
// falling back on the structure label when neither volatility nor drift is
// decisive.
func Detect(candles []model.Candle, structure model.TrendLabel) model.Regime {
	atr := ATR(candles, DefaultATRPeriod)
	slope := Slope(candles, DefaultSlopePeriod)

	ratio := 1.0
	if len(candles) > historicalShift {
		hist := ATR(candles[:len(candles)-historicalShift], DefaultATRPeriod)
		if hist > 0 {
			ratio = atr / hist
		}
	}

	label, confidence := classify(ratio, slope, structure)
	return model.Regime{
		Label:      label,
		Confidence: clampConfidence(confidence),
		ATR:        atr,
		ATRRatio:   ratio,
		Slope:      slope,
	}
}

func classify(ratio, slope float64, structure model.TrendLabel) (model.RegimeLabel, float64) {
	abs := math.Abs(slope)

	if ratio > expansionRatio {
		return model.RegimeExpansion, 0.5 + (ratio-expansionRatio)/2
	}
	if abs > trendSlopeMin && structure != model.TrendNeutral {
		label := model.RegimeTrendUp
		if structure == model.TrendDown {
			label = model.RegimeTrendDown
		}
		return label, 0.5 + abs/4
	}
	if ratio < rangeRatioMax && abs < rangeSlopeMax {
		return model.RegimeRange, 0.5 + (rangeRatioMax-ratio)/2
	}

	switch structure {
	case model.TrendUp:
		return model.RegimeTrendUp, minConfidence
	case model.TrendDown:
		return model.RegimeTrendDown, minConfidence
	default:
		return model.RegimeRange, minConfidence
	}
}

func clampConfidence(c float64) float64 {
	if c < minConfidence {
		return minConfidence
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}
