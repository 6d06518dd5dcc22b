// Package structure classifies per-timeframe market structure from recent
// pivots, aggregates higher-timeframe bias, and detects BOS/CHoCH events.
package structure

import (
	"math"

	"pasignal/internal/analysis/pivots"
	"pasignal/internal/model"
)

// pivotPairs is how many recent pivot highs/lows feed the trend label.
const pivotPairs = 3

// htfWeights are the per-timeframe weights for bias aggregation. Timeframes
// not listed contribute nothing.
var htfWeights = map[string]float64{
	"1d": 0.6,
	"4h": 0.4,
}

// Analyze labels the market structure of a candle sequence: up when the last
// three pivot highs and lows both strictly ascend, down when both strictly
// descend, neutral otherwise.
func Analyze(candles []model.Candle, w int) model.TrendLabel {
	highIdx := pivots.RecentHighs(candles, w, pivotPairs)
	lowIdx := pivots.RecentLows(candles, w, pivotPairs)
	if len(highIdx) < pivotPairs || len(lowIdx) < pivotPairs {
		return model.TrendNeutral
	}

	highs := make([]float64, pivotPairs)
	for i, idx := range highIdx {
		highs[i] = candles[idx].High
	}
	lows := make([]float64, pivotPairs)
	for i, idx := range lowIdx {
		lows[i] = candles[idx].Low
	}

	switch {
	case ascending(highs) && ascending(lows):
		return model.TrendUp
	case descending(highs) && descending(lows):
		return model.TrendDown
	default:
		return model.TrendNeutral
	}
}

func ascending(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if v[i] <= v[i-1] {
			return false
		}
	}
	return true
}

func descending(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if v[i] >= v[i-1] {
			return false
		}
	}
	return true
}

// DetermineHTFBias aggregates per-timeframe structures into a weighted bias.
// Score is the weight sum of structure signs; bias is bullish at >= +0.5,
// bearish at <= -0.5, neutral between. Alignment is true iff every present
// timeframe carries the same structure label.
func DetermineHTFBias(structures map[string]model.TrendLabel) model.HTFBias {
	score := 0.0
	for tf, st := range structures {
		w := htfWeights[tf]
		switch st {
		case model.TrendUp:
			score += w
		case model.TrendDown:
			score -= w
		}
	}

	bias := model.BiasNeutral
	switch {
	case score >= 0.5:
		bias = model.BiasBullish
	case score <= -0.5:
		bias = model.BiasBearish
	}

	aligned := len(structures) > 0
	var first model.TrendLabel
	firstSet := false
	for _, st := range structures {
		if !firstSet {
			first = st
			firstSet = true
			continue
		}
		if st != first {
			aligned = false
			break
		}
	}

	return model.HTFBias{
		Bias:       bias,
		Alignment:  aligned,
		Structures: structures,
		Score:      score,
	}
}

// Alignment reports whether a trade side matches the HTF bias, with a
// normalized [0,1] strength of that bias.
func Alignment(side model.Side, bias model.HTFBias) (bool, float64) {
	strength := math.Abs(bias.Score)
	if strength > 1 {
		strength = 1
	}
	aligned := (side == model.SideLong && bias.Bias == model.BiasBullish) ||
		(side == model.SideShort && bias.Bias == model.BiasBearish)
	return aligned, strength
}
