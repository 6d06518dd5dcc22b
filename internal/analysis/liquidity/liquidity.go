// Package liquidity detects sweeps: wicks that penetrate a reference level
// (swing extreme or zone boundary) and close back inside.
package liquidity

import (
	"sort"

	"pasignal/internal/analysis/pivots"
	"pasignal/internal/model"
)

// DefaultLookback is how many recent swings and zones are checked.
const DefaultLookback = 5

// DetectSweep inspects the current (last) candle for a liquidity grab
// against recent swing lows/highs and zone boundaries. Swings are checked
// newest first, then zones; the first match wins.
func DetectSweep(candles []model.Candle, zones model.ZoneSet, w, lookback int) *model.Sweep {
	if len(candles) == 0 {
		return nil
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	cur := candles[len(candles)-1]
	// the current candle cannot sweep itself
	prior := candles[:len(candles)-1]

	lowIdx := pivots.RecentLows(prior, w, lookback)
	for i := len(lowIdx) - 1; i >= 0; i-- {
		ref := prior[lowIdx[i]].Low
		if s := bullishSweep(cur, ref, model.SweepSwingLow); s != nil {
			return s
		}
	}
	highIdx := pivots.RecentHighs(prior, w, lookback)
	for i := len(highIdx) - 1; i >= 0; i-- {
		ref := prior[highIdx[i]].High
		if s := bearishSweep(cur, ref, model.SweepSwingHigh); s != nil {
			return s
		}
	}

	support, resistance := recentZones(zones, lookback)
	for _, z := range support {
		if s := bullishSweep(cur, z.Lower, model.SweepZoneBoundary); s != nil {
			return s
		}
	}
	for _, z := range resistance {
		if s := bearishSweep(cur, z.Upper, model.SweepZoneBoundary); s != nil {
			return s
		}
	}
	return nil
}

func bullishSweep(c model.Candle, ref float64, kind model.SweepReference) *model.Sweep {
	if c.Low < ref && c.Close > ref {
		return &model.Sweep{
			Direction: model.PatternBullish,
			Reference: kind,
			Level:     ref,
			Strength:  closePosition(c),
		}
	}
	return nil
}

func bearishSweep(c model.Candle, ref float64, kind model.SweepReference) *model.Sweep {
	if c.High > ref && c.Close < ref {
		return &model.Sweep{
			Direction: model.PatternBearish,
			Reference: kind,
			Level:     ref,
			Strength:  1 - closePosition(c),
		}
	}
	return nil
}

// closePosition is where the close sits within the candle range, in [0,1].
func closePosition(c model.Candle) float64 {
	r := c.Range()
	if r <= 0 {
		return 0
	}
	return (c.Close - c.Low) / r
}

// recentZones returns the most recent lookback zones per side, newest first.
func recentZones(zones model.ZoneSet, lookback int) (support, resistance []model.Zone) {
	support = byNewest(zones.Support, lookback)
	resistance = byNewest(zones.Resistance, lookback)
	return support, resistance
}

func byNewest(zs []model.Zone, k int) []model.Zone {
	out := make([]model.Zone, len(zs))
	copy(out, zs)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
