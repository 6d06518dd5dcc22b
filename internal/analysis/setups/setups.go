// Package setups detects tradeable price-action configurations at zones:
// reversals, breakouts/breakdowns (true or false), rejections, and retests.
// Detectors run in priority order; the first match wins.
package setups

import (
	"pasignal/internal/analysis/indicator"
	"pasignal/internal/analysis/patterns"
	"pasignal/internal/analysis/zones"
	"pasignal/internal/model"
)

const (
	// retestWindow is how far back a breakout is remembered for retests.
	retestWindow = 20
	// nearZonePct caps the entry distance from a zone center for reversals.
	nearZonePct = 0.01
)

// Config tunes setup detection.
type Config struct {
	Zones                zones.Config
	VolumeSpikeThreshold float64
	MinZonesRequired     int
}

// DefaultConfig mirrors the engine defaults.
func DefaultConfig() Config {
	return Config{
		Zones:                zones.DefaultConfig(),
		VolumeSpikeThreshold: 1.5,
		MinZonesRequired:     2,
	}
}

// Detect builds zones from the candle history and runs the setup detectors
// against the current candle. Returns nil when no configuration matches or
// the zone-count gate fails.
func Detect(candles []model.Candle, cfg Config) *model.Setup {
	if len(candles) < 2 {
		return nil
	}
	zs := zones.Build(candles, cfg.Zones)
	if cfg.MinZonesRequired > 0 && zs.Total() < cfg.MinZonesRequired {
		return nil
	}

	volRatio := indicator.VolumeRatio(candles, indicator.DefaultVolumeLookback)
	spike := volRatio >= cfg.VolumeSpikeThreshold

	if s := detectBreak(candles, zs, volRatio, spike); s != nil {
		return s
	}
	if s := detectRejection(candles, zs, volRatio, spike); s != nil {
		return s
	}
	if s := detectRetest(candles, zs, volRatio, spike); s != nil {
		return s
	}
	return detectReversal(candles, zs, volRatio, spike)
}

// detectReversal looks for a directional pattern printed at a zone: bullish
// at support for LONG, bearish at resistance for SHORT. Neutral patterns
// never produce a setup.
func detectReversal(candles []model.Candle, zs model.ZoneSet, volRatio float64, spike bool) *model.Setup {
	cur := candles[len(candles)-1]
	p := patterns.DetectReversalPattern(candles)
	if p == nil || p.Type == model.PatternNeutral {
		return nil
	}

	switch p.Type {
	case model.PatternBullish:
		z := zones.Nearest(cur.Close, zs.Support, nearZonePct)
		if z == nil {
			return nil
		}
		return &model.Setup{
			Type:        model.SetupReversal,
			Side:        model.SideLong,
			Name:        "reversal_at_support",
			Price:       cur.Close,
			Zone:        z,
			Zones:       zs,
			Pattern:     p,
			VolumeSpike: spike,
			VolumeRatio: volRatio,
		}
	case model.PatternBearish:
		z := zones.Nearest(cur.Close, zs.Resistance, nearZonePct)
		if z == nil {
			return nil
		}
		return &model.Setup{
			Type:        model.SetupReversal,
			Side:        model.SideShort,
			Name:        "reversal_at_resistance",
			Price:       cur.Close,
			Zone:        z,
			Zones:       zs,
			Pattern:     p,
			VolumeSpike: spike,
			VolumeRatio: volRatio,
		}
	}
	return nil
}

// detectBreak looks for a close through a zone: previous close on the
// original side, current close strictly beyond the far edge. A volume spike
// makes it a true breakout in the break direction; without one it is a false
// break and the fade side is emitted.
func detectBreak(candles []model.Candle, zs model.ZoneSet, volRatio float64, spike bool) *model.Setup {
	prev, cur := candles[len(candles)-2], candles[len(candles)-1]

	for i := range zs.Resistance {
		z := &zs.Resistance[i]
		if prev.Close <= z.Upper && cur.Close > z.Upper {
			if spike {
				return breakSetup(model.SetupBreakout, model.SideLong, "breakout", cur.Close, z, zs, true, spike, volRatio)
			}
			return breakSetup(model.SetupFalseBreakout, model.SideShort, "false_breakout_fade", cur.Close, z, zs, false, spike, volRatio)
		}
	}
	for i := range zs.Support {
		z := &zs.Support[i]
		if prev.Close >= z.Lower && cur.Close < z.Lower {
			if spike {
				return breakSetup(model.SetupBreakdown, model.SideShort, "breakdown", cur.Close, z, zs, true, spike, volRatio)
			}
			return breakSetup(model.SetupFalseBreakdown, model.SideLong, "false_breakdown_fade", cur.Close, z, zs, false, spike, volRatio)
		}
	}
	return nil
}

// detectRejection looks for a wick that pierces a zone's outer edge with the
// close back inside the zone band and no volume spike: fade the pierce
// direction.
func detectRejection(candles []model.Candle, zs model.ZoneSet, volRatio float64, spike bool) *model.Setup {
	if spike {
		return nil
	}
	cur := candles[len(candles)-1]

	for i := range zs.Resistance {
		z := &zs.Resistance[i]
		if cur.High > z.Upper && cur.Close < z.Upper && cur.Close > z.Lower {
			return breakSetup(model.SetupFalseBreakout, model.SideShort, "resistance_rejection", cur.Close, z, zs, false, spike, volRatio)
		}
	}
	for i := range zs.Support {
		z := &zs.Support[i]
		if cur.Low < z.Lower && cur.Close > z.Lower && cur.Close < z.Upper {
			return breakSetup(model.SetupFalseBreakdown, model.SideLong, "support_rejection", cur.Close, z, zs, false, spike, volRatio)
		}
	}
	return nil
}

// detectRetest looks for a prior breakout within retestWindow candles whose
// zone price now re-touches from the breakout side, confirmed by a pattern
// in the breakout direction.
func detectRetest(candles []model.Candle, zs model.ZoneSet, volRatio float64, spike bool) *model.Setup {
	n := len(candles)
	cur := candles[n-1]
	start := n - 1 - retestWindow
	if start < 1 {
		start = 1
	}

	p := patterns.DetectReversalPattern(candles)

	for i := range zs.Resistance {
		z := &zs.Resistance[i]
		if !zones.IsTouching(cur.Close, *z) {
			continue
		}
		if p == nil || p.Type != model.PatternBullish {
			continue
		}
		for j := start; j < n-1; j++ {
			if candles[j-1].Close <= z.Upper && candles[j].Close > z.Upper {
				s := breakSetup(model.SetupRetest, model.SideLong, "breakout_retest", cur.Close, z, zs, true, spike, volRatio)
				s.Pattern = p
				return s
			}
		}
	}
	for i := range zs.Support {
		z := &zs.Support[i]
		if !zones.IsTouching(cur.Close, *z) {
			continue
		}
		if p == nil || p.Type != model.PatternBearish {
			continue
		}
		for j := start; j < n-1; j++ {
			if candles[j-1].Close >= z.Lower && candles[j].Close < z.Lower {
				s := breakSetup(model.SetupRetest, model.SideShort, "breakdown_retest", cur.Close, z, zs, true, spike, volRatio)
				s.Pattern = p
				return s
			}
		}
	}
	return nil
}

func breakSetup(t model.SetupType, side model.Side, name string, price float64, z *model.Zone, zs model.ZoneSet, isTrue, spike bool, volRatio float64) *model.Setup {
	zc := *z
	return &model.Setup{
		Type:        t,
		Side:        side,
		Name:        name,
		Price:       price,
		Zone:        &zc,
		Zones:       zs,
		IsTrue:      isTrue,
		VolumeSpike: spike,
		VolumeRatio: volRatio,
	}
}
