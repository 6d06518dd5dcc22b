// Package zones builds, merges, and queries support/resistance bands from
// pivot extremes. Zones are rebuilt per analysis pass and never persisted.
package zones

import (
	"fmt"
	"math"
	"sort"
	"time"

	"pasignal/internal/analysis/pivots"
	"pasignal/internal/model"
)

// maxSeeds caps how many recent pivots seed zones per side.
const maxSeeds = 20

// Config tunes zone construction.
type Config struct {
	Lookback     int     // candles considered for pivots
	Window       int     // pivot window
	TolerancePct float64 // half-width of a zone as a fraction of center
}

// DefaultConfig mirrors the engine defaults.
func DefaultConfig() Config {
	return Config{Lookback: 200, Window: pivots.DefaultWindow, TolerancePct: 0.005}
}

// Build constructs merged support and resistance zones from the last
// cfg.Lookback candles.
func Build(candles []model.Candle, cfg Config) model.ZoneSet {
	if cfg.TolerancePct <= 0 {
		cfg.TolerancePct = DefaultConfig().TolerancePct
	}
	if cfg.Window <= 0 {
		cfg.Window = pivots.DefaultWindow
	}
	if cfg.Lookback > 0 && len(candles) > cfg.Lookback {
		candles = candles[len(candles)-cfg.Lookback:]
	}

	highIdx := pivots.RecentHighs(candles, cfg.Window, maxSeeds)
	lowIdx := pivots.RecentLows(candles, cfg.Window, maxSeeds)

	resistance := make([]model.Zone, 0, len(highIdx))
	for _, i := range highIdx {
		resistance = append(resistance, Around(model.ZoneResistance, candles[i].High, candles[i].OpenTime, cfg.TolerancePct))
	}
	support := make([]model.Zone, 0, len(lowIdx))
	for _, i := range lowIdx {
		support = append(support, Around(model.ZoneSupport, candles[i].Low, candles[i].OpenTime, cfg.TolerancePct))
	}

	return model.ZoneSet{
		Support:    Merge(support, cfg.TolerancePct),
		Resistance: Merge(resistance, cfg.TolerancePct),
	}
}

// Around builds a single zone band centered on a pivot extreme.
func Around(t model.ZoneType, center float64, ts time.Time, tol float64) model.Zone {
	return model.Zone{
		Type:      t,
		Center:    center,
		Lower:     center * (1 - tol),
		Upper:     center * (1 + tol),
		Timestamp: ts,
		Touches:   1,
		Key:       ZoneKey(t, center),
	}
}

// ZoneKey returns the stable identity of a zone: equal (type, center) pairs
// always produce the same key.
func ZoneKey(t model.ZoneType, center float64) string {
	return fmt.Sprintf("%s_%.2f", t, center)
}

// Merge sorts zones by center and sweeps left to right, folding adjacent
// zones whose centers differ by less than 2*tol (as a fraction of the lower
// center). Merging averages centers, unions bounds, and sums touches.
// Merge is idempotent: merged zones have pairwise center distance >= 2*tol.
func Merge(zs []model.Zone, tol float64) []model.Zone {
	if len(zs) < 2 {
		return zs
	}
	sort.Slice(zs, func(i, j int) bool { return zs[i].Center < zs[j].Center })

	out := make([]model.Zone, 0, len(zs))
	cur := zs[0]
	for _, z := range zs[1:] {
		if withinMergeDistance(cur.Center, z.Center, tol) {
			cur = fold(cur, z)
			continue
		}
		out = append(out, cur)
		cur = z
	}
	out = append(out, cur)
	return out
}

func withinMergeDistance(a, b float64, tol float64) bool {
	lo := math.Min(a, b)
	if lo == 0 {
		return a == b
	}
	return math.Abs(a-b)/lo < 2*tol
}

func fold(a, b model.Zone) model.Zone {
	center := (a.Center + b.Center) / 2
	ts := a.Timestamp
	if b.Timestamp.After(ts) {
		ts = b.Timestamp
	}
	return model.Zone{
		Type:      a.Type,
		Center:    center,
		Lower:     math.Min(a.Lower, b.Lower),
		Upper:     math.Max(a.Upper, b.Upper),
		Timestamp: ts,
		Touches:   a.Touches + b.Touches,
		Key:       ZoneKey(a.Type, center),
	}
}

// IsTouching reports whether price falls inside the zone band.
func IsTouching(price float64, z model.Zone) bool {
	return price >= z.Lower && price <= z.Upper
}

// Nearest returns the zone whose center is closest to price, provided the
// distance is within maxPct of price. Returns nil when none qualifies.
func Nearest(price float64, zs []model.Zone, maxPct float64) *model.Zone {
	var best *model.Zone
	bestDist := math.Inf(1)
	for i := range zs {
		d := math.Abs(zs[i].Center - price)
		if d < bestDist {
			bestDist = d
			best = &zs[i]
		}
	}
	if best == nil || price == 0 {
		return nil
	}
	if maxPct > 0 && bestDist/price > maxPct {
		return nil
	}
	z := *best
	return &z
}

// NextOpposing returns up to k zones strictly on the profit side of entry,
// ordered by distance: resistances above entry for LONG, supports below for
// SHORT.
func NextOpposing(entry float64, zs model.ZoneSet, side model.Side, k int) []model.Zone {
	var pool []model.Zone
	if side == model.SideLong {
		for _, z := range zs.Resistance {
			if z.Center > entry {
				pool = append(pool, z)
			}
		}
	} else {
		for _, z := range zs.Support {
			if z.Center < entry {
				pool = append(pool, z)
			}
		}
	}
	sort.Slice(pool, func(i, j int) bool {
		return math.Abs(pool[i].Center-entry) < math.Abs(pool[j].Center-entry)
	})
	if k > 0 && len(pool) > k {
		pool = pool[:k]
	}
	return pool
}

// StopLossZone returns the nearest zone strictly on the loss side of entry:
// the closest support below for LONG, the closest resistance above for SHORT.
func StopLossZone(entry float64, zs model.ZoneSet, side model.Side) *model.Zone {
	var best *model.Zone
	bestDist := math.Inf(1)
	if side == model.SideLong {
		for i := range zs.Support {
			z := &zs.Support[i]
			if z.Center < entry && entry-z.Center < bestDist {
				bestDist = entry - z.Center
				best = z
			}
		}
	} else {
		for i := range zs.Resistance {
			z := &zs.Resistance[i]
			if z.Center > entry && z.Center-entry < bestDist {
				bestDist = z.Center - entry
				best = z
			}
		}
	}
	if best == nil {
		return nil
	}
	z := *best
	return &z
}
