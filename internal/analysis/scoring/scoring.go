// Package scoring computes the composite signal score and the zone-anchored
// stop-loss and take-profit levels for a setup.
package scoring

import (
	"math"

	"pasignal/internal/analysis/patterns"
	"pasignal/internal/analysis/structure"
	"pasignal/internal/model"
)

// DefaultRSIDivergenceBonus is the score bonus for an aligned divergence.
const DefaultRSIDivergenceBonus = 10.0

// Inputs carries everything the score depends on.
type Inputs struct {
	Setup              *model.Setup
	Candle             model.Candle
	HTFBias            model.HTFBias
	Divergence         *model.Divergence
	VolumeRatio        float64
	RSIDivergenceBonus float64
}

// Score itemizes the composite score: HTF alignment 0-30, setup quality
// 0-30, candle strength 0-25, volume 0-15, plus the divergence bonus.
func Score(in Inputs) model.ScoreBreakdown {
	bonus := in.RSIDivergenceBonus
	if bonus <= 0 {
		bonus = DefaultRSIDivergenceBonus
	}

	b := model.ScoreBreakdown{
		HTF:    htfScore(in.Setup.Side, in.HTFBias),
		Setup:  setupScore(in.Setup),
		Candle: candleScore(in.Setup.Side, in.Candle),
		Volume: volumeScore(in.Setup, in.VolumeRatio),
	}
	if in.Divergence != nil && divergenceAligned(in.Setup.Side, in.Divergence) {
		b.RSIBonus = bonus
	}
	b.Total = b.HTF + b.Setup + b.Candle + b.Volume + b.RSIBonus
	return b
}

// htfScore rewards trading with the higher-timeframe bias: 25 + 5*strength
// when aligned, 5 + 15*strength otherwise.
func htfScore(side model.Side, bias model.HTFBias) float64 {
	aligned, strength := structure.Alignment(side, bias)
	if aligned {
		return clamp(25+5*strength, 0, 30)
	}
	return clamp(5+15*strength, 0, 30)
}

func setupScore(s *model.Setup) float64 {
	score := 10.0
	switch s.Type {
	case model.SetupReversal:
		score += 12
		if s.Pattern != nil {
			score += s.Pattern.Strength * 8
		}
	case model.SetupBreakout, model.SetupBreakdown:
		if s.IsTrue {
			score += 15
		} else {
			score += 5
		}
	case model.SetupRetest:
		score += 12
		if s.Pattern != nil {
			score += 5
		}
	case model.SetupFalseBreakout, model.SetupFalseBreakdown:
		score += 10
	default:
		score += 5
	}
	return clamp(score, 0, 30)
}

func candleScore(side model.Side, c model.Candle) float64 {
	cs := patterns.CandleStrength(c)
	score := 12.0

	aligned := (side == model.SideLong && cs.Direction == model.PatternBullish) ||
		(side == model.SideShort && cs.Direction == model.PatternBearish)
	if aligned {
		score += 10 * cs.Strength
		inHalf := (side == model.SideLong && cs.CloseLocation > 0.5) ||
			(side == model.SideShort && cs.CloseLocation < 0.5)
		if inHalf {
			score += 3
		}
	} else if cs.Direction != model.PatternNeutral {
		score -= 6
	}

	if cs.Rejection != nil {
		opposes := (side == model.SideLong && cs.Rejection.Type == model.RejectionDownside) ||
			(side == model.SideShort && cs.Rejection.Type == model.RejectionUpside)
		if opposes {
			score += 4 * cs.Rejection.Strength
		}
	}
	return clamp(score, 0, 25)
}

func volumeScore(s *model.Setup, ratio float64) float64 {
	score := 5.0
	switch {
	case ratio >= 2.0:
		score += 10
	case ratio >= 1.5:
		score += 7
	case ratio >= 1.2:
		score += 5
	case ratio < 0.8:
		score -= 3
	}
	if s.VolumeSpike {
		score += 3
	}
	return clamp(score, 0, 15)
}

func divergenceAligned(side model.Side, d *model.Divergence) bool {
	return (side == model.SideLong && d.Type == model.PatternBullish) ||
		(side == model.SideShort && d.Type == model.PatternBearish)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
