// Package antichase scores how far price has already travelled from a setup
// origin and vetoes or qualifies entries that would chase the move.
package antichase

import (
	"math"

	"pasignal/internal/analysis/indicator"
	"pasignal/internal/analysis/patterns"
	"pasignal/internal/analysis/regime"
	"pasignal/internal/model"
)

const (
	// DefaultMaxATR is the ATR-multiple move that saturates extension risk.
	DefaultMaxATR = 2.0
	// DefaultMaxPct is the percent move that saturates extension risk.
	DefaultMaxPct = 3.0
	// climaxRatio is the volume ratio that marks a climax candidate.
	climaxRatio = 2.5
	// climaxLookback is the window a climax must dominate.
	climaxLookback = 20
	// momentumLookback is how many candles feed the momentum read.
	momentumLookback = 6
)

// Config carries the extension thresholds.
type Config struct {
	MaxATR float64
	MaxPct float64
}

// DefaultConfig mirrors the engine defaults.
func DefaultConfig() Config {
	return Config{MaxATR: DefaultMaxATR, MaxPct: DefaultMaxPct}
}

// Evaluate scores the chase risk of entering at the current price for a
// setup anchored at setup.Price. Higher scores are riskier; >= 50 is a veto.
func Evaluate(candles []model.Candle, setup *model.Setup, event *model.StructureEvent, cfg Config) *model.ChaseEval {
	if len(candles) == 0 || setup == nil {
		return &model.ChaseEval{Decision: model.ChaseOK, Reason: "no data"}
	}
	if cfg.MaxATR <= 0 {
		cfg.MaxATR = DefaultMaxATR
	}
	if cfg.MaxPct <= 0 {
		cfg.MaxPct = DefaultMaxPct
	}

	cur := candles[len(candles)-1]
	m := measure(candles, cur, setup)

	score := 0.0
	reason := "within range"

	ext := extensionScore(m, cfg)
	score += ext
	if ext >= 40 {
		reason = "overextended from setup origin"
	}

	switch {
	case m.ConsecutiveTrend >= 5:
		score += 20
	case m.ConsecutiveTrend >= 3:
		score += 15
	case m.ConsecutiveTrend >= 2:
		score += 10
	}

	strength := patterns.CandleStrength(cur).Strength
	switch {
	case m.BodyRatio > 0.7 && strength > 0.7:
		score += 15
	case m.BodyRatio > 0.5:
		score += 8
	}

	if m.VolumeClimax {
		score -= 15
	} else if m.VolumeRatio >= 1.5 {
		score += 10
	}

	if m.SlowingDown {
		score -= 20
	} else if m.Accelerating {
		score += 10
	}

	counterCHoCH := false
	if event != nil && event.Type == model.EventCHoCH {
		aligned := (setup.Side == model.SideLong && event.Direction == model.PatternBullish) ||
			(setup.Side == model.SideShort && event.Direction == model.PatternBearish)
		if aligned {
			score -= 25
		} else {
			counterCHoCH = true
		}
	}

	decision := model.ChaseOK
	switch {
	case score >= 50:
		decision = model.ChaseNo
		reason = "price has run too far, do not chase"
	case score >= 25:
		reason = "extended move, enter with caution"
	default:
		if m.VolumeClimax || (m.ConsecutiveTrend >= 5 && m.SlowingDown) || counterCHoCH {
			decision = model.ReversalWatch
			reason = "exhaustion signs, watch for reversal"
		}
	}

	return &model.ChaseEval{Decision: decision, Reason: reason, Score: score, Metrics: m}
}

func measure(candles []model.Candle, cur model.Candle, setup *model.Setup) model.ChaseMetrics {
	atr := regime.ATR(candles, regime.DefaultATRPeriod)

	atrMove := 0.0
	if atr > 0 {
		atrMove = math.Abs(cur.Close-setup.Price) / atr
	}
	pctMove := 0.0
	if setup.Price != 0 {
		pctMove = math.Abs(cur.Close-setup.Price) / setup.Price * 100
	}

	bodyRatio := 0.0
	if r := cur.Range(); r > 0 {
		bodyRatio = cur.Body() / r
	}

	volRatio := indicator.VolumeRatio(candles, climaxLookback)
	climax := volRatio >= climaxRatio && isVolumeMax(candles, climaxLookback)

	consec := consecutiveTrend(candles)
	accel, slow := momentum(candles)

	return model.ChaseMetrics{
		ATRMove:          atrMove,
		PctMove:          pctMove,
		BodyRatio:        bodyRatio,
		VolumeRatio:      volRatio,
		VolumeClimax:     climax,
		ConsecutiveTrend: consec,
		Accelerating:     accel,
		SlowingDown:      slow,
	}
}

// extensionScore is up to +40: saturated when either move exceeds its
// threshold, otherwise the larger linear fraction of the two.
func extensionScore(m model.ChaseMetrics, cfg Config) float64 {
	if m.ATRMove > cfg.MaxATR || m.PctMove > cfg.MaxPct {
		return 40
	}
	frac := math.Max(m.ATRMove/cfg.MaxATR, m.PctMove/cfg.MaxPct)
	return 40 * frac
}

// isVolumeMax reports whether the last candle carries the greatest volume of
// the trailing window.
func isVolumeMax(candles []model.Candle, lookback int) bool {
	n := len(candles)
	if n == 0 {
		return false
	}
	start := n - lookback
	if start < 0 {
		start = 0
	}
	last := candles[n-1].Volume
	for i := start; i < n-1; i++ {
		if candles[i].Volume > last {
			return false
		}
	}
	return true
}

// consecutiveTrend counts same-colour candles ending at the tail.
func consecutiveTrend(candles []model.Candle) int {
	n := len(candles)
	if n == 0 {
		return 0
	}
	last := candles[n-1]
	bullish := last.IsBullish()
	if !bullish && !last.IsBearish() {
		return 0
	}
	count := 1
	for i := n - 2; i >= 0; i-- {
		if bullish && candles[i].IsBullish() || !bullish && candles[i].IsBearish() {
			count++
			continue
		}
		break
	}
	return count
}

// momentum compares the mean body of the last half of the momentum window
// against the first half: growing bodies accelerate, shrinking bodies slow.
func momentum(candles []model.Candle) (accelerating, slowing bool) {
	n := len(candles)
	if n < momentumLookback {
		return false, false
	}
	w := candles[n-momentumLookback:]
	half := momentumLookback / 2

	early, late := 0.0, 0.0
	for i := 0; i < half; i++ {
		early += w[i].Body()
	}
	for i := half; i < momentumLookback; i++ {
		late += w[i].Body()
	}
	if early == 0 {
		return late > 0, false
	}
	ratio := late / early
	return ratio > 1.3, ratio < 0.7
}
