// Package patterns recognises single, two and three candle reversal patterns
// and measures per-candle anatomy. Detection is a priority-ordered table of
// detectors; the first match wins.
package patterns

import (
	"math"

	"pasignal/internal/model"
)

const (
	// pinBarBodyMax is the maximum body as a fraction of range for a pin bar.
	pinBarBodyMax = 0.30
	// pinBarWickMin is the minimum dominant wick as a fraction of range.
	pinBarWickMin = 0.60
	// pinBarOppositeMax is the maximum opposite wick as a fraction of range.
	pinBarOppositeMax = 0.20
	// dojiBodyMax is the maximum body as a fraction of range for a doji.
	dojiBodyMax = 0.05
	// tweezerTolerance is how close two extremes must be, relative to price.
	tweezerTolerance = 0.002
)

// DetectReversalPattern returns the highest-priority pattern formed by the
// tail of the candle sequence, or nil when none matches. Priority runs
// three-candle first, then two-candle, then single-candle.
func DetectReversalPattern(candles []model.Candle) *model.Pattern {
	n := len(candles)
	if n == 0 {
		return nil
	}

	if n >= 3 {
		if p := Star(candles[n-3], candles[n-2], candles[n-1]); p != nil {
			return p
		}
	}
	if n >= 2 {
		prev, cur := candles[n-2], candles[n-1]
		if p := TwoBarReversal(prev, cur); p != nil {
			return p
		}
		if p := Tweezer(prev, cur); p != nil {
			return p
		}
		if p := Engulfing(prev, cur); p != nil {
			return p
		}
		if p := InsideBar(prev, cur); p != nil {
			return p
		}
	}
	if p := PinBar(candles[n-1]); p != nil {
		return p
	}
	return Doji(candles[n-1])
}

// PinBar detects a hammer (bullish) or shooting star (bearish): small body,
// one dominant wick, negligible opposite wick.
func PinBar(c model.Candle) *model.Pattern {
	r := c.Range()
	if r <= 0 {
		return nil
	}
	body := c.Body() / r
	upper := (c.High - math.Max(c.Open, c.Close)) / r
	lower := (math.Min(c.Open, c.Close) - c.Low) / r
	if body >= pinBarBodyMax {
		return nil
	}

	if lower > pinBarWickMin && upper < pinBarOppositeMax {
		return &model.Pattern{
			Name:     "hammer",
			Type:     model.PatternBullish,
			Strength: clamp01(lower + (pinBarOppositeMax - upper)),
		}
	}
	if upper > pinBarWickMin && lower < pinBarOppositeMax {
		return &model.Pattern{
			Name:     "shooting_star",
			Type:     model.PatternBearish,
			Strength: clamp01(upper + (pinBarOppositeMax - lower)),
		}
	}
	return nil
}

// Doji detects a near-zero body candle. Dojis are neutral and never carry a
// direction on their own.
func Doji(c model.Candle) *model.Pattern {
	r := c.Range()
	if r <= 0 {
		return nil
	}
	if c.Body()/r < dojiBodyMax {
		return &model.Pattern{Name: "doji", Type: model.PatternNeutral, Strength: 0.3}
	}
	return nil
}

// Engulfing detects a bullish or bearish engulfing: opposite colours, the
// current body containing and exceeding the previous body.
func Engulfing(prev, cur model.Candle) *model.Pattern {
	if prev.Body() <= 0 || cur.Body() <= prev.Body() {
		return nil
	}
	if cur.IsBullish() && prev.IsBearish() &&
		cur.Open <= prev.Close && cur.Close >= prev.Open {
		return &model.Pattern{
			Name:     "bullish_engulfing",
			Type:     model.PatternBullish,
			Strength: engulfStrength(cur.Body(), prev.Body()),
		}
	}
	if cur.IsBearish() && prev.IsBullish() &&
		cur.Open >= prev.Close && cur.Close <= prev.Open {
		return &model.Pattern{
			Name:     "bearish_engulfing",
			Type:     model.PatternBearish,
			Strength: engulfStrength(cur.Body(), prev.Body()),
		}
	}
	return nil
}

func engulfStrength(cur, prev float64) float64 {
	return clamp01(0.5 + 0.25*(cur/prev-1))
}

// Tweezer detects tweezer tops and bottoms: two opposite-colour candles whose
// relevant extremes match within tweezerTolerance of price.
func Tweezer(prev, cur model.Candle) *model.Pattern {
	if cur.Close == 0 {
		return nil
	}
	tol := cur.Close * tweezerTolerance
	if prev.IsBullish() && cur.IsBearish() && math.Abs(prev.High-cur.High) <= tol {
		return &model.Pattern{Name: "tweezer_top", Type: model.PatternBearish, Strength: 0.65}
	}
	if prev.IsBearish() && cur.IsBullish() && math.Abs(prev.Low-cur.Low) <= tol {
		return &model.Pattern{Name: "tweezer_bottom", Type: model.PatternBullish, Strength: 0.65}
	}
	return nil
}

// InsideBar detects a candle whose range sits strictly within the previous
// candle's range. Inside bars are neutral compression, not a directional call.
func InsideBar(prev, cur model.Candle) *model.Pattern {
	if cur.High < prev.High && cur.Low > prev.Low {
		return &model.Pattern{Name: "inside_bar", Type: model.PatternNeutral, Strength: 0.4}
	}
	return nil
}

// TwoBarReversal detects a new extreme immediately rejected: the current
// candle prints a lower low than the previous then closes above the previous
// high (bullish), or a higher high then closes below the previous low
// (bearish).
func TwoBarReversal(prev, cur model.Candle) *model.Pattern {
	if cur.Low < prev.Low && cur.Close > prev.High && cur.IsBullish() {
		return &model.Pattern{Name: "two_bar_reversal", Type: model.PatternBullish, Strength: 0.8}
	}
	if cur.High > prev.High && cur.Close < prev.Low && cur.IsBearish() {
		return &model.Pattern{Name: "two_bar_reversal", Type: model.PatternBearish, Strength: 0.8}
	}
	return nil
}

// Star detects morning and evening stars: a large directional candle, a
// small-body star, then an opposite-direction candle closing past the
// midpoint of the first body.
func Star(first, star, last model.Candle) *model.Pattern {
	fr := first.Range()
	if fr <= 0 {
		return nil
	}
	if first.Body()/fr < 0.5 {
		return nil
	}
	if sr := star.Range(); sr > 0 && star.Body()/sr > 0.3 {
		return nil
	}
	mid := (first.Open + first.Close) / 2

	if first.IsBearish() && last.IsBullish() && last.Close > mid {
		return &model.Pattern{Name: "morning_star", Type: model.PatternBullish, Strength: starStrength(last.Close, mid, first)}
	}
	if first.IsBullish() && last.IsBearish() && last.Close < mid {
		return &model.Pattern{Name: "evening_star", Type: model.PatternBearish, Strength: starStrength(last.Close, mid, first)}
	}
	return nil
}

func starStrength(close, mid float64, first model.Candle) float64 {
	if first.Body() == 0 {
		return 0.9
	}
	depth := math.Abs(close-mid) / first.Body()
	return clamp01(0.8 + 0.4*depth)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
