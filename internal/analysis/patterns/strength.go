package patterns

import "pasignal/internal/model"

// rejectionWickMin is the minimum wick fraction that counts as a rejection.
const rejectionWickMin = 0.5

// CandleStrength measures the anatomy of a single candle: body share, close
// location within the range, wick shares, and any wick rejection. Zero-range
// candles are degenerate and report neutral with zero strength.
func CandleStrength(c model.Candle) model.CandleStrength {
	r := c.Range()
	if r <= 0 {
		return model.CandleStrength{Direction: model.PatternNeutral}
	}

	body := c.Body() / r
	closeLoc := (c.Close - c.Low) / r
	upper := (c.High - max(c.Open, c.Close)) / r
	lower := (min(c.Open, c.Close) - c.Low) / r

	direction := model.PatternNeutral
	if c.IsBullish() {
		direction = model.PatternBullish
	} else if c.IsBearish() {
		direction = model.PatternBearish
	}

	var rejection *model.Rejection
	switch {
	case upper > rejectionWickMin:
		rejection = &model.Rejection{Type: model.RejectionUpside, Strength: clamp01(upper)}
	case lower > rejectionWickMin:
		rejection = &model.Rejection{Type: model.RejectionDownside, Strength: clamp01(lower)}
	}

	strength := clamp01(0.6*body + 0.4*directionalCloseBias(direction, closeLoc))

	return model.CandleStrength{
		BodyPercent:      body,
		CloseLocation:    closeLoc,
		UpperWickPercent: upper,
		LowerWickPercent: lower,
		Rejection:        rejection,
		Direction:        direction,
		Strength:         strength,
	}
}

// directionalCloseBias rewards closes near the extreme the candle is pushing
// toward: the high for bullish candles, the low for bearish ones.
func directionalCloseBias(dir model.PatternType, closeLoc float64) float64 {
	switch dir {
	case model.PatternBullish:
		return closeLoc
	case model.PatternBearish:
		return 1 - closeLoc
	default:
		return 0
	}
}
