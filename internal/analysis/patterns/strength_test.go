package patterns

import (
	"testing"

	"pasignal/internal/model"
)

func TestCandleStrengthBullishMarubozu(t *testing.T) {
	// range 11, body 9, close near the high
	s := CandleStrength(candle(100, 110, 99, 109))
	if s.Direction != model.PatternBullish {
		t.Fatalf("expected bullish direction, got %s", s.Direction)
	}
	if s.BodyPercent < 0.8 || s.BodyPercent > 0.85 {
		t.Errorf("body percent out of expected band: %v", s.BodyPercent)
	}
	if s.Strength < 0.8 {
		t.Errorf("strong body closing high should score high, got %v", s.Strength)
	}
	if s.Rejection != nil {
		t.Errorf("no wick dominates, rejection must be nil: %+v", s.Rejection)
	}
}

func TestCandleStrengthDownsideRejection(t *testing.T) {
	// hammer shape: lower wick is 80% of the range
	s := CandleStrength(candle(108, 110, 100, 109))
	if s.Rejection == nil {
		t.Fatal("expected a downside rejection")
	}
	if s.Rejection.Type != model.RejectionDownside {
		t.Errorf("expected downside, got %s", s.Rejection.Type)
	}
	if s.Rejection.Strength != 0.8 {
		t.Errorf("rejection strength should equal the wick share, got %v", s.Rejection.Strength)
	}
}

func TestCandleStrengthUpsideRejection(t *testing.T) {
	s := CandleStrength(candle(102, 110, 100, 101))
	if s.Rejection == nil || s.Rejection.Type != model.RejectionUpside {
		t.Fatalf("expected upside rejection, got %+v", s.Rejection)
	}
}

func TestCandleStrengthZeroRange(t *testing.T) {
	s := CandleStrength(candle(100, 100, 100, 100))
	if s.Direction != model.PatternNeutral || s.Strength != 0 {
		t.Fatalf("zero-range candle must be neutral with zero strength, got %+v", s)
	}
}

func TestCandleStrengthBearishCloseBias(t *testing.T) {
	// bearish candle closing on its low beats one closing mid-range
	low := CandleStrength(candle(110, 111, 100, 100.5))
	mid := CandleStrength(candle(110, 111, 100, 105))
	if low.Direction != model.PatternBearish || mid.Direction != model.PatternBearish {
		t.Fatal("both candles should be bearish")
	}
	if low.Strength <= mid.Strength {
		t.Errorf("close at the low must score higher: %v vs %v", low.Strength, mid.Strength)
	}
}
