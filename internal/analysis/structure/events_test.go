package structure

import (
	"testing"

	"pasignal/internal/model"
)

func TestDetectBOSBullish(t *testing.T) {
	candles := trendSeries(5) // ascending highs at 120..135
	last := len(candles) - 1
	candles[last].Close = 140 // clears every pivot high
	candles[last].High = 141

	ev := DetectBOS(candles, 3, 3)
	if ev == nil {
		t.Fatal("expected a BOS event")
	}
	if ev.Type != model.EventBOS || ev.Direction != model.PatternBullish {
		t.Fatalf("expected bullish BOS, got %+v", ev)
	}
	if ev.Level != 135 {
		t.Errorf("expected level 135 (max of recent highs), got %v", ev.Level)
	}
}

func TestDetectBOSRequiresAscendingSwings(t *testing.T) {
	candles := trendSeries(-5) // descending highs: recent max below prior max
	last := len(candles) - 1
	candles[last].Close = 130
	candles[last].High = 131

	if ev := DetectBOS(candles, 3, 3); ev != nil && ev.Direction == model.PatternBullish {
		t.Fatalf("close above descending highs must not be a bullish BOS, got %+v", ev)
	}
}

func TestDetectCHoCHAgainstUptrend(t *testing.T) {
	candles := trendSeries(5) // pivot lows at 80, 85, 90, 95
	last := len(candles) - 1
	candles[last].Close = 82 // below min(85, 90, 95) of the recent 3 lows
	candles[last].Low = 81
	candles[last].Open = 96

	ev := DetectCHoCH(candles, model.TrendUp, 3, 3)
	if ev == nil {
		t.Fatal("expected a CHoCH event")
	}
	if ev.Type != model.EventCHoCH || ev.Direction != model.PatternBearish {
		t.Fatalf("expected bearish CHoCH, got %+v", ev)
	}
	if ev.Level != 85 {
		t.Errorf("expected level 85, got %v", ev.Level)
	}
}

func TestDetectCHoCHNeutralTrendNoEvent(t *testing.T) {
	candles := trendSeries(5)
	candles[len(candles)-1].Close = 60
	candles[len(candles)-1].Low = 59
	if ev := DetectCHoCH(candles, model.TrendNeutral, 3, 3); ev != nil {
		t.Fatalf("neutral trend must not produce CHoCH, got %+v", ev)
	}
}

func TestDetectEventsPrefersCHoCH(t *testing.T) {
	candles := trendSeries(-5) // downtrend, highs 120..105, lows 80..65
	last := len(candles) - 1
	candles[last].Close = 116 // above max of recent highs (115): bullish CHoCH
	candles[last].High = 117
	candles[last].Open = 100

	ev := DetectEvents(candles, model.TrendDown, 3, 3)
	if ev == nil || ev.Type != model.EventCHoCH {
		t.Fatalf("expected CHoCH preference, got %+v", ev)
	}
}
