package structure

import (
	"testing"
	"time"

	"pasignal/internal/model"
)

// trendSeries builds candles with pivot highs/lows at fixed spots whose
// extremes step by delta per swing. Positive delta makes an uptrend.
func trendSeries(delta float64) []model.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, 60)
	for i := range candles {
		candles[i] = model.Candle{
			Symbol: "BTCUSDT", Timeframe: "4h",
			OpenTime: start.Add(time.Duration(i) * 4 * time.Hour), CloseTime: start.Add(time.Duration(i+1) * 4 * time.Hour),
			Open: 100, High: 101, Low: 99, Close: 100, Volume: 100, IsClosed: true,
		}
	}
	highSpots := []int{8, 20, 32, 44}
	lowSpots := []int{14, 26, 38, 50}
	for k, i := range highSpots {
		candles[i].High = 120 + delta*float64(k)
	}
	for k, i := range lowSpots {
		candles[i].Low = 80 + delta*float64(k)
	}
	return candles
}

func TestAnalyzeUptrend(t *testing.T) {
	if got := Analyze(trendSeries(5), 3); got != model.TrendUp {
		t.Fatalf("expected up, got %s", got)
	}
}

func TestAnalyzeDowntrend(t *testing.T) {
	if got := Analyze(trendSeries(-5), 3); got != model.TrendDown {
		t.Fatalf("expected down, got %s", got)
	}
}

func TestAnalyzeFlatIsNeutral(t *testing.T) {
	candles := trendSeries(5)
	candles[50].Low = candles[38].Low - 1 // highs still ascend, lows turn down
	if got := Analyze(candles, 3); got != model.TrendNeutral {
		t.Fatalf("expected neutral on mixed swings, got %s", got)
	}
}

func TestAnalyzeInsufficientPivots(t *testing.T) {
	candles := trendSeries(5)[:20]
	if got := Analyze(candles, 3); got != model.TrendNeutral {
		t.Fatalf("expected neutral with too few pivots, got %s", got)
	}
}

func TestDetermineHTFBiasWeights(t *testing.T) {
	cases := []struct {
		name       string
		structures map[string]model.TrendLabel
		bias       model.BiasLabel
		score      float64
		aligned    bool
	}{
		{"both up", map[string]model.TrendLabel{"1d": model.TrendUp, "4h": model.TrendUp}, model.BiasBullish, 1.0, true},
		{"both down", map[string]model.TrendLabel{"1d": model.TrendDown, "4h": model.TrendDown}, model.BiasBearish, -1.0, true},
		{"daily up only", map[string]model.TrendLabel{"1d": model.TrendUp, "4h": model.TrendNeutral}, model.BiasBullish, 0.6, false},
		{"split", map[string]model.TrendLabel{"1d": model.TrendUp, "4h": model.TrendDown}, model.BiasNeutral, 0.2, false},
		{"four hour only", map[string]model.TrendLabel{"1d": model.TrendNeutral, "4h": model.TrendDown}, model.BiasNeutral, -0.4, false},
	}
	for _, tc := range cases {
		got := DetermineHTFBias(tc.structures)
		if got.Bias != tc.bias {
			t.Errorf("%s: expected bias %s, got %s", tc.name, tc.bias, got.Bias)
		}
		if diff := got.Score - tc.score; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("%s: expected score %v, got %v", tc.name, tc.score, got.Score)
		}
		if got.Alignment != tc.aligned {
			t.Errorf("%s: expected alignment=%v, got %v", tc.name, tc.aligned, got.Alignment)
		}
	}
}

func TestDetermineHTFBiasEmpty(t *testing.T) {
	got := DetermineHTFBias(map[string]model.TrendLabel{})
	if got.Bias != model.BiasNeutral || got.Alignment {
		t.Fatalf("empty structures must be neutral and unaligned, got %+v", got)
	}
}

func TestAlignment(t *testing.T) {
	bull := model.HTFBias{Bias: model.BiasBullish, Score: 0.6}
	if ok, strength := Alignment(model.SideLong, bull); !ok || strength != 0.6 {
		t.Errorf("long vs bullish: expected aligned 0.6, got %v %v", ok, strength)
	}
	if ok, _ := Alignment(model.SideShort, bull); ok {
		t.Error("short vs bullish must not align")
	}
	if ok, _ := Alignment(model.SideLong, model.HTFBias{Bias: model.BiasNeutral}); ok {
		t.Error("neutral bias never aligns")
	}
	if _, strength := Alignment(model.SideLong, model.HTFBias{Bias: model.BiasBullish, Score: 1.4}); strength != 1 {
		t.Errorf("strength must cap at 1, got %v", strength)
	}
}
