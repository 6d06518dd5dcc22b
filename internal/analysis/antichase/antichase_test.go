package antichase

import (
	"testing"

	"pasignal/internal/model"
)

// runSeries builds n strongly bullish candles climbing 2 points each.
func runSeries(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		base := 100 + 2*float64(i)
		out[i] = model.Candle{
			Open: base, High: base + 2.2, Low: base - 0.2, Close: base + 2, Volume: 100,
		}
	}
	return out
}

// chopSeries alternates small-bodied candles around 100.
func chopSeries(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		c := model.Candle{Open: 100, High: 101, Low: 99, Close: 100.2, Volume: 100}
		if i%2 == 1 {
			c.Open, c.Close = 100.2, 100
		}
		out[i] = c
	}
	return out
}

func longSetup(price float64) *model.Setup {
	return &model.Setup{Type: model.SetupBreakout, Side: model.SideLong, Price: price}
}

func TestEvaluateVetoesExtendedRun(t *testing.T) {
	candles := runSeries(30)
	// setup origin far below: the whole run separates entry from origin
	ev := Evaluate(candles, longSetup(100), nil, DefaultConfig())
	if ev.Decision != model.ChaseNo {
		t.Fatalf("expected CHASE_NO, got %s (score %v)", ev.Decision, ev.Score)
	}
	if ev.Score < 50 {
		t.Errorf("veto requires score >= 50, got %v", ev.Score)
	}
	if ev.Metrics.ConsecutiveTrend < 5 {
		t.Errorf("fixture should count a long streak, got %d", ev.Metrics.ConsecutiveTrend)
	}
}

func TestEvaluateAcceptsFreshEntry(t *testing.T) {
	candles := chopSeries(30)
	entry := candles[len(candles)-1].Close

	ev := Evaluate(candles, longSetup(entry), nil, DefaultConfig())
	if ev.Decision != model.ChaseOK {
		t.Fatalf("expected CHASE_OK, got %s (score %v)", ev.Decision, ev.Score)
	}
	if ev.Score != 0 {
		t.Errorf("no extension, no streak, no volume: expected score 0, got %v", ev.Score)
	}
}

func TestEvaluateCautionBand(t *testing.T) {
	candles := chopSeries(30)
	last := len(candles) - 1
	candles[last] = model.Candle{Open: 102.2, High: 103, Low: 101.4, Close: 102, Volume: 100}

	// a 2% move against a 3% cap lands in the caution band without a veto
	ev := Evaluate(candles, longSetup(100), nil, DefaultConfig())
	if ev.Decision != model.ChaseOK {
		t.Fatalf("caution must not veto, got %s", ev.Decision)
	}
	if ev.Score < 25 || ev.Score >= 50 {
		t.Errorf("expected score in [25,50), got %v", ev.Score)
	}
	if ev.Reason != "extended move, enter with caution" {
		t.Errorf("unexpected reason %q", ev.Reason)
	}
}

func TestEvaluateVolumeClimaxWatchesReversal(t *testing.T) {
	candles := chopSeries(30)
	last := len(candles) - 1
	candles[last].Volume = 300 // 3x the window and its maximum
	entry := candles[last].Close

	ev := Evaluate(candles, longSetup(entry), nil, DefaultConfig())
	if ev.Decision != model.ReversalWatch {
		t.Fatalf("expected REVERSAL_WATCH on climax volume, got %s", ev.Decision)
	}
	if !ev.Metrics.VolumeClimax {
		t.Error("metrics must flag the climax")
	}
}

func TestEvaluateCounterCHoCHWatchesReversal(t *testing.T) {
	candles := chopSeries(30)
	entry := candles[len(candles)-1].Close
	event := &model.StructureEvent{Type: model.EventCHoCH, Direction: model.PatternBearish}

	ev := Evaluate(candles, longSetup(entry), event, DefaultConfig())
	if ev.Decision != model.ReversalWatch {
		t.Fatalf("structure turning against a long must watch for reversal, got %s", ev.Decision)
	}
}

func TestEvaluateAlignedCHoCHReducesScore(t *testing.T) {
	candles := chopSeries(30)
	last := len(candles) - 1
	candles[last] = model.Candle{Open: 102.2, High: 103, Low: 101.4, Close: 102, Volume: 100}
	event := &model.StructureEvent{Type: model.EventCHoCH, Direction: model.PatternBullish}

	// same extension as the caution fixture, offset by the aligned break
	ev := Evaluate(candles, longSetup(100), event, DefaultConfig())
	if ev.Decision != model.ChaseOK || ev.Score >= 25 {
		t.Fatalf("aligned CHoCH should pull the score under caution, got %s (%v)", ev.Decision, ev.Score)
	}
}

func TestEvaluateNoData(t *testing.T) {
	ev := Evaluate(nil, longSetup(100), nil, DefaultConfig())
	if ev.Decision != model.ChaseOK || ev.Reason != "no data" {
		t.Fatalf("expected permissive default without data, got %+v", ev)
	}
	ev = Evaluate(chopSeries(5), nil, nil, DefaultConfig())
	if ev.Decision != model.ChaseOK {
		t.Fatalf("nil setup must not veto, got %+v", ev)
	}
}
