package scoring

import (
	"math"
	"testing"

	"pasignal/internal/model"
)

func strongBull() model.Candle { return model.Candle{Open: 100, High: 110, Low: 99, Close: 109} }
func neutralBar() model.Candle { return model.Candle{Open: 100, High: 101, Low: 99, Close: 100} }
func strongBear() model.Candle { return model.Candle{Open: 109, High: 110, Low: 99, Close: 100} }

func TestScoreFullAlignment(t *testing.T) {
	in := Inputs{
		Setup: &model.Setup{
			Type: model.SetupReversal, Side: model.SideLong,
			Pattern:     &model.Pattern{Type: model.PatternBullish, Strength: 1},
			VolumeSpike: true,
		},
		Candle:      strongBull(),
		HTFBias:     model.HTFBias{Bias: model.BiasBullish, Score: 1},
		Divergence:  &model.Divergence{Type: model.PatternBullish},
		VolumeRatio: 2.0,
	}

	b := Score(in)
	if b.HTF != 30 {
		t.Errorf("fully aligned HTF must max at 30, got %v", b.HTF)
	}
	if b.Setup != 30 {
		t.Errorf("reversal with a full-strength pattern must max at 30, got %v", b.Setup)
	}
	if b.Volume != 15 {
		t.Errorf("2x volume with spike must max at 15, got %v", b.Volume)
	}
	if b.RSIBonus != DefaultRSIDivergenceBonus {
		t.Errorf("aligned divergence must grant the bonus, got %v", b.RSIBonus)
	}
	if b.Candle <= 20 || b.Candle > 25 {
		t.Errorf("strong aligned candle should score near the cap, got %v", b.Candle)
	}
	if want := b.HTF + b.Setup + b.Candle + b.Volume + b.RSIBonus; math.Abs(b.Total-want) > 1e-9 {
		t.Errorf("total must be the component sum: %v vs %v", b.Total, want)
	}
}

func TestScoreMisalignedDivergenceNoBonus(t *testing.T) {
	in := Inputs{
		Setup:       &model.Setup{Type: model.SetupBreakout, Side: model.SideLong, IsTrue: true},
		Candle:      neutralBar(),
		HTFBias:     model.HTFBias{Bias: model.BiasNeutral},
		Divergence:  &model.Divergence{Type: model.PatternBearish},
		VolumeRatio: 1.0,
	}
	if b := Score(in); b.RSIBonus != 0 {
		t.Fatalf("bearish divergence on a long must not grant the bonus, got %v", b.RSIBonus)
	}
}

func TestHTFScore(t *testing.T) {
	long := model.SideLong
	cases := []struct {
		name string
		bias model.HTFBias
		want float64
	}{
		{"aligned full", model.HTFBias{Bias: model.BiasBullish, Score: 1}, 30},
		{"aligned partial", model.HTFBias{Bias: model.BiasBullish, Score: 0.6}, 28},
		{"against", model.HTFBias{Bias: model.BiasBearish, Score: -1}, 20},
		{"neutral weak", model.HTFBias{Bias: model.BiasNeutral, Score: 0.2}, 8},
	}
	for _, tc := range cases {
		if got := htfScore(long, tc.bias); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestSetupScore(t *testing.T) {
	cases := []struct {
		name  string
		setup model.Setup
		want  float64
	}{
		{"true breakout", model.Setup{Type: model.SetupBreakout, IsTrue: true}, 25},
		{"weak breakout", model.Setup{Type: model.SetupBreakout}, 15},
		{"false breakout fade", model.Setup{Type: model.SetupFalseBreakout}, 20},
		{"retest with pattern", model.Setup{Type: model.SetupRetest, Pattern: &model.Pattern{}}, 27},
		{"retest bare", model.Setup{Type: model.SetupRetest}, 22},
		{"reversal half pattern", model.Setup{Type: model.SetupReversal, Pattern: &model.Pattern{Strength: 0.5}}, 26},
	}
	for _, tc := range cases {
		if got := setupScore(&tc.setup); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestCandleScoreDirection(t *testing.T) {
	if got := candleScore(model.SideLong, neutralBar()); got != 12 {
		t.Errorf("neutral candle must hold the base 12, got %v", got)
	}
	with := candleScore(model.SideLong, strongBull())
	against := candleScore(model.SideLong, strongBear())
	if with <= 12 {
		t.Errorf("aligned candle must score above base, got %v", with)
	}
	if against >= 12 {
		t.Errorf("opposing candle must score below base, got %v", against)
	}
}

func TestCandleScoreRejectionWick(t *testing.T) {
	// hammer: deep downside rejection supporting a long
	hammer := model.Candle{Open: 108, High: 110, Low: 100, Close: 109}
	plain := model.Candle{Open: 108.8, High: 110, Low: 107.8, Close: 109}
	if h, p := candleScore(model.SideLong, hammer), candleScore(model.SideLong, plain); h <= p {
		t.Errorf("rejection wick must add score: hammer %v vs plain %v", h, p)
	}
}

func TestVolumeScoreLadder(t *testing.T) {
	s := &model.Setup{}
	cases := []struct {
		ratio float64
		want  float64
	}{
		{2.5, 15}, {1.7, 12}, {1.3, 10}, {1.0, 5}, {0.5, 2},
	}
	for _, tc := range cases {
		if got := volumeScore(s, tc.ratio); got != tc.want {
			t.Errorf("ratio %v: expected %v, got %v", tc.ratio, tc.want, got)
		}
	}
	spiked := &model.Setup{VolumeSpike: true}
	if got := volumeScore(spiked, 1.0); got != 8 {
		t.Errorf("spike adds 3: expected 8, got %v", got)
	}
	if got := volumeScore(spiked, 2.5); got != 15 {
		t.Errorf("spike must clamp at the cap, got %v", got)
	}
}
