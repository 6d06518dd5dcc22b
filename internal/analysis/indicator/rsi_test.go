package indicator

import (
	"math"
	"testing"

	"pasignal/internal/model"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRSIAllGainsSaturates(t *testing.T) {
	r := NewRSI(3)
	for _, c := range []float64{100, 101, 102, 103} {
		r.Update(c)
	}
	if !r.Ready() {
		t.Fatal("expected ready after period+1 closes")
	}
	if r.Value() != 100 {
		t.Fatalf("monotone gains must pin RSI at 100, got %v", r.Value())
	}
}

func TestRSIAllLossesFloors(t *testing.T) {
	r := NewRSI(3)
	for _, c := range []float64{103, 102, 101, 100} {
		r.Update(c)
	}
	if r.Value() != 0 {
		t.Fatalf("monotone losses must pin RSI at 0, got %v", r.Value())
	}
}

func TestRSIWilderRecurrence(t *testing.T) {
	// period 2 over 100, 102, 101, 103:
	// warmup averages gain=1, loss=0.5 -> rs=2 -> rsi=66.66..
	// next delta +2: gain=(1+2)/2=1.5, loss=0.25 -> rs=6 -> rsi=85.714..
	r := NewRSI(2)
	closes := []float64{100, 102, 101}
	for _, c := range closes {
		r.Update(c)
	}
	if want := 100.0 - 100.0/3.0; !almostEqual(r.Value(), want) {
		t.Errorf("after warmup: expected %v, got %v", want, r.Value())
	}
	r.Update(103)
	if want := 100.0 - 100.0/7.0; !almostEqual(r.Value(), want) {
		t.Errorf("after smoothing step: expected %v, got %v", want, r.Value())
	}
}

func TestRSINotReadyBeforePeriod(t *testing.T) {
	r := NewRSI(14)
	for i := 0; i < 14; i++ {
		r.Update(100 + float64(i))
	}
	if r.Ready() {
		t.Fatal("must not be ready with only period closes")
	}
	r.Update(120)
	if !r.Ready() {
		t.Fatal("expected ready after period+1 closes")
	}
}

func TestSeriesMatchesIncremental(t *testing.T) {
	closes := []float64{100, 102, 101, 103, 104, 102, 105, 106, 104, 107}
	series := Series(closes, 3)
	if len(series) != len(closes) {
		t.Fatalf("series length mismatch: %d vs %d", len(series), len(closes))
	}
	for i := 0; i < 3; i++ {
		if series[i] != 0 {
			t.Errorf("index %d before warmup must be zero, got %v", i, series[i])
		}
	}

	r := NewRSI(3)
	for i, c := range closes {
		r.Update(c)
		if r.Ready() && !almostEqual(series[i], r.Value()) {
			t.Errorf("index %d: series %v != incremental %v", i, series[i], r.Value())
		}
	}
}

func TestLatestUsesCandleCloses(t *testing.T) {
	candles := make([]model.Candle, 6)
	closes := []float64{100, 102, 101, 103, 104, 102}
	for i, c := range closes {
		candles[i] = model.Candle{Open: c, High: c + 1, Low: c - 1, Close: c}
	}

	want := Series(closes, 3)[len(closes)-1]
	if got := Latest(candles, 3); !almostEqual(got, want) {
		t.Fatalf("Latest should equal the final series value: %v vs %v", got, want)
	}
}

func TestClosesExtraction(t *testing.T) {
	candles := []model.Candle{{Close: 1.5}, {Close: 2.5}}
	got := Closes(candles)
	if len(got) != 2 || got[0] != 1.5 || got[1] != 2.5 {
		t.Fatalf("unexpected closes: %v", got)
	}
}

func TestZeroPeriodFallsBackToDefault(t *testing.T) {
	r := NewRSI(0)
	for i := 0; i < DefaultRSIPeriod; i++ {
		r.Update(100 + float64(i))
	}
	if r.Ready() {
		t.Fatal("default period must require more than 14 closes")
	}
}
