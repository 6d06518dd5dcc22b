package indicator

import (
	"testing"

	"pasignal/internal/model"
)

func volumeCandles(vols ...float64) []model.Candle {
	out := make([]model.Candle, len(vols))
	for i, v := range vols {
		out[i] = model.Candle{Open: 100, High: 101, Low: 99, Close: 100, Volume: v}
	}
	return out
}

func TestVolumeRatioAgainstAverage(t *testing.T) {
	candles := volumeCandles(100, 100, 100, 100, 200)
	if got := VolumeRatio(candles, 4); got != 2 {
		t.Fatalf("expected ratio 2, got %v", got)
	}
}

func TestVolumeRatioShortHistoryUsesAllPrior(t *testing.T) {
	// lookback exceeds history, prior window clamps to everything before last
	candles := volumeCandles(50, 150, 300)
	if got := VolumeRatio(candles, 20); got != 3 {
		t.Fatalf("expected 300/100=3, got %v", got)
	}
}

func TestVolumeRatioWindowExcludesOlder(t *testing.T) {
	// only the 2 candles preceding the last should count
	candles := volumeCandles(1000, 100, 100, 150)
	if got := VolumeRatio(candles, 2); got != 1.5 {
		t.Fatalf("expected 1.5, got %v", got)
	}
}

func TestVolumeRatioDegenerateInputs(t *testing.T) {
	if got := VolumeRatio(nil, 20); got != 1 {
		t.Errorf("no candles: expected 1, got %v", got)
	}
	if got := VolumeRatio(volumeCandles(500), 20); got != 1 {
		t.Errorf("single candle: expected 1, got %v", got)
	}
	if got := VolumeRatio(volumeCandles(0, 0, 500), 20); got != 1 {
		t.Errorf("zero average: expected 1, got %v", got)
	}
}
