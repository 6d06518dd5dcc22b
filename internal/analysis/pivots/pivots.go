// Package pivots detects swing highs and lows: local extremes over a
// symmetric window. A pivot must be a strict extreme; ties are rejected.
package pivots

import "pasignal/internal/model"

// DefaultWindow is the symmetric pivot window used across the analysis stack.
const DefaultWindow = 5

// Highs returns the indices i in [w, n-w-1] whose high is the strict maximum
// over [i-w, i+w].
func Highs(candles []model.Candle, w int) []int {
	if w <= 0 {
		w = DefaultWindow
	}
	var out []int
	n := len(candles)
	for i := w; i < n-w; i++ {
		h := candles[i].High
		isPivot := true
		for j := i - w; j <= i+w; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= h {
				isPivot = false
				break
			}
		}
		if isPivot {
			out = append(out, i)
		}
	}
	return out
}

// Lows returns the indices whose low is the strict minimum over [i-w, i+w].
func Lows(candles []model.Candle, w int) []int {
	if w <= 0 {
		w = DefaultWindow
	}
	var out []int
	n := len(candles)
	for i := w; i < n-w; i++ {
		l := candles[i].Low
		isPivot := true
		for j := i - w; j <= i+w; j++ {
			if j == i {
				continue
			}
			if candles[j].Low <= l {
				isPivot = false
				break
			}
		}
		if isPivot {
			out = append(out, i)
		}
	}
	return out
}

// RecentHighs returns the last k pivot-high indices.
func RecentHighs(candles []model.Candle, w, k int) []int {
	return tail(Highs(candles, w), k)
}

// RecentLows returns the last k pivot-low indices.
func RecentLows(candles []model.Candle, w, k int) []int {
	return tail(Lows(candles, w), k)
}

func tail(idx []int, k int) []int {
	if k <= 0 || len(idx) == 0 {
		return nil
	}
	if len(idx) > k {
		idx = idx[len(idx)-k:]
	}
	return idx
}
