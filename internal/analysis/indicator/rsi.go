// Package indicator computes momentum and volume indicators over candle
// series. RSI carries both an O(1) incremental form for the streaming path
// and a series form for divergence checks.
package indicator

import "pasignal/internal/model"

// DefaultRSIPeriod is the RSI lookback used across the analysis stack.
const DefaultRSIPeriod = 14

// RSI is an incremental Wilder-smoothed RSI. Update is O(1) per close,
// no history scans.
type RSI struct {
	period    int
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewRSI creates an RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	return &RSI{period: period}
}

// Update folds one closing price into the running averages.
func (r *RSI) Update(close float64) {
	r.count++

	if r.count == 1 {
		r.prevClose = close
		return
	}

	delta := close - r.prevClose
	r.prevClose = close

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if r.count <= r.period+1 {
		r.avgGain += gain
		r.avgLoss += loss

		if r.count == r.period+1 {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
			r.current = rsiFromAverages(r.avgGain, r.avgLoss)
		}
		return
	}

	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	r.current = rsiFromAverages(r.avgGain, r.avgLoss)
}

// Value returns the latest RSI. Meaningless until Ready.
func (r *RSI) Value() float64 { return r.current }

// Ready reports whether enough closes have been folded in.
func (r *RSI) Ready() bool { return r.count > r.period }

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// Series computes the RSI value at every index of the close series using the
// same Wilder recurrence as the incremental form. Indices before the period
// warms up hold zero.
func Series(closes []float64, period int) []float64 {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	out := make([]float64, len(closes))
	r := NewRSI(period)
	for i, c := range closes {
		r.Update(c)
		if r.Ready() {
			out[i] = r.Value()
		}
	}
	return out
}

// Latest computes the final RSI of a candle sequence.
func Latest(candles []model.Candle, period int) float64 {
	r := NewRSI(period)
	for _, c := range candles {
		r.Update(c.Close)
	}
	return r.Value()
}

// Closes extracts the close series from candles.
func Closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
