package model

import (
	"encoding/json"
	"math"
	"time"
)

// Candle represents an OHLCV candle for one (symbol, timeframe) pair.
// Prices are float64 as delivered by the exchange; OpenTime/CloseTime are
// the bucket boundaries in UTC. A candle is immutable once IsClosed is set.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	IsClosed  bool      `json:"is_closed"`
}

// Key returns a unique key for this candle's series: "symbol:timeframe".
func (c *Candle) Key() string {
	return c.Symbol + ":" + c.Timeframe
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Range returns high - low.
func (c *Candle) Range() float64 {
	return c.High - c.Low
}

// Body returns the absolute open-close distance.
func (c *Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// IsBullish reports whether the candle closed above its open.
func (c *Candle) IsBullish() bool { return c.Close > c.Open }

// IsBearish reports whether the candle closed below its open.
func (c *Candle) IsBearish() bool { return c.Close < c.Open }

// Valid checks the OHLC ordering and finiteness invariants enforced at the
// store boundary. Invalid candles are rejected before they reach analysis.
func (c *Candle) Valid() bool {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if c.Volume < 0 {
		return false
	}
	if c.Low > math.Min(c.Open, c.Close) || c.High < math.Max(c.Open, c.Close) {
		return false
	}
	if !c.OpenTime.Before(c.CloseTime) {
		return false
	}
	return true
}
