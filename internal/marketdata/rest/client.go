// Package rest fetches historical klines from the exchange REST API.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pasignal/internal/model"
)

const (
	klinesPath     = "/fapi/v1/klines"
	maxLimit       = 1000
	requestTimeout = 15 * time.Second
	retryAttempts  = 3
)

// Client is a minimal klines client. It implements model.Backfiller.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// NewClient creates a REST client against the given base URL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		log:     logger,
	}
}

// Backfill fetches up to limit closed candles in ascending OpenTime.
// Transient failures are retried with a short linear backoff.
func (c *Client) Backfill(ctx context.Context, symbol, timeframe string, limit int, start, end time.Time) ([]model.Candle, error) {
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", timeframe)
	q.Set("limit", strconv.Itoa(limit))
	if !start.IsZero() {
		q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if !end.IsZero() {
		q.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}
	reqURL := c.baseURL + klinesPath + "?" + q.Encode()

	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		candles, err := c.fetch(ctx, reqURL, symbol, timeframe)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		c.log.Warn("backfill attempt failed",
			"symbol", symbol, "timeframe", timeframe, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, fmt.Errorf("backfill %s %s: %w", symbol, timeframe, lastErr)
}

func (c *Client) fetch(ctx context.Context, reqURL, symbol, timeframe string) ([]model.Candle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Klines arrive as arrays of mixed numbers and decimal strings.
	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseKlineRow(row, symbol, timeframe)
		if err != nil {
			c.log.Warn("skipping malformed kline", "symbol", symbol, "error", err)
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// parseKlineRow decodes one kline array:
// [openTime, open, high, low, close, volume, closeTime, ...].
func parseKlineRow(row []json.RawMessage, symbol, timeframe string) (model.Candle, error) {
	if len(row) < 7 {
		return model.Candle{}, fmt.Errorf("kline row has %d fields", len(row))
	}

	var openMs, closeMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return model.Candle{}, fmt.Errorf("open time: %w", err)
	}
	if err := json.Unmarshal(row[6], &closeMs); err != nil {
		return model.Candle{}, fmt.Errorf("close time: %w", err)
	}

	prices := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		var s string
		if err := json.Unmarshal(row[i], &s); err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i, err)
		}
		prices[i-1] = f
	}

	c := model.Candle{
		Symbol:    symbol,
		Timeframe: timeframe,
		OpenTime:  time.UnixMilli(openMs).UTC(),
		CloseTime: time.UnixMilli(closeMs).UTC(),
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    prices[4],
		IsClosed:  true,
	}
	if !c.Valid() {
		return model.Candle{}, fmt.Errorf("invalid candle at %s", c.OpenTime)
	}
	return c, nil
}
