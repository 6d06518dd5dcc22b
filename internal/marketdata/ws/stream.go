// Package ws streams kline updates over the exchange websocket. The streamer
// reconnects with exponential backoff, pings for liveness, deduplicates
// closes, and backfills the gap after every reconnect.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pasignal/internal/model"
)

const (
	backoffInitial = 1 * time.Second
	backoffMax     = 60 * time.Second
	maxAttempts    = 10
	pingInterval   = 30 * time.Second
	readTimeout    = 90 * time.Second
	gapBackfill    = 200
)

// Streamer subscribes to kline streams and invokes the candle callbacks.
// It implements model.Streamer.
type Streamer struct {
	baseURL    string
	backfiller model.Backfiller
	log        *slog.Logger

	// Optional hooks for metrics and health reporting.
	OnReconnect func()
	OnConnected func(bool)

	mu        sync.Mutex
	lastClose map[string]time.Time
}

// NewStreamer creates a websocket streamer. backfiller may be nil, in which
// case reconnect gaps are not repaired.
func NewStreamer(baseURL string, backfiller model.Backfiller, logger *slog.Logger) *Streamer {
	return &Streamer{
		baseURL:    baseURL,
		backfiller: backfiller,
		log:        logger,
		lastClose:  make(map[string]time.Time),
	}
}

// klineEvent is the exchange kline payload.
type klineEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Kline     struct {
		OpenTime  int64  `json:"t"`
		CloseTime int64  `json:"T"`
		Symbol    string `json:"s"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		Close     string `json:"c"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Volume    string `json:"v"`
		IsClosed  bool   `json:"x"`
	} `json:"k"`
}

// Stream connects and dispatches candle updates until ctx is cancelled.
// onClosed fires at most once per (symbol, timeframe, openTime); onForming
// may be nil. Returns ctx.Err() once ctx ends, or an error after the
// reconnect budget is exhausted.
func (s *Streamer) Stream(ctx context.Context, symbols, timeframes []string, onClosed func(model.Candle), onForming func(model.Candle)) error {
	streamURL := s.buildURL(symbols, timeframes)
	backoff := backoffInitial
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.runConnection(ctx, streamURL, onClosed, onForming)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempts++
		if attempts >= maxAttempts {
			return fmt.Errorf("stream: giving up after %d attempts: %w", attempts, err)
		}
		s.log.Warn("stream disconnected, reconnecting",
			"attempt", attempts, "backoff", backoff.String(), "error", err)
		if s.OnReconnect != nil {
			s.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}

		s.repairGaps(ctx, symbols, timeframes, onClosed)
	}
}

// runConnection owns one websocket session: dial, read loop, ping loop.
func (s *Streamer) runConnection(ctx context.Context, streamURL string, onClosed, onForming func(model.Candle)) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, streamURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	s.log.Info("stream connected", "url", streamURL)
	if s.OnConnected != nil {
		s.OnConnected(true)
		defer s.OnConnected(false)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	go func() {
		<-pingCtx.Done()
		conn.Close()
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		s.handleMessage(msg, onClosed, onForming)
	}
}

func (s *Streamer) handleMessage(msg []byte, onClosed, onForming func(model.Candle)) {
	// combined streams wrap events as {"stream": ..., "data": {...}}
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg, &wrapper); err == nil && len(wrapper.Data) > 0 {
		msg = wrapper.Data
	}

	var ev klineEvent
	if err := json.Unmarshal(msg, &ev); err != nil || ev.EventType != "kline" {
		return
	}

	candle, err := s.toCandle(ev)
	if err != nil {
		s.log.Warn("malformed kline event", "symbol", ev.Symbol, "error", err)
		return
	}

	if !candle.IsClosed {
		if onForming != nil {
			onForming(candle)
		}
		return
	}

	// dedup: at most one close per (symbol, tf, openTime)
	key := candle.Key()
	s.mu.Lock()
	last, seen := s.lastClose[key]
	if seen && !candle.OpenTime.After(last) {
		s.mu.Unlock()
		return
	}
	s.lastClose[key] = candle.OpenTime
	s.mu.Unlock()

	onClosed(candle)
}

func (s *Streamer) toCandle(ev klineEvent) (model.Candle, error) {
	k := ev.Kline
	parse := func(field, v string) (float64, error) {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", field, err)
		}
		return f, nil
	}

	open, err := parse("open", k.Open)
	if err != nil {
		return model.Candle{}, err
	}
	high, err := parse("high", k.High)
	if err != nil {
		return model.Candle{}, err
	}
	low, err := parse("low", k.Low)
	if err != nil {
		return model.Candle{}, err
	}
	close_, err := parse("close", k.Close)
	if err != nil {
		return model.Candle{}, err
	}
	vol, err := parse("volume", k.Volume)
	if err != nil {
		return model.Candle{}, err
	}

	return model.Candle{
		Symbol:    strings.ToUpper(k.Symbol),
		Timeframe: k.Interval,
		OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
		CloseTime: time.UnixMilli(k.CloseTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close_,
		Volume:    vol,
		IsClosed:  k.IsClosed,
	}, nil
}

// repairGaps backfills candles missed while disconnected and replays them
// through onClosed in order.
func (s *Streamer) repairGaps(ctx context.Context, symbols, timeframes []string, onClosed func(model.Candle)) {
	if s.backfiller == nil {
		return
	}
	for _, sym := range symbols {
		for _, tf := range timeframes {
			s.mu.Lock()
			since := s.lastClose[sym+":"+tf]
			s.mu.Unlock()
			if since.IsZero() {
				continue
			}

			candles, err := s.backfiller.Backfill(ctx, sym, tf, gapBackfill, since, time.Time{})
			if err != nil {
				s.log.Warn("gap backfill failed", "symbol", sym, "timeframe", tf, "error", err)
				continue
			}
			for _, c := range candles {
				if !c.OpenTime.After(since) {
					continue
				}
				s.mu.Lock()
				s.lastClose[c.Key()] = c.OpenTime
				s.mu.Unlock()
				onClosed(c)
			}
		}
	}
}

// buildURL assembles the combined-stream endpoint for every
// (symbol, timeframe) pair.
func (s *Streamer) buildURL(symbols, timeframes []string) string {
	streams := make([]string, 0, len(symbols)*len(timeframes))
	for _, sym := range symbols {
		for _, tf := range timeframes {
			streams = append(streams, strings.ToLower(sym)+"@kline_"+tf)
		}
	}
	base := strings.TrimSuffix(s.baseURL, "/ws")
	return base + "/stream?streams=" + strings.Join(streams, "/")
}
