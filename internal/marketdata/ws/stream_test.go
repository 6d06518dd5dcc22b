package ws

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pasignal/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStreamer() *Streamer {
	return NewStreamer("wss://example.com/ws", nil, discardLogger())
}

func klineJSON(openMs int64, closed bool) []byte {
	return []byte(fmt.Sprintf(
		`{"e":"kline","s":"BTCUSDT","k":{"t":%d,"T":%d,"s":"BTCUSDT","i":"1h","o":"100.0","c":"100.5","h":"101.0","l":"99.0","v":"1234.5","x":%t}}`,
		openMs, openMs+3_599_999, closed))
}

type recorder struct {
	closed  []model.Candle
	forming []model.Candle
}

func (r *recorder) onClosed(c model.Candle)  { r.closed = append(r.closed, c) }
func (r *recorder) onForming(c model.Candle) { r.forming = append(r.forming, c) }

func TestHandleMessageClosedCandle(t *testing.T) {
	s := newTestStreamer()
	rec := &recorder{}

	s.handleMessage(klineJSON(1704067200000, true), rec.onClosed, rec.onForming)
	if len(rec.closed) != 1 || len(rec.forming) != 0 {
		t.Fatalf("expected 1 closed candle, got %d closed %d forming", len(rec.closed), len(rec.forming))
	}
	c := rec.closed[0]
	if c.Symbol != "BTCUSDT" || c.Timeframe != "1h" || !c.IsClosed {
		t.Errorf("unexpected candle: %+v", c)
	}
	if c.Open != 100 || c.Close != 100.5 || c.Volume != 1234.5 {
		t.Errorf("unexpected OHLCV: %+v", c)
	}
}

func TestHandleMessageDeduplicatesCloses(t *testing.T) {
	s := newTestStreamer()
	rec := &recorder{}

	s.handleMessage(klineJSON(1704067200000, true), rec.onClosed, nil)
	s.handleMessage(klineJSON(1704067200000, true), rec.onClosed, nil)
	if len(rec.closed) != 1 {
		t.Fatalf("duplicate close must be dropped, got %d", len(rec.closed))
	}

	// the next bar passes
	s.handleMessage(klineJSON(1704070800000, true), rec.onClosed, nil)
	if len(rec.closed) != 2 {
		t.Fatalf("newer close must pass, got %d", len(rec.closed))
	}
}

func TestHandleMessageFormingCandle(t *testing.T) {
	s := newTestStreamer()
	rec := &recorder{}

	s.handleMessage(klineJSON(1704067200000, false), rec.onClosed, rec.onForming)
	if len(rec.forming) != 1 || len(rec.closed) != 0 {
		t.Fatalf("expected 1 forming candle, got %d forming %d closed", len(rec.forming), len(rec.closed))
	}
	if rec.forming[0].IsClosed {
		t.Error("forming candle must carry IsClosed=false")
	}

	// nil forming callback is allowed
	s.handleMessage(klineJSON(1704070800000, false), rec.onClosed, nil)
	if len(rec.closed) != 0 {
		t.Error("forming update must never hit onClosed")
	}
}

func TestHandleMessageUnwrapsCombinedStream(t *testing.T) {
	s := newTestStreamer()
	rec := &recorder{}

	wrapped := []byte(`{"stream":"btcusdt@kline_1h","data":` + string(klineJSON(1704067200000, true)) + `}`)
	s.handleMessage(wrapped, rec.onClosed, nil)
	if len(rec.closed) != 1 {
		t.Fatalf("combined-stream payload must be unwrapped, got %d", len(rec.closed))
	}
}

func TestHandleMessageIgnoresNoise(t *testing.T) {
	s := newTestStreamer()
	rec := &recorder{}

	s.handleMessage([]byte(`{"e":"aggTrade","s":"BTCUSDT"}`), rec.onClosed, rec.onForming)
	s.handleMessage([]byte(`not json`), rec.onClosed, rec.onForming)
	s.handleMessage([]byte(`{"e":"kline","s":"BTCUSDT","k":{"t":1,"T":2,"i":"1h","o":"bad","c":"1","h":"1","l":"1","v":"1","x":true}}`), rec.onClosed, rec.onForming)
	if len(rec.closed) != 0 || len(rec.forming) != 0 {
		t.Fatalf("noise must be dropped, got %d closed %d forming", len(rec.closed), len(rec.forming))
	}
}

func TestBuildURL(t *testing.T) {
	s := newTestStreamer()
	got := s.buildURL([]string{"BTCUSDT", "ETHUSDT"}, []string{"1h"})
	want := "wss://example.com/stream?streams=btcusdt@kline_1h/ethusdt@kline_1h"
	if got != want {
		t.Errorf("buildURL = %q, want %q", got, want)
	}
}

type stubBackfiller struct {
	since   time.Time
	candles []model.Candle
}

func (b *stubBackfiller) Backfill(_ context.Context, _, _ string, _ int, start, _ time.Time) ([]model.Candle, error) {
	b.since = start
	return b.candles, nil
}

func TestRepairGapsReplaysOnlyNewCloses(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	mk := func(open time.Time) model.Candle {
		return model.Candle{
			Symbol: "BTCUSDT", Timeframe: "1h",
			OpenTime: open, CloseTime: open.Add(time.Hour),
			Open: 100, High: 101, Low: 99, Close: 100, Volume: 1, IsClosed: true,
		}
	}
	bf := &stubBackfiller{candles: []model.Candle{mk(t0), mk(t1)}}
	s := NewStreamer("wss://example.com/ws", bf, discardLogger())
	s.lastClose["BTCUSDT:1h"] = t0

	rec := &recorder{}
	s.repairGaps(context.Background(), []string{"BTCUSDT"}, []string{"1h"}, rec.onClosed)

	if !bf.since.Equal(t0) {
		t.Errorf("backfill must start at the last seen close, got %v", bf.since)
	}
	if len(rec.closed) != 1 || !rec.closed[0].OpenTime.Equal(t1) {
		t.Fatalf("only the missed candle replays, got %+v", rec.closed)
	}
	if got := s.lastClose["BTCUSDT:1h"]; !got.Equal(t1) {
		t.Errorf("replay must advance the dedup watermark, got %v", got)
	}
}

func TestRepairGapsSkipsColdSeries(t *testing.T) {
	bf := &stubBackfiller{}
	s := NewStreamer("wss://example.com/ws", bf, discardLogger())

	rec := &recorder{}
	s.repairGaps(context.Background(), []string{"BTCUSDT"}, []string{"1h"}, rec.onClosed)
	if len(rec.closed) != 0 {
		t.Fatalf("series without a watermark must not backfill, got %d", len(rec.closed))
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func TestStreamDeliversOverWebsocket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, klineJSON(1704067200000, true))
		// hold the connection open until the client hangs up
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := NewStreamer("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan model.Candle, 1)
	err := s.Stream(ctx, []string{"BTCUSDT"}, []string{"1h"}, func(c model.Candle) {
		got <- c
		cancel()
	}, nil)
	if err != context.Canceled && err != context.DeadlineExceeded {
		t.Fatalf("stream must end with the context, got %v", err)
	}

	select {
	case c := <-got:
		if c.Symbol != "BTCUSDT" || !c.IsClosed {
			t.Errorf("unexpected candle: %+v", c)
		}
	default:
		t.Fatal("no candle delivered before the context ended")
	}
}
