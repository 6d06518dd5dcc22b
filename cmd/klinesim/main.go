// Command klinesim is a local kline websocket simulator. It serves the same
// combined-stream frames a real futures feed does, so the engine can run
// end to end without exchange connectivity:
//
//	WS_BASE_URL=ws://localhost:9001/ws go run ./cmd/sigengine
//
// Config (env vars):
//
//	KLINESIM_ADDR         listen address (default ":9001")
//	KLINESIM_SYMBOLS      comma-separated symbols (default "BTCUSDT")
//	KLINESIM_TIMEFRAMES   comma-separated timeframes (default "1m")
//	KLINESIM_INTERVAL_MS  forming-update interval (default "500")
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pasignal/internal/logger"
)

// klineEvent mirrors the exchange kline payload consumed by the streamer.
type klineEvent struct {
	EventType string    `json:"e"`
	Symbol    string    `json:"s"`
	Kline     klineData `json:"k"`
}

type klineData struct {
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
}

type streamFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// series holds the simulated state of one (symbol, timeframe) bar.
type series struct {
	symbol    string
	timeframe string
	dur       time.Duration

	openTime time.Time
	open     float64
	high     float64
	low      float64
	last     float64
	volume   float64
}

func newSeries(symbol, timeframe string, dur time.Duration, price float64, now time.Time) *series {
	s := &series{symbol: symbol, timeframe: timeframe, dur: dur, last: price}
	s.roll(now.Truncate(dur))
	return s
}

func (s *series) roll(openTime time.Time) {
	s.openTime = openTime
	s.open = s.last
	s.high = s.last
	s.low = s.last
	s.volume = 0
}

// step advances the random walk and returns the frames due now: a closed bar
// first when the boundary passed, then the forming update for the new bar.
func (s *series) step(now time.Time, rng *rand.Rand) [][]byte {
	var frames [][]byte

	closeTime := s.openTime.Add(s.dur)
	if !now.Before(closeTime) {
		frames = append(frames, s.frame(true))
		s.roll(now.Truncate(s.dur))
	}

	pct := (rng.Float64()*0.2 - 0.1) / 100.0
	s.last *= 1 + pct
	if s.last < 0.0001 {
		s.last = 0.0001
	}
	if s.last > s.high {
		s.high = s.last
	}
	if s.last < s.low {
		s.low = s.last
	}
	s.volume += rng.Float64() * 10

	frames = append(frames, s.frame(false))
	return frames
}

func (s *series) frame(closed bool) []byte {
	ev := klineEvent{
		EventType: "kline",
		Symbol:    s.symbol,
		Kline: klineData{
			OpenTime:  s.openTime.UnixMilli(),
			CloseTime: s.openTime.Add(s.dur).UnixMilli() - 1,
			Symbol:    s.symbol,
			Interval:  s.timeframe,
			Open:      fmtPrice(s.open),
			Close:     fmtPrice(s.last),
			High:      fmtPrice(s.high),
			Low:       fmtPrice(s.low),
			Volume:    fmtPrice(s.volume),
			IsClosed:  closed,
		},
	}
	data, _ := json.Marshal(ev)
	out, _ := json.Marshal(streamFrame{
		Stream: strings.ToLower(s.symbol) + "@kline_" + s.timeframe,
		Data:   data,
	})
	return out
}

func fmtPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client, drop the frame
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func wsHandler(h *hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("upgrade failed", "error", err)
			return
		}
		log.Info("client connected", "remote", r.RemoteAddr)

		ch := h.register(conn)
		go func() {
			defer func() {
				h.unregister(conn)
				conn.Close()
				log.Info("client disconnected", "remote", r.RemoteAddr)
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func runGenerator(h *hub, all []*series, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for now := range ticker.C {
		for _, s := range all {
			for _, frame := range s.step(now.UTC(), rng) {
				h.broadcast(frame)
			}
		}
	}
}

func timeframeDuration(tf string) (time.Duration, error) {
	if len(tf) < 2 {
		return 0, fmt.Errorf("bad timeframe %q", tf)
	}
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("bad timeframe %q", tf)
	}
	switch tf[len(tf)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("bad timeframe %q", tf)
}

func main() {
	log := logger.Init("klinesim", logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	addr := envOrDefault("KLINESIM_ADDR", ":9001")
	symbols := splitList(envOrDefault("KLINESIM_SYMBOLS", "BTCUSDT"))
	timeframes := splitList(envOrDefault("KLINESIM_TIMEFRAMES", "1m"))
	intervalMs := envIntOrDefault("KLINESIM_INTERVAL_MS", 500)

	startPrices := map[string]float64{
		"BTCUSDT": 43000,
		"ETHUSDT": 2300,
		"SOLUSDT": 95,
	}

	now := time.Now().UTC()
	var all []*series
	for _, sym := range symbols {
		price := startPrices[sym]
		if price == 0 {
			price = 100
		}
		for _, tf := range timeframes {
			dur, err := timeframeDuration(tf)
			if err != nil {
				log.Error("skipping series", "error", err)
				continue
			}
			all = append(all, newSeries(sym, tf, dur, price, now))
		}
	}
	if len(all) == 0 {
		log.Error("no series configured")
		os.Exit(1)
	}
	log.Info("simulating", "symbols", symbols, "timeframes", timeframes, "interval_ms", intervalMs)

	h := newHub()
	go runGenerator(h, all, time.Duration(intervalMs)*time.Millisecond)

	// The streamer turns a /ws base URL into /stream?streams=...; serve both.
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(h, log))
	mux.HandleFunc("/stream", wsHandler(h, log))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"klinesim"}`)
	})

	log.Info("listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
