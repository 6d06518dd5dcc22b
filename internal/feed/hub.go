// Package feed exposes emitted signals to websocket subscribers. The hub
// assigns a monotonic sequence to every signal and keeps a replay buffer so
// a reconnecting client can backfill the signals it missed with ?last_seq=N.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pasignal/internal/model"
)

const replayCapacity = 500

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans emitted signals out to connected websocket clients. It satisfies
// model.Notifier; broadcast never fails, so wiring the hub as a sink cannot
// block persistence.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[*client]bool
	seq     int64
	replay  *ReplayBuffer
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		log:     logger,
		clients: make(map[*client]bool),
		replay:  NewReplayBuffer(replayCapacity),
	}
}

// SendSignal broadcasts the signal to every connected client.
func (h *Hub) SendSignal(_ context.Context, sig *model.Signal) error {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	envelope, err := json.Marshal(map[string]interface{}{
		"seq":    seq,
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"signal": json.RawMessage(sig.JSON()),
	})
	if err != nil {
		return nil
	}

	h.replay.Push(seq, envelope)

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- envelope:
		default:
			// slow client, drop; it can recover via last_seq
		}
	}
	h.mu.RUnlock()
	return nil
}

// HandleWS upgrades the request and registers the client. A last_seq query
// parameter replays buffered signals newer than that sequence first.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("feed upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
		hub:  h,
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Info("feed client connected", "clients", count)

	if raw := r.URL.Query().Get("last_seq"); raw != "" {
		if lastSeq, err := strconv.ParseInt(raw, 10, 64); err == nil {
			for _, envelope := range h.replay.Since(lastSeq) {
				select {
				case c.send <- envelope:
				default:
				}
			}
		}
	}

	go c.writePump()
	go c.readPump()
}

// Seq returns the sequence number of the most recently broadcast signal.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
