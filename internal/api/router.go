// Package api serves the read-only signal history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"pasignal/internal/model"
)

// defaultLimit bounds unpaginated queries.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// SignalReader provides access to persisted signals.
type SignalReader interface {
	RecentSignals(ctx context.Context, symbol string, limit int) ([]model.Signal, error)
}

// NewRouter builds the HTTP mux for the signal API.
func NewRouter(signals SignalReader, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/v1/signals", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "symbol is required", http.StatusBadRequest)
			return
		}

		limit := defaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = n
		}
		if limit > maxLimit {
			limit = maxLimit
		}

		sigs, err := signals.RecentSignals(r.Context(), symbol, limit)
		if err != nil {
			log.Error("signal query failed", "symbol", symbol, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if sigs == nil {
			sigs = []model.Signal{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sigs)
	})

	return mux
}
