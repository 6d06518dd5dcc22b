package model

import (
	"context"
	"time"
)

// ── External Port Interfaces ──
// These interfaces decouple the engine from concrete adapters (exchange
// clients, SQLite/Redis stores, notification channels). Each implementation
// satisfies one or more of these interfaces.

// Backfiller fetches historical closed candles over REST.
type Backfiller interface {
	// Backfill returns up to limit candles for (symbol, timeframe) in
	// ascending OpenTime. Zero start/end mean "most recent".
	Backfill(ctx context.Context, symbol, timeframe string, limit int, start, end time.Time) ([]Candle, error)
}

// Streamer delivers live candle updates.
type Streamer interface {
	// Stream subscribes to kline updates for every (symbol, timeframe)
	// combination and invokes onClosed at most once per candle close.
	// onForming may be nil. Blocks until ctx is cancelled or reconnecting
	// fails for good; reconnects internally with exponential backoff and
	// backfills gaps on resume.
	Stream(ctx context.Context, symbols, timeframes []string, onClosed func(Candle), onForming func(Candle)) error
}

// CooldownStore tracks per-setup-instance cooldowns. At most one live entry
// per key; persistence must survive restarts.
type CooldownStore interface {
	IsOnCooldown(ctx context.Context, symbol, timeframe string, side Side, zoneKey string) (bool, error)
	AddCooldown(ctx context.Context, symbol, timeframe string, side Side, zoneKey string, d time.Duration) error
	CleanupExpired(ctx context.Context) (int, error)
	Close() error
}

// SignalStore persists emitted signals.
type SignalStore interface {
	SaveSignal(ctx context.Context, sig *Signal) error
	Close() error
}

// Notifier delivers a fully-resolved signal payload to an external channel.
// A delivery failure must prevent both persistence and cooldown arming so a
// future retry remains possible.
type Notifier interface {
	SendSignal(ctx context.Context, sig *Signal) error
}
