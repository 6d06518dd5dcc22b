// Package sqlite persists emitted signals and cooldowns in an embedded
// SQLite database running in WAL mode with a single writer connection.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"pasignal/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Store implements model.SignalStore and model.CooldownStore over SQLite.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens (or creates) the database and applies the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", dbPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signals (
			id         TEXT    PRIMARY KEY,
			symbol     TEXT    NOT NULL,
			tf         TEXT    NOT NULL,
			side       TEXT    NOT NULL,
			stage      TEXT    NOT NULL,
			score      REAL    NOT NULL,
			entry      REAL    NOT NULL,
			sl         REAL    NOT NULL,
			tp1        REAL    NOT NULL,
			tp2        REAL,
			rr         REAL    NOT NULL,
			zone_key   TEXT    NOT NULL,
			payload    TEXT    NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_signals_symbol_tf ON signals (symbol, tf, created_at);

		CREATE TABLE IF NOT EXISTS cooldowns (
			key        TEXT    PRIMARY KEY,
			symbol     TEXT    NOT NULL,
			tf         TEXT    NOT NULL,
			side       TEXT    NOT NULL,
			zone_key   TEXT    NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cooldowns_expires ON cooldowns (expires_at);
	`)
	return err
}

// SaveSignal inserts one emitted signal with its full JSON payload.
func (s *Store) SaveSignal(ctx context.Context, sig *model.Signal) error {
	payload := sig.JSON()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO signals
			(id, symbol, tf, side, stage, score, entry, sl, tp1, tp2, rr, zone_key, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.Symbol, sig.Timeframe, string(sig.Side), string(sig.Stage),
		sig.Score, sig.Levels.Entry, sig.Levels.StopLoss,
		sig.Levels.TakeProfit1, sig.Levels.TakeProfit2, sig.Levels.RiskReward1,
		sig.Setup.ZoneKey(), string(payload), sig.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite insert signal: %w", err)
	}
	return nil
}

// RecentSignals returns the latest signals for a symbol, newest first.
func (s *Store) RecentSignals(ctx context.Context, symbol string, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM signals WHERE symbol = ? ORDER BY created_at DESC LIMIT ?`,
		symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		sig, err := model.SignalFromJSON([]byte(payload))
		if err != nil {
			log.Printf("[sqlite] skipping undecodable signal payload: %v", err)
			continue
		}
		out = append(out, *sig)
	}
	return out, rows.Err()
}

func cooldownKey(symbol, timeframe string, side model.Side, zoneKey string) string {
	return symbol + "|" + timeframe + "|" + string(side) + "|" + zoneKey
}

// IsOnCooldown reports whether a non-expired cooldown exists for the key.
func (s *Store) IsOnCooldown(ctx context.Context, symbol, timeframe string, side model.Side, zoneKey string) (bool, error) {
	var expires int64
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM cooldowns WHERE key = ?`,
		cooldownKey(symbol, timeframe, side, zoneKey),
	).Scan(&expires)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return time.Now().Unix() < expires, nil
}

// AddCooldown upserts the single live cooldown entry for the key.
func (s *Store) AddCooldown(ctx context.Context, symbol, timeframe string, side model.Side, zoneKey string, d time.Duration) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cooldowns (key, symbol, tf, side, zone_key, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cooldownKey(symbol, timeframe, side, zoneKey),
		symbol, timeframe, string(side), zoneKey,
		now.Add(d).Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite insert cooldown: %w", err)
	}
	return nil
}

// CleanupExpired deletes expired cooldowns and returns how many were removed.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cooldowns WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
