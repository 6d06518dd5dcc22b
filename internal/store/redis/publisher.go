// Package redis mirrors cooldown state and fans emitted signals out on a
// Redis stream for downstream consumers. All writes run through a circuit
// breaker so a Redis outage degrades to local-only operation.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"pasignal/internal/model"
)

const (
	// signalStream holds emitted signals; trimmed to roughly the last day.
	signalStream       = "stream:signals"
	signalStreamMaxLen = 2000
	signalChannel      = "pub:signals"
	cooldownPrefix     = "cooldown:"

	breakerMaxFailures  = 5
	breakerResetTimeout = 10 * time.Second
)

// Config configures the Redis publisher.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Publisher writes signals and cooldown mirrors to Redis.
type Publisher struct {
	client  *goredis.Client
	breaker *CircuitBreaker
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker exposes the circuit breaker for metrics wiring.
func (p *Publisher) Breaker() *CircuitBreaker { return p.breaker }

// New creates a Publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{
		client:  client,
		breaker: NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout),
	}, nil
}

// PublishSignal appends the signal to the stream and publishes it on the
// pubsub channel for live subscribers.
func (p *Publisher) PublishSignal(ctx context.Context, sig *model.Signal) error {
	payload := string(sig.JSON())
	return p.breaker.Execute(func() error {
		if err := p.client.XAdd(ctx, &goredis.XAddArgs{
			Stream: signalStream,
			MaxLen: signalStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"id":      sig.ID,
				"symbol":  sig.Symbol,
				"tf":      sig.Timeframe,
				"side":    string(sig.Side),
				"stage":   string(sig.Stage),
				"score":   sig.Score,
				"payload": payload,
			},
		}).Err(); err != nil {
			return fmt.Errorf("redis xadd signal: %w", err)
		}
		return p.client.Publish(ctx, signalChannel, payload).Err()
	})
}

// MirrorCooldown writes a TTL key so other processes can observe cooldowns.
func (p *Publisher) MirrorCooldown(ctx context.Context, symbol, timeframe string, side model.Side, zoneKey string, d time.Duration) error {
	key := cooldownPrefix + symbol + "|" + timeframe + "|" + string(side) + "|" + zoneKey
	return p.breaker.Execute(func() error {
		return p.client.Set(ctx, key, time.Now().Add(d).Unix(), d).Err()
	})
}

// IsCooldownMirrored reports whether the mirror key still exists.
func (p *Publisher) IsCooldownMirrored(ctx context.Context, symbol, timeframe string, side model.Side, zoneKey string) (bool, error) {
	key := cooldownPrefix + symbol + "|" + timeframe + "|" + string(side) + "|" + zoneKey
	n, err := p.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
