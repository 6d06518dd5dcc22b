// Package engine runs the signal pipeline: per-candle analysis, gate
// evaluation, and signal emission with cooldown arming. Analysis for a given
// (symbol, timeframe) is single-writer: the engine is driven synchronously
// from the ingestion callbacks.
package engine

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"pasignal/config"
	"pasignal/internal/analysis/antichase"
	"pasignal/internal/analysis/indicator"
	"pasignal/internal/analysis/liquidity"
	"pasignal/internal/analysis/pivots"
	"pasignal/internal/analysis/regime"
	"pasignal/internal/analysis/scoring"
	"pasignal/internal/analysis/setups"
	"pasignal/internal/analysis/structure"
	"pasignal/internal/analysis/zones"
	"pasignal/internal/candlestore"
	"pasignal/internal/logger"
	"pasignal/internal/metrics"
	"pasignal/internal/model"
)

const (
	// minCandles is the minimum closed-candle history for an analysis pass.
	minCandles = 100
	// intrabarThrottle bounds forming-candle evaluations per (symbol, tf).
	intrabarThrottle = 10 * time.Second
)

// Engine coordinates analysis and emission. The dedup and throttle maps are
// engine-private and protected by mu.
type Engine struct {
	cfg       *config.Config
	store     *candlestore.Store
	cooldowns model.CooldownStore
	signals   model.SignalStore
	notifier  model.Notifier
	log       *slog.Logger
	met       *metrics.Metrics

	mu           sync.Mutex
	setupDedup   map[string]time.Time
	lastIntrabar map[string]time.Time
}

// New creates an engine around its ports. met may be nil in tests.
func New(cfg *config.Config, store *candlestore.Store, cooldowns model.CooldownStore, signals model.SignalStore, notifier model.Notifier, logger *slog.Logger, met *metrics.Metrics) *Engine {
	return &Engine{
		cfg:          cfg,
		store:        store,
		cooldowns:    cooldowns,
		signals:      signals,
		notifier:     notifier,
		log:          logger,
		met:          met,
		setupDedup:   make(map[string]time.Time),
		lastIntrabar: make(map[string]time.Time),
	}
}

// Store exposes the candle store for seeding and ingestion.
func (e *Engine) Store() *candlestore.Store { return e.store }

// OnClosed applies a closed candle and, for entry timeframes, runs the full
// ENTRY evaluation synchronously.
func (e *Engine) OnClosed(ctx context.Context, c model.Candle) {
	if !e.store.UpsertClosed(c.Symbol, c.Timeframe, c) {
		e.log.Warn("rejected invalid candle", "symbol", c.Symbol, "timeframe", c.Timeframe)
		return
	}
	if e.met != nil {
		e.met.CandlesTotal.WithLabelValues(c.Timeframe).Inc()
		e.met.CandleLag.Set(time.Since(c.CloseTime).Seconds())
	}

	if !contains(e.cfg.EntryTimeframes, c.Timeframe) || !e.cfg.StageEnabled("entry") {
		return
	}
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(c.Symbol, c.CloseTime))
	candles := e.store.Closed(c.Symbol, c.Timeframe)
	e.evaluate(ctx, c.Symbol, c.Timeframe, candles, model.StageEntry)
}

// OnForming applies a forming-candle update and, when the setup stage is
// enabled, runs a throttled SETUP evaluation over closed+forming.
func (e *Engine) OnForming(ctx context.Context, c model.Candle) {
	if !e.store.SetForming(c.Symbol, c.Timeframe, c) {
		return
	}
	if e.met != nil {
		e.met.FormingTotal.Inc()
	}
	if !contains(e.cfg.EntryTimeframes, c.Timeframe) || !e.cfg.StageEnabled("setup") {
		return
	}

	key := c.Symbol + "|" + c.Timeframe
	now := time.Now()
	e.mu.Lock()
	last, seen := e.lastIntrabar[key]
	if seen && now.Sub(last) < intrabarThrottle {
		e.mu.Unlock()
		return
	}
	e.lastIntrabar[key] = now
	e.mu.Unlock()

	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(c.Symbol, c.OpenTime))
	candles := e.store.ClosedWithForming(c.Symbol, c.Timeframe)
	e.evaluate(ctx, c.Symbol, c.Timeframe, candles, model.StageSetup)
}

// evaluate runs the gate pipeline over a candle snapshot and emits at most
// one signal. Gate misses log a structured skip record and return nil.
func (e *Engine) evaluate(ctx context.Context, symbol, timeframe string, candles []model.Candle, stage model.Stage) *model.Signal {
	start := time.Now()
	if e.met != nil {
		e.met.EvaluationsTotal.WithLabelValues(string(stage)).Inc()
		defer func() { e.met.EvaluationDur.Observe(time.Since(start).Seconds()) }()
	}

	if len(candles) < minCandles {
		e.skip(ctx, symbol, timeframe, model.SkipInsufficientData, slog.Int("candles", len(candles)))
		return nil
	}

	setupCfg := setups.Config{
		Zones: zones.Config{
			Lookback:     e.cfg.ZoneLookback,
			Window:       e.cfg.PivotWindow,
			TolerancePct: e.cfg.ZoneTolerancePct / 100,
		},
		VolumeSpikeThreshold: e.cfg.VolumeSpikeThresh,
		MinZonesRequired:     e.cfg.MinZonesRequired,
	}
	setup := setups.Detect(candles, setupCfg)
	if setup == nil {
		if e.cfg.MinZonesRequired > 0 {
			zs := zones.Build(candles, setupCfg.Zones)
			if zs.Total() < e.cfg.MinZonesRequired {
				e.skip(ctx, symbol, timeframe, model.SkipNoZones, slog.Int("zones", zs.Total()))
				return nil
			}
		}
		e.skip(ctx, symbol, timeframe, model.SkipNoSetup)
		return nil
	}

	w := e.cfg.PivotWindow
	highIdx := pivots.Highs(candles, w)
	lowIdx := pivots.Lows(candles, w)

	trend := structure.Analyze(candles, w)
	reg := regime.Detect(candles, trend)
	bias := e.htfBias(symbol)
	aligned, _ := structure.Alignment(setup.Side, bias)

	if stage == model.StageEntry && !aligned {
		e.skip(ctx, symbol, timeframe, model.SkipHTFNotAligned,
			slog.String("side", string(setup.Side)), slog.String("bias", string(bias.Bias)))
		return nil
	}

	event := structure.DetectEvents(candles, trend, w, e.cfg.StructureLookback)
	sweep := liquidity.DetectSweep(candles, setup.Zones, w, e.cfg.SweepLookback)
	divergence := indicator.DetectRSIDivergence(candles, highIdx, lowIdx)
	volRatio := indicator.VolumeRatio(candles, indicator.DefaultVolumeLookback)

	if stage == model.StageEntry && e.cfg.RequireVolumeConf && volRatio < e.cfg.VolumeSpikeThresh {
		e.skip(ctx, symbol, timeframe, model.SkipLowVolume, slog.Float64("volume_ratio", volRatio))
		return nil
	}

	breakdown := scoring.Score(scoring.Inputs{
		Setup:              setup,
		Candle:             candles[len(candles)-1],
		HTFBias:            bias,
		Divergence:         divergence,
		VolumeRatio:        volRatio,
		RSIDivergenceBonus: e.cfg.RSIDivergenceBonus,
	})
	threshold := e.cfg.EntryScoreThreshold
	if stage == model.StageSetup {
		threshold = e.cfg.SetupScoreThreshold
	}
	if threshold > 0 && breakdown.Total < threshold {
		e.skip(ctx, symbol, timeframe, model.SkipScoreTooLow,
			slog.Float64("score", breakdown.Total), slog.Float64("threshold", threshold))
		return nil
	}

	levels := scoring.Levels(setup, e.cfg.ZoneSLBufferPct)
	if !scoring.Valid(levels, setup.Side) {
		e.skip(ctx, symbol, timeframe, model.SkipInvalidLevels)
		return nil
	}
	if levels.RiskReward1 < e.cfg.MinRR {
		e.skip(ctx, symbol, timeframe, model.SkipRRTooLow, slog.Float64("rr", levels.RiskReward1))
		return nil
	}

	chase := antichase.Evaluate(candles, setup, event, antichase.Config{
		MaxATR: e.cfg.AntiChaseMaxATR,
		MaxPct: e.cfg.AntiChaseMaxPct,
	})
	if chase.Decision == model.ChaseNo {
		e.skip(ctx, symbol, timeframe, model.SkipChaseNo, slog.Float64("chase_score", chase.Score))
		return nil
	}

	sig := &model.Signal{
		ID:             uuid.NewString(),
		Stage:          stage,
		Symbol:         symbol,
		Timeframe:      timeframe,
		Side:           setup.Side,
		Score:          breakdown.Total,
		Breakdown:      breakdown,
		Setup:          *setup,
		HTFBias:        bias,
		Regime:         &reg,
		StructureEvent: event,
		Sweep:          sweep,
		Divergence:     divergence,
		VolumeRatio:    volRatio,
		Levels:         levels,
		ChaseEval:      chase,
		Timestamp:      time.Now().UTC(),
	}
	if !finite(sig) {
		e.skip(ctx, symbol, timeframe, model.SkipInvalidLevels)
		return nil
	}

	if stage == model.StageSetup {
		return e.emitSetup(ctx, sig)
	}
	return e.emitEntry(ctx, sig)
}

// emitSetup fires an early-warning alert at most once per setup instance.
// No cooldown is armed and nothing is persisted.
func (e *Engine) emitSetup(ctx context.Context, sig *model.Signal) *model.Signal {
	key := sig.CooldownKey()
	ttl := time.Duration(e.cfg.CooldownMinutes) * time.Minute
	now := time.Now()

	e.mu.Lock()
	if until, ok := e.setupDedup[key]; ok && now.Before(until) {
		e.mu.Unlock()
		return nil
	}
	e.setupDedup[key] = now.Add(ttl)
	e.mu.Unlock()

	if err := e.notifier.SendSignal(ctx, sig); err != nil {
		args := append([]any{"symbol", sig.Symbol, "error", err}, logger.LogWithTrace(ctx)...)
		e.log.Error("setup notification failed", args...)
		if e.met != nil {
			e.met.NotifyFailures.Inc()
		}
		return nil
	}
	e.observeEmit(ctx, sig)
	return sig
}

// emitEntry checks the cooldown, notifies, and only on successful delivery
// persists the signal and arms the cooldown.
func (e *Engine) emitEntry(ctx context.Context, sig *model.Signal) *model.Signal {
	zoneKey := sig.Setup.ZoneKey()
	on, err := e.cooldowns.IsOnCooldown(ctx, sig.Symbol, sig.Timeframe, sig.Side, zoneKey)
	if err != nil {
		e.log.Error("cooldown lookup failed", "symbol", sig.Symbol, "error", err)
	}
	if on {
		if e.met != nil {
			e.met.CooldownHits.Inc()
		}
		e.skip(ctx, sig.Symbol, sig.Timeframe, model.SkipCooldownActive, slog.String("zone_key", zoneKey))
		return nil
	}

	if err := e.notifier.SendSignal(ctx, sig); err != nil {
		args := append([]any{"symbol", sig.Symbol, "error", err}, logger.LogWithTrace(ctx)...)
		e.log.Error("entry notification failed", args...)
		if e.met != nil {
			e.met.NotifyFailures.Inc()
		}
		return nil
	}

	if err := e.signals.SaveSignal(ctx, sig); err != nil {
		e.log.Error("signal persistence failed", "id", sig.ID, "error", err)
	}
	if e.cfg.CooldownMinutes > 0 {
		d := time.Duration(e.cfg.CooldownMinutes) * time.Minute
		if err := e.cooldowns.AddCooldown(ctx, sig.Symbol, sig.Timeframe, sig.Side, zoneKey, d); err != nil {
			e.log.Error("cooldown arming failed", "symbol", sig.Symbol, "error", err)
		}
	}
	e.observeEmit(ctx, sig)
	return sig
}

func (e *Engine) observeEmit(ctx context.Context, sig *model.Signal) {
	args := []any{
		"id", sig.ID,
		"stage", string(sig.Stage),
		"symbol", sig.Symbol,
		"timeframe", sig.Timeframe,
		"side", string(sig.Side),
		"score", sig.Score,
		"setup", string(sig.Setup.Type),
		"entry", sig.Levels.Entry,
		"stop_loss", sig.Levels.StopLoss,
		"take_profit_1", sig.Levels.TakeProfit1,
		"rr", sig.Levels.RiskReward1,
	}
	args = append(args, logger.LogWithTrace(ctx)...)
	e.log.Info("signal emitted", args...)
	if e.met != nil {
		e.met.SignalsTotal.WithLabelValues(string(sig.Stage), string(sig.Side)).Inc()
		e.met.SignalScore.Observe(sig.Score)
	}
}

// htfBias classifies structure on every configured higher timeframe and
// aggregates the weighted bias.
func (e *Engine) htfBias(symbol string) model.HTFBias {
	structures := make(map[string]model.TrendLabel, len(e.cfg.HTFTimeframes))
	for _, tf := range e.cfg.HTFTimeframes {
		candles := e.store.Closed(symbol, tf)
		if len(candles) == 0 {
			continue
		}
		structures[tf] = structure.Analyze(candles, e.cfg.PivotWindow)
	}
	return structure.DetermineHTFBias(structures)
}

// RunMaintenance cleans expired cooldowns and dedup entries until ctx ends.
func (e *Engine) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := e.cooldowns.CleanupExpired(ctx); err != nil {
				e.log.Error("cooldown cleanup failed", "error", err)
			} else if n > 0 {
				e.log.Info("cooldowns expired", "count", n)
			}
			now := time.Now()
			e.mu.Lock()
			for k, until := range e.setupDedup {
				if now.After(until) {
					delete(e.setupDedup, k)
				}
			}
			e.mu.Unlock()
		}
	}
}

func (e *Engine) skip(ctx context.Context, symbol, timeframe string, reason model.SkipReason, details ...any) {
	args := append([]any{"symbol", symbol, "timeframe", timeframe, "reason", string(reason)}, details...)
	args = append(args, logger.LogWithTrace(ctx)...)
	e.log.Debug("signal skipped", args...)
	if e.met != nil {
		e.met.SkipsTotal.WithLabelValues(string(reason)).Inc()
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// finite verifies every numeric field of the outgoing payload.
func finite(sig *model.Signal) bool {
	vals := []float64{
		sig.Score,
		sig.Levels.Entry, sig.Levels.StopLoss,
		sig.Levels.TakeProfit1, sig.Levels.TakeProfit2,
		sig.Levels.RiskReward1, sig.Levels.RiskReward2,
		sig.VolumeRatio,
		sig.Regime.ATR, sig.Regime.ATRRatio, sig.Regime.Slope,
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
