// Command sigengine runs the live signal pipeline: REST seed, websocket
// ingestion, per-candle analysis, and signal emission to the configured
// notification channels.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pasignal/config"
	"pasignal/internal/api"
	"pasignal/internal/candlestore"
	"pasignal/internal/engine"
	"pasignal/internal/feed"
	"pasignal/internal/logger"
	"pasignal/internal/marketdata/rest"
	"pasignal/internal/marketdata/ws"
	"pasignal/internal/metrics"
	"pasignal/internal/model"
	"pasignal/internal/notification"
	redisstore "pasignal/internal/store/redis"
	sqlitestore "pasignal/internal/store/sqlite"
)

// seedLimit is how many closed candles are fetched per (symbol, timeframe)
// before streaming starts.
const seedLimit = 300

func main() {
	log := logger.Init("sigengine", logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	log.Info("starting")

	cfg := config.Load()
	log.Info("configured",
		"symbols", cfg.Symbols,
		"timeframes", cfg.Timeframes,
		"entry_timeframes", cfg.EntryTimeframes,
		"mode", cfg.SignalMode,
		"min_score", cfg.MinSignalScore,
		"dry_run", cfg.DryRun,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetSymbols(cfg.Symbols)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()
	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		metricsSrv.Stop(shutCtx)
		shutCancel()
	}()

	// ---- SQLite (signals + cooldowns) ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	db, err := sqlitestore.New(cfg.SQLitePath)
	if err != nil {
		log.Error("sqlite init failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// ---- Redis mirror (optional) ----
	var pub *redisstore.Publisher
	if cfg.RedisAddr != "" {
		pub, err = redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Warn("redis init failed, continuing local-only", "error", err)
			pub = nil
		} else {
			defer pub.Close()
			pub.Breaker().OnStateChange = func(_, to redisstore.State) {
				prom.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.RedisCircuitBreakerTrips.Inc()
				}
			}
		}
	}

	if pub != nil {
		health.StartLivenessChecker(ctx, pub.Client(), db.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, db.DB(), 10*time.Second)
	}

	// ---- Signal history API (optional) ----
	if cfg.APIAddr != "" {
		apiSrv := &http.Server{Addr: cfg.APIAddr, Handler: api.NewRouter(db, log)}
		go func() {
			if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("api server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			apiSrv.Shutdown(shutCtx)
			shutCancel()
		}()
		log.Info("signal api enabled", "addr", cfg.APIAddr)
	}

	// ---- Notification sinks ----
	notifier := buildNotifier(ctx, cfg, log)

	// ---- Engine ----
	eng := engine.New(cfg,
		candlestore.New(),
		&mirroredCooldowns{db: db, pub: pub, log: log},
		&teeSignals{db: db, pub: pub, met: prom, log: log},
		notifier, log, prom)

	// ---- REST seed ----
	restClient := rest.NewClient(cfg.RESTBaseURL, log)
	for _, sym := range cfg.Symbols {
		for _, tf := range cfg.Timeframes {
			candles, err := restClient.Backfill(ctx, sym, tf, seedLimit, time.Time{}, time.Time{})
			if err != nil {
				log.Error("seed backfill failed", "symbol", sym, "timeframe", tf, "error", err)
				os.Exit(1)
			}
			eng.Store().Init(sym, tf, candles)
			prom.BackfillTotal.Add(float64(len(candles)))
			log.Info("seeded", "symbol", sym, "timeframe", tf, "candles", len(candles))
		}
	}

	go eng.RunMaintenance(ctx)

	// ---- Stream ----
	streamer := ws.NewStreamer(cfg.WSBaseURL, restClient, log)
	streamer.OnReconnect = prom.WSReconnects.Inc
	streamer.OnConnected = health.SetWSConnected

	onClosed := func(c model.Candle) {
		health.SetLastCandleTime(c.CloseTime)
		eng.OnClosed(ctx, c)
	}
	onForming := func(c model.Candle) {
		eng.OnForming(ctx, c)
	}

	err = streamer.Stream(ctx, cfg.Symbols, cfg.Timeframes, onClosed, onForming)
	if err != nil && ctx.Err() == nil {
		log.Error("stream terminated", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// buildNotifier assembles the sink set. Dry runs log only; otherwise every
// configured channel is attached, with the log sink as fallback when none is.
func buildNotifier(ctx context.Context, cfg *config.Config, log *slog.Logger) model.Notifier {
	if cfg.DryRun {
		log.Info("dry run, signals go to the log only")
		return notification.NewLogNotifier(log)
	}

	var sinks []model.Notifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		sinks = append(sinks, notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID))
		log.Info("telegram notifier enabled")
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notification.NewWebhookNotifier(cfg.WebhookURL))
		log.Info("webhook notifier enabled", "url", cfg.WebhookURL)
	}
	if cfg.FeedAddr != "" {
		hub := feed.NewHub(log)
		sinks = append(sinks, hub)
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", hub.HandleWS)
		srv := &http.Server{Addr: cfg.FeedAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("feed server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			srv.Shutdown(shutCtx)
			shutCancel()
		}()
		log.Info("signal feed enabled", "addr", cfg.FeedAddr)
	}
	if len(sinks) == 0 {
		return notification.NewLogNotifier(log)
	}
	return notification.NewMultiNotifier(sinks...)
}

// mirroredCooldowns persists cooldowns in SQLite and mirrors them to Redis
// when available. The mirror is advisory; mirror failures never block.
type mirroredCooldowns struct {
	db  *sqlitestore.Store
	pub *redisstore.Publisher
	log *slog.Logger
}

func (m *mirroredCooldowns) IsOnCooldown(ctx context.Context, symbol, timeframe string, side model.Side, zoneKey string) (bool, error) {
	return m.db.IsOnCooldown(ctx, symbol, timeframe, side, zoneKey)
}

func (m *mirroredCooldowns) AddCooldown(ctx context.Context, symbol, timeframe string, side model.Side, zoneKey string, d time.Duration) error {
	if err := m.db.AddCooldown(ctx, symbol, timeframe, side, zoneKey, d); err != nil {
		return err
	}
	if m.pub != nil {
		if err := m.pub.MirrorCooldown(ctx, symbol, timeframe, side, zoneKey, d); err != nil {
			m.log.Warn("cooldown mirror failed", "symbol", symbol, "error", err)
		}
	}
	return nil
}

func (m *mirroredCooldowns) CleanupExpired(ctx context.Context) (int, error) {
	return m.db.CleanupExpired(ctx)
}

func (m *mirroredCooldowns) Close() error { return nil }

// teeSignals persists signals in SQLite and fans them out on Redis when
// available. SQLite is authoritative; a Redis failure only logs.
type teeSignals struct {
	db  *sqlitestore.Store
	pub *redisstore.Publisher
	met *metrics.Metrics
	log *slog.Logger
}

func (t *teeSignals) SaveSignal(ctx context.Context, sig *model.Signal) error {
	start := time.Now()
	if err := t.db.SaveSignal(ctx, sig); err != nil {
		return err
	}
	t.met.SQLiteCommitDur.Observe(time.Since(start).Seconds())

	if t.pub != nil {
		start = time.Now()
		if err := t.pub.PublishSignal(ctx, sig); err != nil {
			t.log.Warn("redis publish failed", "id", sig.ID, "error", err)
		}
		t.met.RedisWriteDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

func (t *teeSignals) Close() error { return nil }
