// cmd/backtest replays historical candles through the signal engine to
// validate gating and scoring without live market data. Candles are fetched
// over REST and fed in close order, so higher-timeframe context never runs
// ahead of the entry timeframe.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=BTCUSDT --limit=1000
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"pasignal/config"
	"pasignal/internal/candlestore"
	"pasignal/internal/engine"
	"pasignal/internal/logger"
	"pasignal/internal/marketdata/rest"
	"pasignal/internal/model"
	"pasignal/internal/store/memory"
)

func main() {
	symbol := flag.String("symbol", "", "Symbol to replay (default: first configured symbol)")
	limit := flag.Int("limit", 1000, "Closed candles to fetch per timeframe")
	verbose := flag.Bool("v", false, "Log every emitted signal as it fires")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	log := logger.Init("backtest", level)

	cfg := config.Load()
	if *symbol != "" {
		cfg.Symbols = []string{*symbol}
	}
	cfg.Symbols = cfg.Symbols[:1]
	sym := cfg.Symbols[0]

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- Fetch history ----
	restClient := rest.NewClient(cfg.RESTBaseURL, log)
	var all []model.Candle
	for _, tf := range cfg.Timeframes {
		candles, err := restClient.Backfill(ctx, sym, tf, *limit, time.Time{}, time.Time{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "backfill %s %s: %v\n", sym, tf, err)
			os.Exit(1)
		}
		fmt.Printf("fetched %d candles for %s %s\n", len(candles), sym, tf)
		all = append(all, candles...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CloseTime.Before(all[j].CloseTime) })

	// ---- Engine over in-memory stores ----
	signals := memory.NewSignalStore()
	eng := engine.New(cfg,
		candlestore.New(),
		memory.NewCooldownStore(),
		signals,
		&printNotifier{verbose: *verbose},
		log, nil)

	start := time.Now()
	for _, c := range all {
		eng.OnClosed(ctx, c)
	}
	elapsed := time.Since(start)

	// ---- Summary ----
	emitted := signals.Signals()
	fmt.Printf("\nreplayed %d candles in %s\n", len(all), elapsed.Round(time.Millisecond))
	fmt.Printf("signals emitted: %d\n", len(emitted))

	var long, short int
	var scoreSum float64
	for _, sig := range emitted {
		if sig.Side == model.SideLong {
			long++
		} else {
			short++
		}
		scoreSum += sig.Score
	}
	if len(emitted) > 0 {
		fmt.Printf("  long=%d short=%d avg_score=%.1f\n", long, short, scoreSum/float64(len(emitted)))
		fmt.Println()
		for _, sig := range emitted {
			fmt.Printf("  %s  %-5s %-4s %-16s score=%5.1f entry=%.2f sl=%.2f tp1=%.2f rr=%.2f\n",
				sig.Timestamp.Format("2006-01-02 15:04"),
				sig.Symbol, string(sig.Side), sig.Setup.Name,
				sig.Score, sig.Levels.Entry, sig.Levels.StopLoss,
				sig.Levels.TakeProfit1, sig.Levels.RiskReward1)
		}
	}
}

// printNotifier accepts every delivery so the engine persists and arms
// cooldowns exactly as it would live. Signals land in the memory store via
// the engine's own persistence path; this sink only optionally prints.
type printNotifier struct {
	verbose bool
}

func (r *printNotifier) SendSignal(_ context.Context, sig *model.Signal) error {
	if r.verbose {
		fmt.Printf("signal %s %s %s score=%.1f\n", sig.Symbol, sig.Timeframe, string(sig.Side), sig.Score)
	}
	return nil
}
