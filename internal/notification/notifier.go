// Package notification delivers emitted signals to external channels
// (Telegram, HTTP webhooks) and to the log for dry runs. Delivery failure
// propagates to the caller so persistence and cooldown arming are skipped
// and a later candle can retry.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"pasignal/internal/model"
)

// LogNotifier writes signals to the structured log. Used in dry-run mode
// and as the fallback when no external channel is configured.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) SendSignal(_ context.Context, sig *model.Signal) error {
	n.log.Info("signal",
		"id", sig.ID,
		"stage", string(sig.Stage),
		"symbol", sig.Symbol,
		"timeframe", sig.Timeframe,
		"side", string(sig.Side),
		"setup", sig.Setup.Name,
		"score", sig.Score,
		"entry", sig.Levels.Entry,
		"sl", sig.Levels.StopLoss,
		"tp1", sig.Levels.TakeProfit1,
		"rr", sig.Levels.RiskReward1,
	)
	return nil
}

// MultiNotifier fans a signal out to several channels. Every channel is
// attempted even when an earlier one fails; any failure makes the whole
// send fail so the engine does not persist a half-delivered signal.
type MultiNotifier struct {
	sinks []model.Notifier
}

// NewMultiNotifier wraps the given sinks. At least one is required.
func NewMultiNotifier(sinks ...model.Notifier) *MultiNotifier {
	return &MultiNotifier{sinks: sinks}
}

func (m *MultiNotifier) SendSignal(ctx context.Context, sig *model.Signal) error {
	var errs []string
	for _, s := range m.sinks {
		if err := s.SendSignal(ctx, sig); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(errs, "; "))
	}
	return nil
}
