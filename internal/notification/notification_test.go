package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pasignal/internal/model"
)

func sampleSignal() *model.Signal {
	return &model.Signal{
		ID:        "sig-1",
		Stage:     model.StageEntry,
		Symbol:    "BTCUSDT",
		Timeframe: "1h",
		Side:      model.SideLong,
		Score:     82.4,
		Setup:     model.Setup{Type: model.SetupBreakout, Name: "breakout"},
		HTFBias:   model.HTFBias{Bias: model.BiasBullish},
		Levels: model.Levels{
			Entry: 43210.5, StopLoss: 42800, TakeProfit1: 44000, TakeProfit2: 45200,
			RiskReward1: 1.9, RiskReward2: 4.8,
		},
	}
}

func TestFormatSignalEntry(t *testing.T) {
	msg := FormatSignal(sampleSignal())

	for _, want := range []string{
		"ENTRY LONG BTCUSDT",
		"Setup: breakout",
		"Score: 82/100",
		"Entry: 43210\\.50",
		"Stop: 42800\\.00",
		"TP1: 44000\\.00",
		"1\\.9R",
		"TP2: 45200\\.00",
		"HTF bias: bullish",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Regime:") || strings.Contains(msg, "Chase:") {
		t.Errorf("absent optional fields must not render:\n%s", msg)
	}
}

func TestFormatSignalSetupStage(t *testing.T) {
	sig := sampleSignal()
	sig.Stage = model.StageSetup
	sig.Levels.TakeProfit2 = 0
	sig.Regime = &model.Regime{Label: model.RegimeTrendUp}
	sig.ChaseEval = &model.ChaseEval{Decision: model.ReversalWatch}

	msg := FormatSignal(sig)
	if !strings.Contains(msg, "SETUP FORMING") {
		t.Errorf("expected the setup header:\n%s", msg)
	}
	if strings.Contains(msg, "TP2:") {
		t.Errorf("zero TP2 must not render:\n%s", msg)
	}
	if !strings.Contains(msg, "Regime: trend\\_up") {
		t.Errorf("expected the regime line:\n%s", msg)
	}
	if !strings.Contains(msg, "Chase: REVERSAL\\_WATCH") {
		t.Errorf("expected the chase warning:\n%s", msg)
	}
}

func TestFormatSignalOmitsChaseOK(t *testing.T) {
	sig := sampleSignal()
	sig.ChaseEval = &model.ChaseEval{Decision: model.ChaseOK}
	if msg := FormatSignal(sig); strings.Contains(msg, "Chase:") {
		t.Errorf("CHASE_OK must not render a warning:\n%s", msg)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	cases := []struct{ in, want string }{
		{"BTCUSDT", "BTCUSDT"},
		{"43210.50", "43210\\.50"},
		{"false_breakout_fade", "false\\_breakout\\_fade"},
		{"a-b (c)", "a\\-b \\(c\\)"},
		{"", ""},
	}
	for _, c := range cases {
		if got := escapeMarkdown(c.in); got != c.want {
			t.Errorf("escapeMarkdown(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{43210.5, "43210.50"},
		{1000, "1000.00"},
		{2.5, "2.5000"},
		{0.00012345, "0.000123"},
	}
	for _, c := range cases {
		if got := formatPrice(c.in); got != c.want {
			t.Errorf("formatPrice(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

type stubSink struct {
	err   error
	calls int
}

func (s *stubSink) SendSignal(context.Context, *model.Signal) error {
	s.calls++
	return s.err
}

func TestMultiNotifierAttemptsEverySink(t *testing.T) {
	ctx := context.Background()
	a := &stubSink{err: errors.New("telegram down")}
	b := &stubSink{}
	m := NewMultiNotifier(a, b)

	err := m.SendSignal(ctx, sampleSignal())
	if err == nil {
		t.Fatal("one failed sink must fail the whole send")
	}
	if !strings.Contains(err.Error(), "telegram down") {
		t.Errorf("error must carry the sink failure, got %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("every sink must be attempted, got %d and %d", a.calls, b.calls)
	}
}

func TestMultiNotifierAllHealthy(t *testing.T) {
	a, b := &stubSink{}, &stubSink{}
	if err := NewMultiNotifier(a, b).SendSignal(context.Background(), sampleSignal()); err != nil {
		t.Fatalf("healthy sinks must succeed: %v", err)
	}
}

func TestWebhookNotifierPostsSignalJSON(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	sig := sampleSignal()
	if err := NewWebhookNotifier(srv.URL).SendSignal(context.Background(), sig); err != nil {
		t.Fatalf("webhook send: %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("expected JSON content type, got %q", gotContentType)
	}
	decoded, err := model.SignalFromJSON(gotBody)
	if err != nil {
		t.Fatalf("posted body must be a signal: %v", err)
	}
	if decoded.ID != sig.ID || decoded.Symbol != sig.Symbol {
		t.Errorf("round-tripped signal mismatch: %+v", decoded)
	}
}

func TestWebhookNotifierRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).SendSignal(context.Background(), sampleSignal())
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected a status error, got %v", err)
	}
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLogNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := n.SendSignal(context.Background(), sampleSignal()); err != nil {
		t.Fatalf("log notifier must not fail: %v", err)
	}
}
