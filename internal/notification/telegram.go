package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pasignal/internal/model"
)

// TelegramNotifier sends signals via the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramNotifier creates a Telegram notifier.
// botToken: Bot API token from @BotFather
// chatID: Target chat/group/channel ID
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *TelegramNotifier) SendSignal(ctx context.Context, sig *model.Signal) error {
	body, _ := json.Marshal(map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       FormatSignal(sig),
		"parse_mode": "MarkdownV2",
	})

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// FormatSignal renders a signal as a Telegram MarkdownV2 message.
func FormatSignal(sig *model.Signal) string {
	var b bytes.Buffer

	header := "ENTRY"
	if sig.Stage == model.StageSetup {
		header = "SETUP FORMING"
	}
	fmt.Fprintf(&b, "*%s %s %s* \\(%s\\)\n",
		escapeMarkdown(header), escapeMarkdown(string(sig.Side)),
		escapeMarkdown(sig.Symbol), escapeMarkdown(sig.Timeframe))
	fmt.Fprintf(&b, "Setup: %s\n", escapeMarkdown(sig.Setup.Name))
	fmt.Fprintf(&b, "Score: %s\n", escapeMarkdown(fmt.Sprintf("%.0f/100", sig.Score)))
	fmt.Fprintf(&b, "Entry: %s\n", escapeMarkdown(formatPrice(sig.Levels.Entry)))
	fmt.Fprintf(&b, "Stop: %s\n", escapeMarkdown(formatPrice(sig.Levels.StopLoss)))
	fmt.Fprintf(&b, "TP1: %s \\(%s\\)\n",
		escapeMarkdown(formatPrice(sig.Levels.TakeProfit1)),
		escapeMarkdown(fmt.Sprintf("%.1fR", sig.Levels.RiskReward1)))
	if sig.Levels.TakeProfit2 > 0 {
		fmt.Fprintf(&b, "TP2: %s \\(%s\\)\n",
			escapeMarkdown(formatPrice(sig.Levels.TakeProfit2)),
			escapeMarkdown(fmt.Sprintf("%.1fR", sig.Levels.RiskReward2)))
	}
	fmt.Fprintf(&b, "HTF bias: %s\n", escapeMarkdown(string(sig.HTFBias.Bias)))
	if sig.Regime != nil {
		fmt.Fprintf(&b, "Regime: %s\n", escapeMarkdown(string(sig.Regime.Label)))
	}
	if sig.ChaseEval != nil && sig.ChaseEval.Decision != model.ChaseOK {
		fmt.Fprintf(&b, "Chase: %s\n", escapeMarkdown(string(sig.ChaseEval.Decision)))
	}
	return b.String()
}

// formatPrice trims price formatting to a sensible precision across the
// range from sub-cent alts to five-figure majors.
func formatPrice(p float64) string {
	switch {
	case p >= 1000:
		return fmt.Sprintf("%.2f", p)
	case p >= 1:
		return fmt.Sprintf("%.4f", p)
	default:
		return fmt.Sprintf("%.6f", p)
	}
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(s string) string {
	specials := []byte{'_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!'}
	var buf bytes.Buffer
	for i := 0; i < len(s); i++ {
		for _, sp := range specials {
			if s[i] == sp {
				buf.WriteByte('\\')
				break
			}
		}
		buf.WriteByte(s[i])
	}
	return buf.String()
}
