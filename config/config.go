// Package config loads application configuration from environment variables,
// optionally seeded from a .env file. Configuration is immutable after Load.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Instruments
	Symbols         []string
	Timeframes      []string
	EntryTimeframes []string
	HTFTimeframes   []string

	// Signal gating
	SignalMode          string // pro | aggressive
	StagesEnabled       []string
	MinSignalScore      float64
	SetupScoreThreshold float64
	EntryScoreThreshold float64
	CooldownMinutes     int
	MinZonesRequired    int
	MinRR               float64

	// Analysis tuning
	PivotWindow        int
	ZoneLookback       int
	ZoneTolerancePct   float64
	VolumeSpikeThresh  float64
	RequireVolumeConf  bool
	ZoneSLBufferPct    float64
	ATRPeriod          int
	SweepLookback      int
	StructureLookback  int
	AntiChaseMaxATR    float64
	AntiChaseMaxPct    float64
	RSIDivergenceBonus float64

	// Exchange endpoints
	RESTBaseURL string
	WSBaseURL   string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	FeedAddr      string
	APIAddr       string

	// Notification
	TelegramToken  string
	TelegramChatID string
	WebhookURL     string
	DryRun         bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present; real env vars win.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}

	cfg := &Config{
		Symbols:         getList("SYMBOLS", "BTCUSDT"),
		Timeframes:      getList("TIMEFRAMES", "1d,4h,1h"),
		EntryTimeframes: getList("ENTRY_TIMEFRAMES", "1h"),
		HTFTimeframes:   getList("HTF_TIMEFRAMES", "1d,4h"),

		SignalMode:          getEnv("SIGNAL_MODE", "pro"),
		StagesEnabled:       getList("SIGNAL_STAGE_ENABLED", "setup,entry"),
		MinSignalScore:      getFloat("MIN_SIGNAL_SCORE", -1),
		SetupScoreThreshold: getFloat("SETUP_SCORE_THRESHOLD", 55),
		EntryScoreThreshold: getFloat("ENTRY_SCORE_THRESHOLD", -1),
		CooldownMinutes:     getInt("SIGNAL_COOLDOWN_MINUTES", -1),
		MinZonesRequired:    getInt("MIN_ZONES_REQUIRED", -1),
		MinRR:               getFloat("MIN_RR", 1.5),

		PivotWindow:        getInt("PIVOT_WINDOW", 5),
		ZoneLookback:       getInt("ZONE_LOOKBACK", 200),
		ZoneTolerancePct:   getFloat("ZONE_TOLERANCE_PCT", 0.5),
		VolumeSpikeThresh:  getFloat("VOLUME_SPIKE_THRESHOLD", 1.5),
		RequireVolumeConf:  getBool("REQUIRE_VOLUME_CONFIRMATION", false),
		ZoneSLBufferPct:    getFloat("ZONE_SL_BUFFER_PCT", 0.2),
		ATRPeriod:          getInt("ATR_PERIOD", 14),
		SweepLookback:      getInt("SWEEP_LOOKBACK", 5),
		StructureLookback:  getInt("STRUCTURE_LOOKBACK", 3),
		AntiChaseMaxATR:    getFloat("ANTI_CHASE_MAX_ATR", 2.0),
		AntiChaseMaxPct:    getFloat("ANTI_CHASE_MAX_PCT", 3.0),
		RSIDivergenceBonus: getFloat("RSI_DIVERGENCE_BONUS", 10),

		RESTBaseURL: getEnv("REST_BASE_URL", "https://fapi.binance.com"),
		WSBaseURL:   getEnv("WS_BASE_URL", "wss://fstream.binance.com/ws"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/signals.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		FeedAddr:      getEnv("FEED_ADDR", ""),
		APIAddr:       getEnv("API_ADDR", ""),

		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:     getEnv("WEBHOOK_URL", ""),
		DryRun:         getBool("DRY_RUN", false),
	}

	cfg.applyMode()
	cfg.validate()
	return cfg
}

// applyMode fills the gating knobs left unset (-1) from the mode preset.
// Explicit env values always win over the preset.
func (c *Config) applyMode() {
	type preset struct {
		minScore float64
		minZones int
		cooldown int
	}
	p := preset{minScore: 70, minZones: 2, cooldown: 240} // pro
	if strings.EqualFold(c.SignalMode, "aggressive") {
		p = preset{minScore: 55, minZones: 0, cooldown: 60}
	}

	if c.MinSignalScore < 0 {
		c.MinSignalScore = p.minScore
	}
	if c.EntryScoreThreshold < 0 {
		c.EntryScoreThreshold = c.MinSignalScore
	}
	if c.MinZonesRequired < 0 {
		c.MinZonesRequired = p.minZones
	}
	if c.CooldownMinutes < 0 {
		c.CooldownMinutes = p.cooldown
	}
}

func (c *Config) validate() {
	if len(c.Symbols) == 0 {
		log.Fatalf("[config] SYMBOLS must name at least one instrument")
	}
	if len(c.Timeframes) == 0 {
		log.Fatalf("[config] TIMEFRAMES must name at least one timeframe")
	}
	for _, tf := range c.EntryTimeframes {
		if !contains(c.Timeframes, tf) {
			log.Fatalf("[config] ENTRY_TIMEFRAMES entry %q not present in TIMEFRAMES", tf)
		}
	}
	for _, tf := range c.HTFTimeframes {
		if !contains(c.Timeframes, tf) {
			log.Fatalf("[config] HTF_TIMEFRAMES entry %q not present in TIMEFRAMES", tf)
		}
	}
	if c.MinRR < 0 {
		log.Fatalf("[config] MIN_RR must be >= 0")
	}
}

// StageEnabled reports whether a signal stage is switched on.
func (c *Config) StageEnabled(stage string) bool {
	return contains(c.StagesEnabled, stage)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("[config] %s: invalid integer %q", key, v)
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("[config] %s: invalid number %q", key, v)
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("[config] %s: invalid boolean %q", key, v)
	}
	return b
}
