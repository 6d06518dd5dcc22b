package model

import (
	"encoding/json"
	"time"
)

// Side is the trade direction of a setup or signal.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Stage distinguishes early-warning intrabar alerts from confirmed on-close ones.
type Stage string

const (
	StageSetup Stage = "SETUP"
	StageEntry Stage = "ENTRY"
)

// ZoneType labels a zone as support or resistance.
type ZoneType string

const (
	ZoneSupport    ZoneType = "support"
	ZoneResistance ZoneType = "resistance"
)

// Zone is a price band anchored on a pivot and expanded by a tolerance.
// Lower < Center < Upper always holds; Key is stable under (Type, Center).
type Zone struct {
	Type      ZoneType  `json:"type"`
	Center    float64   `json:"center"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
	Timestamp time.Time `json:"timestamp"`
	Touches   int       `json:"touches"`
	Key       string    `json:"key"`
}

// Contains reports whether price falls inside the zone band (inclusive).
func (z *Zone) Contains(price float64) bool {
	return price >= z.Lower && price <= z.Upper
}

// ZoneSet holds the zones built for one analysis pass, split by type.
type ZoneSet struct {
	Support    []Zone `json:"support"`
	Resistance []Zone `json:"resistance"`
}

// Total returns the combined zone count.
func (zs *ZoneSet) Total() int {
	return len(zs.Support) + len(zs.Resistance)
}

// All returns supports and resistances in one slice.
func (zs *ZoneSet) All() []Zone {
	out := make([]Zone, 0, zs.Total())
	out = append(out, zs.Support...)
	out = append(out, zs.Resistance...)
	return out
}

// TrendLabel is a per-timeframe market structure classification.
type TrendLabel string

const (
	TrendUp      TrendLabel = "up"
	TrendDown    TrendLabel = "down"
	TrendNeutral TrendLabel = "neutral"
)

// BiasLabel is the aggregated higher-timeframe direction.
type BiasLabel string

const (
	BiasBullish BiasLabel = "bullish"
	BiasBearish BiasLabel = "bearish"
	BiasNeutral BiasLabel = "neutral"
)

// HTFBias is the weighted aggregate structure of the higher timeframes.
type HTFBias struct {
	Bias       BiasLabel             `json:"bias"`
	Alignment  bool                  `json:"alignment"`
	Structures map[string]TrendLabel `json:"structures"`
	Score      float64               `json:"score"`
}

// PatternType is the directional reading of a candlestick pattern.
type PatternType string

const (
	PatternBullish PatternType = "bullish"
	PatternBearish PatternType = "bearish"
	PatternNeutral PatternType = "neutral"
)

// Pattern is a recognized candlestick pattern with a confidence strength.
type Pattern struct {
	Name     string      `json:"name"`
	Type     PatternType `json:"type"`
	Strength float64     `json:"strength"`
}

// RejectionType labels which side of the candle was rejected.
type RejectionType string

const (
	RejectionUpside   RejectionType = "upside"
	RejectionDownside RejectionType = "downside"
)

// Rejection describes a wick-based rejection within a single candle.
type Rejection struct {
	Type     RejectionType `json:"type"`
	Strength float64       `json:"strength"`
}

// CandleStrength holds the per-candle anatomy metrics used by scoring.
type CandleStrength struct {
	BodyPercent      float64     `json:"body_percent"`
	CloseLocation    float64     `json:"close_location"`
	UpperWickPercent float64     `json:"upper_wick_percent"`
	LowerWickPercent float64     `json:"lower_wick_percent"`
	Rejection        *Rejection  `json:"rejection,omitempty"`
	Direction        PatternType `json:"direction"`
	Strength         float64     `json:"strength"`
}

// SetupType identifies the price-action configuration that was detected.
type SetupType string

const (
	SetupReversal       SetupType = "reversal"
	SetupBreakout       SetupType = "breakout"
	SetupBreakdown      SetupType = "breakdown"
	SetupRetest         SetupType = "retest"
	SetupFalseBreakout  SetupType = "false_breakout"
	SetupFalseBreakdown SetupType = "false_breakdown"
)

// Setup is a detected trade configuration at a zone. Zones carries the full
// zone set from the same analysis pass for downstream level calculation.
type Setup struct {
	Type        SetupType `json:"type"`
	Side        Side      `json:"side"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Zone        *Zone     `json:"zone,omitempty"`
	Zones       ZoneSet   `json:"zones"`
	Pattern     *Pattern  `json:"pattern,omitempty"`
	IsTrue      bool      `json:"is_true,omitempty"`
	VolumeSpike bool      `json:"volume_spike,omitempty"`
	VolumeRatio float64   `json:"volume_ratio,omitempty"`
}

// ZoneKey returns the anchor zone key used for dedup and cooldowns.
// Setups without a zone fall back to the setup type.
func (s *Setup) ZoneKey() string {
	if s.Zone != nil {
		return s.Zone.Key
	}
	return string(s.Type)
}

// Levels holds the zone-anchored stop loss and take profits for a setup.
type Levels struct {
	Entry       float64 `json:"entry"`
	StopLoss    float64 `json:"stop_loss"`
	TakeProfit1 float64 `json:"take_profit_1"`
	TakeProfit2 float64 `json:"take_profit_2,omitempty"`
	RiskReward1 float64 `json:"risk_reward_1"`
	RiskReward2 float64 `json:"risk_reward_2,omitempty"`
	SLZone      *Zone   `json:"sl_zone,omitempty"`
	TPZones     []Zone  `json:"tp_zones,omitempty"`
}

// RegimeLabel is a coarse market state.
type RegimeLabel string

const (
	RegimeTrendUp   RegimeLabel = "trend_up"
	RegimeTrendDown RegimeLabel = "trend_down"
	RegimeRange     RegimeLabel = "range"
	RegimeExpansion RegimeLabel = "expansion"
)

// Regime is the detected market regime with supporting metrics.
type Regime struct {
	Label      RegimeLabel `json:"label"`
	Confidence float64     `json:"confidence"`
	ATR        float64     `json:"atr"`
	ATRRatio   float64     `json:"atr_ratio"`
	Slope      float64     `json:"slope"`
}

// EventType identifies a structure event kind.
type EventType string

const (
	EventBOS   EventType = "BOS"
	EventCHoCH EventType = "CHoCH"
)

// StructureEvent is a break of structure or change of character against
// the most recent swing extremes.
type StructureEvent struct {
	Type      EventType   `json:"type"`
	Direction PatternType `json:"direction"`
	Level     float64     `json:"level"`
}

// SweepReference labels what level a liquidity sweep penetrated.
type SweepReference string

const (
	SweepSwingHigh    SweepReference = "swing_high"
	SweepSwingLow     SweepReference = "swing_low"
	SweepZoneBoundary SweepReference = "zone_boundary"
)

// Sweep is a liquidity grab: a wick beyond a reference level with a close
// back inside.
type Sweep struct {
	Direction PatternType    `json:"direction"`
	Reference SweepReference `json:"reference"`
	Level     float64        `json:"level"`
	Strength  float64        `json:"strength"`
}

// Divergence is a price/RSI divergence at recent pivots.
type Divergence struct {
	Type     PatternType `json:"type"`
	PriceA   float64     `json:"price_a"`
	PriceB   float64     `json:"price_b"`
	RSIA     float64     `json:"rsi_a"`
	RSIB     float64     `json:"rsi_b"`
	Strength float64     `json:"strength"`
}

// ChaseDecision is the anti-chase verdict for an entry.
type ChaseDecision string

const (
	ChaseOK       ChaseDecision = "CHASE_OK"
	ChaseNo       ChaseDecision = "CHASE_NO"
	ReversalWatch ChaseDecision = "REVERSAL_WATCH"
)

// ChaseMetrics carries the raw measurements behind a chase evaluation.
type ChaseMetrics struct {
	ATRMove          float64 `json:"atr_move"`
	PctMove          float64 `json:"pct_move"`
	BodyRatio        float64 `json:"body_ratio"`
	VolumeRatio      float64 `json:"volume_ratio"`
	VolumeClimax     bool    `json:"volume_climax"`
	ConsecutiveTrend int     `json:"consecutive_trend"`
	Accelerating     bool    `json:"accelerating"`
	SlowingDown      bool    `json:"slowing_down"`
}

// ChaseEval is the full anti-chase result attached to emitted signals.
type ChaseEval struct {
	Decision ChaseDecision `json:"decision"`
	Reason   string        `json:"reason"`
	Score    float64       `json:"score"`
	Metrics  ChaseMetrics  `json:"metrics"`
}

// ScoreBreakdown itemizes the signal score by contribution.
type ScoreBreakdown struct {
	HTF      float64 `json:"htf"`
	Setup    float64 `json:"setup"`
	Candle   float64 `json:"candle"`
	Volume   float64 `json:"volume"`
	RSIBonus float64 `json:"rsi_bonus"`
	Total    float64 `json:"total"`
}

// Signal is the fully-resolved payload handed to the notification sink
// and the signal store after all gates pass.
type Signal struct {
	ID             string          `json:"id"`
	Stage          Stage           `json:"stage"`
	Symbol         string          `json:"symbol"`
	Timeframe      string          `json:"timeframe"`
	Side           Side            `json:"side"`
	Score          float64         `json:"score"`
	Breakdown      ScoreBreakdown  `json:"breakdown"`
	Setup          Setup           `json:"setup"`
	HTFBias        HTFBias         `json:"htf_bias"`
	Regime         *Regime         `json:"regime,omitempty"`
	StructureEvent *StructureEvent `json:"structure_event,omitempty"`
	Sweep          *Sweep          `json:"sweep,omitempty"`
	Divergence     *Divergence     `json:"divergence,omitempty"`
	VolumeRatio    float64         `json:"volume_ratio"`
	Levels         Levels          `json:"levels"`
	ChaseEval      *ChaseEval      `json:"chase_eval,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// CooldownKey returns the identity under which this signal instance is
// considered already-sent: "symbol|tf|side|zoneKey".
func (s *Signal) CooldownKey() string {
	return s.Symbol + "|" + s.Timeframe + "|" + string(s.Side) + "|" + s.Setup.ZoneKey()
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// SignalFromJSON decodes a persisted signal payload.
func SignalFromJSON(b []byte) (*Signal, error) {
	var s Signal
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SkipReason enumerates the structured gate-miss reasons.
type SkipReason string

const (
	SkipInsufficientData SkipReason = "insufficient_data"
	SkipNoSetup          SkipReason = "no_setup"
	SkipNoZones          SkipReason = "no_zones"
	SkipHTFNotAligned    SkipReason = "htf_not_aligned"
	SkipLowVolume        SkipReason = "low_volume"
	SkipScoreTooLow      SkipReason = "score_too_low"
	SkipInvalidLevels    SkipReason = "invalid_levels"
	SkipRRTooLow         SkipReason = "rr_too_low"
	SkipChaseNo          SkipReason = "chase_no"
	SkipCooldownActive   SkipReason = "cooldown_active"
)
