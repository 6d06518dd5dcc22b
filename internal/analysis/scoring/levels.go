package scoring

import (
	"math"

	"pasignal/internal/analysis/zones"
	"pasignal/internal/model"
)

const (
	// DefaultSLBufferPct pads the stop past the zone edge.
	DefaultSLBufferPct = 0.2
	// tpZoneCount is how many opposing zones seed take profits.
	tpZoneCount = 3
	// fallback RR multiples when fewer than two TP zones exist.
	rrFallback1 = 1.5
	rrFallback2 = 3.0
	// lastResortStopPct is the stop distance when no zone anchors it.
	lastResortStopPct = 0.01
)

// Levels derives stop loss and take profits for a setup. The stop anchors on
// the nearest loss-side zone padded by bufferPct (percent past the edge);
// take profits come from the next opposing zones, extended with RR multiples
// when zones run out.
func Levels(setup *model.Setup, bufferPct float64) model.Levels {
	if bufferPct <= 0 {
		bufferPct = DefaultSLBufferPct
	}
	buf := bufferPct / 100
	entry := setup.Price

	lv := model.Levels{Entry: entry}
	lv.SLZone = zones.StopLossZone(entry, setup.Zones, setup.Side)
	lv.StopLoss = stopLoss(setup, lv.SLZone, buf)
	lv.TPZones = zones.NextOpposing(entry, setup.Zones, setup.Side, tpZoneCount)

	risk := math.Abs(entry - lv.StopLoss)
	lv.TakeProfit1, lv.TakeProfit2 = takeProfits(entry, risk, setup.Side, lv.TPZones)

	if risk > 0 {
		lv.RiskReward1 = math.Abs(lv.TakeProfit1-entry) / risk
		if lv.TakeProfit2 != 0 {
			lv.RiskReward2 = math.Abs(lv.TakeProfit2-entry) / risk
		}
	}
	return lv
}

func stopLoss(setup *model.Setup, slZone *model.Zone, buf float64) float64 {
	if setup.Side == model.SideLong {
		if slZone != nil {
			return slZone.Lower * (1 - buf)
		}
		if setup.Zone != nil {
			return setup.Zone.Lower * (1 - buf)
		}
		return setup.Price * (1 - lastResortStopPct)
	}
	if slZone != nil {
		return slZone.Upper * (1 + buf)
	}
	if setup.Zone != nil {
		return setup.Zone.Upper * (1 + buf)
	}
	return setup.Price * (1 + lastResortStopPct)
}

// takeProfits uses the first two TP zone centers, topping up with RR
// multiples of the risk when fewer than two zones qualify.
func takeProfits(entry, risk float64, side model.Side, tpZones []model.Zone) (tp1, tp2 float64) {
	dir := 1.0
	if side == model.SideShort {
		dir = -1
	}

	targets := make([]float64, 0, 2)
	for _, z := range tpZones {
		targets = append(targets, z.Center)
		if len(targets) == 2 {
			break
		}
	}
	for len(targets) < 2 {
		mult := rrFallback1
		if len(targets) == 1 {
			mult = rrFallback2
		}
		targets = append(targets, entry+dir*mult*risk)
	}
	return targets[0], targets[1]
}

// Valid reports whether the levels are usable: finite values and the entry
// strictly between the stop and the first target.
func Valid(lv model.Levels, side model.Side) bool {
	for _, v := range []float64{lv.Entry, lv.StopLoss, lv.TakeProfit1, lv.TakeProfit2, lv.RiskReward1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if side == model.SideLong {
		return lv.StopLoss < lv.Entry && lv.Entry < lv.TakeProfit1
	}
	return lv.TakeProfit1 < lv.Entry && lv.Entry < lv.StopLoss
}
