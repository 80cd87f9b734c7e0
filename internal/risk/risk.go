// Package risk implements component G, the Liquidation Risk Valuator
// (spec.md §4.G): pure functions over a single leg's mark/liquidation price
// and leverage.
package risk

import "github.com/sawpanic/fundingkeeper/internal/venue"

// Level classifies how much of the initial liquidation buffer has been
// consumed (spec.md §4.G thresholds).
type Level string

const (
	Safe     Level = "SAFE"
	Warning  Level = "WARNING"
	Danger   Level = "DANGER"
	Critical Level = "CRITICAL"
)

// Assessment is the LiquidationRisk value from spec.md §3.
type Assessment struct {
	Side                   venue.Side
	MarkPrice              float64
	LiqPrice               float64
	EntryPrice             float64
	Leverage               float64
	DistanceToLiquidation  float64
	InitialBuffer          float64
	ProximityToLiquidation float64
	RiskLevel              Level
	LiqPriceEstimated      bool
}

// defaultLeverage is substituted when a position carries no leverage info,
// matching spec.md §4.G's 0.1 (10x-equivalent) fallback for InitialBuffer.
const defaultLeverage = 10.0

// EffectiveLiquidationPrice returns p.LiquidationPrice if the venue reported
// one, otherwise an estimate using a 1.5% maintenance-margin assumption,
// falling back to +/-5% of mark when leverage is unknown (spec.md §4.G).
func EffectiveLiquidationPrice(p venue.Position) (price float64, estimated bool) {
	if p.LiquidationPrice > 0 {
		return p.LiquidationPrice, false
	}
	if p.Leverage <= 0 {
		if p.Side == venue.Long {
			return p.MarkPrice * 0.95, true
		}
		return p.MarkPrice * 1.05, true
	}
	buffer := 1/p.Leverage - 0.015
	if buffer < 0.01 {
		buffer = 0.01
	}
	if p.Side == venue.Long {
		return p.EntryPrice * (1 - buffer), true
	}
	return p.EntryPrice * (1 + buffer), true
}

// Assess computes the full LiquidationRisk for one leg (spec.md §4.G).
func Assess(p venue.Position) Assessment {
	liqPrice, estimated := EffectiveLiquidationPrice(p)
	leverage := p.Leverage
	if leverage <= 0 {
		leverage = defaultLeverage
	}

	distance := distanceToLiquidation(p.Side, p.MarkPrice, liqPrice)
	initialBuffer := 1 / leverage
	if p.Leverage <= 0 {
		initialBuffer = 0.1
	}

	proximity := proximityToLiquidation(distance, initialBuffer)

	return Assessment{
		Side:                   p.Side,
		MarkPrice:              p.MarkPrice,
		LiqPrice:               liqPrice,
		EntryPrice:             p.EntryPrice,
		Leverage:               leverage,
		DistanceToLiquidation:  distance,
		InitialBuffer:          initialBuffer,
		ProximityToLiquidation: proximity,
		RiskLevel:              riskLevel(proximity),
		LiqPriceEstimated:      estimated,
	}
}

func distanceToLiquidation(side venue.Side, mark, liq float64) float64 {
	if mark <= 0 {
		return 0
	}
	var d float64
	if side == venue.Long {
		d = (mark - liq) / mark
	} else {
		d = (liq - mark) / mark
	}
	if d < 0 {
		return 0
	}
	return d
}

func proximityToLiquidation(distance, initialBuffer float64) float64 {
	if initialBuffer <= 0 {
		return 0
	}
	if distance >= initialBuffer {
		return 0
	}
	p := (initialBuffer - distance) / initialBuffer
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func riskLevel(proximity float64) Level {
	switch {
	case proximity >= 0.9:
		return Critical
	case proximity >= 0.7:
		return Danger
	case proximity >= 0.4:
		return Warning
	default:
		return Safe
	}
}

// ShouldEmergencyClose reports whether proximity has crossed the emergency
// threshold (default 0.9, spec.md §4.J).
func ShouldEmergencyClose(proximity, emergencyThreshold float64) bool {
	return proximity >= emergencyThreshold
}

// ShouldWarn reports whether proximity has crossed the warning threshold but
// not yet the emergency one.
func ShouldWarn(proximity, warningThreshold, emergencyThreshold float64) bool {
	return proximity >= warningThreshold && proximity < emergencyThreshold
}
