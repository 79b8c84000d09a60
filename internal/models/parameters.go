package models

import "math"

// StrategyParameters describes the active pair and its spread statistics
type StrategyParameters struct {
	Leg1Name      string     `json:"leg1_name"`
	Leg2Name      string     `json:"leg2_name"`
	Leg1          Instrument `json:"leg1"`
	Leg2          Instrument `json:"leg2"`
	HedgeRatio    float64    `json:"hedge_ratio"`
	SpreadMean    float64    `json:"spread_mean"`
	SpreadStd     float64    `json:"spread_std"`
	HalfLife      float64    `json:"half_life"`
	RollingWindow int        `json:"rolling_window"`
}

// TopBand is the upper entry threshold, mean + ratio*std
func (p StrategyParameters) TopBand(ratio float64) float64 {
	return Round(p.SpreadMean+ratio*p.SpreadStd, 4)
}

// BottomBand is the lower entry threshold, mean - ratio*std
func (p StrategyParameters) BottomBand(ratio float64) float64 {
	return Round(p.SpreadMean-ratio*p.SpreadStd, 4)
}

// Spread computes leg1 - hedge*leg2
func (p StrategyParameters) Spread(leg1, leg2 float64) float64 {
	return Round(leg1-p.HedgeRatio*leg2, 4)
}

// Round rounds half away from zero to the given number of decimals
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
