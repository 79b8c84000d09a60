// Package pairs ranks candidate pairs by cointegration and mean-reversion
// statistics computed over their historical closes.
package pairs

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"gonum.org/v1/gonum/stat"
)

// minObservations is the shortest aligned history a pair is evaluated on
const minObservations = 8

// flatVariance below this the spread is treated as constant
const flatVariance = 1e-12

// ErrInsufficientData is returned when aligned history is too short
var ErrInsufficientData = errors.New("pairs: insufficient aligned history")

// Result is the evaluation of one ordered pair
type Result struct {
	Leg1Name      string  `json:"leg1_name"`
	Leg2Name      string  `json:"leg2_name"`
	HedgeRatio    float64 `json:"hedge_ratio"`
	Cointegrated  bool    `json:"cointegrated"`
	ADFStatistic  float64 `json:"adf_statistic"`
	CriticalValue float64 `json:"critical_value"`
	CorrMean      float64 `json:"corr_mean"`
	HalfLife      float64 `json:"half_life"`
	SpreadMean    float64 `json:"spread_mean"`
	SpreadStd     float64 `json:"spread_std"`
	TopBand       float64 `json:"top_band"`
	BottomBand    float64 `json:"bottom_band"`
	Score         float64 `json:"score"`
	Observations  int     `json:"observations"`
}

// Parameters converts the result into strategy parameters for the given legs
func (r Result) Parameters(leg1, leg2 models.Instrument, window int) models.StrategyParameters {
	return models.StrategyParameters{
		Leg1Name:      r.Leg1Name,
		Leg2Name:      r.Leg2Name,
		Leg1:          leg1,
		Leg2:          leg2,
		HedgeRatio:    r.HedgeRatio,
		SpreadMean:    r.SpreadMean,
		SpreadStd:     r.SpreadStd,
		HalfLife:      r.HalfLife,
		RollingWindow: window,
	}
}

// align inner-joins two bar series on timestamp, keeping leg1's order
func align(bars1, bars2 []models.PriceBar) ([]float64, []float64) {
	closes2 := make(map[time.Time]float64, len(bars2))
	for _, b := range bars2 {
		closes2[b.Time.UTC()] = b.Close
	}
	c1 := make([]float64, 0, len(bars1))
	c2 := make([]float64, 0, len(bars1))
	for _, b := range bars1 {
		if v, ok := closes2[b.Time.UTC()]; ok {
			c1 = append(c1, b.Close)
			c2 = append(c2, v)
		}
	}
	return c1, c2
}

// Evaluate computes hedge ratio, cointegration, spread statistics,
// half-life and score for leg1 against leg2.
//
// The hedge ratio is fitted on the first half of the aligned history and the
// unit root test runs on the second half of the resulting spread. Spread
// mean and standard deviation are taken over the last window bars.
func Evaluate(leg1 string, bars1 []models.PriceBar, leg2 string, bars2 []models.PriceBar, window int) (Result, error) {
	if window < 2 {
		return Result{}, fmt.Errorf("pairs: rolling window must be at least 2, got %d", window)
	}
	c1, c2 := align(bars1, bars2)
	n := len(c1)
	if n < minObservations || n < window {
		return Result{}, fmt.Errorf("%w: %s/%s has %d bars for window %d", ErrInsufficientData, leg1, leg2, n, window)
	}

	half := n / 2
	res := Result{
		Leg1Name:     leg1,
		Leg2Name:     leg2,
		HedgeRatio:   models.Round(hedgeRatio(c1[:half], c2[:half]), 2),
		Observations: n,
	}

	spread := make([]float64, n)
	for i := range c1 {
		spread[i] = c1[i] - res.HedgeRatio*c2[i]
	}

	second := spread[half:]
	if stat.Variance(second, nil) < flatVariance {
		res.Cointegrated = true
		res.ADFStatistic = math.Inf(-1)
	} else {
		adf, err := adfuller(second)
		if err != nil {
			return Result{}, fmt.Errorf("unit root test for %s/%s: %w", leg1, leg2, err)
		}
		res.ADFStatistic = adf.stat
		res.CriticalValue = adf.crit10
		res.Cointegrated = adf.stat <= adf.crit10
	}

	mean, std := rollingTail(spread, window)
	res.SpreadMean = models.Round(mean, 2)
	res.SpreadStd = models.Round(std, 2)
	res.TopBand = models.Round(mean+std, 4)
	res.BottomBand = models.Round(mean-std, 4)

	corr, ok := meanRollingCorrelation(c1, c2, window)
	if ok {
		res.CorrMean = 100 * models.Round(corr, 4)
	}

	if theta, err := johansenEigenvalue(c1, c2); err == nil && theta != 0 {
		res.HalfLife = models.Round(math.Ln2/math.Abs(theta), 2)
	}

	if ok && res.HalfLife > 0 {
		res.Score = models.Round(res.CorrMean*res.SpreadStd/res.HalfLife, 4)
	}
	return res, nil
}
