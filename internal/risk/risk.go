package risk

import (
	"fmt"

	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"github.com/TruWeaveTrader/treasury-pairs/internal/trading"
	"github.com/shopspring/decimal"
)

// unitSize is the notional each sized unit stands for
var unitSize = decimal.NewFromInt(1000)

var half = decimal.NewFromFloat(0.5)

// Manager handles entry checks and position sizing
type Manager struct {
	percentOfAccount float64
	maxSpreadPercent float64
}

// NewManager creates a new risk manager using percentOfAccount of buying
// power per trade and rejecting quotes wider than maxSpreadPercent
func NewManager(percentOfAccount, maxSpreadPercent float64) *Manager {
	if maxSpreadPercent <= 0 {
		maxSpreadPercent = 1.0
	}
	return &Manager{percentOfAccount: percentOfAccount, maxSpreadPercent: maxSpreadPercent}
}

// CheckResult contains the result of a risk check
type CheckResult struct {
	Passed   bool
	Reason   string
	Warnings []string
}

// Sizes is the quantity to trade on each leg
type Sizes struct {
	Leg1 decimal.Decimal
	Leg2 decimal.Decimal
}

// PositionSizes splits the usable buying power into $1000 units. The leg
// with the larger hedge-adjusted size gets half the units and the other leg
// is derived from it through the hedge ratio.
func (m *Manager) PositionSizes(buyingPower decimal.Decimal, hedgeRatio float64) Sizes {
	available := buyingPower.Mul(decimal.NewFromFloat(m.percentOfAccount)).Div(decimal.NewFromInt(100))
	units := available.Div(unitSize).Floor()
	if hedgeRatio <= 0 {
		return Sizes{}
	}
	hedge := decimal.NewFromFloat(hedgeRatio)
	if hedgeRatio < 1 {
		leg1 := units.Mul(half).Floor()
		return Sizes{Leg1: leg1, Leg2: hedge.Mul(leg1).Floor()}
	}
	leg2 := units.Mul(half).Floor()
	return Sizes{Leg1: leg2.Div(hedge).Floor(), Leg2: leg2}
}

// ValidateEntry performs pre-trade checks on the sized legs
func (m *Manager) ValidateEntry(buyingPower decimal.Decimal, hedgeRatio float64, sizes Sizes) CheckResult {
	if !buyingPower.IsPositive() {
		return CheckResult{
			Passed: false,
			Reason: fmt.Sprintf("No buying power available ($%.2f)", buyingPower.InexactFloat64()),
		}
	}
	if hedgeRatio <= 0 {
		return CheckResult{
			Passed: false,
			Reason: fmt.Sprintf("Hedge ratio %.2f cannot size a pair", hedgeRatio),
		}
	}
	if !sizes.Leg1.IsPositive() || !sizes.Leg2.IsPositive() {
		return CheckResult{
			Passed: false,
			Reason: fmt.Sprintf("Sized legs %s/%s are too small to trade", sizes.Leg1, sizes.Leg2),
		}
	}

	result := CheckResult{Passed: true, Warnings: []string{}}
	if hedgeRatio > 5 || hedgeRatio < 0.2 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Unbalanced hedge ratio %.2f", hedgeRatio))
	}
	return result
}

// CheckSpread validates the bid-ask spread of a leg isn't too wide
func (m *Manager) CheckSpread(quote models.Quote) CheckResult {
	if !quote.BidPrice.Valid || !quote.AskPrice.Valid || quote.BidPrice.Decimal.IsZero() || quote.AskPrice.Decimal.IsZero() {
		return CheckResult{
			Passed: false,
			Reason: "Invalid quote: missing bid or ask",
		}
	}

	bid, ask := quote.BidPrice.Decimal, quote.AskPrice.Decimal
	spread := ask.Sub(bid)
	midPrice := bid.Add(ask).Div(decimal.NewFromInt(2))
	if midPrice.IsZero() {
		return CheckResult{
			Passed: false,
			Reason: "Invalid quote: mid price is zero",
		}
	}

	spreadPercent := spread.Div(midPrice).Mul(decimal.NewFromInt(100))
	maxSpread := decimal.NewFromFloat(m.maxSpreadPercent)
	if spreadPercent.GreaterThan(maxSpread) {
		return CheckResult{
			Passed: false,
			Reason: fmt.Sprintf("Spread %.2f%% exceeds maximum %.2f%%",
				spreadPercent.InexactFloat64(), maxSpread.InexactFloat64()),
		}
	}

	// Add warning for wide spreads
	result := CheckResult{Passed: true}
	if spreadPercent.GreaterThan(decimal.NewFromFloat(0.25)) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Wide spread: %.2f%%", spreadPercent.InexactFloat64()))
	}
	return result
}

// ProfitTarget is one spread standard deviation on the smallest position,
// scaled by the largest contract multiplier among the positions. It is
// undefined without positions.
func ProfitTarget(positions []trading.Position, spreadStd float64, mult trading.Multipliers) (decimal.Decimal, bool) {
	if len(positions) == 0 {
		return decimal.Zero, false
	}
	smallest := positions[0].Quantity.Abs()
	scale := mult.For(positions[0].Instrument.SecType)
	for _, p := range positions[1:] {
		smallest = decimal.Min(smallest, p.Quantity.Abs())
		scale = decimal.Max(scale, mult.For(p.Instrument.SecType))
	}
	return decimal.NewFromFloat(spreadStd).Mul(smallest).Mul(scale), true
}
