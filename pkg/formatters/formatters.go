package formatters

import (
	"fmt"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"github.com/TruWeaveTrader/treasury-pairs/internal/pairs"
	"github.com/TruWeaveTrader/treasury-pairs/internal/trading"
	"github.com/TruWeaveTrader/treasury-pairs/internal/treasury"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
)

// Colors for different values
var (
	ColorGreen  = text.FgGreen
	ColorRed    = text.FgRed
	ColorYellow = text.FgYellow
	ColorBlue   = text.FgCyan
	ColorWhite  = text.FgWhite
	ColorGray   = text.FgHiBlack
)

// FormatPercent formats a percentage with color
func FormatPercent(percent decimal.Decimal) string {
	sign := ""
	if percent.IsPositive() {
		sign = "+"
	}

	percentStr := fmt.Sprintf("%s%.2f%%", sign, percent.InexactFloat64())

	if percent.IsPositive() {
		return ColorGreen.Sprint(percentStr)
	} else if percent.IsNegative() {
		return ColorRed.Sprint(percentStr)
	}
	return percentStr
}

// FormatDollarAmount formats a dollar amount with appropriate color
func FormatDollarAmount(amount decimal.Decimal) string {
	amountStr := fmt.Sprintf("$%.2f", amount.Abs().InexactFloat64())

	if amount.IsNegative() {
		return ColorRed.Sprint("-" + amountStr)
	}
	return ColorGreen.Sprint(amountStr)
}

func formatQuoteSide(v decimal.NullDecimal) string {
	if !v.Valid {
		return "-"
	}
	return v.Decimal.StringFixed(4)
}

// FormatPositionsTable creates a positions table. When quotes is non-nil
// each row carries the bid, ask and unrealized PnL, with a total line.
func FormatPositionsTable(positions []trading.Position, quotes trading.QuoteSource, maxAge time.Duration, now time.Time, mult trading.Multipliers) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	withPnL := quotes != nil
	header := table.Row{"Name", "Symbol", "Account", "Qty", "Avg Price"}
	if withPnL {
		header = append(header, "Bid", "Ask", "Unrealized P&L")
	}
	t.AppendHeader(header)

	total := decimal.Zero
	totalKnown := true
	for _, pos := range positions {
		qtyColor := ColorGreen
		if !pos.IsLong() {
			qtyColor = ColorRed
		}
		row := table.Row{
			pos.Name,
			pos.Instrument.Symbol,
			pos.Account,
			qtyColor.Sprint(pos.Quantity.String()),
			pos.AvgPrice.StringFixed(4),
		}
		if withPnL {
			q, _ := quotes.Quote(pos.Instrument.Key())
			pnl, ok := pos.UnrealizedPnL(q, maxAge, now, mult.For(pos.Instrument.SecType))
			pnlStr := ColorGray.Sprint("stale")
			if ok {
				pnlStr = FormatDollarAmount(pnl)
				total = total.Add(pnl)
			} else {
				totalKnown = false
			}
			row = append(row, formatQuoteSide(q.BidPrice), formatQuoteSide(q.AskPrice), pnlStr)
		}
		t.AppendRow(row)
	}

	if len(positions) == 0 {
		t.AppendRow(table.Row{"No positions"})
	} else if withPnL {
		totalStr := ColorGray.Sprint("-")
		if totalKnown {
			totalStr = FormatDollarAmount(total)
		}
		t.AppendSeparator()
		t.AppendRow(table.Row{"TOTAL", "", "", "", "", "", "", totalStr})
	}

	return t.Render()
}

// FormatOrdersTable creates a pretty orders table
func FormatOrdersTable(orders []models.StrategyOrder) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"ID", "Symbol", "Side", "Type", "Qty", "Fill", "Status"})

	for _, order := range orders {
		sideColor := ColorGreen
		if order.Request.Action == models.Sell {
			sideColor = ColorRed
		}

		statusColor := ColorWhite
		switch {
		case order.IsFilled():
			statusColor = ColorGreen
		case order.Status == models.OrderCancelled, order.Status == models.OrderApiCancelled, order.Status == models.OrderInactive:
			statusColor = ColorRed
		case order.IsOpen():
			statusColor = ColorYellow
		}

		fill := "-"
		if !order.FillPrice.IsZero() {
			fill = order.FillPrice.StringFixed(4)
		}

		t.AppendRow(table.Row{
			order.ID,
			order.Instrument.Symbol,
			sideColor.Sprint(string(order.Request.Action)),
			order.Request.OrderType,
			order.Request.Quantity.String(),
			fill,
			statusColor.Sprint(order.Status),
		})
	}

	if len(orders) == 0 {
		t.AppendRow(table.Row{"No orders", "", "", "", "", "", ""})
	}

	return t.Render()
}

// FormatRankingTable lists evaluated pairs, best first
func FormatRankingTable(results []pairs.Result) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Leg 1", "Leg 2", "Hedge", "Coint", "ADF", "Crit", "Corr", "Half-life", "Mean", "Std", "Score"})
	for _, r := range results {
		coint := ColorRed.Sprint("no")
		if r.Cointegrated {
			coint = ColorGreen.Sprint("yes")
		}
		t.AppendRow(table.Row{
			r.Leg1Name,
			r.Leg2Name,
			fmt.Sprintf("%.2f", r.HedgeRatio),
			coint,
			fmt.Sprintf("%.3f", r.ADFStatistic),
			fmt.Sprintf("%.3f", r.CriticalValue),
			FormatPercent(decimal.NewFromFloat(r.CorrMean)),
			fmt.Sprintf("%.2f", r.HalfLife),
			fmt.Sprintf("%.4f", r.SpreadMean),
			fmt.Sprintf("%.4f", r.SpreadStd),
			fmt.Sprintf("%.4f", r.Score),
		})
	}
	return t.Render()
}

// FormatUniverseTable lists the tradeable treasuries
func FormatUniverseTable(u treasury.Universe, now time.Time) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"CUSIP", "Term", "Type", "Issued", "Maturity", "Rate", "Days Issued", "Days To Coupon"})
	for _, s := range u {
		t.AppendRow(table.Row{
			s.CUSIP,
			s.Term,
			s.Type,
			s.IssueDate.Format("2006-01-02"),
			s.MaturityDate.Format("2006-01-02"),
			s.InterestRate,
			s.DaysSinceIssued(now),
			s.DaysToNextPayment(now),
		})
	}
	if len(u) == 0 {
		t.AppendRow(table.Row{"No securities"})
	}
	return t.Render()
}

// FormatParameters summarizes the active pair
func FormatParameters(p models.StrategyParameters, bandRatio float64) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.AppendRow(table.Row{"Pair", fmt.Sprintf("%s / %s", p.Leg1Name, p.Leg2Name)})
	t.AppendRow(table.Row{"Hedge Ratio", fmt.Sprintf("%.2f", p.HedgeRatio)})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Spread Mean", fmt.Sprintf("%.4f", p.SpreadMean)})
	t.AppendRow(table.Row{"Spread Std", fmt.Sprintf("%.4f", p.SpreadStd)})
	t.AppendRow(table.Row{"Top Band", fmt.Sprintf("%.4f", p.TopBand(bandRatio))})
	t.AppendRow(table.Row{"Bottom Band", fmt.Sprintf("%.4f", p.BottomBand(bandRatio))})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Half-life", fmt.Sprintf("%.2f bars", p.HalfLife)})
	t.AppendRow(table.Row{"Rolling Window", p.RollingWindow})

	return t.Render()
}

// FormatTradeReport renders the legs and totals of a closed trade
func FormatTradeReport(rep trading.TradeReport) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("Trade " + rep.TradeID)

	t.AppendHeader(table.Row{"Symbol", "Entry", "Qty", "Entry Price", "Exit Price", "P&L"})
	for _, leg := range rep.Legs {
		t.AppendRow(table.Row{
			leg.Instrument.Symbol,
			string(leg.EntryAction),
			leg.Quantity.String(),
			leg.EntryPrice.StringFixed(4),
			leg.ExitPrice.StringFixed(4),
			FormatDollarAmount(leg.PnL),
		})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Gross", "", "", "", "", FormatDollarAmount(rep.GrossPnL)})
	t.AppendRow(table.Row{"Commissions", "", "", "", "", FormatDollarAmount(rep.Commissions.Neg())})
	t.AppendRow(table.Row{"Net", "", "", "", "", FormatDollarAmount(rep.NetPnL)})
	t.AppendRow(table.Row{"Realized (broker)", "", "", "", "", FormatDollarAmount(rep.RealizedPnL)})

	return t.Render()
}

// FormatTimestamp formats a timestamp for display
func FormatTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
