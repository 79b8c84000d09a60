package treasury

import (
	"sort"
	"strings"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
)

// minDaysFromEvents keeps fresh issues and issues about to pay a coupon out
const minDaysFromEvents = 14

var (
	tradeableTerms = map[string]bool{"2-Year": true, "5-Year": true, "10-Year": true, "20-Year": true, "30-Year": true}
	tradeableTypes = map[string]bool{"Note": true, "Bond": true, "Bill": true}
)

// Universe is the set of on-the-run securities, one per term
type Universe []models.Security

// FilterUniverse keeps notes, bonds and bills with a tradeable term that were
// issued more than two weeks ago and are more than two weeks from their next
// coupon, then keeps the most recently issued security per term
func FilterUniverse(all []models.Security, now time.Time) Universe {
	var candidates []models.Security
	for _, s := range all {
		if !tradeableTypes[s.Type] || !tradeableTerms[s.Term] {
			continue
		}
		if s.DaysSinceIssued(now) <= minDaysFromEvents || s.DaysToNextPayment(now) <= minDaysFromEvents {
			continue
		}
		candidates = append(candidates, s)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DaysSinceIssued(now) < candidates[j].DaysSinceIssued(now)
	})

	seen := make(map[string]bool)
	var out Universe
	for _, s := range candidates {
		if seen[s.Term] {
			continue
		}
		seen[s.Term] = true
		out = append(out, s)
	}
	return out
}

// Names returns the terms in universe order
func (u Universe) Names() []string {
	names := make([]string, len(u))
	for i, s := range u {
		names[i] = s.Term
	}
	return names
}

// ByTerm finds the security for a term
func (u Universe) ByTerm(term string) (models.Security, bool) {
	for _, s := range u {
		if strings.EqualFold(s.Term, term) {
			return s, true
		}
	}
	return models.Security{}, false
}

// LookupCUSIP finds the CUSIP of the security matching a term or a maturity
// date. It returns "-" when nothing matches.
func (u Universe) LookupCUSIP(term string, maturity time.Time) string {
	for _, s := range u {
		if strings.EqualFold(s.Term, term) || sameDay(s.MaturityDate, maturity) {
			return s.CUSIP
		}
	}
	return "-"
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// EstimateTerm guesses a bond's issued term from its time to maturity
func EstimateTerm(maturity, now time.Time) string {
	days := int(maturity.Sub(now).Hours() / 24)
	switch {
	case days > 365*20:
		return "30-Year"
	case days > 365*10:
		return "20-Year"
	case days > 365*5:
		return "10-Year"
	case days > 365*2:
		return "5-Year"
	default:
		return "2-Year"
	}
}

// InstrumentName labels a brokerage instrument. Bonds are named by their
// estimated term, everything else by symbol.
func InstrumentName(inst models.Instrument, now time.Time) string {
	if inst.SecType != models.SecTypeBond {
		return inst.Symbol
	}
	maturity, err := inst.Maturity()
	if err != nil {
		return inst.Symbol
	}
	return EstimateTerm(maturity, now)
}
