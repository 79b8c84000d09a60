package treasury

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"go.uber.org/zap"
)

var today = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

func issuedDaysAgo(days int) time.Time {
	return today.AddDate(0, 0, -days)
}

func sec(cusip, term, typ string, issued int) models.Security {
	return models.Security{CUSIP: cusip, Term: term, Type: typ, IssueDate: issuedDaysAgo(issued), MaturityDate: today.AddDate(5, 0, 0)}
}

func TestFilterUniverse(t *testing.T) {
	all := []models.Security{
		sec("A", "10-Year", "Note", 40),
		sec("B", "10-Year", "Note", 20), // newer 10-Year wins
		sec("C", "5-Year", "Note", 10),  // issued too recently
		sec("D", "5-Year", "Note", 160), // coupon too close
		sec("E", "5-Year", "Note", 60),
		sec("F", "30-Year", "Bond", 30),
		sec("G", "7-Year", "Note", 30), // untradeable term
		sec("H", "2-Year", "TIPS", 30), // untradeable type
		sec("I", "2-Year", "Note", 100),
	}
	u := FilterUniverse(all, today)

	want := map[string]string{"10-Year": "B", "5-Year": "E", "30-Year": "F", "2-Year": "I"}
	if len(u) != len(want) {
		t.Fatalf("Expected %d securities, got %d: %+v", len(want), len(u), u)
	}
	for _, s := range u {
		if want[s.Term] != s.CUSIP {
			t.Errorf("Expected %s for %s, got %s", want[s.Term], s.Term, s.CUSIP)
		}
	}
	// ordered by days since issued
	for i := 1; i < len(u); i++ {
		if u[i].DaysSinceIssued(today) < u[i-1].DaysSinceIssued(today) {
			t.Errorf("Expected ascending issue age, got %v", u.Names())
		}
	}
}

func TestEstimateTerm(t *testing.T) {
	tests := []struct {
		years int
		want  string
	}{
		{29, "30-Year"},
		{19, "20-Year"},
		{9, "10-Year"},
		{4, "5-Year"},
		{1, "2-Year"},
	}
	for _, tt := range tests {
		got := EstimateTerm(today.AddDate(tt.years, 0, 0), today)
		if got != tt.want {
			t.Errorf("EstimateTerm(+%dy) = %s, want %s", tt.years, got, tt.want)
		}
	}
}

func TestLookupCUSIP(t *testing.T) {
	u := Universe{
		{CUSIP: "91282CKA8", Term: "5-Year", MaturityDate: time.Date(2029, 2, 28, 0, 0, 0, 0, time.UTC)},
		{CUSIP: "912810TX6", Term: "30-Year", MaturityDate: time.Date(2054, 2, 15, 0, 0, 0, 0, time.UTC)},
	}
	if got := u.LookupCUSIP("30-year", time.Time{}); got != "912810TX6" {
		t.Errorf("Expected case-insensitive term match, got %s", got)
	}
	if got := u.LookupCUSIP("10-Year", time.Date(2029, 2, 28, 0, 0, 0, 0, time.UTC)); got != "91282CKA8" {
		t.Errorf("Expected maturity match, got %s", got)
	}
	if got := u.LookupCUSIP("10-Year", today); got != "-" {
		t.Errorf("Expected no match, got %s", got)
	}
	if _, ok := u.ByTerm("5-year"); !ok {
		t.Error("Expected ByTerm to match case-insensitively")
	}
}

func TestInstrumentName(t *testing.T) {
	bond := models.Instrument{ID: 1, Symbol: "91282CKA8", SecType: models.SecTypeBond, LastTradeDate: "20290228"}
	if got := InstrumentName(bond, today); got != "5-Year" {
		t.Errorf("Expected 5-Year, got %s", got)
	}
	stock := models.Instrument{ID: 2, Symbol: "TLT", SecType: models.SecTypeStock}
	if got := InstrumentName(stock, today); got != "TLT" {
		t.Errorf("Expected TLT, got %s", got)
	}
}

func record(cusip, term, typ string, issued int) string {
	return fmt.Sprintf(`{"cusip":%q,"issueDate":%q,"securityType":%q,"securityTerm":%q,"maturityDate":%q,"interestRate":"4.250000","type":%q}`,
		cusip, issuedDaysAgo(issued).Format(dateLayout), typ, term, today.AddDate(10, 0, 0).Format(dateLayout), typ)
}

func TestClientUniverse(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != auctionedPath {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "json" || r.URL.Query().Get("days") != "365" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "[%s,%s,%s]",
			record("91282CKA8", "10-Year", "Note", 30),
			record("912810TX6", "30-Year", "Bond", 45),
			`{"cusip":"BAD","issueDate":"not a date"}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, time.Minute, zap.NewNop())
	c.now = func() time.Time { return today }

	u, err := c.Universe(context.Background())
	if err != nil {
		t.Fatalf("Universe() failed: %v", err)
	}
	if len(u) != 2 {
		t.Fatalf("Expected 2 securities, got %d", len(u))
	}
	if u[0].CUSIP != "91282CKA8" {
		t.Errorf("Expected newest issue first, got %s", u[0].CUSIP)
	}

	if _, err := c.Universe(context.Background()); err != nil {
		t.Fatalf("Universe() failed on cached call: %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("Expected one HTTP request thanks to caching, got %d", hits)
	}
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second, time.Minute, zap.NewNop())
	if _, err := c.Universe(context.Background()); err == nil {
		t.Error("Expected error on a 503 response")
	}
}
