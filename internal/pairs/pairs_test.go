package pairs

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"go.uber.org/zap"
)

var start = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func barsFrom(closes []float64) []models.PriceBar {
	out := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		out[i] = models.PriceBar{Time: start.Add(time.Duration(i) * 5 * time.Minute), Close: c}
	}
	return out
}

// cointegratedBars returns leg1 = 2*leg2 + noise where leg2 is a drifting random walk
func cointegratedBars(n int, seed int64) ([]models.PriceBar, []models.PriceBar) {
	rng := rand.New(rand.NewSource(seed))
	leg1 := make([]float64, n)
	leg2 := make([]float64, n)
	level := 50.0
	for i := 0; i < n; i++ {
		level += 0.02 + 0.1*rng.NormFloat64()
		leg2[i] = level
		leg1[i] = 2*level + 0.4*rng.NormFloat64()
	}
	return barsFrom(leg1), barsFrom(leg2)
}

func randomWalkBars(n int, seed int64, from float64) []models.PriceBar {
	rng := rand.New(rand.NewSource(seed))
	closes := make([]float64, n)
	level := from
	for i := range closes {
		level += 0.3 * rng.NormFloat64()
		closes[i] = level
	}
	return barsFrom(closes)
}

func TestEvaluatePerfectlyProportionalSeries(t *testing.T) {
	leg1 := make([]float64, 11)
	leg2 := make([]float64, 11)
	for i := range leg1 {
		leg1[i] = 100 + float64(i)
		leg2[i] = leg1[i] / 2
	}

	res, err := Evaluate("10-Year", barsFrom(leg1), "5-Year", barsFrom(leg2), 5)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if math.Abs(res.HedgeRatio-2.0) > 0.01 {
		t.Errorf("Expected hedge ratio 2.0, got %v", res.HedgeRatio)
	}
	if !res.Cointegrated {
		t.Error("Expected a flat spread to count as cointegrated")
	}
	if res.SpreadStd != 0 {
		t.Errorf("Expected zero spread std, got %v", res.SpreadStd)
	}
	if res.Score != 0 {
		t.Errorf("Expected zero score without spread variance, got %v", res.Score)
	}
}

func TestEvaluateCointegratedPair(t *testing.T) {
	b1, b2 := cointegratedBars(240, 7)

	res, err := Evaluate("10-Year", b1, "5-Year", b2, 20)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if math.Abs(res.HedgeRatio-2.0) > 0.05 {
		t.Errorf("Expected hedge ratio near 2.0, got %v", res.HedgeRatio)
	}
	if !res.Cointegrated {
		t.Errorf("Expected cointegration, adf=%v critical=%v", res.ADFStatistic, res.CriticalValue)
	}
	if res.HalfLife <= 0 {
		t.Errorf("Expected positive half-life, got %v", res.HalfLife)
	}
	if res.CorrMean <= 0 {
		t.Errorf("Expected positive correlation, got %v", res.CorrMean)
	}
	if res.Score <= 0 {
		t.Errorf("Expected positive score, got %v", res.Score)
	}
	if res.TopBand <= res.BottomBand {
		t.Errorf("Expected top band above bottom band, got %v <= %v", res.TopBand, res.BottomBand)
	}
	if res.Observations != 240 {
		t.Errorf("Expected 240 aligned observations, got %d", res.Observations)
	}
}

func TestEvaluateAlignsOnTimestamp(t *testing.T) {
	b1, b2 := cointegratedBars(60, 3)
	// drop every third bar of leg2
	var sparse []models.PriceBar
	for i, b := range b2 {
		if i%3 != 0 {
			sparse = append(sparse, b)
		}
	}
	res, err := Evaluate("a", b1, "b", sparse, 10)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if res.Observations != len(sparse) {
		t.Errorf("Expected %d aligned bars, got %d", len(sparse), res.Observations)
	}
}

func TestEvaluateInsufficientData(t *testing.T) {
	b1, b2 := cointegratedBars(6, 1)
	_, err := Evaluate("a", b1, "b", b2, 5)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData, got %v", err)
	}

	b1, b2 = cointegratedBars(30, 1)
	if _, err := Evaluate("a", b1, "b", b2, 1); err == nil {
		t.Error("Expected error for a window below 2")
	}
}

func TestADFDistinguishesStationarySeries(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	noise := make([]float64, 150)
	for i := range noise {
		noise[i] = rng.NormFloat64()
	}
	res, err := adfuller(noise)
	if err != nil {
		t.Fatalf("adfuller() failed: %v", err)
	}
	if res.stat > res.crit10 {
		t.Errorf("Expected white noise to reject a unit root, stat=%v critical=%v", res.stat, res.crit10)
	}

	explosive := make([]float64, 60)
	explosive[0] = 1
	for i := 1; i < len(explosive); i++ {
		explosive[i] = 1.05*explosive[i-1] + rng.NormFloat64()
	}
	res, err = adfuller(explosive)
	if err != nil {
		t.Fatalf("adfuller() failed: %v", err)
	}
	if res.stat <= res.crit10 {
		t.Errorf("Expected explosive series to keep its unit root, stat=%v critical=%v", res.stat, res.crit10)
	}
}

func TestMackinnonCriticalValue(t *testing.T) {
	got := mackinnonCrit10(100)
	want := -2.56677 - 1.5384/100 - 2.809/10000
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if mackinnonCrit10(1000) <= mackinnonCrit10(20) {
		t.Error("Expected critical value to rise toward the asymptote with more observations")
	}
}

func TestJohansenEigenvalueRange(t *testing.T) {
	b1, b2 := cointegratedBars(200, 5)
	c1, c2 := align(b1, b2)
	theta, err := johansenEigenvalue(c1, c2)
	if err != nil {
		t.Fatalf("johansenEigenvalue() failed: %v", err)
	}
	if theta <= 0 || theta > 1 {
		t.Errorf("Expected eigenvalue in (0, 1], got %v", theta)
	}

	if _, err := johansenEigenvalue(c1[:3], c2[:3]); err == nil {
		t.Error("Expected error for a too short series")
	}
}

func TestMeanRollingCorrelationSkipsUndefinedWindows(t *testing.T) {
	flat := []float64{1, 1, 1, 1, 1, 1}
	rising := []float64{1, 2, 3, 4, 5, 6}
	if _, ok := meanRollingCorrelation(flat, rising, 3); ok {
		t.Error("Expected no defined correlation for a constant series")
	}

	corr, ok := meanRollingCorrelation(rising, rising, 3)
	if !ok || math.Abs(corr-1) > 1e-9 {
		t.Errorf("Expected correlation 1, got %v (ok=%v)", corr, ok)
	}
}

func TestPairs(t *testing.T) {
	got := Pairs([]string{"2-Year", "5-Year", "10-Year", "20-Year", "30-Year"})
	if len(got) != 20 {
		t.Fatalf("Expected 20 ordered pairs, got %d", len(got))
	}
	seen := make(map[[2]string]bool)
	for _, p := range got {
		if p[0] == p[1] {
			t.Errorf("Unexpected self pair %v", p)
		}
		if seen[p] {
			t.Errorf("Duplicate pair %v", p)
		}
		seen[p] = true
	}
	if !seen[[2]string{"2-Year", "30-Year"}] || !seen[[2]string{"30-Year", "2-Year"}] {
		t.Error("Expected both orientations of a pair")
	}
}

func TestSelectorRanksAllPairs(t *testing.T) {
	b1, b2 := cointegratedBars(200, 9)
	history := map[string][]models.PriceBar{
		"10-Year": b1,
		"5-Year":  b2,
		"30-Year": randomWalkBars(200, 21, 95),
		"2-Year":  randomWalkBars(4, 22, 99),
	}
	names := []string{"10-Year", "5-Year", "30-Year", "2-Year"}

	s := NewSelector(20, 3, zap.NewNop())
	best, ranking, err := s.Select(context.Background(), history, names)
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	// pairs with the short 2-Year series are skipped
	if len(ranking) != 6 {
		t.Fatalf("Expected 6 ranked pairs, got %d", len(ranking))
	}
	for i := 1; i < len(ranking); i++ {
		if ranking[i].Score > ranking[i-1].Score {
			t.Errorf("Expected descending scores, got %v before %v", ranking[i-1].Score, ranking[i].Score)
		}
	}
	if best != ranking[0] {
		t.Error("Expected Select to return the top of the ranking")
	}
}

func TestSelectorErrors(t *testing.T) {
	s := NewSelector(20, 0, zap.NewNop())
	short := map[string][]models.PriceBar{"a": randomWalkBars(3, 1, 100), "b": randomWalkBars(3, 2, 100)}
	if _, err := s.Rank(context.Background(), short, []string{"a", "b"}); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("Expected ErrNoCandidates, got %v", err)
	}

	b1, b2 := cointegratedBars(100, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Rank(ctx, map[string][]models.PriceBar{"a": b1, "b": b2}, []string{"a", "b"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
