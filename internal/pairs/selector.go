package pairs

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"time"

	"github.com/TruWeaveTrader/treasury-pairs/internal/metrics"
	"github.com/TruWeaveTrader/treasury-pairs/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoCandidates is returned when no pair could be evaluated
var ErrNoCandidates = errors.New("pairs: no pair could be evaluated")

// Selector evaluates every ordered pair of a universe on a bounded worker pool
type Selector struct {
	window  int
	workers int
	logger  *zap.Logger
}

// NewSelector creates a selector. workers <= 0 means one per CPU.
func NewSelector(window, workers int, logger *zap.Logger) *Selector {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Selector{
		window:  window,
		workers: workers,
		logger:  logger.With(zap.String("component", "pair_selector")),
	}
}

// Pairs lists every ordered pair of distinct names
func Pairs(names []string) [][2]string {
	var out [][2]string
	for i, a := range names {
		for j, b := range names {
			if i == j || a == b {
				continue
			}
			out = append(out, [2]string{a, b})
		}
	}
	return out
}

// Rank evaluates all ordered pairs concurrently and returns the results
// sorted by score, best first. Pairs that cannot be evaluated are logged
// and left out.
func (s *Selector) Rank(ctx context.Context, history map[string][]models.PriceBar, names []string) ([]Result, error) {
	start := time.Now()
	defer func() { metrics.SelectionDuration.Observe(time.Since(start).Seconds()) }()

	candidates := Pairs(names)
	slots := make([]*Result, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, pair := range candidates {
		i, pair := i, pair
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := Evaluate(pair[0], history[pair[0]], pair[1], history[pair[1]], s.window)
			if err != nil {
				s.logger.Warn("pair skipped",
					zap.String("leg1", pair[0]),
					zap.String("leg2", pair[1]),
					zap.Error(err))
				return nil
			}
			slots[i] = &res
			metrics.PairScore.WithLabelValues(res.Leg1Name, res.Leg2Name).Set(res.Score)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	if len(results) == 0 {
		return nil, ErrNoCandidates
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// Select ranks the universe and returns the best scoring pair together with
// the full ranking. The cointegration outcome is reported but does not gate
// the choice.
func (s *Selector) Select(ctx context.Context, history map[string][]models.PriceBar, names []string) (Result, []Result, error) {
	ranking, err := s.Rank(ctx, history, names)
	if err != nil {
		return Result{}, nil, err
	}
	best := ranking[0]
	if !best.Cointegrated {
		s.logger.Warn("best scoring pair failed the cointegration test",
			zap.String("leg1", best.Leg1Name),
			zap.String("leg2", best.Leg2Name),
			zap.Float64("adf", best.ADFStatistic),
			zap.Float64("critical", best.CriticalValue))
	}
	return best, ranking, nil
}

// Window returns the rolling window used for evaluation
func (s *Selector) Window() int {
	return s.window
}
