package pairs

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var errSingular = errors.New("pairs: singular design matrix")

// hedgeRatio regresses y on x without an intercept and returns the slope
func hedgeRatio(y, x []float64) float64 {
	_, beta := stat.LinearRegression(x, y, nil, true)
	return beta
}

type olsResult struct {
	params []float64
	bse    []float64
	ssr    float64
	nobs   int
}

// ols fits y = X*b by normal equations and returns coefficients with their
// standard errors
func ols(y []float64, x *mat.Dense) (olsResult, error) {
	n, k := x.Dims()
	if n <= k {
		return olsResult{}, fmt.Errorf("pairs: %d observations for %d regressors", n, k)
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return olsResult{}, errSingular
	}

	yv := mat.NewVecDense(n, y)
	var xty, beta, fitted mat.VecDense
	xty.MulVec(x.T(), yv)
	beta.MulVec(&inv, &xty)
	fitted.MulVec(x, &beta)

	ssr := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		ssr += r * r
	}
	sigma2 := ssr / float64(n-k)

	res := olsResult{
		params: make([]float64, k),
		bse:    make([]float64, k),
		ssr:    ssr,
		nobs:   n,
	}
	for j := 0; j < k; j++ {
		res.params[j] = beta.AtVec(j)
		res.bse[j] = math.Sqrt(sigma2 * inv.At(j, j))
	}
	return res, nil
}

// aic is the Akaike information criterion of a Gaussian linear model
func (r olsResult) aic() float64 {
	n := float64(r.nobs)
	llf := -n / 2 * (math.Log(2*math.Pi) + math.Log(r.ssr/n) + 1)
	return -2*llf + 2*float64(len(r.params))
}

type adfResult struct {
	stat    float64
	crit10  float64
	usedLag int
	nobs    int
}

// adfDesign builds the regressors [1, x(t-1), dx(t-1)..dx(t-lags)] after
// dropping the first trim differences
func adfDesign(x, dx []float64, trim, lags int) *mat.Dense {
	rows := len(dx) - trim
	d := mat.NewDense(rows, 2+lags, nil)
	for r := 0; r < rows; r++ {
		i := trim + r
		d.Set(r, 0, 1)
		d.Set(r, 1, x[i])
		for j := 1; j <= lags; j++ {
			d.Set(r, 1+j, dx[i-j])
		}
	}
	return d
}

// adfuller runs an augmented Dickey-Fuller test with a constant, choosing
// the lag order by AIC
func adfuller(x []float64) (adfResult, error) {
	nobs := len(x)
	maxLag := int(math.Ceil(12 * math.Pow(float64(nobs)/100, 0.25)))
	if limit := nobs/2 - 2; limit < maxLag {
		maxLag = limit
	}
	if maxLag < 0 {
		return adfResult{}, fmt.Errorf("pairs: %d observations are too few for a unit root test", nobs)
	}

	dx := diff(x)
	y := dx[maxLag:]
	bestLag, bestAIC := -1, math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		res, err := ols(y, adfDesign(x, dx, maxLag, lag))
		if err != nil {
			continue
		}
		if aic := res.aic(); aic < bestAIC {
			bestAIC, bestLag = aic, lag
		}
	}
	if bestLag < 0 {
		return adfResult{}, fmt.Errorf("pairs: no lag order could be fitted: %w", errSingular)
	}

	res, err := ols(dx[bestLag:], adfDesign(x, dx, bestLag, bestLag))
	if err != nil {
		return adfResult{}, err
	}
	return adfResult{
		stat:    res.params[1] / res.bse[1],
		crit10:  mackinnonCrit10(res.nobs),
		usedLag: bestLag,
		nobs:    res.nobs,
	}, nil
}

// mackinnonCrit10 is the 10% critical value of the constant-only
// Dickey-Fuller distribution for one series (MacKinnon 2010)
func mackinnonCrit10(nobs int) float64 {
	n := float64(nobs)
	return -2.56677 - 1.5384/n - 2.809/(n*n)
}

// johansenEigenvalue returns the largest eigenvalue of the Johansen
// procedure for two series with a constant and one lagged difference
func johansenEigenvalue(x, y []float64) (float64, error) {
	n := len(x)
	if n != len(y) || n < 5 {
		return 0, fmt.Errorf("pairs: johansen needs two equal series of at least 5 points, got %d and %d", len(x), len(y))
	}

	mx, my := stat.Mean(x, nil), stat.Mean(y, nil)
	level := func(t, col int) float64 {
		if col == 0 {
			return x[t] - mx
		}
		return y[t] - my
	}
	delta := func(t, col int) float64 { return level(t+1, col) - level(t, col) }

	m := n - 2
	z := mat.NewDense(m, 2, nil)
	d0 := mat.NewDense(m, 2, nil)
	lx := mat.NewDense(m, 2, nil)
	for r := 0; r < m; r++ {
		for c := 0; c < 2; c++ {
			z.Set(r, c, delta(r, c))
			d0.Set(r, c, delta(r+1, c))
			lx.Set(r, c, level(r+1, c))
		}
	}
	demean(z)
	demean(d0)
	demean(lx)

	r0, err := residuals(d0, z)
	if err != nil {
		return 0, err
	}
	rk, err := residuals(lx, z)
	if err != nil {
		return 0, err
	}

	scale := 1 / float64(m)
	var skk, sk0, s00 mat.Dense
	skk.Mul(rk.T(), rk)
	skk.Scale(scale, &skk)
	sk0.Mul(rk.T(), r0)
	sk0.Scale(scale, &sk0)
	s00.Mul(r0.T(), r0)
	s00.Scale(scale, &s00)

	var s00inv, skkinv mat.Dense
	if err := s00inv.Inverse(&s00); err != nil {
		return 0, errSingular
	}
	if err := skkinv.Inverse(&skk); err != nil {
		return 0, errSingular
	}
	var sig, prod mat.Dense
	sig.Product(&sk0, &s00inv, sk0.T())
	prod.Mul(&skkinv, &sig)

	var eig mat.Eigen
	if ok := eig.Factorize(&prod, mat.EigenNone); !ok {
		return 0, errors.New("pairs: eigen decomposition did not converge")
	}
	best := math.Inf(-1)
	for _, v := range eig.Values(nil) {
		if real(v) > best {
			best = real(v)
		}
	}
	return best, nil
}

// residuals regresses each column of y on z and returns what is left
func residuals(y, z *mat.Dense) (*mat.Dense, error) {
	var beta mat.Dense
	if err := beta.Solve(z, y); err != nil {
		return nil, fmt.Errorf("pairs: auxiliary regression: %w", err)
	}
	var fitted mat.Dense
	fitted.Mul(z, &beta)
	var out mat.Dense
	out.Sub(y, &fitted)
	return &out, nil
}

func demean(m *mat.Dense) {
	rows, cols := m.Dims()
	for c := 0; c < cols; c++ {
		col := mat.Col(nil, c, m)
		mean := stat.Mean(col, nil)
		for r := 0; r < rows; r++ {
			m.Set(r, c, col[r]-mean)
		}
	}
}

// rollingTail returns the mean and sample standard deviation of the last
// window values
func rollingTail(series []float64, window int) (float64, float64) {
	return stat.MeanStdDev(series[len(series)-window:], nil)
}

// meanRollingCorrelation averages the correlation of x and y over every
// full window. Windows with an undefined correlation are skipped.
func meanRollingCorrelation(x, y []float64, window int) (float64, bool) {
	sum, count := 0.0, 0
	for end := window; end <= len(x); end++ {
		c := stat.Correlation(x[end-window:end], y[end-window:end], nil)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			continue
		}
		sum += c
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

func diff(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}
