package signal

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"fxPredictBot/internal/ports"
)

// LinearRegression fits y ≈ b0 + Σ bj·xj by least squares on standardized features.
// A small ridge term keeps the normal equations solvable when columns are constant or
// collinear, which bar features usually are (open, high and low move together).
type LinearRegression struct {
	Ridge float64
}

// linearModel is the fitted predictor.
type linearModel struct {
	means  []float64
	scales []float64 // 0 marks a constant column that carries no signal
	coef   []float64
	yMean  float64
}

var _ ports.Regressor = LinearRegression{}

// Fit estimates the coefficients from x (rows) and y.
func (r LinearRegression) Fit(x [][]float64, y []float64) (ports.Predictor, error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("fit needs matching non-empty x and y, got %d and %d rows", n, len(y))
	}
	p := len(x[0])
	if p == 0 {
		return nil, errors.New("fit needs at least one feature")
	}
	for i, row := range x {
		if len(row) != p {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), p)
		}
	}
	ridge := r.Ridge
	if ridge <= 0 {
		ridge = 1e-6
	}

	m := &linearModel{
		means:  make([]float64, p),
		scales: make([]float64, p),
		coef:   make([]float64, p),
		yMean:  stat.Mean(y, nil),
	}
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		m.means[j] = mean
		if n > 1 && std > 0 && !math.IsNaN(std) {
			m.scales[j] = std
		}
	}

	z := mat.NewDense(n, p, nil)
	for i, row := range x {
		for j, v := range row {
			if m.scales[j] != 0 {
				z.Set(i, j, (v-m.means[j])/m.scales[j])
			}
		}
	}
	yc := make([]float64, n)
	for i, v := range y {
		yc[i] = v - m.yMean
	}

	// (ZᵀZ + λnI) β = Zᵀ(y - ȳ)
	var ztz mat.Dense
	ztz.Mul(z.T(), z)
	gram := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := ztz.At(i, j)
			if i == j {
				v += ridge * float64(n)
			}
			gram.SetSym(i, j, v)
		}
	}
	var zty mat.VecDense
	zty.MulVec(z.T(), mat.NewVecDense(n, yc))

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return nil, errors.New("normal equations are not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &zty); err != nil {
		return nil, fmt.Errorf("solving normal equations: %w", err)
	}
	for j := 0; j < p; j++ {
		if m.scales[j] != 0 {
			m.coef[j] = beta.AtVec(j)
		}
	}
	return m, nil
}

// Predict returns the estimate for a single feature row.
func (m *linearModel) Predict(row []float64) (float64, error) {
	if len(row) != len(m.coef) {
		return 0, fmt.Errorf("feature row has %d values, model expects %d", len(row), len(m.coef))
	}
	out := m.yMean
	for j, v := range row {
		if m.scales[j] != 0 {
			out += m.coef[j] * (v - m.means[j]) / m.scales[j]
		}
	}
	return out, nil
}

// Score evaluates a predictor on held-out rows and returns R² and RMSE.
// Both are NaN when fewer than two rows are given.
func Score(p ports.Predictor, x [][]float64, y []float64) (r2, rmse float64, err error) {
	if len(x) < 2 {
		return math.NaN(), math.NaN(), nil
	}
	est := make([]float64, len(x))
	var sse float64
	for i, row := range x {
		v, err := p.Predict(row)
		if err != nil {
			return 0, 0, err
		}
		est[i] = v
		sse += (v - y[i]) * (v - y[i])
	}
	return stat.RSquaredFrom(est, y, nil), math.Sqrt(sse / float64(len(x))), nil
}
