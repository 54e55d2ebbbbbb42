package ports

// Predictor maps a single feature row to a predicted target value.
type Predictor interface {
	Predict(row []float64) (float64, error)
}

// Regressor fits a Predictor to a feature matrix and target vector.
type Regressor interface {
	Fit(x [][]float64, y []float64) (Predictor, error)
}
