package signal

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"

	"fxPredictBot/internal/domain"
	"fxPredictBot/internal/ports"
)

const targetColumn = "close"

// FeatureColumns is the fixed column order of a feature row: every bar field except the close.
var FeatureColumns = []string{"time", "open", "high", "low", "volume", "spread"}

// barRow is the dataframe view of a domain.Bar.
type barRow struct {
	Time   float64 `dataframe:"time"`
	Open   float64 `dataframe:"open"`
	High   float64 `dataframe:"high"`
	Low    float64 `dataframe:"low"`
	Close  float64 `dataframe:"close"`
	Volume float64 `dataframe:"volume"`
	Spread float64 `dataframe:"spread"`
}

func toRow(b domain.Bar) barRow {
	return barRow{
		Time:   float64(b.Time.Unix()),
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
		Spread: b.Spread,
	}
}

// Dataset is a feature matrix with its target vector, row aligned.
type Dataset struct {
	Columns []string
	X       [][]float64
	Y       []float64
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Y) }

// Subset returns the rows at the given indexes.
func (d *Dataset) Subset(idx []int) ([][]float64, []float64) {
	x := make([][]float64, len(idx))
	y := make([]float64, len(idx))
	for i, j := range idx {
		x[i] = d.X[j]
		y[i] = d.Y[j]
	}
	return x, y
}

// BuildDataset splits bars into features and target. With lookahead L > 0 the target of
// row i is the close of row i+L, and the last L rows, which have no future close, are dropped.
func BuildDataset(bars []domain.Bar, lookahead int) (*Dataset, error) {
	if lookahead < 0 {
		return nil, fmt.Errorf("lookahead %d cannot be negative", lookahead)
	}
	usable := len(bars) - lookahead
	if usable < 2 {
		return nil, fmt.Errorf("%w: %d bars with lookahead %d leave %d rows", ports.ErrInsufficientData, len(bars), lookahead, usable)
	}

	rows := make([]barRow, len(bars))
	for i, b := range bars {
		rows[i] = toRow(b)
	}
	df := dataframe.LoadStructs(rows)
	if df.Err != nil {
		return nil, fmt.Errorf("loading bars into dataframe: %w", df.Err)
	}

	closes := df.Col(targetColumn).Float()
	features := df.Drop(targetColumn)
	if features.Err != nil {
		return nil, fmt.Errorf("dropping target column: %w", features.Err)
	}

	cols := make([][]float64, len(FeatureColumns))
	for j, name := range FeatureColumns {
		col := features.Col(name)
		if col.Err != nil {
			return nil, fmt.Errorf("feature column %s: %w", name, col.Err)
		}
		cols[j] = col.Float()
	}

	ds := &Dataset{
		Columns: FeatureColumns,
		X:       make([][]float64, usable),
		Y:       make([]float64, usable),
	}
	for i := 0; i < usable; i++ {
		row := make([]float64, len(cols))
		for j := range cols {
			row[j] = cols[j][i]
		}
		ds.X[i] = row
		ds.Y[i] = closes[i+lookahead]
	}
	return ds, nil
}

// FeatureRow returns the single-row feature vector of a bar, in FeatureColumns order.
func FeatureRow(b domain.Bar) []float64 {
	r := toRow(b)
	return []float64{r.Time, r.Open, r.High, r.Low, r.Volume, r.Spread}
}
