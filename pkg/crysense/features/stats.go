package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stat is a per-row summary statistic.
type Stat string

const (
	StatMean Stat = "mean"
	StatStd  Stat = "std"
	StatSkew Stat = "skew"
	StatKurt Stat = "kurt"
	StatMax  Stat = "max"
	StatMin  Stat = "min"
)

// statOrder is the order statistics appear in within a row.
var statOrder = []Stat{StatMean, StatStd, StatSkew, StatKurt, StatMax, StatMin}

// compute evaluates s over a non-empty row. std is the population standard
// deviation; skew and kurt are the biased moment ratios (kurt in excess
// form) and are 0 for constant rows.
func (s Stat) compute(row []float64) float64 {
	switch s {
	case StatMean:
		return stat.Mean(row, nil)
	case StatStd:
		_, variance := stat.PopMeanVariance(row, nil)
		return math.Sqrt(variance)
	case StatSkew:
		m2 := stat.Moment(2, row, nil)
		if m2 == 0 {
			return 0
		}
		return stat.Moment(3, row, nil) / math.Pow(m2, 1.5)
	case StatKurt:
		m2 := stat.Moment(2, row, nil)
		if m2 == 0 {
			return 0
		}
		return stat.Moment(4, row, nil)/(m2*m2) - 3
	case StatMax:
		return floats.Max(row)
	case StatMin:
		return floats.Min(row)
	}
	return math.NaN()
}
