package analysis

import (
	"math"

	"sentimentpipe/backend-go/internal/models"
)

// aggregate uses the sample standard deviation; std is 0 below two values.
func aggregate(xs []float64) models.Aggregate {
	n := len(xs)
	if n == 0 {
		return models.Aggregate{}
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(n)
	if n < 2 {
		return models.Aggregate{Mean: mean, Count: n}
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return models.Aggregate{Mean: mean, Std: math.Sqrt(ss / float64(n-1)), Count: n}
}

func mean(xs []float64) float64 {
	return aggregate(xs).Mean
}
