package domain

import "math"

// TotalTolerance is the absolute difference tolerated between a stated and a
// recomputed line total.
const TotalTolerance = 1.0

func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func Float64Ptr(v float64) *float64 { return &v }
