package utils

import (
	"cmp"
	"math"
	"slices"

	"golang.org/x/exp/constraints"
)

func Argmax[T cmp.Ordered](arr []T) (argmax int) {
	for i := range arr {
		if cmp.Compare(arr[i], arr[argmax]) == 1 {
			argmax = i
		}
	}
	return
}

type Number interface {
	constraints.Float | constraints.Integer
}

func SumSlice[T Number](arr []T) (r T) {
	for i := range arr {
		r += arr[i]
	}
	return
}

// MaxRelativeChange is max_i |delta_i| / (|x_i| + tiny).
func MaxRelativeChange(delta, x []float64) (m float64) {
	const tiny = 1e-12
	for i := range delta {
		m = max(m, math.Abs(delta[i])/(math.Abs(x[i])+tiny))
	}
	return
}

func AllFinite(s []float64) bool {
	for i := range s {
		if math.IsNaN(s[i]) || math.IsInf(s[i], 0) {
			return false
		}
	}
	return true
}

func IntAbs(a int) int {
	if a < 0 {
		return -a
	} else {
		return a
	}

}

func Intersect(a, b []string) *string {
	for i := range a {
		if slices.Contains(b, a[i]) {
			return &a[i]
		}
	}
	return nil
}
