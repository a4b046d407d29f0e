package detection

import "math"

// mean returns the arithmetic mean, or 0 for an empty slice.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// variance returns the population variance. Fewer than two samples yield 0.
func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

// euclidean returns the distance between two points.
func euclidean(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// bearing returns the direction of travel between two points in radians.
func bearing(x1, y1, x2, y2 float64) float64 {
	return math.Atan2(y2-y1, x2-x1)
}

// conditionConfidence is the fraction of conditions that hold.
func conditionConfidence(conds ...bool) float64 {
	if len(conds) == 0 {
		return 0
	}
	hold := 0
	for _, c := range conds {
		if c {
			hold++
		}
	}
	return float64(hold) / float64(len(conds))
}
