package detection

import (
	"math"
	"testing"
)

func TestMean(t *testing.T) {
	if got := mean(nil); got != 0 {
		t.Errorf("mean(nil) = %v", got)
	}
	if got := mean([]float64{2, 4, 6}); got != 4 {
		t.Errorf("mean = %v, want 4", got)
	}
}

func TestVariance(t *testing.T) {
	if got := variance([]float64{5}); got != 0 {
		t.Errorf("variance of one sample = %v, want 0", got)
	}
	// Population variance of {2, 4, 6} is 8/3.
	got := variance([]float64{2, 4, 6})
	if math.Abs(got-8.0/3.0) > 1e-9 {
		t.Errorf("variance = %v, want %v", got, 8.0/3.0)
	}
	if got := variance([]float64{3, 3, 3, 3}); got != 0 {
		t.Errorf("variance of constant series = %v, want 0", got)
	}
}

func TestEuclidean(t *testing.T) {
	if got := euclidean(0, 0, 3, 4); got != 5 {
		t.Errorf("euclidean = %v, want 5", got)
	}
}

func TestConditionConfidence(t *testing.T) {
	if got := conditionConfidence(true, true, true); got != 1.0 {
		t.Errorf("all true: %v, want 1.0", got)
	}
	if got := conditionConfidence(true, false, false); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("one of three: %v", got)
	}
	if got := conditionConfidence(); got != 0 {
		t.Errorf("no conditions: %v, want 0", got)
	}
}
