// Package similarity compares two embedding vectors. Every function is pure and
// never fails: malformed input yields the metric's "no similarity" sentinel.
package similarity

import (
	"math"

	"quiz-sense/internal/domain"
)

// NoDistance is the L2 sentinel for vectors that cannot be compared.
var NoDistance = math.Inf(1)

// Result is the outcome of comparing two vectors under one metric.
type Result struct {
	Metric domain.Metric
	// Score is the raw metric value used for thresholding.
	Score float64
	// Similarity is the display value; for L2 it is 1 - distance, an
	// approximation that is not clamped and may leave [0,1].
	Similarity float64
	// Degenerate marks a sentinel result (empty or mismatched vectors).
	Degenerate bool
}

// matched reports whether a and b are non-empty and of equal length.
func matched(a, b []float32) bool {
	return len(a) > 0 && len(a) == len(b)
}

// sums returns dot(a,b), ‖a‖² and ‖b‖².
func sums(a, b []float32) (dot, normA, normB float64) {
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	return dot, normA, normB
}

// Cosine returns dot(a,b) / (‖a‖·‖b‖) in [-1,1], or 0 when either norm is 0
// or the vectors cannot be compared.
func Cosine(a, b []float32) float64 {
	if !matched(a, b) {
		return 0
	}
	dot, normA, normB := sums(a, b)
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// L2Distance returns the Euclidean distance, or NoDistance when the vectors
// cannot be compared.
func L2Distance(a, b []float32) float64 {
	if !matched(a, b) {
		return NoDistance
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// InnerProduct returns Σ aᵢ·bᵢ divided by sqrt(‖a‖²·‖b‖²), or 0 when that
// denominator is 0 or the vectors cannot be compared.
func InnerProduct(a, b []float32) float64 {
	if !matched(a, b) {
		return 0
	}
	dot, normA, normB := sums(a, b)
	maxPossible := math.Sqrt(normA * normB)
	if maxPossible == 0 {
		return 0
	}
	return dot / maxPossible
}

// Score compares a and b under metric. Unknown metrics are scored as cosine.
func Score(metric domain.Metric, a, b []float32) Result {
	degenerate := !matched(a, b)
	switch metric {
	case domain.MetricL2:
		d := L2Distance(a, b)
		return Result{Metric: metric, Score: d, Similarity: 1 - d, Degenerate: degenerate}
	case domain.MetricInnerProduct:
		v := InnerProduct(a, b)
		return Result{Metric: metric, Score: v, Similarity: v, Degenerate: degenerate}
	default:
		v := Cosine(a, b)
		return Result{Metric: domain.MetricCosine, Score: v, Similarity: v, Degenerate: degenerate}
	}
}
