package domain

import (
	"math"
	"strings"
)

// Metric selects how two embeddings are compared.
type Metric string

const (
	MetricCosine       Metric = "cosine"
	MetricL2           Metric = "l2"
	MetricInnerProduct Metric = "inner_product"
)

// Metrics lists the supported metrics in display order.
var Metrics = []Metric{MetricCosine, MetricL2, MetricInnerProduct}

// ParseMetric normalizes a metric name. Unknown names report false.
func ParseMetric(raw string) (Metric, bool) {
	m := Metric(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Metrics {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// Empirically chosen correctness cutoffs. Tune here, not in the evaluator.
const (
	CosineSimilarityThreshold = 0.75
	InnerProductThreshold     = 0.70
	L2DistanceThreshold       = 0.50
)

// Threshold is the correctness cutoff for one metric.
type Threshold struct {
	Value float64 `json:"value"`
	// LowerIsBetter marks distance metrics: a score at or below Value is correct.
	LowerIsBetter bool `json:"lower_is_better"`
}

// Accepts reports whether score meets the threshold. NaN never does.
func (t Threshold) Accepts(score float64) bool {
	if math.IsNaN(score) {
		return false
	}
	if t.LowerIsBetter {
		return score <= t.Value
	}
	return score >= t.Value
}

// Thresholds is the per-metric table consulted by the evaluator.
var Thresholds = map[Metric]Threshold{
	MetricCosine:       {Value: CosineSimilarityThreshold},
	MetricInnerProduct: {Value: InnerProductThreshold},
	MetricL2:           {Value: L2DistanceThreshold, LowerIsBetter: true},
}

// ThresholdFor returns the cutoff for m, using cosine for unknown metrics.
func ThresholdFor(m Metric) Threshold {
	if t, ok := Thresholds[m]; ok {
		return t
	}
	return Thresholds[MetricCosine]
}

// EvaluationResult is the outcome of scoring one answer. It is never persisted.
type EvaluationResult struct {
	// Score is the raw metric value: cosine similarity, normalized inner
	// product, or L2 distance.
	Score float64
	// Similarity is the display value. For L2 it is 1 - distance, which is an
	// approximation and may fall outside [0,1].
	Similarity      float64
	Correct         bool
	CanonicalAnswer string
	Metric          Metric
	Model           string
	// Fallback is set when correctness came from literal comparison.
	Fallback bool
}
