package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"quiz-sense/internal/domain"
	"quiz-sense/internal/logger"
	"quiz-sense/internal/similarity"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultEmbeddingTimeout = 10 * time.Second

// AnswerEvaluator scores a free-text answer against a question's canonical answer.
// It always produces a result: provider and scoring failures fall back to a
// case-insensitive literal comparison.
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, userText string, question *domain.Question, model string, metric domain.Metric) domain.EvaluationResult
}

type answerEvaluator struct {
	provider domain.EmbeddingProvider
	registry *domain.ModelRegistry
	timeout  time.Duration
	tracer   trace.Tracer
}

// NewAnswerEvaluator creates an evaluator. timeout bounds the embedding calls of
// one evaluation; timeout <= 0 uses a 10s default.
func NewAnswerEvaluator(provider domain.EmbeddingProvider, registry *domain.ModelRegistry, timeout time.Duration) AnswerEvaluator {
	if timeout <= 0 {
		timeout = defaultEmbeddingTimeout
	}
	if registry == nil {
		registry = domain.NewModelRegistry(nil, "")
	}
	return &answerEvaluator{
		provider: provider,
		registry: registry,
		timeout:  timeout,
		tracer:   otel.Tracer("quiz-sense/internal/service"),
	}
}

func (e *answerEvaluator) Evaluate(ctx context.Context, userText string, question *domain.Question, model string, metric domain.Metric) (result domain.EvaluationResult) {
	user := strings.TrimSpace(userText)
	canonical := ""
	if question != nil {
		canonical = strings.TrimSpace(question.Answer)
	}
	if _, ok := domain.Thresholds[metric]; !ok {
		metric = domain.MetricCosine
	}

	ctx, span := e.tracer.Start(ctx, "AnswerEvaluator.Evaluate", trace.WithAttributes(
		attribute.String("quiz.metric", string(metric)),
		attribute.String("quiz.model", model),
	))
	defer func() {
		span.SetAttributes(
			attribute.Bool("quiz.correct", result.Correct),
			attribute.Bool("quiz.fallback", result.Fallback),
			attribute.Float64("quiz.similarity", result.Similarity),
		)
		span.End()
	}()

	defer func() {
		if r := recover(); r != nil {
			logger.Get().Error("Answer evaluation panicked, using literal comparison",
				zap.Any("panic", r),
				zap.String("model", model),
				zap.String("metric", string(metric)))
			result = literalResult(user, canonical, model, metric)
		}
	}()

	// Blank answers are scored as maximally dissimilar without a provider call.
	if user == "" {
		blank := literalResult(user, canonical, model, metric)
		blank.Fallback = false
		return blank
	}

	userVec, refVec, err := e.embeddings(ctx, user, canonical, question, model)
	if err != nil {
		logger.Get().Warn("Embedding unavailable, using literal comparison",
			zap.Error(err),
			zap.String("model", model),
			zap.Int64("questionID", questionID(question)))
		span.RecordError(err)
		return literalResult(user, canonical, model, metric)
	}

	scored := similarity.Score(metric, userVec, refVec)
	if math.IsNaN(scored.Score) {
		logger.Get().Warn("Similarity score is NaN, using literal comparison",
			zap.String("model", model),
			zap.String("metric", string(metric)))
		return literalResult(user, canonical, model, metric)
	}
	if scored.Degenerate {
		logger.Get().Warn("Embeddings cannot be compared",
			zap.Int("userDimension", len(userVec)),
			zap.Int("referenceDimension", len(refVec)),
			zap.String("model", model))
	}

	return domain.EvaluationResult{
		Score:           scored.Score,
		Similarity:      scored.Similarity,
		Correct:         !scored.Degenerate && domain.ThresholdFor(scored.Metric).Accepts(scored.Score),
		CanonicalAnswer: canonical,
		Metric:          scored.Metric,
		Model:           model,
	}
}

// embeddings fetches the user vector and, unless a valid precomputed one is
// stored, the reference vector. Both provider calls run concurrently under one
// deadline, which holds even when the provider ignores its context. An empty
// vector is reported as an error.
func (e *answerEvaluator) embeddings(ctx context.Context, user, canonical string, question *domain.Question, model string) ([]float32, []float32, error) {
	if e.provider == nil {
		return nil, nil, fmt.Errorf("no embedding provider configured")
	}
	if canonical == "" {
		return nil, nil, fmt.Errorf("question has no canonical answer")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	storedVec, stored := question.ReferenceEmbedding(model, e.registry.Dimension(model))

	// Written only by the group's goroutines; read after Wait has returned.
	var userVec, refVec []float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := e.embed(gctx, user, model)
		if err != nil {
			return fmt.Errorf("user answer embedding: %w", err)
		}
		if len(v) == 0 {
			return fmt.Errorf("user answer embedding: provider returned an empty vector")
		}
		userVec = v
		return nil
	})
	if !stored {
		g.Go(func() error {
			v, err := e.embed(gctx, canonical, model)
			if err != nil {
				return fmt.Errorf("reference embedding: %w", err)
			}
			if len(v) == 0 {
				return fmt.Errorf("reference embedding: provider returned an empty vector")
			}
			refVec = v
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return nil, nil, err
		}
		if stored {
			refVec = storedVec
		}
		return userVec, refVec, nil
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("embedding timed out after %s: %w", e.timeout, ctx.Err())
	}
}

// embed calls the provider, turning a panic into an error so it cannot escape
// the errgroup goroutine.
func (e *answerEvaluator) embed(ctx context.Context, text, model string) (vec []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("embedding provider panicked: %v", r)
		}
	}()
	return e.provider.Embed(ctx, text, model)
}

// literalResult decides correctness by case-insensitive equality. Similarity is
// 1 or 0; for L2 the reported distance is 1 - similarity. An empty answer never matches.
func literalResult(user, canonical, model string, metric domain.Metric) domain.EvaluationResult {
	sim := 0.0
	if user != "" && strings.EqualFold(user, canonical) {
		sim = 1.0
	}
	score := sim
	if metric == domain.MetricL2 {
		score = 1 - sim
	}
	return domain.EvaluationResult{
		Score:           score,
		Similarity:      sim,
		Correct:         sim == 1.0,
		CanonicalAnswer: canonical,
		Metric:          metric,
		Model:           model,
		Fallback:        true,
	}
}

func questionID(q *domain.Question) int64 {
	if q == nil {
		return 0
	}
	return q.ID
}
