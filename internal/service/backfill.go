package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"quiz-sense/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BackfillReport counts what one backfill run did.
type BackfillReport struct {
	Questions int
	Generated int
	Skipped   int
	Failed    int
}

// ImportReport counts what one question import did.
type ImportReport struct {
	Imported int
	Invalid  int
}

// BackfillService loads the question bank and precomputes reference embeddings.
type BackfillService interface {
	// ImportQuestions stores the given questions; existing (topic, prompt) pairs are left alone.
	ImportQuestions(ctx context.Context, questions []*domain.Question) (ImportReport, error)
	// BackfillEmbeddings generates the missing reference embeddings for every
	// question and model. Embeddings of the wrong length are replaced.
	BackfillEmbeddings(ctx context.Context) (BackfillReport, error)
}

type backfillService struct {
	repo        domain.QuestionRepository
	provider    domain.EmbeddingProvider
	registry    *domain.ModelRegistry
	concurrency int
	timeout     time.Duration
	logger      *zap.Logger
}

// NewBackfillService creates a new instance of backfillService.
func NewBackfillService(
	repo domain.QuestionRepository,
	provider domain.EmbeddingProvider,
	registry *domain.ModelRegistry,
	concurrency int,
	timeout time.Duration,
	logger *zap.Logger,
) BackfillService {
	if concurrency <= 0 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = defaultEmbeddingTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &backfillService{
		repo:        repo,
		provider:    provider,
		registry:    registry,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logger,
	}
}

func (s *backfillService) ImportQuestions(ctx context.Context, questions []*domain.Question) (ImportReport, error) {
	var report ImportReport
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			s.logger.Warn("Skipping invalid question", zap.String("prompt", q.Prompt), zap.Error(err))
			report.Invalid++
			continue
		}
		q.Prompt = strings.TrimSpace(q.Prompt)
		q.Answer = strings.TrimSpace(q.Answer)
		if err := s.repo.SaveQuestion(ctx, q); err != nil {
			return report, fmt.Errorf("failed to save question %q: %w", q.Prompt, err)
		}
		report.Imported++
	}
	s.logger.Info("Question import finished", zap.Int("imported", report.Imported), zap.Int("invalid", report.Invalid))
	return report, nil
}

func (s *backfillService) BackfillEmbeddings(ctx context.Context) (BackfillReport, error) {
	start := time.Now()
	s.logger.Info("Starting embedding backfill",
		zap.Int("models", len(s.registry.Models())),
		zap.Int("concurrency", s.concurrency))

	var ids []int64
	for _, topic := range domain.Topics {
		questions, err := s.repo.FindByTopic(ctx, topic)
		if err != nil {
			return BackfillReport{}, fmt.Errorf("failed to list questions for topic %s: %w", topic, err)
		}
		for _, q := range questions {
			ids = append(ids, q.ID)
		}
	}

	var generated, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			q, err := s.repo.FindByID(gctx, id)
			if err != nil {
				return fmt.Errorf("failed to load question %d: %w", id, err)
			}
			if q == nil {
				return nil
			}
			for _, model := range s.registry.Models() {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if _, ok := q.ReferenceEmbedding(model.Name, model.Dimension); ok {
					skipped.Add(1)
					continue
				}
				if err := s.generate(gctx, q, model); err != nil {
					s.logger.Warn("Reference embedding not generated",
						zap.Int64("questionID", q.ID),
						zap.String("model", model.Name),
						zap.Error(err))
					failed.Add(1)
					continue
				}
				generated.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()

	report := BackfillReport{
		Questions: len(ids),
		Generated: int(generated.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
	s.logger.Info("Embedding backfill finished",
		zap.Int("questions", report.Questions),
		zap.Int("generated", report.Generated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", time.Since(start)))
	return report, err
}

// generate embeds the canonical answer and stores it if it has the model's dimension.
func (s *backfillService) generate(ctx context.Context, q *domain.Question, model domain.EmbeddingModel) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vec, err := s.provider.Embed(ctx, strings.TrimSpace(q.Answer), model.Name)
	if err != nil {
		return err
	}
	if len(vec) == 0 {
		return fmt.Errorf("provider returned an empty vector")
	}
	if model.Dimension > 0 && len(vec) != model.Dimension {
		return fmt.Errorf("embedding has %d dimensions, model %s declares %d", len(vec), model.Name, model.Dimension)
	}
	if err := s.repo.SaveEmbedding(ctx, q.ID, model.Name, vec); err != nil {
		return fmt.Errorf("failed to save embedding: %w", err)
	}
	return nil
}
