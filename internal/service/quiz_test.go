package service

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"quiz-sense/internal/cache"
	"quiz-sense/internal/config"
	"quiz-sense/internal/domain"
	"quiz-sense/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type quizFixture struct {
	svc    QuizService
	repo   *memoryRepository
	cache  *memoryCache
	tokens SessionTokenService
}

func newQuizFixture(t *testing.T, poolSize int) *quizFixture {
	t.Helper()
	repo := geographyBank(poolSize)
	mc := newMemoryCache()
	tokens, err := NewSessionTokenService("test-secret", time.Hour)
	require.NoError(t, err)
	registry := domain.NewModelRegistry(nil, domain.ModelAllMiniLM)

	svc := NewQuizService(
		repo,
		NewAnswerEvaluator(failingProvider, registry, time.Second),
		NewCacheSessionStore(mc, 24*time.Hour),
		tokens,
		registry,
		config.QuizConfig{DefaultMetric: "cosine", DefaultCount: 5, MaxCount: 15},
		WithRandSource(rand.New(rand.NewSource(42))),
	)
	return &quizFixture{svc: svc, repo: repo, cache: mc, tokens: tokens}
}

func (f *quizFixture) start(t *testing.T, count int) (string, *dto.StartQuizResponse) {
	t.Helper()
	resp, err := f.svc.Start(context.Background(), &dto.StartQuizRequest{Topic: "geography", Count: count})
	require.NoError(t, err)
	id, err := f.tokens.Verify(resp.SessionToken)
	require.NoError(t, err)
	return id, resp
}

// correctAnswer returns the canonical answer of the session's current question.
func (f *quizFixture) correctAnswer(t *testing.T, sessionID string) string {
	t.Helper()
	cur, err := f.svc.Current(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, cur.Question)
	return fmt.Sprintf("answer-%d", cur.Question.ID)
}

func TestQuizService_Start(t *testing.T) {
	f := newQuizFixture(t, 15)
	id, resp := f.start(t, 3)

	assert.Equal(t, id, resp.Session.SessionID)
	assert.Equal(t, "in_progress", resp.Session.State)
	assert.Equal(t, 0, resp.Session.Index)
	assert.Equal(t, 0, resp.Session.Score)
	assert.Equal(t, 3, resp.Session.Total)
	assert.Equal(t, domain.ModelAllMiniLM, resp.Session.Model)
	assert.Equal(t, "cosine", resp.Session.Metric)
	require.NotNil(t, resp.Session.Question)
	assert.Equal(t, 1, resp.Session.Question.Position)

	stored, err := NewCacheSessionStore(f.cache, 0).Load(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, stored.QuestionIDs, 3)
	seen := map[int64]bool{}
	for _, qid := range stored.QuestionIDs {
		assert.False(t, seen[qid])
		seen[qid] = true
	}
	assert.Empty(t, stored.Credited)
}

func TestQuizService_StartInsufficientPool(t *testing.T) {
	// The fixture uses the shipped cap of 15; 50 exceeds both cap and pool.
	f := newQuizFixture(t, 15)

	resp, err := f.svc.Start(context.Background(), &dto.StartQuizRequest{Topic: "geography", Count: 50})
	assert.Nil(t, resp)
	assert.True(t, domain.IsCode(err, domain.CodeInsufficientContent), "got %v", err)
	assert.Empty(t, f.cache.keys(), "no session is created")

	t.Run("pool smaller than cap", func(t *testing.T) {
		small := newQuizFixture(t, 4)
		_, err := small.svc.Start(context.Background(), &dto.StartQuizRequest{Topic: "geography", Count: 5})
		assert.True(t, domain.IsCode(err, domain.CodeInsufficientContent), "got %v", err)
		assert.Empty(t, small.cache.keys())
	})
}

func TestQuizService_StartValidation(t *testing.T) {
	f := newQuizFixture(t, 15)
	tests := []struct {
		name string
		req  dto.StartQuizRequest
		code domain.ErrorCode
	}{
		{"unknown topic", dto.StartQuizRequest{Topic: "chemistry", Count: 3}, domain.CodeInvalidTopic},
		{"unknown model", dto.StartQuizRequest{Topic: "geography", Count: 3, Model: "bert"}, domain.CodeInvalidModel},
		{"unknown metric", dto.StartQuizRequest{Topic: "geography", Count: 3, Metric: "manhattan"}, domain.CodeInvalidMetric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Start(context.Background(), &tt.req)
			assert.True(t, domain.IsCode(err, tt.code), "got %v", err)
		})
	}

	t.Run("count above max with a large pool", func(t *testing.T) {
		large := newQuizFixture(t, 20)
		_, err := large.svc.Start(context.Background(), &dto.StartQuizRequest{Topic: "geography", Count: 16})
		var verrs domain.ValidationErrors
		assert.ErrorAs(t, err, &verrs)
		assert.Empty(t, large.cache.keys())
	})

	t.Run("negative count", func(t *testing.T) {
		_, err := f.svc.Start(context.Background(), &dto.StartQuizRequest{Topic: "geography", Count: -1})
		var verrs domain.ValidationErrors
		assert.ErrorAs(t, err, &verrs)
	})

	t.Run("zero count uses default", func(t *testing.T) {
		resp, err := f.svc.Start(context.Background(), &dto.StartQuizRequest{Topic: "Geography", Metric: "L2", Model: domain.ModelMxbaiEmbedLarge})
		require.NoError(t, err)
		assert.Equal(t, 5, resp.Session.Total)
		assert.Equal(t, "l2", resp.Session.Metric)
		assert.Equal(t, domain.ModelMxbaiEmbedLarge, resp.Session.Model)
	})
	assert.Len(t, f.cache.keys(), 1)
}

func TestQuizService_FullRun(t *testing.T) {
	f := newQuizFixture(t, 15)
	ctx := context.Background()
	id, _ := f.start(t, 3)

	for i := 0; i < 3; i++ {
		answer := f.correctAnswer(t, id)
		res, err := f.svc.Submit(ctx, id, &dto.SubmitAnswerRequest{Answer: answer})
		require.NoError(t, err)
		assert.True(t, res.Evaluation.Correct)
		assert.True(t, res.Evaluation.Credited)
		assert.Equal(t, 1.0, res.Evaluation.Similarity)
		assert.Equal(t, i+1, res.Session.Score)

		next, err := f.svc.Advance(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, i+1, next.Index)
	}

	cur, err := f.svc.Current(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "complete", cur.State)
	assert.Equal(t, 3, cur.Score)
	assert.Nil(t, cur.Question)

	_, err = f.svc.Submit(ctx, id, &dto.SubmitAnswerRequest{Answer: "anything"})
	assert.True(t, domain.IsCode(err, domain.CodeInvalidSessionState))
	_, err = f.svc.Advance(ctx, id)
	assert.True(t, domain.IsCode(err, domain.CodeInvalidSessionState))

	summary, err := f.svc.Finish(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Score)
	assert.Equal(t, 3, summary.Total)
	assert.True(t, summary.Completed)
	assert.Empty(t, f.cache.keys())

	_, err = f.svc.Current(ctx, id)
	assert.True(t, domain.IsCode(err, domain.CodeInvalidSessionState))
}

func TestQuizService_SubmitIsIdempotent(t *testing.T) {
	f := newQuizFixture(t, 15)
	ctx := context.Background()
	id, _ := f.start(t, 3)
	answer := f.correctAnswer(t, id)

	first, err := f.svc.Submit(ctx, id, &dto.SubmitAnswerRequest{Answer: answer})
	require.NoError(t, err)
	assert.True(t, first.Evaluation.Credited)

	second, err := f.svc.Submit(ctx, id, &dto.SubmitAnswerRequest{Answer: answer})
	require.NoError(t, err)
	assert.True(t, second.Evaluation.Correct)
	assert.False(t, second.Evaluation.Credited)
	assert.Equal(t, 1, second.Session.Score)

	_, err = f.svc.Retry(ctx, id)
	require.NoError(t, err)
	third, err := f.svc.Submit(ctx, id, &dto.SubmitAnswerRequest{Answer: answer})
	require.NoError(t, err)
	assert.Equal(t, 1, third.Session.Score)
	assert.Equal(t, 0, third.Session.Index)
}

func TestQuizService_IncorrectAnswerStillShowsCanonical(t *testing.T) {
	f := newQuizFixture(t, 15)
	id, _ := f.start(t, 2)
	answer := f.correctAnswer(t, id)

	res, err := f.svc.Submit(context.Background(), id, &dto.SubmitAnswerRequest{Answer: "no idea"})
	require.NoError(t, err)
	assert.False(t, res.Evaluation.Correct)
	assert.Equal(t, answer, res.Evaluation.CanonicalAnswer)
	assert.True(t, res.Evaluation.Fallback)
	assert.Equal(t, 0, res.Session.Score)
	assert.True(t, res.Session.Answered)
}

func TestQuizService_AdvanceRequiresSubmit(t *testing.T) {
	f := newQuizFixture(t, 15)
	id, _ := f.start(t, 2)

	_, err := f.svc.Advance(context.Background(), id)
	assert.True(t, domain.IsCode(err, domain.CodeInvalidSessionState))

	cur, err := f.svc.Current(context.Background(), id)
	require.NoError(t, err, "session survives a rejected transition")
	assert.Equal(t, 0, cur.Index)
}

func TestQuizService_SessionsAreIsolated(t *testing.T) {
	f := newQuizFixture(t, 15)
	ctx := context.Background()
	a, _ := f.start(t, 3)
	b, _ := f.start(t, 3)
	require.NotEqual(t, a, b)

	_, err := f.svc.Submit(ctx, a, &dto.SubmitAnswerRequest{Answer: f.correctAnswer(t, a)})
	require.NoError(t, err)

	curB, err := f.svc.Current(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 0, curB.Score)
	assert.False(t, curB.Answered)
}

func TestQuizService_InvalidSessions(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown session", func(t *testing.T) {
		f := newQuizFixture(t, 15)
		_, err := f.svc.Current(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
		assert.True(t, domain.IsCode(err, domain.CodeInvalidSessionState))
		_, err = f.svc.Finish(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
		assert.True(t, domain.IsCode(err, domain.CodeInvalidSessionState))
	})

	t.Run("corrupt session is discarded", func(t *testing.T) {
		f := newQuizFixture(t, 15)
		id, _ := f.start(t, 3)
		require.NoError(t, f.cache.Set(ctx, cache.SessionKey(id), "{not json", 0))

		_, err := f.svc.Current(ctx, id)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidSessionState))
		assert.Empty(t, f.cache.keys())
	})

	t.Run("out of range index is discarded", func(t *testing.T) {
		f := newQuizFixture(t, 15)
		id, _ := f.start(t, 3)
		store := NewCacheSessionStore(f.cache, 0)
		s, err := store.Load(ctx, id)
		require.NoError(t, err)
		s.Index = 7
		require.NoError(t, store.Save(ctx, id, s))

		_, err = f.svc.Submit(ctx, id, &dto.SubmitAnswerRequest{Answer: "x"})
		assert.True(t, domain.IsCode(err, domain.CodeInvalidSessionState))
		assert.Empty(t, f.cache.keys())
	})

	t.Run("question removed mid-session", func(t *testing.T) {
		f := newQuizFixture(t, 15)
		id, resp := f.start(t, 3)
		f.repo.remove(resp.Session.Question.ID)

		_, err := f.svc.Submit(ctx, id, &dto.SubmitAnswerRequest{Answer: "x"})
		assert.True(t, domain.IsCode(err, domain.CodeInvalidSessionState))
		assert.Empty(t, f.cache.keys())
	})
}

func TestQuizService_FinishEarly(t *testing.T) {
	f := newQuizFixture(t, 15)
	ctx := context.Background()
	id, _ := f.start(t, 3)
	_, err := f.svc.Submit(ctx, id, &dto.SubmitAnswerRequest{Answer: f.correctAnswer(t, id)})
	require.NoError(t, err)

	summary, err := f.svc.Finish(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Score)
	assert.False(t, summary.Completed)
	assert.Empty(t, f.cache.keys())
}

func TestQuizService_ListTopicsAndOptions(t *testing.T) {
	f := newQuizFixture(t, 15)

	topics, err := f.svc.ListTopics(context.Background())
	require.NoError(t, err)
	require.Len(t, topics.Topics, 4)
	for _, tr := range topics.Topics {
		if tr.Topic == "geography" {
			assert.Equal(t, 15, tr.QuestionCount)
		} else {
			assert.Equal(t, 0, tr.QuestionCount)
		}
	}

	opts := f.svc.Options()
	assert.Len(t, opts.Models, 3)
	require.Len(t, opts.Metrics, 3)
	assert.Equal(t, "cosine", opts.Metrics[0].Name)
	assert.True(t, opts.Metrics[0].Default)
	assert.Equal(t, domain.L2DistanceThreshold, opts.Metrics[1].Threshold)
	assert.True(t, opts.Metrics[1].LowerIsBetter)
	assert.Equal(t, 15, opts.MaxCount)
}

func TestEvaluationResponse_L2Sentinel(t *testing.T) {
	inf := evaluationResponse(domain.EvaluationResult{Metric: domain.MetricL2, Score: posInf(), Similarity: negInf()}, false)
	assert.Nil(t, inf.Distance)
	assert.Equal(t, 0.0, inf.Similarity)

	finite := evaluationResponse(domain.EvaluationResult{Metric: domain.MetricL2, Score: 0.3, Similarity: 0.7}, true)
	require.NotNil(t, finite.Distance)
	assert.Equal(t, 0.3, *finite.Distance)

	cos := evaluationResponse(domain.EvaluationResult{Metric: domain.MetricCosine, Score: 0.8, Similarity: 0.8}, true)
	assert.Nil(t, cos.Distance)
}

func TestQuizService_PassesSessionSelectionToEvaluator(t *testing.T) {
	repo := geographyBank(4)
	evaluator := new(MockAnswerEvaluator)
	tokens := new(MockSessionTokenService)
	mc := newMemoryCache()
	registry := domain.NewModelRegistry(nil, "")
	svc := NewQuizService(repo, evaluator, NewCacheSessionStore(mc, time.Hour), tokens, registry,
		config.QuizConfig{DefaultMetric: "cosine", DefaultCount: 2, MaxCount: 4},
		WithSessionIDs(func() string { return "01ARZ3NDEKTSV4RRFFQ69G5FAV" }),
		WithRandSource(rand.New(rand.NewSource(1))),
	)
	ctx := context.Background()

	tokens.On("Issue", "01ARZ3NDEKTSV4RRFFQ69G5FAV").Return("signed", time.Now().Add(time.Hour), nil).Once()
	resp, err := svc.Start(ctx, &dto.StartQuizRequest{Topic: "geography", Count: 2, Model: domain.ModelAllMiniLM, Metric: "inner_product"})
	require.NoError(t, err)
	assert.Equal(t, "signed", resp.SessionToken)

	evaluator.On("Evaluate", mock.Anything, "guess", mockQuestionWithID(resp.Session.Question.ID), domain.ModelAllMiniLM, domain.MetricInnerProduct).
		Return(domain.EvaluationResult{Correct: true, Similarity: 0.9, Score: 0.9, Metric: domain.MetricInnerProduct, Model: domain.ModelAllMiniLM}).Once()

	res, err := svc.Submit(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV", &dto.SubmitAnswerRequest{Answer: "guess"})
	require.NoError(t, err)
	assert.True(t, res.Evaluation.Credited)
	assert.Equal(t, "inner_product", res.Evaluation.Metric)
	evaluator.AssertExpectations(t)
	tokens.AssertExpectations(t)
}

func TestQuizService_TokenFailureStoresNothing(t *testing.T) {
	tokens := new(MockSessionTokenService)
	mc := newMemoryCache()
	svc := NewQuizService(geographyBank(5), new(MockAnswerEvaluator), NewCacheSessionStore(mc, time.Hour), tokens,
		domain.NewModelRegistry(nil, ""), config.QuizConfig{DefaultMetric: "cosine", DefaultCount: 2, MaxCount: 5})

	tokens.On("Issue", mock.Anything).Return("", time.Time{}, assert.AnError).Once()
	_, err := svc.Start(context.Background(), &dto.StartQuizRequest{Topic: "geography", Count: 2})
	assert.True(t, domain.IsCode(err, domain.CodeInternal))
	assert.Empty(t, mc.keys())
}

func TestQuizService_RepositoryFailure(t *testing.T) {
	repo := new(MockQuestionRepository)
	svc := NewQuizService(repo, new(MockAnswerEvaluator), NewCacheSessionStore(newMemoryCache(), time.Hour), new(MockSessionTokenService),
		domain.NewModelRegistry(nil, ""), config.QuizConfig{DefaultMetric: "cosine", DefaultCount: 2, MaxCount: 5})
	ctx := context.Background()

	repo.On("ListTopics", ctx).Return(nil, assert.AnError).Once()
	_, err := svc.ListTopics(ctx)
	assert.True(t, domain.IsCode(err, domain.CodeInternal))

	repo.On("FindByTopic", mock.Anything, domain.TopicMusic).Return(nil, assert.AnError).Once()
	_, err = svc.Start(ctx, &dto.StartQuizRequest{Topic: "music", Count: 2})
	assert.True(t, domain.IsCode(err, domain.CodeInternal))
	repo.AssertExpectations(t)
}

// mockQuestionWithID matches a *domain.Question by id.
func mockQuestionWithID(id int64) interface{} {
	return mock.MatchedBy(func(q *domain.Question) bool { return q != nil && q.ID == id })
}
