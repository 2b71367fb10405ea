package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"quiz-sense/internal/config"
	"quiz-sense/internal/domain"
	"quiz-sense/internal/dto"
	"quiz-sense/internal/logger"
	"quiz-sense/internal/util"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// QuizService drives quiz sessions. Every call rehydrates the session from the
// store, applies one transition and saves the result; nothing is persisted when
// a call fails.
type QuizService interface {
	ListTopics(ctx context.Context) (*dto.TopicsResponse, error)
	Options() *dto.OptionsResponse
	Start(ctx context.Context, req *dto.StartQuizRequest) (*dto.StartQuizResponse, error)
	Current(ctx context.Context, sessionID string) (*dto.SessionResponse, error)
	Submit(ctx context.Context, sessionID string, req *dto.SubmitAnswerRequest) (*dto.SubmitAnswerResponse, error)
	Advance(ctx context.Context, sessionID string) (*dto.SessionResponse, error)
	Retry(ctx context.Context, sessionID string) (*dto.SessionResponse, error)
	Finish(ctx context.Context, sessionID string) (*dto.FinishQuizResponse, error)
}

// QuizOption customizes a quiz service.
type QuizOption func(*quizService)

// WithRandSource makes question selection deterministic.
func WithRandSource(rng *rand.Rand) QuizOption {
	return func(s *quizService) { s.rng = rng }
}

// WithClock overrides time.Now for session timestamps.
func WithClock(now func() time.Time) QuizOption {
	return func(s *quizService) { s.now = now }
}

// WithSessionIDs overrides session id generation.
func WithSessionIDs(newID func() string) QuizOption {
	return func(s *quizService) { s.newID = newID }
}

type quizService struct {
	repo      domain.QuestionRepository
	evaluator AnswerEvaluator
	store     domain.SessionStore
	tokens    SessionTokenService
	registry  *domain.ModelRegistry
	cfg       config.QuizConfig
	tracer    trace.Tracer

	// rand.Rand is not safe for concurrent use.
	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
	newID func() string
}

// NewQuizService creates a new instance of quizService
func NewQuizService(
	repo domain.QuestionRepository,
	evaluator AnswerEvaluator,
	store domain.SessionStore,
	tokens SessionTokenService,
	registry *domain.ModelRegistry,
	cfg config.QuizConfig,
	opts ...QuizOption,
) QuizService {
	s := &quizService{
		repo:      repo,
		evaluator: evaluator,
		store:     store,
		tokens:    tokens,
		registry:  registry,
		cfg:       cfg,
		tracer:    otel.Tracer("quiz-sense/internal/service"),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
		newID:     util.NewULID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *quizService) ListTopics(ctx context.Context) (*dto.TopicsResponse, error) {
	summaries, err := s.repo.ListTopics(ctx)
	if err != nil {
		return nil, domain.NewInternalError("Failed to list topics", err)
	}
	counts := make(map[domain.Topic]int, len(summaries))
	for _, ts := range summaries {
		counts[ts.Topic] = ts.Count
	}
	resp := &dto.TopicsResponse{Topics: make([]dto.TopicResponse, 0, len(domain.Topics))}
	for _, topic := range domain.Topics {
		resp.Topics = append(resp.Topics, dto.TopicResponse{Topic: string(topic), QuestionCount: counts[topic]})
	}
	return resp, nil
}

func (s *quizService) Options() *dto.OptionsResponse {
	resp := &dto.OptionsResponse{
		DefaultCount: s.cfg.DefaultCount,
		MaxCount:     s.cfg.MaxCount,
	}
	for _, m := range s.registry.Models() {
		resp.Models = append(resp.Models, dto.ModelOption{
			Name:      m.Name,
			Dimension: m.Dimension,
			Default:   m.Name == s.registry.Default(),
		})
	}
	defaultMetric := s.defaultMetric()
	for _, m := range domain.Metrics {
		t := domain.ThresholdFor(m)
		resp.Metrics = append(resp.Metrics, dto.MetricOption{
			Name:          string(m),
			Threshold:     t.Value,
			LowerIsBetter: t.LowerIsBetter,
			Default:       m == defaultMetric,
		})
	}
	return resp
}

func (s *quizService) defaultMetric() domain.Metric {
	if m, ok := domain.ParseMetric(s.cfg.DefaultMetric); ok {
		return m
	}
	return domain.MetricCosine
}

// Start creates a session with count distinct questions of topic. Nothing is
// stored when the topic pool is too small.
func (s *quizService) Start(ctx context.Context, req *dto.StartQuizRequest) (*dto.StartQuizResponse, error) {
	ctx, span := s.tracer.Start(ctx, "QuizService.Start")
	defer span.End()

	topic, ok := domain.ParseTopic(req.Topic)
	if !ok {
		return nil, domain.NewInvalidTopicError(req.Topic)
	}

	count := req.Count
	if count == 0 {
		count = s.cfg.DefaultCount
	}
	if count < 1 {
		return nil, domain.ValidationErrors{domain.NewOutOfRangeError("count", count, 1, s.cfg.MaxCount)}
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.registry.Default()
	} else if _, ok := s.registry.Lookup(model); !ok {
		return nil, domain.NewInvalidModelError(model)
	}

	metric := s.defaultMetric()
	if strings.TrimSpace(req.Metric) != "" {
		if metric, ok = domain.ParseMetric(req.Metric); !ok {
			return nil, domain.NewInvalidMetricError(req.Metric)
		}
	}
	span.SetAttributes(
		attribute.String("quiz.topic", string(topic)),
		attribute.Int("quiz.count", count),
		attribute.String("quiz.model", model),
		attribute.String("quiz.metric", string(metric)),
	)

	questions, err := s.repo.FindByTopic(ctx, topic)
	if err != nil {
		return nil, domain.NewInternalError("Failed to load questions for topic", err)
	}
	pool := make([]int64, 0, len(questions))
	for _, q := range questions {
		pool = append(pool, q.ID)
	}

	// A pool shortfall is reported before the count cap so that an oversized
	// request against a small topic surfaces as insufficient content.
	session, err := s.newSession(topic, pool, count, model, metric)
	if err != nil {
		logger.Get().Info("Quiz start rejected",
			zap.String("topic", string(topic)),
			zap.Int("requested", count),
			zap.Int("available", len(pool)),
			zap.Error(err))
		return nil, err
	}
	now := s.now()
	session.CreatedAt = now
	session.UpdatedAt = now

	first, err := s.currentQuestion(ctx, session)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(session.ID)
	if err != nil {
		return nil, domain.NewInternalError("Failed to issue session token", err)
	}
	if err := s.store.Save(ctx, session.ID, session); err != nil {
		return nil, domain.NewInternalError("Failed to save quiz session", err)
	}

	logger.Get().Info("Quiz started",
		zap.String("sessionID", session.ID),
		zap.String("topic", string(topic)),
		zap.Int("count", count),
		zap.String("model", model),
		zap.String("metric", string(metric)))

	return &dto.StartQuizResponse{
		SessionToken: token,
		ExpiresAt:    expiresAt,
		Session:      sessionResponse(session, questionResponse(session, first)),
	}, nil
}

func (s *quizService) newSession(topic domain.Topic, pool []int64, count int, model string, metric domain.Metric) (*domain.QuizSession, error) {
	if count > len(pool) {
		return nil, domain.NewInsufficientContentError(string(topic), len(pool), count)
	}
	if s.cfg.MaxCount > 0 && count > s.cfg.MaxCount {
		return nil, domain.ValidationErrors{domain.NewOutOfRangeError("count", count, 1, s.cfg.MaxCount)}
	}

	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return domain.NewQuizSession(s.newID(), topic, pool, count, model, metric, s.rng)
}

func (s *quizService) Current(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	q, err := s.currentQuestion(ctx, session)
	if err != nil {
		return nil, s.discardOnSessionError(ctx, session, err)
	}
	resp := sessionResponse(session, questionResponse(session, q))
	return &resp, nil
}

// Submit evaluates the answer for the current question. A correct answer
// scores at most once per question no matter how often it is resubmitted.
func (s *quizService) Submit(ctx context.Context, sessionID string, req *dto.SubmitAnswerRequest) (*dto.SubmitAnswerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "QuizService.Submit")
	defer span.End()

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsComplete() {
		return nil, domain.NewInvalidSessionStateError("cannot submit: quiz is complete")
	}
	question, err := s.currentQuestion(ctx, session)
	if err != nil {
		return nil, s.discardOnSessionError(ctx, session, err)
	}

	result := s.evaluator.Evaluate(ctx, req.Answer, question, session.Model, session.Metric)
	credited, err := session.RecordAnswer(result.Correct)
	if err != nil {
		return nil, err
	}
	session.UpdatedAt = s.now()
	if err := s.store.Save(ctx, session.ID, session); err != nil {
		return nil, domain.NewInternalError("Failed to save quiz session", err)
	}

	span.SetAttributes(
		attribute.Bool("quiz.correct", result.Correct),
		attribute.Bool("quiz.credited", credited),
		attribute.Int("quiz.index", session.Index),
	)
	logger.Get().Info("Answer evaluated",
		zap.String("sessionID", session.ID),
		zap.Int64("questionID", question.ID),
		zap.Int("index", session.Index),
		zap.Bool("correct", result.Correct),
		zap.Bool("credited", credited),
		zap.Bool("fallback", result.Fallback),
		zap.Float64("similarity", result.Similarity))

	return &dto.SubmitAnswerResponse{
		Evaluation: evaluationResponse(result, credited),
		Session:    sessionResponse(session, questionResponse(session, question)),
	}, nil
}

func (s *quizService) Advance(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	return s.transition(ctx, sessionID, (*domain.QuizSession).Advance)
}

func (s *quizService) Retry(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	return s.transition(ctx, sessionID, (*domain.QuizSession).Retry)
}

// Finish closes the session and returns its final score. The session is
// cleared whether or not every question was reached.
func (s *quizService) Finish(ctx context.Context, sessionID string) (*dto.FinishQuizResponse, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	completed := session.IsComplete()
	session.Complete()
	if err := s.store.Clear(ctx, session.ID); err != nil {
		return nil, domain.NewInternalError("Failed to clear quiz session", err)
	}
	logger.Get().Info("Quiz finished",
		zap.String("sessionID", session.ID),
		zap.Int("score", session.Score),
		zap.Int("total", session.Total()),
		zap.Bool("completed", completed))
	return &dto.FinishQuizResponse{
		SessionID: session.ID,
		Topic:     string(session.Topic),
		Score:     session.Score,
		Total:     session.Total(),
		Completed: completed,
	}, nil
}

func (s *quizService) transition(ctx context.Context, sessionID string, apply func(*domain.QuizSession) error) (*dto.SessionResponse, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := apply(session); err != nil {
		logger.Get().Info("Quiz transition rejected", zap.String("sessionID", session.ID), zap.Error(err))
		return nil, err
	}
	q, err := s.currentQuestion(ctx, session)
	if err != nil {
		return nil, s.discardOnSessionError(ctx, session, err)
	}
	session.UpdatedAt = s.now()
	if err := s.store.Save(ctx, session.ID, session); err != nil {
		return nil, domain.NewInternalError("Failed to save quiz session", err)
	}
	resp := sessionResponse(session, questionResponse(session, q))
	return &resp, nil
}

// loadSession rehydrates a session. Missing, expired or corrupt sessions are
// reported as invalid session state; corrupt ones are also cleared.
func (s *quizService) loadSession(ctx context.Context, sessionID string) (*domain.QuizSession, error) {
	session, err := s.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.NewInvalidSessionStateError("session not found or expired")
	}
	if err != nil {
		return nil, domain.NewInternalError("Failed to load quiz session", err)
	}
	if session.ID != sessionID {
		err = domain.NewInvalidSessionStateError("stored session does not match its key")
	} else {
		err = session.Validate()
	}
	if err != nil {
		logger.Get().Warn("Discarding invalid quiz session", zap.String("sessionID", sessionID), zap.Error(err))
		if clearErr := s.store.Clear(ctx, sessionID); clearErr != nil {
			logger.Get().Error("Failed to clear invalid quiz session", zap.String("sessionID", sessionID), zap.Error(clearErr))
		}
		return nil, err
	}
	return session, nil
}

// discardOnSessionError clears the session when err is a session integrity
// failure and passes err through unchanged.
func (s *quizService) discardOnSessionError(ctx context.Context, session *domain.QuizSession, err error) error {
	if !domain.IsCode(err, domain.CodeInvalidSessionState) {
		return err
	}
	logger.Get().Warn("Discarding quiz session", zap.String("sessionID", session.ID), zap.Error(err))
	if clearErr := s.store.Clear(ctx, session.ID); clearErr != nil {
		logger.Get().Error("Failed to clear quiz session", zap.String("sessionID", session.ID), zap.Error(clearErr))
	}
	return err
}

// currentQuestion loads the question at the session index, or nil once the session is complete.
func (s *quizService) currentQuestion(ctx context.Context, session *domain.QuizSession) (*domain.Question, error) {
	id, done, err := session.Current()
	if err != nil || done {
		return nil, err
	}
	return s.findQuestion(ctx, id)
}

// findQuestion treats a question that vanished mid-session as a session integrity failure.
func (s *quizService) findQuestion(ctx context.Context, id int64) (*domain.Question, error) {
	q, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, domain.NewInternalError("Failed to load question", err)
	}
	if q == nil {
		return nil, domain.NewInvalidSessionStateError(fmt.Sprintf("question %d is no longer available", id))
	}
	return q, nil
}

func questionResponse(session *domain.QuizSession, q *domain.Question) *dto.QuestionResponse {
	if q == nil {
		return nil
	}
	return &dto.QuestionResponse{
		ID:       q.ID,
		Prompt:   q.Prompt,
		Position: session.Index + 1,
		Total:    session.Total(),
	}
}

func sessionResponse(session *domain.QuizSession, q *dto.QuestionResponse) dto.SessionResponse {
	return dto.SessionResponse{
		SessionID: session.ID,
		Topic:     string(session.Topic),
		State:     string(session.State),
		Index:     session.Index,
		Total:     session.Total(),
		Score:     session.Score,
		Model:     session.Model,
		Metric:    string(session.Metric),
		Answered:  session.Answered,
		Question:  q,
	}
}

func evaluationResponse(result domain.EvaluationResult, credited bool) dto.EvaluationResponse {
	resp := dto.EvaluationResponse{
		Similarity:      result.Similarity,
		Correct:         result.Correct,
		Credited:        credited,
		CanonicalAnswer: result.CanonicalAnswer,
		Metric:          string(result.Metric),
		Model:           result.Model,
		Fallback:        result.Fallback,
	}
	if math.IsInf(resp.Similarity, 0) || math.IsNaN(resp.Similarity) {
		resp.Similarity = 0
	}
	if result.Metric == domain.MetricL2 && !math.IsInf(result.Score, 0) && !math.IsNaN(result.Score) {
		d := result.Score
		resp.Distance = &d
	}
	return resp
}
