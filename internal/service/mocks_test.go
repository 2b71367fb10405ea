package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"quiz-sense/internal/domain"

	"github.com/stretchr/testify/mock"
)

// --- MockQuestionRepository ---
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) FindByID(ctx context.Context, id int64) (*domain.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Question), args.Error(1)
}

func (m *MockQuestionRepository) FindByTopic(ctx context.Context, topic domain.Topic) ([]*domain.Question, error) {
	args := m.Called(ctx, topic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Question), args.Error(1)
}

func (m *MockQuestionRepository) ListTopics(ctx context.Context) ([]domain.TopicSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TopicSummary), args.Error(1)
}

func (m *MockQuestionRepository) SaveQuestion(ctx context.Context, question *domain.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

func (m *MockQuestionRepository) SaveEmbedding(ctx context.Context, questionID int64, model string, vector []float32) error {
	args := m.Called(ctx, questionID, model, vector)
	return args.Error(0)
}

// --- MockEmbeddingProvider ---
type MockEmbeddingProvider struct {
	mock.Mock
}

func (m *MockEmbeddingProvider) Embed(ctx context.Context, text string, model string) ([]float32, error) {
	args := m.Called(ctx, text, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// --- MockAnswerEvaluator ---
type MockAnswerEvaluator struct {
	mock.Mock
}

func (m *MockAnswerEvaluator) Evaluate(ctx context.Context, userText string, question *domain.Question, model string, metric domain.Metric) domain.EvaluationResult {
	args := m.Called(ctx, userText, question, model, metric)
	return args.Get(0).(domain.EvaluationResult)
}

// --- MockSessionTokenService ---
type MockSessionTokenService struct {
	mock.Mock
}

func (m *MockSessionTokenService) Issue(sessionID string) (string, time.Time, error) {
	args := m.Called(sessionID)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockSessionTokenService) Verify(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

// memoryCache is an in-memory domain.Cache.
type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	delete(c.ttls, key)
	return nil
}

func (c *memoryCache) Ping(context.Context) error { return nil }

func (c *memoryCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.data))
	for k := range c.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// memoryRepository serves a fixed question bank.
type memoryRepository struct {
	mu         sync.Mutex
	questions  map[int64]*domain.Question
	embeddings map[int64]map[string][]float32
	nextID     int64
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		questions:  map[int64]*domain.Question{},
		embeddings: map[int64]map[string][]float32{},
	}
}

// geographyBank returns a repository with n geography questions whose answers
// are "answer-<id>".
func geographyBank(n int) *memoryRepository {
	r := newMemoryRepository()
	for i := 0; i < n; i++ {
		q := domain.NewQuestion(domain.TopicGeography, fmt.Sprintf("prompt-%d", i+1), fmt.Sprintf("answer-%d", i+1))
		_ = r.SaveQuestion(context.Background(), q)
	}
	return r
}

func (r *memoryRepository) FindByID(_ context.Context, id int64) (*domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return nil, nil
	}
	cp := *q
	cp.Embeddings = map[string][]float32{}
	for model, vec := range r.embeddings[id] {
		cp.Embeddings[model] = vec
	}
	return &cp, nil
}

func (r *memoryRepository) FindByTopic(_ context.Context, topic domain.Topic) ([]*domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Question
	for id := int64(1); id <= r.nextID; id++ {
		if q, ok := r.questions[id]; ok && q.Topic == topic {
			cp := *q
			cp.Embeddings = nil
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryRepository) ListTopics(_ context.Context) ([]domain.TopicSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[domain.Topic]int{}
	for _, q := range r.questions {
		counts[q.Topic]++
	}
	var out []domain.TopicSummary
	for topic, n := range counts {
		out = append(out, domain.TopicSummary{Topic: topic, Count: n})
	}
	return out, nil
}

func (r *memoryRepository) SaveQuestion(_ context.Context, q *domain.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.questions {
		if existing.Topic == q.Topic && strings.EqualFold(existing.Prompt, q.Prompt) {
			q.ID = existing.ID
			return nil
		}
	}
	r.nextID++
	q.ID = r.nextID
	cp := *q
	r.questions[q.ID] = &cp
	return nil
}

func (r *memoryRepository) SaveEmbedding(_ context.Context, questionID int64, model string, vector []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.embeddings[questionID] == nil {
		r.embeddings[questionID] = map[string][]float32{}
	}
	r.embeddings[questionID][model] = vector
	return nil
}

func (r *memoryRepository) remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.questions, id)
}

// funcProvider adapts a function to domain.EmbeddingProvider.
type funcProvider func(ctx context.Context, text, model string) ([]float32, error)

func (f funcProvider) Embed(ctx context.Context, text, model string) ([]float32, error) {
	return f(ctx, text, model)
}

// failingProvider always fails, as an unreachable daemon would.
var failingProvider = funcProvider(func(context.Context, string, string) ([]float32, error) {
	return nil, fmt.Errorf("connection refused")
})

func posInf() float64 { return math.Inf(1) }
func negInf() float64 { return math.Inf(-1) }
