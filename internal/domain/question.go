package domain

import (
	"context"
	"strings"
	"time"
)

// Topic is one of the fixed quiz subject areas.
type Topic string

const (
	TopicBiology   Topic = "biology"
	TopicGeography Topic = "geography"
	TopicHistory   Topic = "history"
	TopicMusic     Topic = "music"
)

// Topics lists the supported vocabulary in display order.
var Topics = []Topic{TopicBiology, TopicGeography, TopicHistory, TopicMusic}

// ParseTopic normalizes a raw topic name and checks it against the vocabulary.
func ParseTopic(raw string) (Topic, bool) {
	t := Topic(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Topics {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Question is a quiz item with its canonical answer and any precomputed
// reference embeddings keyed by model name.
type Question struct {
	ID         int64
	Topic      Topic
	Prompt     string
	Answer     string
	Embeddings map[string][]float32
	CreatedAt  time.Time
}

// NewQuestion creates a new Question instance
func NewQuestion(topic Topic, prompt, answer string) *Question {
	return &Question{
		Topic:      topic,
		Prompt:     prompt,
		Answer:     answer,
		Embeddings: make(map[string][]float32),
		CreatedAt:  time.Now(),
	}
}

// ReferenceEmbedding returns the stored embedding for model. A missing or empty
// vector, or one whose length differs from the declared dimension, reports false.
// dimension <= 0 skips the length check.
func (q *Question) ReferenceEmbedding(model string, dimension int) ([]float32, bool) {
	if q == nil || q.Embeddings == nil {
		return nil, false
	}
	vec, ok := q.Embeddings[model]
	if !ok || len(vec) == 0 {
		return nil, false
	}
	if dimension > 0 && len(vec) != dimension {
		return nil, false
	}
	return vec, true
}

// Validate validates the question
func (q *Question) Validate() error {
	if _, ok := ParseTopic(string(q.Topic)); !ok {
		return NewInvalidTopicError(string(q.Topic))
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return NewInvalidInputError("question prompt is required")
	}
	if strings.TrimSpace(q.Answer) == "" {
		return NewInvalidInputError("question answer is required")
	}
	return nil
}

// TopicSummary is a topic with the number of questions available for it.
type TopicSummary struct {
	Topic Topic `db:"topic"`
	Count int   `db:"question_count"`
}

// QuestionRepository is the read contract used by quiz sessions plus the
// write operations needed by seeding and embedding backfill.
type QuestionRepository interface {
	// FindByID returns the question with its reference embeddings, or nil when absent.
	FindByID(ctx context.Context, id int64) (*Question, error)
	// FindByTopic returns every question of a topic without embeddings.
	FindByTopic(ctx context.Context, topic Topic) ([]*Question, error)
	// ListTopics returns the number of questions per topic.
	ListTopics(ctx context.Context) ([]TopicSummary, error)
	// SaveQuestion inserts a question unless one with the same topic and prompt exists.
	SaveQuestion(ctx context.Context, question *Question) error
	// SaveEmbedding stores (or replaces) the reference embedding for one model.
	SaveEmbedding(ctx context.Context, questionID int64, model string, vector []float32) error
}

// TransactionManager runs fn inside a database transaction carried by ctx.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
