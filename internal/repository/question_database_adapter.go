package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"quiz-sense/internal/domain"
	"quiz-sense/internal/repository/models"

	"github.com/jmoiron/sqlx"
)

// Queries use "?" placeholders and quoted lower-case aliases so the same text
// runs on Oracle, PostgreSQL and SQLite after Rebind.
const (
	selectQuestionColumns = `SELECT id AS "id", topic AS "topic", prompt AS "prompt", answer AS "answer", created_at AS "created_at" FROM questions`

	findQuestionByIDQuery     = selectQuestionColumns + ` WHERE id = ?`
	findQuestionsByTopicQuery = selectQuestionColumns + ` WHERE topic = ? ORDER BY id`
	findQuestionIDQuery       = `SELECT id AS "id" FROM questions WHERE topic = ? AND prompt = ?`

	findEmbeddingsQuery = `SELECT question_id AS "question_id", model_name AS "model_name", dimension AS "dimension", vector AS "vector", created_at AS "created_at" FROM question_embeddings WHERE question_id = ?`

	listTopicsQuery = `SELECT topic AS "topic", COUNT(*) AS "question_count" FROM questions GROUP BY topic ORDER BY topic`

	insertQuestionQuery  = `INSERT INTO questions (topic, prompt, answer, created_at) VALUES (?, ?, ?, ?)`
	deleteEmbeddingQuery = `DELETE FROM question_embeddings WHERE question_id = ? AND model_name = ?`
	insertEmbeddingQuery = `INSERT INTO question_embeddings (question_id, model_name, dimension, vector, created_at) VALUES (?, ?, ?, ?, ?)`
)

// QuestionDatabaseAdapter implements domain.QuestionRepository using sqlx.DB
type QuestionDatabaseAdapter struct {
	db *sqlx.DB
	tm domain.TransactionManager
}

// NewQuestionDatabaseAdapter creates a new instance of QuestionDatabaseAdapter
func NewQuestionDatabaseAdapter(db *sqlx.DB) domain.QuestionRepository {
	return &QuestionDatabaseAdapter{db: db, tm: NewTransactionManagerAdapter(db)}
}

func (a *QuestionDatabaseAdapter) exec(ctx context.Context) DBTX {
	return GetExecutor(ctx, a.db)
}

// FindByID returns nil, nil when the question does not exist.
func (a *QuestionDatabaseAdapter) FindByID(ctx context.Context, id int64) (*domain.Question, error) {
	ex := a.exec(ctx)

	var row models.Question
	if err := ex.GetContext(ctx, &row, ex.Rebind(findQuestionByIDQuery), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get question by ID %d: %w", id, err)
	}

	var embeddings []models.QuestionEmbedding
	if err := ex.SelectContext(ctx, &embeddings, ex.Rebind(findEmbeddingsQuery), id); err != nil {
		return nil, fmt.Errorf("failed to get embeddings for question %d: %w", id, err)
	}

	q := toDomainQuestion(&row)
	for _, e := range embeddings {
		q.Embeddings[e.Model] = []float32(e.Vector)
	}
	return q, nil
}

// FindByTopic returns the topic pool ordered by id, without embeddings.
func (a *QuestionDatabaseAdapter) FindByTopic(ctx context.Context, topic domain.Topic) ([]*domain.Question, error) {
	ex := a.exec(ctx)

	var rows []models.Question
	if err := ex.SelectContext(ctx, &rows, ex.Rebind(findQuestionsByTopicQuery), string(topic)); err != nil {
		return nil, fmt.Errorf("failed to get questions for topic %s: %w", topic, err)
	}
	questions := make([]*domain.Question, 0, len(rows))
	for i := range rows {
		questions = append(questions, toDomainQuestion(&rows[i]))
	}
	return questions, nil
}

func (a *QuestionDatabaseAdapter) ListTopics(ctx context.Context) ([]domain.TopicSummary, error) {
	ex := a.exec(ctx)

	var summaries []domain.TopicSummary
	if err := ex.SelectContext(ctx, &summaries, listTopicsQuery); err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return summaries, nil
}

// SaveQuestion inserts q unless its (topic, prompt) already exists. Either way
// q.ID is set to the stored id.
func (a *QuestionDatabaseAdapter) SaveQuestion(ctx context.Context, q *domain.Question) error {
	if q == nil {
		return fmt.Errorf("cannot save nil question")
	}
	return a.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := a.exec(txCtx)

		id, err := a.findQuestionID(txCtx, ex, q)
		if err != nil {
			return err
		}
		if id != 0 {
			q.ID = id
			return nil
		}

		if q.CreatedAt.IsZero() {
			q.CreatedAt = time.Now()
		}
		if _, err := ex.ExecContext(txCtx, ex.Rebind(insertQuestionQuery), string(q.Topic), q.Prompt, q.Answer, q.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert question: %w", err)
		}

		// Identity columns differ per database; read the id back by its natural key.
		id, err = a.findQuestionID(txCtx, ex, q)
		if err != nil {
			return err
		}
		if id == 0 {
			return fmt.Errorf("inserted question %q not found", q.Prompt)
		}
		q.ID = id
		return nil
	})
}

func (a *QuestionDatabaseAdapter) findQuestionID(ctx context.Context, ex DBTX, q *domain.Question) (int64, error) {
	var id int64
	err := ex.GetContext(ctx, &id, ex.Rebind(findQuestionIDQuery), string(q.Topic), q.Prompt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up question %q: %w", q.Prompt, err)
	}
	return id, nil
}

// SaveEmbedding replaces the reference embedding of one (question, model) pair.
func (a *QuestionDatabaseAdapter) SaveEmbedding(ctx context.Context, questionID int64, model string, vector []float32) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("embedding model name cannot be empty")
	}
	if len(vector) == 0 {
		return fmt.Errorf("cannot store an empty embedding")
	}
	return a.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := a.exec(txCtx)
		if _, err := ex.ExecContext(txCtx, ex.Rebind(deleteEmbeddingQuery), questionID, model); err != nil {
			return fmt.Errorf("failed to delete embedding for question %d: %w", questionID, err)
		}
		if _, err := ex.ExecContext(txCtx, ex.Rebind(insertEmbeddingQuery),
			questionID, model, len(vector), models.Vector(vector), time.Now()); err != nil {
			return fmt.Errorf("failed to insert embedding for question %d: %w", questionID, err)
		}
		return nil
	})
}

func toDomainQuestion(row *models.Question) *domain.Question {
	return &domain.Question{
		ID:         row.ID,
		Topic:      domain.Topic(row.Topic),
		Prompt:     row.Prompt,
		Answer:     row.Answer,
		Embeddings: make(map[string][]float32),
		CreatedAt:  row.CreatedAt,
	}
}

var _ domain.QuestionRepository = (*QuestionDatabaseAdapter)(nil)
