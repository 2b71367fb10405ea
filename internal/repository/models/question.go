package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Vector stores an embedding as a JSON array in a text/CLOB column.
type Vector []float32

// Value implements the driver.Valuer interface
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = Vector{}
		return nil
	}

	var raw []byte
	switch val := value.(type) {
	case []byte:
		raw = val
	case string:
		raw = []byte(val)
	default:
		return errors.New("Vector Scan: unsupported type " + fmt.Sprintf("%T", value))
	}

	if len(raw) == 0 || string(raw) == "null" {
		*v = Vector{}
		return nil
	}
	var out []float32
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("Vector Scan: %w", err)
	}
	*v = out
	return nil
}

// Question is a row of the questions table.
type Question struct {
	ID        int64     `db:"id"`
	Topic     string    `db:"topic"`
	Prompt    string    `db:"prompt"`
	Answer    string    `db:"answer"`
	CreatedAt time.Time `db:"created_at"`
}

// QuestionEmbedding is a row of the question_embeddings table.
type QuestionEmbedding struct {
	QuestionID int64     `db:"question_id"`
	Model      string    `db:"model_name"`
	Dimension  int       `db:"dimension"`
	Vector     Vector    `db:"vector"`
	CreatedAt  time.Time `db:"created_at"`
}
