package dto

import "time"

// TopicResponse is a topic with the number of questions available
// @Description Topic information
type TopicResponse struct {
	Topic         string `json:"topic"`
	QuestionCount int    `json:"question_count"`
}

// TopicsResponse lists the quiz topics
type TopicsResponse struct {
	Topics []TopicResponse `json:"topics"`
}

// ModelOption is an embedding model the service can score with
type ModelOption struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Default   bool   `json:"default"`
}

// MetricOption is a similarity metric with its correctness cutoff
type MetricOption struct {
	Name          string  `json:"name"`
	Threshold     float64 `json:"threshold"`
	LowerIsBetter bool    `json:"lower_is_better"`
	Default       bool    `json:"default"`
}

// OptionsResponse lists the models and metrics a quiz can be started with
// @Description Available scoring options
type OptionsResponse struct {
	Models       []ModelOption  `json:"models"`
	Metrics      []MetricOption `json:"metrics"`
	DefaultCount int            `json:"default_count"`
	MaxCount     int            `json:"max_count"`
}

// StartQuizRequest starts a new quiz session
// @Description Request body for starting a quiz
type StartQuizRequest struct {
	Topic  string `json:"topic"`
	Count  int    `json:"count"`
	Model  string `json:"model,omitempty"`
	Metric string `json:"metric,omitempty"`
}

// SubmitAnswerRequest carries the user's free-text answer
// @Description Request body for submitting an answer
type SubmitAnswerRequest struct {
	Answer string `json:"answer"`
}

// QuestionResponse is the question currently exposed to the user
type QuestionResponse struct {
	ID       int64  `json:"id"`
	Prompt   string `json:"prompt"`
	Position int    `json:"position"` // 1-based
	Total    int    `json:"total"`
}

// SessionResponse summarizes a quiz session
// @Description Quiz session state
type SessionResponse struct {
	SessionID string            `json:"session_id"`
	Topic     string            `json:"topic"`
	State     string            `json:"state"`
	Index     int               `json:"index"`
	Total     int               `json:"total"`
	Score     int               `json:"score"`
	Model     string            `json:"model"`
	Metric    string            `json:"metric"`
	Answered  bool              `json:"answered"`
	Question  *QuestionResponse `json:"question,omitempty"`
}

// StartQuizResponse returns the session token the client presents on later calls
type StartQuizResponse struct {
	SessionToken string          `json:"session_token"`
	ExpiresAt    time.Time       `json:"expires_at"`
	Session      SessionResponse `json:"session"`
}

// EvaluationResponse is the outcome of one submitted answer
// @Description Answer evaluation
type EvaluationResponse struct {
	Similarity float64 `json:"similarity"`
	// Distance is set for the l2 metric only; null when the vectors could not be compared.
	Distance        *float64 `json:"distance,omitempty"`
	Correct         bool     `json:"correct"`
	Credited        bool     `json:"credited"`
	CanonicalAnswer string   `json:"canonical_answer"`
	Metric          string   `json:"metric"`
	Model           string   `json:"model"`
	Fallback        bool     `json:"fallback"`
}

// SubmitAnswerResponse returns the evaluation together with the updated session
type SubmitAnswerResponse struct {
	Evaluation EvaluationResponse `json:"evaluation"`
	Session    SessionResponse    `json:"session"`
}

// FinishQuizResponse is the final summary returned when a session is closed
type FinishQuizResponse struct {
	SessionID string `json:"session_id"`
	Topic     string `json:"topic"`
	Score     int    `json:"score"`
	Total     int    `json:"total"`
	Completed bool   `json:"completed"`
}

// HealthResponse reports dependency health
type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis"`
}

// ErrorResponse represents an error in the API response
type ErrorResponse struct {
	Error string `json:"error"`
}
