package domain

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// SessionState is the lifecycle position of a quiz session.
type SessionState string

const (
	SessionNotStarted SessionState = "not_started"
	SessionInProgress SessionState = "in_progress"
	SessionComplete   SessionState = "complete"
)

// QuizSession is the per-attempt state machine. It is rebuilt from the session
// store on every request and holds no references to other components.
//
// Invariant: Score == len(Credited) <= Index+1, and every credited index is < len(QuestionIDs).
type QuizSession struct {
	ID          string       `json:"id"`
	Topic       Topic        `json:"topic"`
	QuestionIDs []int64      `json:"question_ids"`
	Index       int          `json:"index"`
	Score       int          `json:"score"`
	Credited    []int        `json:"credited"`
	Model       string       `json:"model"`
	Metric      Metric       `json:"metric"`
	State       SessionState `json:"state"`
	// Answered is set once the current question has been submitted at least once
	// since it was exposed; Advance requires it.
	Answered  bool      `json:"answered"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore persists sessions between requests, isolated per key.
type SessionStore interface {
	// Load returns ErrSessionNotFound when nothing is stored under key.
	Load(ctx context.Context, key string) (*QuizSession, error)
	Save(ctx context.Context, key string, session *QuizSession) error
	Clear(ctx context.Context, key string) error
}

// SelectQuestionIDs picks count distinct ids uniformly at random without
// replacement: the pool is shuffled with rng and the first count are taken.
func SelectQuestionIDs(pool []int64, count int, rng *rand.Rand) []int64 {
	seen := make(map[int64]struct{}, len(pool))
	distinct := make([]int64, 0, len(pool))
	for _, id := range pool {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	if count > len(distinct) {
		count = len(distinct)
	}
	rng.Shuffle(len(distinct), func(i, j int) {
		distinct[i], distinct[j] = distinct[j], distinct[i]
	})
	return distinct[:count:count]
}

// NewQuizSession performs the Start transition. It fails with an
// insufficient-content error when the pool holds fewer than count distinct ids.
func NewQuizSession(id string, topic Topic, pool []int64, count int, model string, metric Metric, rng *rand.Rand) (*QuizSession, error) {
	if count <= 0 {
		return nil, NewInvalidInputError("question count must be positive")
	}
	ids := SelectQuestionIDs(pool, count, rng)
	if len(ids) < count {
		return nil, NewInsufficientContentError(string(topic), len(ids), count)
	}
	return &QuizSession{
		ID:          id,
		Topic:       topic,
		QuestionIDs: ids,
		Index:       0,
		Score:       0,
		Credited:    []int{},
		Model:       model,
		Metric:      metric,
		State:       SessionInProgress,
	}, nil
}

// Total is the number of questions in the session.
func (s *QuizSession) Total() int {
	return len(s.QuestionIDs)
}

// IsComplete reports whether the session reached its terminal state.
func (s *QuizSession) IsComplete() bool {
	return s.State == SessionComplete
}

// Current returns the question id at the current index. done is true once the
// session is complete; no id is returned in that case.
func (s *QuizSession) Current() (id int64, done bool, err error) {
	switch s.State {
	case SessionComplete:
		return 0, true, nil
	case SessionInProgress:
	default:
		return 0, false, NewInvalidSessionStateError("quiz has not been started")
	}
	if s.Index >= s.Total() {
		return 0, true, nil
	}
	if s.Index < 0 {
		return 0, false, NewInvalidSessionStateError(fmt.Sprintf("question index %d out of range", s.Index))
	}
	return s.QuestionIDs[s.Index], false, nil
}

// IsCredited reports whether the question at index already earned its point.
func (s *QuizSession) IsCredited(index int) bool {
	i := sort.SearchInts(s.Credited, index)
	return i < len(s.Credited) && s.Credited[i] == index
}

// RecordAnswer applies the outcome of a Submit. A correct answer earns a point
// only the first time for a given index; the return value tells whether this
// call awarded it.
func (s *QuizSession) RecordAnswer(correct bool) (credited bool, err error) {
	if err := s.requireActiveQuestion("submit"); err != nil {
		return false, err
	}
	s.Answered = true
	if !correct || s.IsCredited(s.Index) {
		return false, nil
	}
	i := sort.SearchInts(s.Credited, s.Index)
	s.Credited = append(s.Credited, 0)
	copy(s.Credited[i+1:], s.Credited[i:])
	s.Credited[i] = s.Index
	s.Score++
	return true, nil
}

// Advance moves to the next question, completing the session after the last one.
func (s *QuizSession) Advance() error {
	if err := s.requireActiveQuestion("advance"); err != nil {
		return err
	}
	if !s.Answered {
		return NewInvalidSessionStateError("cannot advance before submitting an answer")
	}
	s.Index++
	s.Answered = false
	if s.Index >= s.Total() {
		s.Index = s.Total()
		s.State = SessionComplete
	}
	return nil
}

// Retry re-exposes the current question. Score and credited indices are kept,
// so a later correct answer cannot earn a second point.
func (s *QuizSession) Retry() error {
	if err := s.requireActiveQuestion("retry"); err != nil {
		return err
	}
	s.Answered = false
	return nil
}

// Complete is the explicit completion transition.
func (s *QuizSession) Complete() {
	s.State = SessionComplete
	s.Answered = false
}

func (s *QuizSession) requireActiveQuestion(op string) error {
	switch s.State {
	case SessionInProgress:
	case SessionComplete:
		return NewInvalidSessionStateError(fmt.Sprintf("cannot %s: quiz is complete", op))
	default:
		return NewInvalidSessionStateError(fmt.Sprintf("cannot %s: quiz has not been started", op))
	}
	if s.Index < 0 || s.Index >= s.Total() {
		return NewInvalidSessionStateError(fmt.Sprintf("cannot %s: question index %d out of range [0,%d)", op, s.Index, s.Total()))
	}
	return nil
}

// Validate checks a rehydrated session for integrity. Sessions that fail are
// discarded rather than repaired.
func (s *QuizSession) Validate() error {
	if s == nil {
		return NewInvalidSessionStateError("session is missing")
	}
	n := s.Total()
	if n == 0 {
		return NewInvalidSessionStateError("session has no questions")
	}
	if s.State != SessionInProgress && s.State != SessionComplete {
		return NewInvalidSessionStateError(fmt.Sprintf("unknown session state %q", s.State))
	}
	if s.Index < 0 || s.Index > n {
		return NewInvalidSessionStateError(fmt.Sprintf("question index %d out of range", s.Index))
	}
	if s.Index == n && s.State != SessionComplete {
		return NewInvalidSessionStateError("session exhausted its questions without completing")
	}
	if s.Score != len(s.Credited) || s.Score > n {
		return NewInvalidSessionStateError("score does not match credited questions")
	}
	if !sort.IntsAreSorted(s.Credited) {
		return NewInvalidSessionStateError("credited set is not ordered")
	}
	for i, idx := range s.Credited {
		if idx < 0 || idx >= n || idx > s.Index {
			return NewInvalidSessionStateError(fmt.Sprintf("credited index %d out of range", idx))
		}
		if i > 0 && s.Credited[i-1] == idx {
			return NewInvalidSessionStateError(fmt.Sprintf("credited index %d repeated", idx))
		}
	}
	return nil
}
