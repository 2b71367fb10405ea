package domain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poolOf(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return ids
}

func newTestSession(t *testing.T, poolSize, count int) *QuizSession {
	t.Helper()
	s, err := NewQuizSession("01TESTSESSION", TopicGeography, poolOf(poolSize), count, ModelNomicEmbedText, MetricCosine, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	return s
}

func TestSelectQuestionIDs(t *testing.T) {
	t.Run("distinct and from pool", func(t *testing.T) {
		pool := poolOf(15)
		ids := SelectQuestionIDs(pool, 5, rand.New(rand.NewSource(1)))
		assert.Len(t, ids, 5)
		seen := map[int64]bool{}
		for _, id := range ids {
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
			assert.Contains(t, pool, id)
		}
	})

	t.Run("deterministic for a seeded source", func(t *testing.T) {
		a := SelectQuestionIDs(poolOf(15), 4, rand.New(rand.NewSource(7)))
		b := SelectQuestionIDs(poolOf(15), 4, rand.New(rand.NewSource(7)))
		assert.Equal(t, a, b)
	})

	t.Run("does not mutate the pool", func(t *testing.T) {
		pool := poolOf(6)
		SelectQuestionIDs(pool, 3, rand.New(rand.NewSource(3)))
		assert.Equal(t, poolOf(6), pool)
	})

	t.Run("duplicates in pool are collapsed", func(t *testing.T) {
		ids := SelectQuestionIDs([]int64{1, 1, 2, 2}, 4, rand.New(rand.NewSource(3)))
		assert.ElementsMatch(t, []int64{1, 2}, ids)
	})
}

func TestNewQuizSession(t *testing.T) {
	t.Run("start from a pool of 15", func(t *testing.T) {
		s := newTestSession(t, 15, 3)
		assert.Equal(t, SessionInProgress, s.State)
		assert.Equal(t, 0, s.Index)
		assert.Equal(t, 0, s.Score)
		assert.Empty(t, s.Credited)
		assert.Len(t, s.QuestionIDs, 3)
		assert.NoError(t, s.Validate())
	})

	t.Run("insufficient pool", func(t *testing.T) {
		s, err := NewQuizSession("x", TopicGeography, poolOf(15), 50, ModelNomicEmbedText, MetricCosine, rand.New(rand.NewSource(1)))
		assert.Nil(t, s)
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeInsufficientContent))
	})

	t.Run("non-positive count", func(t *testing.T) {
		_, err := NewQuizSession("x", TopicGeography, poolOf(3), 0, ModelNomicEmbedText, MetricCosine, rand.New(rand.NewSource(1)))
		assert.True(t, IsCode(err, CodeInvalidInput))
	})
}

func TestQuizSession_RecordAnswerIsIdempotent(t *testing.T) {
	s := newTestSession(t, 15, 3)

	credited, err := s.RecordAnswer(true)
	require.NoError(t, err)
	assert.True(t, credited)

	credited, err = s.RecordAnswer(true)
	require.NoError(t, err)
	assert.False(t, credited)

	assert.Equal(t, 1, s.Score)
	assert.Equal(t, []int{0}, s.Credited)
	assert.NoError(t, s.Validate())
}

func TestQuizSession_IncorrectAnswerDoesNotCredit(t *testing.T) {
	s := newTestSession(t, 15, 3)
	credited, err := s.RecordAnswer(false)
	require.NoError(t, err)
	assert.False(t, credited)
	assert.Equal(t, 0, s.Score)
	assert.True(t, s.Answered)
}

func TestQuizSession_FullRun(t *testing.T) {
	s := newTestSession(t, 15, 3)
	for i := 0; i < 3; i++ {
		id, done, err := s.Current()
		require.NoError(t, err)
		assert.False(t, done)
		assert.Equal(t, s.QuestionIDs[i], id)

		_, err = s.RecordAnswer(true)
		require.NoError(t, err)
		require.NoError(t, s.Advance())
	}
	assert.Equal(t, SessionComplete, s.State)
	assert.Equal(t, 3, s.Score)
	assert.Equal(t, 3, s.Index)

	_, done, err := s.Current()
	assert.NoError(t, err)
	assert.True(t, done)
	assert.NoError(t, s.Validate())
}

func TestQuizSession_RetryKeepsCredit(t *testing.T) {
	s := newTestSession(t, 15, 2)
	_, err := s.RecordAnswer(true)
	require.NoError(t, err)
	require.NoError(t, s.Retry())

	assert.Equal(t, 0, s.Index)
	assert.False(t, s.Answered)
	credited, err := s.RecordAnswer(true)
	require.NoError(t, err)
	assert.False(t, credited)
	assert.Equal(t, 1, s.Score)
}

func TestQuizSession_InvalidTransitions(t *testing.T) {
	t.Run("advance before submit", func(t *testing.T) {
		s := newTestSession(t, 15, 2)
		err := s.Advance()
		assert.True(t, IsCode(err, CodeInvalidSessionState))
		assert.Equal(t, 0, s.Index)
	})

	t.Run("operations after complete", func(t *testing.T) {
		s := newTestSession(t, 15, 1)
		_, _ = s.RecordAnswer(false)
		require.NoError(t, s.Advance())
		require.True(t, s.IsComplete())

		_, err := s.RecordAnswer(true)
		assert.True(t, IsCode(err, CodeInvalidSessionState))
		assert.True(t, IsCode(s.Advance(), CodeInvalidSessionState))
		assert.True(t, IsCode(s.Retry(), CodeInvalidSessionState))
		assert.Equal(t, 0, s.Score)
	})

	t.Run("not started", func(t *testing.T) {
		s := &QuizSession{QuestionIDs: []int64{1}, State: SessionNotStarted}
		_, _, err := s.Current()
		assert.True(t, IsCode(err, CodeInvalidSessionState))
		_, err = s.RecordAnswer(true)
		assert.True(t, IsCode(err, CodeInvalidSessionState))
	})

	t.Run("index out of range", func(t *testing.T) {
		s := newTestSession(t, 15, 2)
		s.Index = 5
		_, err := s.RecordAnswer(true)
		assert.True(t, IsCode(err, CodeInvalidSessionState))
	})
}

func TestQuizSession_Complete(t *testing.T) {
	s := newTestSession(t, 15, 3)
	s.Complete()
	assert.True(t, s.IsComplete())
	_, done, err := s.Current()
	assert.NoError(t, err)
	assert.True(t, done)
}

func TestQuizSession_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *QuizSession)
	}{
		{"no questions", func(s *QuizSession) { s.QuestionIDs = nil }},
		{"unknown state", func(s *QuizSession) { s.State = "paused" }},
		{"negative index", func(s *QuizSession) { s.Index = -1 }},
		{"index past end", func(s *QuizSession) { s.Index = 10 }},
		{"exhausted but in progress", func(s *QuizSession) { s.Index = 3 }},
		{"score without credit", func(s *QuizSession) { s.Score = 1 }},
		{"credited ahead of index", func(s *QuizSession) { s.Credited = []int{2}; s.Score = 1 }},
		{"credited repeated", func(s *QuizSession) { s.Index = 1; s.Credited = []int{0, 0}; s.Score = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, 15, 3)
			tt.mutate(s)
			assert.True(t, IsCode(s.Validate(), CodeInvalidSessionState))
		})
	}
}
