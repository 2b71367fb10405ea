package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quiz-sense/internal/cache"
	"quiz-sense/internal/domain"
	"quiz-sense/internal/logger"

	"go.uber.org/zap"
)

// CacheSessionStore keeps quiz sessions as JSON values in the cache, one key
// per session id, so concurrent sessions never share state.
type CacheSessionStore struct {
	cache domain.Cache
	ttl   time.Duration
}

// NewCacheSessionStore creates a session store. ttl <= 0 keeps sessions until cleared.
func NewCacheSessionStore(c domain.Cache, ttl time.Duration) *CacheSessionStore {
	if ttl < 0 {
		ttl = 0
	}
	return &CacheSessionStore{cache: c, ttl: ttl}
}

// Load returns domain.ErrSessionNotFound when nothing usable is stored. A value
// that no longer decodes is deleted and reported as not found.
func (s *CacheSessionStore) Load(ctx context.Context, sessionID string) (*domain.QuizSession, error) {
	key := cache.SessionKey(sessionID)
	raw, err := s.cache.Get(ctx, key)
	if errors.Is(err, domain.ErrCacheMiss) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quiz session: %w", err)
	}

	var session domain.QuizSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		logger.Get().Warn("Discarding undecodable quiz session",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		if delErr := s.cache.Delete(ctx, key); delErr != nil {
			logger.Get().Error("Failed to delete undecodable quiz session", zap.String("sessionID", sessionID), zap.Error(delErr))
		}
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

// Save overwrites the stored session and refreshes its TTL.
func (s *CacheSessionStore) Save(ctx context.Context, sessionID string, session *domain.QuizSession) error {
	if session == nil {
		return fmt.Errorf("cannot save a nil quiz session")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode quiz session: %w", err)
	}
	if err := s.cache.Set(ctx, cache.SessionKey(sessionID), string(data), s.ttl); err != nil {
		return fmt.Errorf("failed to save quiz session: %w", err)
	}
	return nil
}

// Clear removes the session. Clearing an absent session is not an error.
func (s *CacheSessionStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.cache.Delete(ctx, cache.SessionKey(sessionID)); err != nil {
		return fmt.Errorf("failed to clear quiz session: %w", err)
	}
	return nil
}

var _ domain.SessionStore = (*CacheSessionStore)(nil)
