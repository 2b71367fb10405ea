package service

import (
	"errors"
	"fmt"
	"time"

	"quiz-sense/internal/domain"
	"quiz-sense/internal/util"

	"github.com/golang-jwt/jwt/v5"
)

const sessionTokenIssuer = "quiz-sense"

// SessionTokenService binds a client to its quiz session. The token subject is
// the session id; the session itself lives in the session store.
type SessionTokenService interface {
	Issue(sessionID string) (token string, expiresAt time.Time, err error)
	// Verify returns the session id carried by token.
	Verify(token string) (string, error)
}

type sessionTokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionTokenService creates an HS256 token service.
func NewSessionTokenService(secret string, ttl time.Duration) (SessionTokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("session token secret cannot be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &sessionTokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *sessionTokenService) Issue(sessionID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    sessionTokenIssuer,
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *sessionTokenService) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(sessionTokenIssuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		reason := "invalid session token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "session token expired"
		}
		return "", domain.NewError(domain.CodeInvalidSessionState, domain.RestartQuizMessage, fmt.Errorf("%s: %w", reason, err))
	}
	if !util.IsULID(claims.Subject) {
		return "", domain.NewInvalidSessionStateError("session token has no valid session id")
	}
	return claims.Subject, nil
}
