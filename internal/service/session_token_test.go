package service

import (
	"testing"
	"time"

	"quiz-sense/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenService(t *testing.T) {
	const id = "01ARZ3NDEKTSV4RRFFQ69G5FAV"

	t.Run("round trip", func(t *testing.T) {
		svc, err := NewSessionTokenService("secret", time.Hour)
		require.NoError(t, err)

		token, expiresAt, err := svc.Issue(id)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

		got, err := svc.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("empty secret", func(t *testing.T) {
		_, err := NewSessionTokenService("", time.Hour)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		a, _ := NewSessionTokenService("secret-a", time.Hour)
		b, _ := NewSessionTokenService("secret-b", time.Hour)
		token, _, err := a.Issue(id)
		require.NoError(t, err)

		_, err = b.Verify(token)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidSessionState))
	})

	t.Run("expired", func(t *testing.T) {
		svc, _ := NewSessionTokenService("secret", time.Minute)
		impl := svc.(*sessionTokenService)
		impl.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := svc.Issue(id)
		require.NoError(t, err)

		impl.now = time.Now
		_, err = svc.Verify(token)
		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidSessionState))
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("subject is not a session id", func(t *testing.T) {
		svc, _ := NewSessionTokenService("secret", time.Hour)
		token, _, err := svc.Issue("../../etc")
		require.NoError(t, err)
		_, err = svc.Verify(token)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidSessionState))
	})

	t.Run("none algorithm is rejected", func(t *testing.T) {
		svc, _ := NewSessionTokenService("secret", time.Hour)
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: id, Issuer: "quiz-sense"})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.Verify(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		svc, _ := NewSessionTokenService("secret", time.Hour)
		_, err := svc.Verify("not.a.token")
		assert.True(t, domain.IsCode(err, domain.CodeInvalidSessionState))
	})
}
