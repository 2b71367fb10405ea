package middleware

import (
	"strings"

	"quiz-sense/internal/domain"
	"quiz-sense/internal/logger"
	"quiz-sense/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	AuthorizationHeader = "Authorization"
	SessionHeader       = "X-Quiz-Session"
	BearerSchema        = "Bearer "
	SessionIDKey        = "sessionID" // Key for storing the quiz session id in fiber.Ctx locals
)

// RequireSession rejects requests without a valid session token and stores the
// session id it names under SessionIDKey.
func RequireSession(tokens service.SessionTokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := sessionToken(c)
		if token == "" {
			return domain.NewUnauthorizedError("session token is missing")
		}

		sessionID, err := tokens.Verify(token)
		if err != nil {
			logger.Get().Debug("Session token rejected", zap.Error(err))
			return err
		}

		c.Locals(SessionIDKey, sessionID)
		return c.Next()
	}
}

// SessionID returns the id stored by RequireSession.
func SessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(SessionIDKey).(string)
	return id
}

func sessionToken(c *fiber.Ctx) string {
	if authHeader := c.Get(AuthorizationHeader); strings.HasPrefix(authHeader, BearerSchema) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, BearerSchema))
	}
	return strings.TrimSpace(c.Get(SessionHeader))
}
