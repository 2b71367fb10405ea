package handler

import (
	"quiz-sense/internal/middleware"
	"quiz-sense/internal/service"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the quiz API under /api and the health check at /health.
func RegisterRoutes(app *fiber.App, quiz *QuizHandler, health *HealthHandler, tokens service.SessionTokenService, validation *middleware.ValidationMiddleware) {
	app.Get("/health", health.Health)

	apiGroup := app.Group("/api")
	apiGroup.Get("/topics", quiz.ListTopics)
	apiGroup.Get("/options", quiz.Options)

	quizGroup := apiGroup.Group("/quiz")
	quizGroup.Post("/start", validation.ValidateStartQuiz(), quiz.StartQuiz)

	session := middleware.RequireSession(tokens)
	quizGroup.Get("/current", session, quiz.CurrentQuestion)
	quizGroup.Post("/submit", session, validation.ValidateSubmitAnswer(), quiz.SubmitAnswer)
	quizGroup.Post("/next", session, quiz.NextQuestion)
	quizGroup.Post("/retry", session, quiz.RetryQuestion)
	quizGroup.Post("/finish", session, quiz.FinishQuiz)
}
