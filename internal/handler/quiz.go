package handler

import (
	"quiz-sense/internal/domain"
	"quiz-sense/internal/dto"
	"quiz-sense/internal/middleware"
	"quiz-sense/internal/service"

	"github.com/gofiber/fiber/v2"
)

// QuizHandler handles quiz-related HTTP requests
type QuizHandler struct {
	service service.QuizService
}

// NewQuizHandler creates a new QuizHandler instance
func NewQuizHandler(service service.QuizService) *QuizHandler {
	return &QuizHandler{
		service: service,
	}
}

// ListTopics godoc
// @Summary List quiz topics
// @Description Returns every topic with the number of questions available
// @Tags quiz
// @Produce json
// @Success 200 {object} dto.TopicsResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /topics [get]
func (h *QuizHandler) ListTopics(c *fiber.Ctx) error {
	topics, err := h.service.ListTopics(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(topics)
}

// Options godoc
// @Summary List evaluation options
// @Description Returns the embedding models and similarity metrics a quiz can use
// @Tags quiz
// @Produce json
// @Success 200 {object} dto.OptionsResponse
// @Router /options [get]
func (h *QuizHandler) Options(c *fiber.Ctx) error {
	return c.JSON(h.service.Options())
}

// StartQuiz godoc
// @Summary Start a quiz
// @Description Picks questions from a topic and returns a session token for the following calls
// @Tags quiz
// @Accept json
// @Produce json
// @Param request body dto.StartQuizRequest true "Quiz settings"
// @Success 201 {object} dto.StartQuizResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /quiz/start [post]
func (h *QuizHandler) StartQuiz(c *fiber.Ctx) error {
	req, ok := c.Locals(middleware.ValidatedStartRequestKey).(*dto.StartQuizRequest)
	if !ok {
		return domain.NewInvalidInputError("missing start request")
	}

	resp, err := h.service.Start(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// CurrentQuestion godoc
// @Summary Get the current question
// @Description Returns the session summary with the current question, or no question once the quiz is complete
// @Tags quiz
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.SessionResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /quiz/current [get]
func (h *QuizHandler) CurrentQuestion(c *fiber.Ctx) error {
	resp, err := h.service.Current(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// SubmitAnswer godoc
// @Summary Submit an answer
// @Description Scores the answer against the current question; a question earns at most one point
// @Tags quiz
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body dto.SubmitAnswerRequest true "Answer"
// @Success 200 {object} dto.SubmitAnswerResponse
// @Failure 400 {object} middleware.ValidationErrorResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /quiz/submit [post]
func (h *QuizHandler) SubmitAnswer(c *fiber.Ctx) error {
	req, ok := c.Locals(middleware.ValidatedSubmitRequestKey).(*dto.SubmitAnswerRequest)
	if !ok {
		return domain.NewInvalidInputError("missing answer request")
	}

	resp, err := h.service.Submit(c.UserContext(), middleware.SessionID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// NextQuestion godoc
// @Summary Advance to the next question
// @Tags quiz
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.SessionResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /quiz/next [post]
func (h *QuizHandler) NextQuestion(c *fiber.Ctx) error {
	resp, err := h.service.Advance(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// RetryQuestion godoc
// @Summary Retry the current question
// @Description Allows another answer to the current question without crediting it twice
// @Tags quiz
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.SessionResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /quiz/retry [post]
func (h *QuizHandler) RetryQuestion(c *fiber.Ctx) error {
	resp, err := h.service.Retry(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// FinishQuiz godoc
// @Summary Finish the quiz
// @Description Returns the final score and clears the session
// @Tags quiz
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.FinishQuizResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /quiz/finish [post]
func (h *QuizHandler) FinishQuiz(c *fiber.Ctx) error {
	resp, err := h.service.Finish(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
