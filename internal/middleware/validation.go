package middleware

import (
	"quiz-sense/internal/domain"
	"quiz-sense/internal/dto"
	"quiz-sense/internal/validation"

	"github.com/gofiber/fiber/v2"
)

const (
	ValidatedStartRequestKey  = "validated_start_request"
	ValidatedSubmitRequestKey = "validated_submit_request"
)

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware(validator *validation.Validator) *ValidationMiddleware {
	return &ValidationMiddleware{validator: validator}
}

// ValidateStartQuiz parses and validates the start request body.
func (vm *ValidationMiddleware) ValidateStartQuiz() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req dto.StartQuizRequest
		if err := c.BodyParser(&req); err != nil {
			return domain.NewInvalidInputError("request body is not valid JSON")
		}

		if errors := vm.validator.ValidateStartQuizRequest(&req); len(errors) > 0 {
			return errors // This will be handled by ErrorHandler middleware
		}

		c.Locals(ValidatedStartRequestKey, &req)
		return c.Next()
	}
}

// ValidateSubmitAnswer parses and validates the answer body.
func (vm *ValidationMiddleware) ValidateSubmitAnswer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req dto.SubmitAnswerRequest
		if err := c.BodyParser(&req); err != nil {
			return domain.NewInvalidInputError("request body is not valid JSON")
		}

		if errors := vm.validator.ValidateSubmitAnswerRequest(&req); len(errors) > 0 {
			return errors
		}

		c.Locals(ValidatedSubmitRequestKey, &req)
		return c.Next()
	}
}
