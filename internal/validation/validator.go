package validation

import (
	"strings"
	"unicode/utf8"

	"quiz-sense/internal/domain"
	"quiz-sense/internal/dto"
)

// MaxAnswerLength bounds a submitted answer in characters.
const MaxAnswerLength = 2000

// Validator provides request validation functionality
type Validator struct {
	maxCount int
}

// NewValidator creates a new validator instance. maxCount is reported as the
// upper bound of the count range.
func NewValidator(maxCount int) *Validator {
	return &Validator{maxCount: maxCount}
}

// ValidateStartQuizRequest checks the request shape. Topic, model and metric
// names are resolved by the quiz service against its registries.
func (v *Validator) ValidateStartQuizRequest(req *dto.StartQuizRequest) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if strings.TrimSpace(req.Topic) == "" {
		errors = append(errors, domain.NewMissingFieldError("topic"))
	}

	// Zero selects the configured default count. The upper bound depends on
	// the topic's pool and is enforced by the quiz service.
	if req.Count < 0 {
		errors = append(errors, domain.NewOutOfRangeError("count", req.Count, 1, v.maxCount))
	}

	return errors
}

// ValidateSubmitAnswerRequest only bounds the answer length; an empty answer is
// a legitimate (wrong) submission.
func (v *Validator) ValidateSubmitAnswerRequest(req *dto.SubmitAnswerRequest) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if n := utf8.RuneCountInString(req.Answer); n > MaxAnswerLength {
		errors = append(errors, domain.NewOutOfRangeError("answer", n, 0, MaxAnswerLength))
	}

	return errors
}
