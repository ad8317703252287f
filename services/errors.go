package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/trivia-duel/cache"
	"github.com/Dosada05/trivia-duel/repositories"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrNotFound = errors.New("requested resource not found")

	ErrMatchNotFound   = errors.New("match not found")
	ErrSessionNotFound = errors.New("live session not found or expired")

	ErrInvalidState        = errors.New("operation not allowed in current match state")
	ErrValidationFailed    = errors.New("validation failed")
	ErrQuestionNotInMatch  = fmt.Errorf("%w: question is not part of this match", ErrValidationFailed)
	ErrInsufficientContent = errors.New("not enough questions for subject")
	ErrQuestionsExhausted  = errors.New("no questions left in this match")

	ErrAlreadyQueued = errors.New("user is already queued or in a match")
	ErrNotQueued     = errors.New("user is not queued")

	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	ErrDuplicateAnswer     = errors.New("question already answered by user")

	ErrNotParticipant     = errors.New("user is not a participant of this match")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	ErrStoreUnavailable = errors.New("storage temporarily unavailable")
)

// Коды для конверта ответа.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidState        = "INVALID_STATE"
	CodeValidation          = "VALIDATION_ERROR"
	CodeQuestionNotInMatch  = "QUESTION_NOT_IN_MATCH"
	CodeInsufficientContent = "INSUFFICIENT_CONTENT"
	CodeExhausted           = "QUESTIONS_EXHAUSTED"
	CodeAlreadyQueued       = "ALREADY_QUEUED"
	CodeNotQueued           = "NOT_QUEUED"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeForbidden           = "FORBIDDEN"
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// ErrorCode classifies err into the taxonomy code exposed to clients.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrQuestionNotInMatch):
		return CodeQuestionNotInMatch
	case errors.Is(err, ErrQuestionsExhausted):
		return CodeExhausted
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrMatchNotFound), errors.Is(err, ErrSessionNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrValidationFailed):
		return CodeValidation
	case errors.Is(err, ErrInsufficientContent):
		return CodeInsufficientContent
	case errors.Is(err, ErrAlreadyQueued):
		return CodeAlreadyQueued
	case errors.Is(err, ErrNotQueued):
		return CodeNotQueued
	case errors.Is(err, ErrConcurrencyConflict), errors.Is(err, ErrDuplicateAnswer):
		return CodeConcurrencyConflict
	case errors.Is(err, ErrNotParticipant), errors.Is(err, ErrForbiddenOperation):
		return CodeForbidden
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	default:
		return CodeInternal
	}
}

// translateStoreErr maps cache and repository errors onto the service taxonomy.
func translateStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case isServiceErr(err):
		return err
	case errors.Is(err, cache.ErrSessionNotFound):
		return fmt.Errorf("%w: %w", ErrSessionNotFound, err)
	case errors.Is(err, cache.ErrConflict), errors.Is(err, repositories.ErrMatchStatusConflict):
		return fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
	case errors.Is(err, repositories.ErrAnswerDuplicate):
		return fmt.Errorf("%w: %w", ErrDuplicateAnswer, err)
	case errors.Is(err, repositories.ErrMatchNotFound):
		return fmt.Errorf("%w: %w", ErrMatchNotFound, err)
	case errors.Is(err, repositories.ErrParticipationNotFound):
		return fmt.Errorf("%w: %w", ErrNotParticipant, err)
	default:
		// cache.ErrUnavailable, models.ErrSessionSchema, ошибки драйвера
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

func isServiceErr(err error) bool {
	return ErrorCode(err) != CodeInternal
}
