package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Dosada05/trivia-duel/cache"
	"github.com/Dosada05/trivia-duel/repositories"
	"github.com/stretchr/testify/assert"
)

func TestTranslateStoreErr(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
		code string
	}{
		{"session missing", cache.ErrSessionNotFound, ErrSessionNotFound, CodeNotFound},
		{"cas exhausted", fmt.Errorf("%w: match 1", cache.ErrConflict), ErrConcurrencyConflict, CodeConcurrencyConflict},
		{"status raced", repositories.ErrMatchStatusConflict, ErrConcurrencyConflict, CodeConcurrencyConflict},
		{"duplicate answer row", repositories.ErrAnswerDuplicate, ErrDuplicateAnswer, CodeConcurrencyConflict},
		{"match missing", repositories.ErrMatchNotFound, ErrMatchNotFound, CodeNotFound},
		{"participation missing", repositories.ErrParticipationNotFound, ErrNotParticipant, CodeForbidden},
		{"redis down", fmt.Errorf("%w: dial tcp", cache.ErrUnavailable), ErrStoreUnavailable, CodeStoreUnavailable},
		{"driver error", errors.New("pq: connection refused"), ErrStoreUnavailable, CodeStoreUnavailable},
		{"service error kept", fmt.Errorf("%w: match 3", ErrInvalidState), ErrInvalidState, CodeInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateStoreErr(tt.in)
			assert.ErrorIs(t, got, tt.want)
			assert.Equal(t, tt.code, ErrorCode(got))
		})
	}
	assert.NoError(t, translateStoreErr(nil))
}

func TestErrorCodeSpecificBeforeGeneral(t *testing.T) {
	assert.Equal(t, CodeQuestionNotInMatch, ErrorCode(fmt.Errorf("%w: q 7", ErrQuestionNotInMatch)))
	assert.Equal(t, CodeValidation, ErrorCode(ErrValidationFailed))
	assert.Equal(t, CodeExhausted, ErrorCode(ErrQuestionsExhausted))
	assert.Equal(t, CodeInternal, ErrorCode(errors.New("boom")))
	assert.Empty(t, ErrorCode(nil))
}
