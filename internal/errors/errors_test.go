package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	apperror "laststock/internal/errors"
)

func TestMapToHTTPStatus(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		category string
	}{
		{apperror.NewValidationError("x"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{apperror.NewReferenceNotFoundError("x"), http.StatusBadRequest, "REFERENCE_NOT_FOUND"},
		{apperror.NewNotFoundError("x"), http.StatusNotFound, "NOT_FOUND"},
		{apperror.NewQuantityRuleError(apperror.CodeOverRelease, "x", 3, 1), http.StatusUnprocessableEntity, apperror.CodeOverRelease},
		{apperror.NewInvalidStateError("x"), http.StatusConflict, "INVALID_STATE"},
		{apperror.NewSequenceExhaustedError("x"), http.StatusConflict, "SEQUENCE_EXHAUSTED"},
		{apperror.NewConcurrencyError("x"), http.StatusPreconditionFailed, "CONCURRENCY_CONFLICT"},
		{apperror.NewPreconditionRequiredError("x"), http.StatusPreconditionRequired, "PRECONDITION_REQUIRED"},
		{apperror.NewUnauthorizedError("x"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{apperror.NewForbiddenError("x"), http.StatusForbidden, "FORBIDDEN"},
		{fmt.Errorf("envolto: %w", apperror.NewNotFoundError("x")), http.StatusNotFound, "NOT_FOUND"},
		{stderrors.New("cru"), http.StatusInternalServerError, "UNKNOWN_ERROR"},
	}

	for _, tt := range tests {
		status, category, _ := apperror.MapToHTTPStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.category)
		assert.Equal(t, tt.category, category)
	}
}

func TestMapToHTTPStatus_HidesInternalDetails(t *testing.T) {
	err := apperror.NewDBError("falha ao salvar", stderrors.New("pq: connection refused"))

	status, category, msg := apperror.MapToHTTPStatus(err)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", category)
	assert.NotContains(t, msg, "pq:")
}

func TestPassthrough(t *testing.T) {
	notFound := apperror.NewNotFoundError("pedido 9")
	assert.Same(t, notFound, apperror.Passthrough("ignorado", notFound))

	wrapped := apperror.Passthrough("falha no repositório", stderrors.New("boom"))
	assert.True(t, apperror.IsCategory(wrapped, "INTERNAL_ERROR"))

	assert.NoError(t, apperror.Passthrough("nada", nil))
}
