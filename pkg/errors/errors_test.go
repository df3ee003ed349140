package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medikart/medikart-backend/pkg/errors"
)

func TestInsufficientStock(t *testing.T) {
	err := errors.InsufficientStock("Paracetamol 500mg", 5, 10)

	assert.Equal(t, "INSUFFICIENT_STOCK", err.Code)
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Contains(t, err.Message, "Paracetamol 500mg")
	assert.Contains(t, err.Message, "available 5")
	assert.Contains(t, err.Message, "requested 10")
	assert.Equal(t, "5", err.Details["available"])

	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
	assert.False(t, errors.IsNotFound(err))
}

func TestNotFound(t *testing.T) {
	err := errors.NotFound("batch")

	assert.Equal(t, "batch not found", err.Message)
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.True(t, errors.IsNotFound(err))

	wrapped := fmt.Errorf("loading sale: %w", err)
	assert.True(t, errors.IsNotFound(wrapped))
}

func TestAppError_Unwrap(t *testing.T) {
	base := errors.BadRequest("invalid promo code")
	wrapped := errors.Wrap(base, "CHECKOUT_FAILED", "checkout failed", http.StatusBadRequest)

	var appErr *errors.AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.True(t, errors.Is(wrapped, errors.ErrBadRequest))
}
