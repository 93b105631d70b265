package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eth-reserves/internal/types"
)

type stubProviderErr struct {
	provider    string
	timeout     bool
	rateLimited bool
}

func (e *stubProviderErr) Error() string        { return e.provider + " failed" }
func (e *stubProviderErr) ProviderName() string { return e.provider }
func (e *stubProviderErr) Timeout() bool        { return e.timeout }
func (e *stubProviderErr) RateLimited() bool    { return e.rateLimited }

func TestCategorize_WrappedCategorizedError(t *testing.T) {
	base := NewNotFoundError("company", "c-1")
	wrapped := fmt.Errorf("record purchase: %w", base)

	got := Categorize(wrapped)
	assert.Same(t, base, got)
	assert.Equal(t, http.StatusNotFound, got.StatusCode)
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, got.Internal())
}

func TestCategorize_ServiceError(t *testing.T) {
	err := &types.ServiceError{Code: "COMPANY_NOT_FOUND", Message: "missing"}
	assert.Equal(t, http.StatusNotFound, Categorize(err).StatusCode)

	err = &types.ServiceError{Code: "INVALID_ADDRESS", Message: "bad"}
	assert.Equal(t, CategoryValidation, Categorize(err).Category)

	err = &types.ServiceError{Code: "SOMETHING_ELSE", Message: "?"}
	assert.Equal(t, http.StatusInternalServerError, Categorize(err).StatusCode)
}

func TestCategorize_PlainError(t *testing.T) {
	got := Categorize(fmt.Errorf("boom"))
	assert.Equal(t, CategorySystem, got.Category)
	assert.True(t, got.Internal())
	assert.Nil(t, Categorize(nil))
}

func TestCategorize_ProviderFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"generic", &stubProviderErr{provider: "fmp"}, "PROVIDER_ERROR", http.StatusBadGateway},
		{"timeout", &stubProviderErr{provider: "fmp", timeout: true}, "PROVIDER_TIMEOUT", http.StatusGatewayTimeout},
		{"rate limited", &stubProviderErr{provider: "coingecko", rateLimited: true}, "PROVIDER_RATE_LIMIT", http.StatusServiceUnavailable},
		{"wrapped", fmt.Errorf("enrich: %w", &stubProviderErr{provider: "fmp"}), "PROVIDER_ERROR", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Categorize(tt.err)
			assert.Equal(t, CategoryProvider, got.Category)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.ErrorIs(t, got, tt.err)
			assert.False(t, got.Internal())
		})
	}
}

func TestCategorize_DeadlineExceeded(t *testing.T) {
	got := Categorize(fmt.Errorf("daily run: %w", context.DeadlineExceeded))
	assert.Equal(t, "TIMEOUT", got.Code)
	assert.Equal(t, http.StatusGatewayTimeout, got.StatusCode)
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("invalid purchase", map[string]string{"amount": "must be greater than 0"})

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "must be greater than 0", err.Details["amount"])
	assert.True(t, IsValidation(fmt.Errorf("wrap: %w", err)))
}

func TestDatabaseAndConflictErrors(t *testing.T) {
	dbErr := NewDatabaseError("create company", context.Canceled)
	assert.True(t, dbErr.Internal())
	assert.ErrorIs(t, dbErr, context.Canceled)
	assert.Equal(t, "create company", dbErr.Details["operation"])

	conflict := NewConflictError("DUPLICATE_WALLET", "wallet already registered")
	assert.Equal(t, http.StatusConflict, Categorize(fmt.Errorf("add wallet: %w", conflict)).StatusCode)
	assert.Equal(t, "DUPLICATE_WALLET", conflict.Code)

	limited := NewRateLimitError(60)
	assert.Equal(t, http.StatusTooManyRequests, limited.StatusCode)
	assert.Equal(t, 60, limited.Details["retryAfter"])
}
