package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationOutOfRange,
		Message: "minutes must be between 1 and 1440",
	}

	expected := "validation_out_of_range: minutes must be between 1 and 1440"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("database connection failed")
	appErr := NewAppError(ErrCodeInternalDB, "failed to query readings", underlying)

	if !errors.Is(appErr, underlying) {
		t.Error("errors.Is should find the underlying error through Unwrap")
	}

	wrapped := fmt.Errorf("handler failed: %w", appErr)
	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find AppError in the chain")
	}
	if target.Code != ErrCodeInternalDB {
		t.Errorf("extracted Code = %q, want %q", target.Code, ErrCodeInternalDB)
	}
}

func TestAppErrorWithDetails(t *testing.T) {
	original := NewAppErrorWithDetails(
		ErrCodeValidationOutOfRange,
		"out of range",
		nil,
		map[string]any{"field": "minutes", "value": 0},
	)

	enhanced := original.WithDetails(map[string]any{"value": 5000, "max": 1440})

	if _, ok := original.Details["max"]; ok {
		t.Error("WithDetails should not mutate the original error")
	}
	if enhanced.Details["field"] != "minutes" {
		t.Errorf("field = %v, want minutes", enhanced.Details["field"])
	}
	if enhanced.Details["value"] != 5000 {
		t.Errorf("value = %v, want 5000", enhanced.Details["value"])
	}
	if enhanced.Code != original.Code || enhanced.Message != original.Message {
		t.Error("Code and Message should carry over")
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationOutOfRange, http.StatusBadRequest},
		{ErrCodeValidationInvalidParam, http.StatusBadRequest},
		{ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{ErrCodeAuthTokenMissing, http.StatusUnauthorized},
		{ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{ErrCodeNotFoundHistoricalData, http.StatusNotFound},
		{ErrCodeNotFoundGarageData, http.StatusNotFound},
		{ErrCodeNotFoundForecast, http.StatusNotFound},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusBadGateway},
		{ErrCodeUpstreamParse, http.StatusBadGateway},
		{ErrCodeUnavailableDependency, http.StatusServiceUnavailable},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeInternalCache, http.StatusInternalServerError},
		{ErrCodeInternalQueue, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewNoHistoricalDataError(t *testing.T) {
	err := NewNoHistoricalDataError("north-garage", 14)

	if err.Code != ErrCodeNotFoundHistoricalData {
		t.Errorf("Code = %q, want %q", err.Code, ErrCodeNotFoundHistoricalData)
	}
	if err.Details["garage_id"] != "north-garage" {
		t.Errorf("garage_id detail = %v", err.Details["garage_id"])
	}
	if err.HTTPStatus() != http.StatusNotFound {
		t.Errorf("HTTPStatus() = %d, want 404", err.HTTPStatus())
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewAppError(ErrCodeNotFoundForecast, "missing", nil))

	if !IsCode(err, ErrCodeNotFoundForecast) {
		t.Error("IsCode should match a wrapped AppError")
	}
	if IsCode(err, ErrCodeInternalDB) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(errors.New("plain"), ErrCodeInternalDB) {
		t.Error("IsCode should be false for non-AppErrors")
	}
}
