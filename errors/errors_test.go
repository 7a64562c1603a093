package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeNotFound, "not found", http.StatusNotFound)
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Message != "not found" {
		t.Errorf("expected message 'not found', got %q", err.Message)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeTimeout, "timed out", http.StatusGatewayTimeout)
	if !err.Retryable {
		t.Error("TIMEOUT should be retryable")
	}
}

func TestAppError_NotFound_EmptyID(t *testing.T) {
	err := NotFound("user", "")
	if _, ok := err.Details["id"]; ok {
		t.Error("expected no 'id' key in details when id is empty")
	}
}

func TestAppError_OperatorFailure_Details(t *testing.T) {
	cause := fmt.Errorf("bad value")
	err := OperatorFailure("map", cause)
	if err.Code != ErrCodeOperatorFailure {
		t.Errorf("expected OPERATOR_FAILURE, got %s", err.Code)
	}
	if err.Details["operator"] != "map" {
		t.Errorf("expected operator=map, got %v", err.Details["operator"])
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected cause to be reachable with errors.Is")
	}
}

func TestAppError_CombinatorFailure_KeepsBranchError(t *testing.T) {
	branch := SourceFailure(fmt.Errorf("boom"))
	err := CombinatorFailure("zip", branch)
	if err.Details["combinator"] != "zip" {
		t.Errorf("expected combinator=zip, got %v", err.Details["combinator"])
	}
	var inner *AppError
	if !stderrors.As(err.Cause, &inner) || inner.Code != ErrCodeSourceFailure {
		t.Errorf("expected SOURCE_FAILURE cause, got %v", err.Cause)
	}
}

func TestAppError_WithCause_Chain(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NotFound("item", "1").WithCause(cause)
	if err.Cause != cause {
		t.Error("expected cause to be set via WithCause")
	}
	if !strings.Contains(err.Error(), "root cause") {
		t.Errorf("Error() should contain cause, got %q", err.Error())
	}
}

func TestAppError_WithDetails_Merge(t *testing.T) {
	err := NotFound("item", "1").WithDetails(map[string]any{"extra": "info"})
	if err.Details["extra"] != "info" {
		t.Errorf("expected extra=info in details")
	}
	if err.Details["resource"] != "item" {
		t.Error("expected original details to be preserved")
	}
}

func TestAppError_WithDetail_NilMap(t *testing.T) {
	err := &AppError{}
	err.WithDetail("key", "value")
	if err.Details["key"] != "value" {
		t.Errorf("expected key=value, got %v", err.Details["key"])
	}
}

func TestAppError_Constructors_Table(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      ErrorCode
		status    int
		retryable bool
	}{
		{"SourceFailure", SourceFailure(nil), ErrCodeSourceFailure, http.StatusBadGateway, false},
		{"OperatorFailure", OperatorFailure("filter", nil), ErrCodeOperatorFailure, http.StatusInternalServerError, false},
		{"CombinatorFailure", CombinatorFailure("merge", nil), ErrCodeCombinatorFailure, http.StatusBadGateway, false},
		{"Cancelled", Cancelled(nil), ErrCodeCancelled, 499, false},
		{"ServiceUnavailable", ServiceUnavailable("api"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable, true},
		{"Timeout", Timeout("query"), ErrCodeTimeout, http.StatusGatewayTimeout, true},
		{"MissingField", MissingField("name"), ErrCodeMissingField, http.StatusBadRequest, false},
		{"DatabaseError", DatabaseError(nil), ErrCodeDatabaseError, http.StatusInternalServerError, true},
		{"ExternalServiceError", ExternalServiceError("users", nil), ErrCodeExternalService, http.StatusBadGateway, true},
		{"Validation", Validation("bad input"), ErrCodeInvalidInput, http.StatusBadRequest, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, tc.err.Code)
			}
			if tc.err.HTTPStatus != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, tc.err.HTTPStatus)
			}
			if tc.err.Retryable != tc.retryable {
				t.Errorf("expected retryable=%v, got %v", tc.retryable, tc.err.Retryable)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", OperatorFailure("map", nil))
	if got := CodeOf(wrapped); got != ErrCodeOperatorFailure {
		t.Errorf("expected OPERATOR_FAILURE, got %q", got)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != "" {
		t.Errorf("expected empty code, got %q", got)
	}
	if HasCode(nil, ErrCodeInternal) {
		t.Error("nil error should carry no code")
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(Cancelled(nil)) {
		t.Error("expected CANCELLED to be a cancellation")
	}
	if !IsCancelled(fmt.Errorf("stop: %w", context.Canceled)) {
		t.Error("expected context.Canceled to be a cancellation")
	}
	if IsCancelled(SourceFailure(context.Canceled)) {
		t.Error("a classified failure is not a cancellation")
	}
	if IsCancelled(nil) {
		t.Error("nil is not a cancellation")
	}
}

func TestErrorCode_IsRetryableCode_Table(t *testing.T) {
	retryable := []ErrorCode{ErrCodeServiceUnavailable, ErrCodeTimeout, ErrCodeDatabaseError, ErrCodeExternalService}
	for _, code := range retryable {
		if !IsRetryableCode(code) {
			t.Errorf("expected %s to be retryable", code)
		}
	}

	nonRetryable := []ErrorCode{ErrCodeNotFound, ErrCodeInvalidInput, ErrCodeInternal, ErrCodeSourceFailure, ErrCodeCancelled}
	for _, code := range nonRetryable {
		if IsRetryableCode(code) {
			t.Errorf("expected %s to NOT be retryable", code)
		}
	}
}

func TestAppError_ToResponse_Success(t *testing.T) {
	err := NotFound("user", "42")
	resp := err.ToResponse()
	if resp.Error.Code != ErrCodeNotFound {
		t.Errorf("expected code NOT_FOUND in response, got %s", resp.Error.Code)
	}
	if resp.Error.Details["resource"] != "user" {
		t.Error("expected resource=user in response details")
	}
}

func TestAppError_AsAppError_Success(t *testing.T) {
	wrapped := fmt.Errorf("wrap: %w", Internal(nil))
	got, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AsAppError to succeed for wrapped AppError")
	}
	if got.Code != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %s", got.Code)
	}
	if IsAppError(fmt.Errorf("plain error")) {
		t.Error("expected IsAppError to return false for plain error")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}

	orig := NotFound("item", "1")
	if Wrap(orig) != orig {
		t.Error("Wrap should return the original AppError unchanged")
	}

	plain := fmt.Errorf("something broke")
	got := Wrap(plain)
	if got.Code != ErrCodeInternal || got.Cause != plain {
		t.Errorf("expected INTERNAL_ERROR wrapping the plain error, got %v", got)
	}

	if Wrap(context.Canceled).Code != ErrCodeCancelled {
		t.Error("expected context cancellation to map to CANCELLED")
	}
}
