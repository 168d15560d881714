package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"empresa-sync/internal/identity"
	"empresa-sync/internal/store"
)

func TestAppError(t *testing.T) {
	cause := stderrors.New("socket closed")
	err := NewAppError(ErrorTypeConnection, "connection lost", cause)

	assert.Contains(t, err.Error(), "connection")
	assert.Contains(t, err.Error(), "socket closed")
	assert.Equal(t, cause, err.Unwrap())
	assert.False(t, err.IsRecoverable())

	err.WithContext("table", "empresas")
	assert.Equal(t, "empresas", err.Context["table"])

	err.UserMessage = "Check your network connection"
	assert.Equal(t, "Check your network connection", err.GetUserMessage())
}

func TestClassifyError_StoreAPIStatusCodes(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		message     string
		expected    ErrorType
		recoverable bool
	}{
		{"rate limited", http.StatusTooManyRequests, "slow down", ErrorTypeRateLimit, true},
		{"unauthorized", http.StatusUnauthorized, "bad key", ErrorTypePermission, false},
		{"forbidden", http.StatusForbidden, "no access", ErrorTypePermission, false},
		{"conflict", http.StatusConflict, "conflicting row", ErrorTypeDuplicate, false},
		{"not found", http.StatusNotFound, "no such table", ErrorTypeValidation, false},
		{"gateway timeout", http.StatusGatewayTimeout, "upstream slow", ErrorTypeTimeout, true},
		{"server error", http.StatusInternalServerError, "boom", ErrorTypeAPI, true},
		{"other", http.StatusBadRequest, "bad filter", ErrorTypeAPI, false},
	}

	classifier := NewErrorClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &store.APIError{StatusCode: tt.status, Message: tt.message}

			classified := classifier.ClassifyError(err)
			require.NotNil(t, classified)
			assert.Equal(t, tt.expected, classified.Type)
			assert.Equal(t, tt.recoverable, classified.IsRecoverable())
			assert.Equal(t, tt.status, classified.Context["status_code"])
		})
	}
}

func TestClassifyError_DuplicateByMessage(t *testing.T) {
	classifier := NewErrorClassifier()

	err := &identity.APIError{
		StatusCode: http.StatusBadRequest,
		Message:    "A user with this email address has already been registered",
	}
	assert.Equal(t, ErrorTypeDuplicate, classifier.ClassifyError(err).Type)
}

func TestClassifyError_WrappedAPIError(t *testing.T) {
	classifier := NewErrorClassifier()

	inner := &store.APIError{StatusCode: http.StatusTooManyRequests, Message: "rate limit"}
	wrapped := fmt.Errorf("failed to write chunk 2 of empresas: %w", inner)

	classified := classifier.ClassifyError(wrapped)
	assert.Equal(t, ErrorTypeRateLimit, classified.Type)
	assert.True(t, classified.IsRecoverable())
}

func TestClassifyError_Context(t *testing.T) {
	classifier := NewErrorClassifier()

	assert.Equal(t, ErrorTypeTimeout, classifier.ClassifyError(context.DeadlineExceeded).Type)
	assert.Equal(t, ErrorTypeInterruption, classifier.ClassifyError(context.Canceled).Type)
}

func TestClassifyError_ByMessageText(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		message  string
		expected ErrorType
	}{
		{"duplicate key value violates unique constraint", ErrorTypeDuplicate},
		{"too many requests from this client", ErrorTypeRateLimit},
		{"request timed out after 30s", ErrorTypeTimeout},
		{"dial tcp: connection refused", ErrorTypeConnection},
		{"something inexplicable happened", ErrorTypeUnknown},
	}

	for _, tt := range tests {
		classified := classifier.ClassifyError(stderrors.New(tt.message))
		assert.Equal(t, tt.expected, classified.Type, tt.message)
	}
}

func TestClassifyError_PassesThroughAppError(t *testing.T) {
	classifier := NewErrorClassifier()

	original := NewAppError(ErrorTypePermission, "denied", nil)
	assert.Same(t, original, classifier.ClassifyError(original))
}

func TestIsDuplicateMessage(t *testing.T) {
	assert.True(t, IsDuplicateMessage("User already registered"))
	assert.True(t, IsDuplicateMessage("email has already been registered"))
	assert.True(t, IsDuplicateMessage("row already exists"))
	assert.True(t, IsDuplicateMessage("DUPLICATE key"))
	assert.False(t, IsDuplicateMessage("internal server error"))
	assert.False(t, IsDuplicateMessage(""))
}

func TestIsDuplicateErrorAndIsRetryableError(t *testing.T) {
	dup := &identity.APIError{Message: "user already registered"}
	assert.True(t, IsDuplicateError(dup))
	assert.False(t, IsRetryableError(dup))

	rate := &store.APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}
	assert.False(t, IsDuplicateError(rate))
	assert.True(t, IsRetryableError(rate))

	assert.False(t, IsDuplicateError(nil))
	assert.False(t, IsRetryableError(nil))
}

func TestRetryHandler_SucceedsAfterRecoverableFailures(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2.0,
	})

	attempts := 0
	err := handler.Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &store.APIError{StatusCode: http.StatusServiceUnavailable, Message: "unavailable"}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryHandler_StopsOnUnrecoverableError(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2.0,
	})

	attempts := 0
	err := handler.Retry(context.Background(), func() error {
		attempts++
		return &store.APIError{StatusCode: http.StatusUnauthorized, Message: "bad key"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, ErrorTypePermission, GetErrorType(err))
}

func TestRetryHandler_ExhaustsAttempts(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2.0,
	})

	attempts := 0
	err := handler.Retry(context.Background(), func() error {
		attempts++
		return &store.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 3, appErr.Context["attempts"])
}

func TestRetryHandler_CanceledContext(t *testing.T) {
	handler := NewDefaultRetryHandler()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := handler.Retry(ctx, func() error {
		t.Fatal("operation should not run after cancellation")
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, ErrorTypeInterruption, GetErrorType(err))
}

func TestFormatUserError(t *testing.T) {
	assert.Empty(t, FormatUserError(nil))

	appErr := NewAppError(ErrorTypeConnection, "dial failed", nil)
	appErr.UserMessage = "Could not reach the data store"
	assert.Equal(t, "Could not reach the data store", FormatUserError(appErr))

	// Plain errors get classified before formatting, so a recognizable
	// status code maps to its friendly message.
	rateLimited := &store.APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}
	assert.Contains(t, FormatUserError(rateLimited), "rate limited")

	// Unclassifiable errors fall back to their own text.
	assert.Equal(t, "raw", FormatUserError(stderrors.New("raw")))
}

func TestIsRetryableMessage(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"Too Many Requests", true},
		{"429 rate limit exceeded", true},
		{"request timed out", true},
		{"upstream returned 503", true},
		{"invalid email address", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryableMessage(tt.message), tt.message)
	}
}

func TestGracefulShutdownHandler_RunsFuncsInReverseOrder(t *testing.T) {
	handler := NewGracefulShutdownHandler()

	var order []int
	handler.RegisterShutdownFunc(func() error {
		order = append(order, 1)
		return nil
	})
	handler.RegisterShutdownFunc(func() error {
		order = append(order, 2)
		return nil
	})

	handler.Start()
	handler.signalChan <- syscall.SIGINT
	handler.WaitForShutdown()
	handler.Stop()

	assert.Equal(t, []int{2, 1}, order)
}

func TestCreateContextWithTimeout(t *testing.T) {
	ctx, cancel := CreateContextWithTimeout(time.Minute)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestCreateContextWithCancel(t *testing.T) {
	ctx, cancel := CreateContextWithCancel()
	require.NoError(t, ctx.Err())

	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))

	inner := NewAppError(ErrorTypeTimeout, "slow", nil)
	wrapped := WrapError(inner, "snapshot upload failed")

	var appErr *AppError
	require.ErrorAs(t, wrapped, &appErr)
	assert.Equal(t, ErrorTypeTimeout, appErr.Type)
	assert.Equal(t, "snapshot upload failed", appErr.Message)
}
