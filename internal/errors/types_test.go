package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := New(ErrCodeNotFound, "message not found")
	assert.Equal(t, "NOT_FOUND: message not found", err.Error())

	wrapped := Wrap(errors.New("disk full"), ErrCodeStoreUnavailable, "insert failed")
	assert.Equal(t, "STORE_UNAVAILABLE: insert failed: disk full", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(cause, ErrCodeInternalError, "something broke")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, fmt.Errorf("outer: %w", err), cause)
}

func TestAppError_Context(t *testing.T) {
	err := New(ErrCodeValidationFailed, "bad input").
		WithContext("field", "text").
		WithContext("length", 1200)

	assert.Equal(t, "text", err.Context["field"])
	assert.Equal(t, 1200, err.Context["length"])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(WrapRetryable(errors.New("x"), ErrCodeDeliveryRetryable, "try later")))
	assert.False(t, IsRetryable(New(ErrCodeDeliveryPermanent, "rejected")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, GetCode(New(ErrCodeNotFound, "gone")))
	assert.Equal(t, ErrCodeInternalError, GetCode(errors.New("plain")))
	assert.True(t, HasCode(New(ErrCodeTimeout, "slow"), ErrCodeTimeout))
	assert.False(t, HasCode(errors.New("plain"), ErrCodeTimeout))
}

func TestGetUserMessage(t *testing.T) {
	err := New(ErrCodeValidationFailed, "internal detail").WithUserMessage("Please check your input")
	assert.Equal(t, "Please check your input", GetUserMessage(err))
	assert.Equal(t, "An internal error occurred", GetUserMessage(errors.New("raw sql error")))
}

func TestHelpers(t *testing.T) {
	validation := NewValidationError("text", "message text is required")
	assert.Equal(t, ErrCodeValidationFailed, validation.Code)
	assert.Equal(t, "text", validation.Context["field"])

	notFound := NewNotFoundError("message", "msg-1")
	assert.Equal(t, ErrCodeNotFound, notFound.Code)
	assert.Equal(t, "msg-1", notFound.Context["identifier"])

	state := NewInvalidStateError("msg-1", "sent")
	assert.Equal(t, ErrCodeInvalidState, state.Code)
	assert.Contains(t, state.Message, "sent")

	transition := NewInvalidTransitionError("msg-1", "failed", "sent")
	assert.Equal(t, ErrCodeInvalidTransition, transition.Code)
	assert.Contains(t, transition.Message, "from failed to sent")

	store := NewStoreError("insert", errors.New("locked"))
	assert.Equal(t, ErrCodeStoreUnavailable, store.Code)
	assert.ErrorContains(t, store, "locked")

	retryable := NewRetryableDeliveryError("gateway 503", nil)
	assert.True(t, retryable.Retryable)

	permanent := NewPermanentDeliveryError("gateway 400", nil)
	assert.False(t, permanent.Retryable)
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{NewValidationError("text", "required"), 400},
		{NewConfigError("port", "invalid"), 400},
		{NewNotFoundError("message", "msg-1"), 404},
		{NewInvalidStateError("msg-1", "sent"), 409},
		{NewInvalidTransitionError("msg-1", "sent", "failed"), 409},
		{NewTimeoutError("sync", "30s"), 408},
		{NewRetryableDeliveryError("gateway down", nil), 502},
		{NewStoreError("query", errors.New("locked")), 503},
		{errors.New("plain"), 500},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, HTTPStatusCode(tt.err), "error: %v", tt.err)
	}
}

func TestToHTTPResponse(t *testing.T) {
	resp := ToHTTPResponse(NewValidationError("text", "too long"))
	assert.Equal(t, ErrCodeValidationFailed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "text")
	require.NotNil(t, resp.Error.Context)

	// Raw errors never leak their message to the client.
	resp = ToHTTPResponse(errors.New("sqlite: disk I/O error at offset 4096"))
	assert.Equal(t, ErrCodeInternalError, resp.Error.Code)
	assert.Equal(t, "An internal error occurred", resp.Error.Message)
}
