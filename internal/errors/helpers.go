package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// NewInvalidStateError creates an error for content mutation of a
// non-pending message
func NewInvalidStateError(id string, status string) *AppError {
	return New(ErrCodeInvalidState, fmt.Sprintf("message is %s and can no longer be edited", status)).
		WithContext("message_id", id).
		WithContext("status", status).
		WithUserMessage("Message can no longer be edited")
}

// NewInvalidTransitionError creates an error for a status change attempted
// from a terminal state
func NewInvalidTransitionError(id string, from, to string) *AppError {
	return New(ErrCodeInvalidTransition, fmt.Sprintf("cannot transition message from %s to %s", from, to)).
		WithContext("message_id", id).
		WithContext("from", from).
		WithContext("to", to)
}

// NewStoreError creates a store error with operation context
func NewStoreError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStoreUnavailable, fmt.Sprintf("store %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Storage operation failed")
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewRetryableDeliveryError creates a delivery error that leaves the message
// pending for a later cycle
func NewRetryableDeliveryError(reason string, err error) *AppError {
	return WrapRetryable(err, ErrCodeDeliveryRetryable, reason).
		WithUserMessage("Delivery will be retried")
}

// NewPermanentDeliveryError creates a delivery error that fails the message
func NewPermanentDeliveryError(reason string, err error) *AppError {
	return Wrap(err, ErrCodeDeliveryPermanent, reason).
		WithUserMessage("Delivery failed")
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(operation string, duration string) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", operation, duration)).
		WithContext("operation", operation).
		WithContext("timeout", duration).
		WithUserMessage("Operation timed out, please try again")
}

// HTTP helpers

// HTTPStatusCode maps error codes to appropriate HTTP status codes
func HTTPStatusCode(err error) int {
	code := GetCode(err)

	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidConfig:
		return 400 // Bad Request
	case ErrCodeNotFound:
		return 404 // Not Found
	case ErrCodeInvalidState, ErrCodeInvalidTransition:
		return 409 // Conflict
	case ErrCodeTimeout:
		return 408 // Request Timeout
	case ErrCodeDeliveryRetryable:
		return 502 // Bad Gateway
	case ErrCodeStoreUnavailable:
		return 503 // Service Unavailable
	default:
		return 500 // Internal Server Error
	}
}

// HTTPErrorResponse is a standardized HTTP error body
type HTTPErrorResponse struct {
	Error struct {
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Context interface{} `json:"context,omitempty"`
	} `json:"error"`
}

// ToHTTPResponse converts an error to a standardized HTTP response
func ToHTTPResponse(err error) HTTPErrorResponse {
	var response HTTPErrorResponse

	if appErr, ok := err.(*AppError); ok {
		response.Error.Code = appErr.Code
		response.Error.Message = GetUserMessage(err)
		if len(appErr.Context) > 0 {
			response.Error.Context = appErr.Context
		}
	} else {
		response.Error.Code = ErrCodeInternalError
		response.Error.Message = GetUserMessage(err)
	}

	return response
}
