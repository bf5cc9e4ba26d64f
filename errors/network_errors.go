package errors

import (
	"net/http"

	"github.com/mezonai/rollupstate/jsonx"
)

// NetworkErrorCode represents standardized error codes for API responses
type NetworkErrorCode string

const (
	// General errors
	ErrCodeInternal NetworkErrorCode = "internal_error"

	// Validation errors
	ErrCodeInvalidRequest   NetworkErrorCode = "invalid_request"
	ErrCodeInvalidAddress   NetworkErrorCode = "invalid_address"
	ErrCodeInvalidAccountID NetworkErrorCode = "invalid_account_id"

	// State errors
	ErrCodeAccountNotFound  NetworkErrorCode = "account_not_found"
	ErrCodeStateUnavailable NetworkErrorCode = "state_unavailable"

	ErrCodeRateLimited NetworkErrorCode = "rate_limited"
)

// NetworkError represents a standardized network error
type NetworkError struct {
	Code    NetworkErrorCode `json:"code"`
	Message string           `json:"message"`
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	err, _ := jsonx.Marshal(NetworkError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(err)
}

// HTTPStatus maps the error code onto a response status
func (e *NetworkError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeInvalidRequest, ErrCodeInvalidAddress, ErrCodeInvalidAccountID:
		return http.StatusBadRequest
	case ErrCodeAccountNotFound:
		return http.StatusNotFound
	case ErrCodeStateUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error message constants - user-friendly and concise
const (
	ErrMsgInvalidRequest   = "Request format is invalid"
	ErrMsgInvalidAddress   = "Account address is invalid"
	ErrMsgInvalidAccountID = "Account id is invalid"
	ErrMsgAccountNotFound  = "Account does not exist"
	ErrMsgStateUnavailable = "State is not restored yet"
	ErrMsgRateLimited      = "Too many requests, please slow down"
	ErrMsgInternal         = "Server error, please try again"
)

// NewError creates a new NetworkError and returns it as error interface
func NewError(code NetworkErrorCode, message string) error {
	return &NetworkError{
		Code:    code,
		Message: message,
	}
}
