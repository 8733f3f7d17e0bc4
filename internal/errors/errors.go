// Package errors provides the error taxonomy shared by the router, the assistant and the HTTP surface.
// It defines error categories, error types, and error message generation.
package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/real-rm/linkup/internal/message"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryAuth represents authentication and authorization errors
	CategoryAuth ErrorCategory = "auth"
	// CategoryValidation represents input validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryService represents service-level errors (LLM, database)
	CategoryService ErrorCategory = "service"
	// CategoryRateLimit represents rate limiting errors
	CategoryRateLimit ErrorCategory = "rate_limit"
)

// ErrorCode represents specific error codes
type ErrorCode string

const (
	// Authentication errors
	ErrCodeInvalidToken      ErrorCode = "INVALID_TOKEN"
	ErrCodeExpiredToken      ErrorCode = "EXPIRED_TOKEN"
	ErrCodeInsufficientPerms ErrorCode = "INSUFFICIENT_PERMISSIONS"

	// Validation errors
	ErrCodeInvalidFormat  ErrorCode = "INVALID_FORMAT"
	ErrCodeMissingField   ErrorCode = "MISSING_FIELD"
	ErrCodeMessageTooLong ErrorCode = "MESSAGE_TOO_LONG"
	ErrCodeBlocked        ErrorCode = "BLOCKED"
	ErrCodeMaintenance    ErrorCode = "MAINTENANCE"
	ErrCodeNotOwner       ErrorCode = "NOT_OWNER"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeAIRestricted   ErrorCode = "AI_RESTRICTED"
	ErrCodeAIDisabled     ErrorCode = "AI_DISABLED"

	// Service errors
	ErrCodeLLMUnavailable ErrorCode = "LLM_UNAVAILABLE"
	ErrCodeDatabaseError  ErrorCode = "DATABASE_ERROR"
	ErrCodeServiceError   ErrorCode = "SERVICE_ERROR"

	// Rate limiting errors
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	ErrCodeConnectionLimit ErrorCode = "CONNECTION_LIMIT_EXCEEDED"
	ErrCodeQuotaExceeded   ErrorCode = "AI_QUOTA_EXCEEDED"
)

// ChatError represents an application error with category and recoverability information
type ChatError struct {
	Category    ErrorCategory
	Code        ErrorCode
	Message     string
	Recoverable bool
	RetryAfter  int // milliseconds, only for rate limit errors
	Cause       error
}

// Error implements the error interface
func (e *ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *ChatError) Unwrap() error {
	return e.Cause
}

// IsFatal returns true if the error is fatal and requires connection closure
func (e *ChatError) IsFatal() bool {
	return !e.Recoverable
}

// ToErrorInfo converts a ChatError to a message.ErrorInfo for wire protocol
func (e *ChatError) ToErrorInfo() *message.ErrorInfo {
	return &message.ErrorInfo{
		Code:        string(e.Code),
		Message:     e.Message,
		Recoverable: e.Recoverable,
		RetryAfter:  e.RetryAfter,
	}
}

// NewAuthError creates a new authentication error (fatal)
func NewAuthError(code ErrorCode, message string, cause error) *ChatError {
	return &ChatError{
		Category:    CategoryAuth,
		Code:        code,
		Message:     message,
		Recoverable: false, // Auth errors are fatal
		Cause:       cause,
	}
}

// NewValidationError creates a new validation error (recoverable)
func NewValidationError(code ErrorCode, message string, cause error) *ChatError {
	return &ChatError{
		Category:    CategoryValidation,
		Code:        code,
		Message:     message,
		Recoverable: true, // Validation errors are recoverable
		Cause:       cause,
	}
}

// NewServiceError creates a new service error (recoverable with retry)
func NewServiceError(code ErrorCode, message string, cause error) *ChatError {
	return &ChatError{
		Category:    CategoryService,
		Code:        code,
		Message:     message,
		Recoverable: true, // Service errors are recoverable
		Cause:       cause,
	}
}

// NewRateLimitError creates a new rate limit error (recoverable with retry after)
func NewRateLimitError(code ErrorCode, message string, retryAfter int, cause error) *ChatError {
	return &ChatError{
		Category:    CategoryRateLimit,
		Code:        code,
		Message:     message,
		Recoverable: true,
		RetryAfter:  retryAfter,
		Cause:       cause,
	}
}

// Common error constructors for convenience

// ErrInvalidToken creates an invalid token error
func ErrInvalidToken(cause error) *ChatError {
	return NewAuthError(ErrCodeInvalidToken, "Invalid authentication token", cause)
}

// ErrExpiredToken creates an expired token error
func ErrExpiredToken(cause error) *ChatError {
	return NewAuthError(ErrCodeExpiredToken, "Authentication token has expired", cause)
}

// ErrInsufficientPermissions creates an insufficient permissions error
func ErrInsufficientPermissions(cause error) *ChatError {
	return NewAuthError(ErrCodeInsufficientPerms, "Insufficient permissions for this operation", cause)
}

// ErrInvalidMessageFormat creates an invalid message format error
func ErrInvalidMessageFormat(details string, cause error) *ChatError {
	return NewValidationError(ErrCodeInvalidFormat, fmt.Sprintf("Invalid message format: %s", details), cause)
}

// ErrMissingField creates a missing field error
func ErrMissingField(fieldName string) *ChatError {
	return NewValidationError(ErrCodeMissingField, fmt.Sprintf("Required field missing: %s", fieldName), nil)
}

// ErrMessageTooLong rejects content longer than the runtime max_message_length.
func ErrMessageTooLong(maxLen int) *ChatError {
	return NewValidationError(ErrCodeMessageTooLong,
		fmt.Sprintf("Message exceeds the maximum length of %d characters", maxLen), nil)
}

// ErrBlockedBy is returned when the recipient of a direct message blocks the sender.
func ErrBlockedBy() *ChatError {
	return NewValidationError(ErrCodeBlocked, "You have been blocked.", nil)
}

// ErrBlocking is returned when the sender blocks the recipient of a direct message.
func ErrBlocking() *ChatError {
	return NewValidationError(ErrCodeBlocked, "You are blocking this user.", nil)
}

// ErrMaintenance rejects non-staff activity while maintenance mode is on.
func ErrMaintenance() *ChatError {
	return NewValidationError(ErrCodeMaintenance, "The system is under maintenance. Please try again later.", nil)
}

// ErrNotOwner rejects edits and recalls by anyone but the sender.
func ErrNotOwner() *ChatError {
	return NewValidationError(ErrCodeNotOwner, "Only the sender can change this message", nil)
}

// ErrNotFound reports a missing message, room or user.
func ErrNotFound(what string) *ChatError {
	return NewValidationError(ErrCodeNotFound, fmt.Sprintf("%s not found", what), nil)
}

// ErrAIDisabled is reported when the assistant is switched off globally.
func ErrAIDisabled() *ChatError {
	return NewValidationError(ErrCodeAIDisabled, "The AI assistant is currently disabled.", nil)
}

// ErrAIUserRestricted is reported when the requesting user may not use the assistant.
func ErrAIUserRestricted() *ChatError {
	return NewValidationError(ErrCodeAIRestricted, "Your access to the AI assistant has been restricted.", nil)
}

// ErrAIRoomRestricted is reported when the room may not use the assistant.
func ErrAIRoomRestricted() *ChatError {
	return NewValidationError(ErrCodeAIRestricted, "The AI assistant is disabled in this room.", nil)
}

// ErrUserQuotaExceeded reports an exhausted per-user daily quota.
func ErrUserQuotaExceeded(used, limit int) *ChatError {
	return NewRateLimitError(ErrCodeQuotaExceeded,
		fmt.Sprintf("You've used all AI calls today (%d/%d).", used, limit), 0, nil)
}

// ErrRoomQuotaExceeded reports an exhausted per-room daily quota.
func ErrRoomQuotaExceeded(used, limit int) *ChatError {
	return NewRateLimitError(ErrCodeQuotaExceeded,
		fmt.Sprintf("This room has used all AI calls today (%d/%d).", used, limit), 0, nil)
}

// ErrLLMUnavailable creates an LLM unavailable error
func ErrLLMUnavailable(cause error) *ChatError {
	return NewServiceError(ErrCodeLLMUnavailable, "AI service is temporarily unavailable", cause)
}

// ErrDatabaseError creates a database error
func ErrDatabaseError(cause error) *ChatError {
	return NewServiceError(ErrCodeDatabaseError, "Database operation failed", cause)
}

// ErrTooManyRequests creates a too many requests error
func ErrTooManyRequests(retryAfter int) *ChatError {
	return NewRateLimitError(ErrCodeTooManyRequests,
		"Too many requests, please slow down", retryAfter, nil)
}

// ErrConnectionLimitExceeded creates a connection limit exceeded error
func ErrConnectionLimitExceeded(retryAfter int) *ChatError {
	return NewRateLimitError(ErrCodeConnectionLimit,
		"Connection limit exceeded, please try again later", retryAfter, nil)
}

// As extracts a *ChatError from err's chain.
func As(err error) (*ChatError, bool) {
	var ce *ChatError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsClientError reports whether err should be reported to the actor as-is
// rather than counted as an unexpected handler failure.
func IsClientError(err error) bool {
	ce, ok := As(err)
	if !ok {
		return false
	}
	return ce.Category == CategoryValidation || ce.Category == CategoryRateLimit
}
