package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error categories. Every domain error wraps exactly one of these.
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicateEntry indicates a unique constraint violation
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates forbidden access
	ErrForbidden = errors.New("forbidden")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal server error")
)

// Error codes for API responses
const (
	CodeNotFound                 = "NOT_FOUND"
	CodeDuplicateEntry           = "DUPLICATE_ENTRY"
	CodeInvalidInput             = "INVALID_INPUT"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeForbidden                = "FORBIDDEN"
	CodeInternalError            = "INTERNAL_ERROR"
	CodeInvalidRequest           = "INVALID_REQUEST"
	CodeInvalidSignature         = "INVALID_SIGNATURE"
	CodeHostMismatch             = "HOST_MISMATCH"
	CodeTimestampOutOfRange      = "TIMESTAMP_OUT_OF_RANGE"
	CodeTooManyAttachments       = "TOO_MANY_ATTACHMENTS"
	CodeAttachmentMismatch       = "ATTACHMENT_MISMATCH"
	CodeAttachmentTooLarge       = "ATTACHMENT_TOO_LARGE"
	CodeAttachmentTypeNotAllowed = "ATTACHMENT_TYPE_NOT_ALLOWED"
	CodeAttachmentMalformed      = "ATTACHMENT_MALFORMED"
	CodeAttachmentDimensions     = "ATTACHMENT_DIMENSIONS"
	CodeInvalidCursor            = "INVALID_CURSOR"
	CodeInvalidLimit             = "INVALID_LIMIT"
	CodeInvalidAuthor            = "INVALID_AUTHOR"
)

// Domain errors. The Message of each is the stable reason shown to clients.
var (
	ErrMalformedRequest    = NewAppError(ErrInvalidInput, "Invalid request", CodeInvalidRequest)
	ErrInvalidSignature    = NewAppError(ErrInvalidInput, "Invalid signature", CodeInvalidSignature)
	ErrHostMismatch        = NewAppError(ErrInvalidInput, "Host mismatch", CodeHostMismatch)
	ErrTimestampOutOfRange = NewAppError(ErrInvalidInput, "Timestamp out of range", CodeTimestampOutOfRange)

	ErrTooManyAttachments       = NewAppError(ErrInvalidInput, "Too many attachments", CodeTooManyAttachments)
	ErrAttachmentMismatch       = NewAppError(ErrInvalidInput, "Attachment mismatch", CodeAttachmentMismatch)
	ErrAttachmentTooLarge       = NewAppError(ErrInvalidInput, "Attachment size exceeds maximum allowed size", CodeAttachmentTooLarge)
	ErrAttachmentTypeNotAllowed = NewAppError(ErrInvalidInput, "Attachment type is not allowed", CodeAttachmentTypeNotAllowed)
	ErrAttachmentMalformed      = NewAppError(ErrInvalidInput, "Attachment is malformed", CodeAttachmentMalformed)
	ErrAttachmentDimensions     = NewAppError(ErrInvalidInput, "Attachment dimensions exceed maximum allowed size", CodeAttachmentDimensions)

	ErrInvalidCursor    = NewAppError(ErrInvalidInput, "Invalid cursor", CodeInvalidCursor)
	ErrInvalidLimit     = NewAppError(ErrInvalidInput, "Limit must be at least 1", CodeInvalidLimit)
	ErrInvalidAuthor    = NewAppError(ErrInvalidInput, "Invalid author format", CodeInvalidAuthor)
	ErrInvalidAuthorKey = NewAppError(ErrInvalidInput, "Invalid author public key", CodeInvalidAuthor)

	ErrPostAlreadyExists = NewAppError(ErrDuplicateEntry, "Post already exists", CodeDuplicateEntry)

	ErrPostNotFound       = NewAppError(ErrNotFound, "Post not found", CodeNotFound)
	ErrAttachmentNotFound = NewAppError(ErrNotFound, "Attachment not found", CodeNotFound)
)

// AppError represents an application error with context
type AppError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(err error, message string, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateEntry checks if the error is a duplicate entry error
func IsDuplicateEntry(err error) bool {
	return errors.Is(err, ErrDuplicateEntry)
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInternal reports whether err falls outside every client-facing category.
func IsInternal(err error) bool {
	return !IsNotFound(err) && !IsDuplicateEntry(err) && !IsInvalidInput(err) &&
		!errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrForbidden)
}

// GetErrorCode returns the appropriate error code for an error. A specific
// AppError code wins over the category code.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" && !IsInternal(err) {
		return appErr.Code
	}

	switch {
	case IsNotFound(err):
		return CodeNotFound
	case IsDuplicateEntry(err):
		return CodeDuplicateEntry
	case IsInvalidInput(err):
		return CodeInvalidInput
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	default:
		return CodeInternalError
	}
}

// HTTPStatus maps an error to its transport status by category.
func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsDuplicateEntry(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text safe to show a client. Internal errors
// collapse to a fixed string.
func PublicMessage(err error) string {
	if IsInternal(err) {
		return ErrInternal.Error()
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
