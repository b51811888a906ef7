package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// The prefix of each code determines its ErrorKind.
const (
	// Validation
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidPath  ErrorCode = "validation_invalid_path"
	ErrCodeValidationManifest     ErrorCode = "validation_invalid_manifest"

	// Retrieval (object store)
	ErrCodeRetrievalNotFound       ErrorCode = "retrieval_not_found"
	ErrCodeRetrievalBucketNotFound ErrorCode = "retrieval_bucket_not_found"
	ErrCodeRetrievalAccessDenied   ErrorCode = "retrieval_access_denied"
	ErrCodeRetrievalTooLarge       ErrorCode = "retrieval_object_too_large"
	ErrCodeRetrievalUnavailable    ErrorCode = "retrieval_unavailable"
	ErrCodeRetrievalFailed         ErrorCode = "retrieval_failed"

	// Decryption (key service)
	ErrCodeDecryptionInvalidCiphertext ErrorCode = "decryption_invalid_ciphertext"
	ErrCodeDecryptionFailed            ErrorCode = "decryption_failed"

	// Encryption is only used by the upload path and shares the decryption kind.
	ErrCodeEncryptionFailed ErrorCode = "decryption_encrypt_failed"

	// Parse
	ErrCodeParseInvalidDocument ErrorCode = "parse_invalid_document"
	ErrCodeParseUnsupportedType ErrorCode = "parse_unsupported_value_type"
	ErrCodeParseMissingKey      ErrorCode = "parse_missing_key"

	// IO (local filesystem)
	ErrCodeIOWrite  ErrorCode = "io_write_failed"
	ErrCodeIORead   ErrorCode = "io_read_failed"
	ErrCodeIODelete ErrorCode = "io_delete_failed"

	// Internal
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// ErrorKind is the coarse failure category a caller branches on.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindRetrieval  ErrorKind = "retrieval"
	KindDecryption ErrorKind = "decryption"
	KindParse      ErrorKind = "parse"
	KindIO         ErrorKind = "io"
	KindInternal   ErrorKind = "internal"
)

// Kind maps an ErrorCode to its ErrorKind using the code prefix.
// Returns KindInternal for unrecognized codes.
func (c ErrorCode) Kind() ErrorKind {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return KindValidation
	case strings.HasPrefix(s, "retrieval_"):
		return KindRetrieval
	case strings.HasPrefix(s, "decryption_"):
		return KindDecryption
	case strings.HasPrefix(s, "parse_"):
		return KindParse
	case strings.HasPrefix(s, "io_"):
		return KindIO
	default:
		return KindInternal
	}
}

// ExitCode maps an ErrorKind to a process exit status.
func (k ErrorKind) ExitCode() int {
	switch k {
	case KindValidation:
		return 2
	case KindRetrieval:
		return 3
	case KindDecryption:
		return 4
	case KindParse:
		return 5
	case KindIO:
		return 6
	default:
		return 1
	}
}

// AppError is the standard application error type.
// All domain errors should be expressed as AppError so callers can classify
// failures with KindOf instead of matching on message text.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind returns the ErrorKind of this error's code.
func (e *AppError) Kind() ErrorKind {
	return e.Code.Kind()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// KindOf returns the ErrorKind of the first AppError found in err's chain.
// Joined errors are searched in order. A nil error has no kind and returns "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind()
	}
	return KindInternal
}

// IsKind reports whether any AppError in err's chain (including every branch of
// a joined error) has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind() == kind {
		return true
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if IsKind(e, kind) {
				return true
			}
		}
	}
	if wrapped := errors.Unwrap(err); wrapped != nil {
		return IsKind(wrapped, kind)
	}
	return false
}

// CodeOf returns the ErrorCode of the first AppError in err's chain, or
// ErrCodeInternalUnexpected if there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}
