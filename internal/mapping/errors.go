package mapping

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorCodeNotFound         ErrorCode = "not_found"
	ErrorCodeDuplicatePage    ErrorCode = "duplicate_page"
	ErrorCodePageIDImmutable  ErrorCode = "page_id_immutable"
	ErrorCodeInvalidEntry     ErrorCode = "invalid_entry"
	ErrorCodeInvalidDocument  ErrorCode = "invalid_document"
	ErrorCodeVersionUnsupported ErrorCode = "version_unsupported"
)

// Error is the typed error for mapping-store operations.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (err *Error) Error() string {
	if err == nil {
		return ""
	}

	message := err.Message
	if message == "" {
		message = "mapping store operation failed"
	}
	if err.Err == nil {
		return "mapping error: " + message
	}
	return fmt.Sprintf("mapping error: %s: %v", message, err.Err)
}

func (err *Error) Unwrap() error {
	if err == nil {
		return nil
	}
	return err.Err
}

func IsErrorCode(err error, code ErrorCode) bool {
	var mapErr *Error
	if !errors.As(err, &mapErr) {
		return false
	}
	return mapErr.Code == code
}
