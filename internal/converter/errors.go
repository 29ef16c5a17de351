package converter

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorCodeUnterminatedFence ErrorCode = "unterminated_fence"
	ErrorCodeMalformedStorage  ErrorCode = "malformed_storage"
	ErrorCodeEmptyInput        ErrorCode = "empty_input"
)

// Error reports structurally malformed source content. Unsupported but
// well-formed constructs never produce an Error; they degrade with a
// warning instead.
type Error struct {
	Code     ErrorCode
	Location string
	Message  string
	Err      error
}

func (err *Error) Error() string {
	if err == nil {
		return ""
	}

	message := err.Message
	if message == "" {
		message = "conversion failed"
	}
	if err.Location != "" {
		message = fmt.Sprintf("%s at %s", message, err.Location)
	}
	if err.Err == nil {
		return "conversion error: " + message
	}
	return fmt.Sprintf("conversion error: %s: %v", message, err.Err)
}

func (err *Error) Unwrap() error {
	if err == nil {
		return nil
	}
	return err.Err
}

func IsErrorCode(err error, code ErrorCode) bool {
	var convErr *Error
	if !errors.As(err, &convErr) {
		return false
	}
	return convErr.Code == code
}
