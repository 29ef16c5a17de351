package confluence

import (
	"errors"
	"fmt"

	"github.com/fbain/confluence-markdown-sync/internal/contracts"
	"github.com/fbain/confluence-markdown-sync/internal/httpclient"
)

type ErrorCode string

const (
	ErrorCodeInvalidInput     ErrorCode = "invalid_input"
	ErrorCodeRequestEncode    ErrorCode = "request_encode_failed"
	ErrorCodeRequestBuild     ErrorCode = "request_build_failed"
	ErrorCodeTransport        ErrorCode = "transport_error"
	ErrorCodeAuthFailed       ErrorCode = "auth_failed"
	ErrorCodeNotFound         ErrorCode = "page_not_found"
	ErrorCodeVersionConflict  ErrorCode = "version_conflict"
	ErrorCodeUnexpectedStatus ErrorCode = "unexpected_status"
	ErrorCodeResponseDecode   ErrorCode = "response_decode_failed"
)

type Error struct {
	Code       ErrorCode
	Kind       contracts.FailureKind
	StatusCode int
	Message    string
	Err        error
	redactor   httpclient.Redactor
}

func (err *Error) Error() string {
	if err == nil {
		return ""
	}

	base := err.Message
	if base == "" {
		base = "confluence operation failed"
	}
	if err.Err == nil {
		return err.redactor.Redact(base)
	}
	return err.redactor.Redact(fmt.Sprintf("%s: %v", base, err.Err))
}

func (err *Error) Unwrap() error {
	if err == nil {
		return nil
	}
	return err.Err
}

func IsErrorCode(err error, code ErrorCode) bool {
	var confErr *Error
	if !errors.As(err, &confErr) {
		return false
	}
	return confErr.Code == code
}

// FailureKindFor maps a transport error to the failure kind recorded in
// per-document results. Non-confluence errors count as API failures.
func FailureKindFor(err error) contracts.FailureKind {
	var confErr *Error
	if errors.As(err, &confErr) && confErr.Kind != "" {
		return confErr.Kind
	}
	return contracts.FailureKindAPI
}
