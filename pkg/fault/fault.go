// Package fault defines the error classes shared across the portal:
// validation failures rejected before I/O, transient infrastructure
// failures eligible for retry, terminal infrastructure failures that
// must never be retried, and per-record parse failures that skip a
// single audit record without failing its batch.
package fault

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/aws/smithy-go"
)

// ValidationError reports malformed request parameters. It is raised
// before any I/O and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for the named request field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransientError wraps a failure that is expected to succeed on retry:
// timeouts, throttling, 5xx-class responses, connection resets.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// TerminalError wraps a failure that retrying cannot fix, such as a
// permission or authentication problem.
type TerminalError struct {
	Op  string
	Err error
}

func (e *TerminalError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TerminalError) Unwrap() error { return e.Err }

// MalformedEventError marks a single unparsable raw audit record. The
// record is logged and skipped; the batch continues.
type MalformedEventError struct {
	EventName string
	Err       error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed %s record: %v", e.EventName, e.Err)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried. API errors are
// classified by code; network errors by timeout/reset inspection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	var terminal *TerminalError
	if errors.As(err, &terminal) {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "Throttling", "TooManyRequestsException",
			"RequestTimeout", "RequestTimeoutException", "SlowDown",
			"InternalError", "InternalFailure", "ServiceUnavailable", "503":
			return true
		case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation",
			"InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return false
		}
		return apiErr.ErrorFault() == smithy.FaultServer
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "broken pipe")
}

// Classify wraps err as transient or terminal under the given operation
// name, preserving the original chain.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return &TransientError{Op: op, Err: err}
	}
	return &TerminalError{Op: op, Err: err}
}
