package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies failures of remote generation calls.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindProtocol
	KindValidation
	KindAuthentication
	KindRemoteTask
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindRemoteTask:
		return "remote_task"
	default:
		return "unknown"
	}
}

// Error is a classified failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind and the failing operation.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// authMarkers are lower-case fragments remote services use when a credential is rejected.
var authMarkers = []string{
	"invalid api key",
	"authentication failed",
	"unauthorized",
	"api key not valid",
	"invalid_api_key",
}

// Classify maps any error to a kind. Credential rejection is recognised by
// message content first, so wrapped transport errors that carry an
// authentication message are still reported as authentication failures.
// Unrecognised errors are treated as transport failures.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindTransport
	}
	msg := strings.ToLower(err.Error())
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return KindAuthentication
		}
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransport
}

// IsTimeout reports whether err is a request-level timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// KindForStatus maps an unsuccessful HTTP status code to an error kind.
func KindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuthentication
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code/100 == 5:
		return KindTransport
	default:
		return KindProtocol
	}
}
