// Package apperr defines the error taxonomy surfaced over HTTP. Packages
// return their own sentinel errors; the HTTP edge classifies them with From.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a category of failure with a fixed HTTP mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindUpstream
	KindUpstreamUnreachable
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindUpstreamUnreachable:
		return "upstream_unreachable"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

// Status returns the HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	case KindUpstreamUnreachable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Code is a stable machine-readable label,
// Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status for the error.
func (e *Error) Status() int { return e.Kind.Status() }

// New returns a classified error.
func New(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Validation returns a 400 error.
func Validation(code, message string) *Error {
	return New(KindValidation, code, message, nil)
}

// Classifier maps a package error to a classified error. It returns nil when
// err is not one it recognizes.
type Classifier func(err error) *Error

// From classifies err. An *Error anywhere in the chain is returned as is;
// otherwise each classifier is tried in order and the first match wins.
// Anything unrecognized is an internal error.
func From(err error, classifiers ...Classifier) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	for _, c := range classifiers {
		if ae := c(err); ae != nil {
			return ae
		}
	}
	return New(KindInternal, "INTERNAL_ERROR", "An unexpected error occurred", err)
}
