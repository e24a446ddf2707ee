package client

import (
	"errors"
	"fmt"
)

// Kind classifies a failed API call
type Kind int

const (
	// KindNetwork means the request never got a response
	KindNetwork Kind = iota + 1
	// KindServer is a 5xx response
	KindServer
	// KindNotFound is a 404 response
	KindNotFound
	// KindRejected is any other 4xx response, such as a business rule refusal
	KindRejected
	// KindDecode means the response body could not be decoded
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindNotFound:
		return "not_found"
	case KindRejected:
		return "rejected"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is returned by every Client method that fails after building the request
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("%s: %s (%d): %s", e.Op, e.Kind, e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (%d)", e.Op, e.Kind, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether re-invoking the same action may succeed
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindServer
}

// IsKind reports whether err is a client Error of the given kind
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// DetailOf returns the server supplied detail of err, if any
func DetailOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

func kindForStatus(status int) Kind {
	switch {
	case status == 404:
		return KindNotFound
	case status >= 500:
		return KindServer
	default:
		return KindRejected
	}
}
