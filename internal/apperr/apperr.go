package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the driver can decide between abort and fallback.
type Kind string

const (
	KindConfig          Kind = "config"
	KindAuth            Kind = "auth"
	KindAPI             Kind = "api"
	KindCyclicHierarchy Kind = "cyclic_hierarchy"
	KindOutput          Kind = "output"
	KindInternal        Kind = "internal"
)

// Error carries the kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.Auth) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	Config          = &Error{Kind: KindConfig}
	Auth            = &Error{Kind: KindAuth}
	API             = &Error{Kind: KindAPI}
	CyclicHierarchy = &Error{Kind: KindCyclicHierarchy}
	Output          = &Error{Kind: KindOutput}
)

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ExitCode maps an error to the process exit status. nil is success.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindAuth:
		return 1
	case KindAPI:
		return 2
	case KindCyclicHierarchy:
		return 3
	case KindOutput:
		return 4
	case KindConfig:
		return 5
	default:
		return 1
	}
}
