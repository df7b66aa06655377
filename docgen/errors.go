package docgen

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines pipeline error kinds.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindTimeout    ErrorKind = "timeout"
	KindCanceled   ErrorKind = "canceled"
	KindInternal   ErrorKind = "internal"
	KindNotImpl    ErrorKind = "not_implemented"

	// KindEngineUnavailable means no rendering tier could supply an engine.
	KindEngineUnavailable ErrorKind = "engine_unavailable"
	// KindRenderEngine means a resolved engine failed during conversion.
	KindRenderEngine ErrorKind = "render_engine"
	// KindPackagingUnavailable means no archive capability is configured.
	KindPackagingUnavailable ErrorKind = "packaging_unavailable"
	// KindEngineLoad is a single tier failure. The resolver recovers from it.
	KindEngineLoad ErrorKind = "engine_load"
)

// Error wraps errors with a kind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new pipeline error.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// AsGoError maps an error into a go-errors error.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	kind := KindInternal
	msg := err.Error()

	var docErr *Error
	if errors.As(err, &docErr) {
		kind = docErr.Kind
		if docErr.Msg != "" {
			msg = docErr.Msg
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		kind = KindCanceled
	}

	switch kind {
	case KindValidation:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("validation")
	case KindNotFound:
		return errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode("not_found")
	case KindTimeout:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("timeout")
	case KindCanceled:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("canceled")
	case KindNotImpl:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("not_implemented")
	case KindEngineUnavailable:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("engine_unavailable")
	case KindPackagingUnavailable:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("packaging_unavailable")
	case KindRenderEngine:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("render_engine")
	case KindEngineLoad:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("engine_load")
	default:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("internal")
	}
}

// KindFromError maps an error to its kind.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var docErr *Error
	if errors.As(err, &docErr) {
		return docErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	return KindInternal
}

// IsEngineUnavailable reports whether err signals that every engine tier failed.
func IsEngineUnavailable(err error) bool {
	return KindFromError(err) == KindEngineUnavailable
}

// IsRenderEngine reports whether err signals a conversion failure.
func IsRenderEngine(err error) bool {
	return KindFromError(err) == KindRenderEngine
}

// IsPackagingUnavailable reports whether err signals a missing archive capability.
func IsPackagingUnavailable(err error) bool {
	return KindFromError(err) == KindPackagingUnavailable
}
