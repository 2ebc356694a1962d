// Package chaterr defines the recoverable error kinds shared by the model
// session, the request pipeline and the front-ends. None of them is fatal;
// callers inspect the kind to decide what to show and whether to retry.
package chaterr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	InvalidFileType   Kind = "invalid_file_type"
	LoadInProgress    Kind = "load_in_progress"
	ParseFailure      Kind = "parse_failure"
	ResourceExhausted Kind = "resource_exhausted"
	SessionNotReady   Kind = "session_not_ready"
	SessionBusy       Kind = "session_busy"
	EmptyInput        Kind = "empty_input"
	GenerationTimeout Kind = "generation_timeout"
	GenerationFailure Kind = "generation_failure"
	EngineUnavailable Kind = "engine_unavailable"
	ModelNotFound     Kind = "model_not_found"
)

// Error is a typed failure. Op names the operation that failed (e.g. "load").
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode maps the kind to an HTTP status for the API layer.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case InvalidFileType:
		return http.StatusUnsupportedMediaType
	case LoadInProgress, SessionNotReady:
		return http.StatusConflict
	case ParseFailure:
		return http.StatusUnprocessableEntity
	case ResourceExhausted:
		return http.StatusInsufficientStorage
	case SessionBusy:
		return http.StatusTooManyRequests
	case EmptyInput:
		return http.StatusBadRequest
	case GenerationTimeout:
		return http.StatusGatewayTimeout
	case GenerationFailure:
		return http.StatusBadGateway
	case EngineUnavailable:
		return http.StatusServiceUnavailable
	case ModelNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// New returns an error of the given kind.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap attaches a kind to err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool { return Is(err, SessionBusy) }

// IsModelNotFound reports whether err indicates an unknown catalog entry.
func IsModelNotFound(err error) bool { return Is(err, ModelNotFound) }

// IsDependencyUnavailable reports whether the inference engine is missing from this build.
func IsDependencyUnavailable(err error) bool { return Is(err, EngineUnavailable) }
