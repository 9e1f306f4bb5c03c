package predict

import "errors"

// Kind classifies pipeline failures.
type Kind string

const (
	KindInvalidInput        Kind = "INVALID_INPUT"
	KindArtifactLoad        Kind = "ARTIFACT_LOAD_FAILURE"
	KindInternalConsistency Kind = "INTERNAL_CONSISTENCY_FAILURE"
	KindUnhandled           Kind = "UNHANDLED_FAILURE"
)

// Error is the error type returned by the loader and the pipeline. Message is
// safe to show to callers; Err carries the internal cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func invalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func artifactLoad(msg string, err error) *Error {
	return &Error{Kind: KindArtifactLoad, Message: msg, Err: err}
}

func internalConsistency(msg string, err error) *Error {
	return &Error{Kind: KindInternalConsistency, Message: msg, Err: err}
}

func unhandled(msg string, err error) *Error {
	return &Error{Kind: KindUnhandled, Message: msg, Err: err}
}

// KindOf reports the Kind of err. Errors not produced by this package are
// KindUnhandled.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnhandled
}

func IsInvalidInput(err error) bool {
	return err != nil && KindOf(err) == KindInvalidInput
}
