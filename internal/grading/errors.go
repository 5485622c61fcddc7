package grading

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int8

const (
	KindUnknown Kind = iota
	KindMissingFile
	KindHeaderInvalid
	KindBuildFailure
	KindExecutionFailure
	KindValidationMismatch
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindMissingFile:
		return "missing_file"
	case KindHeaderInvalid:
		return "header_invalid"
	case KindBuildFailure:
		return "build_failure"
	case KindExecutionFailure:
		return "execution_failure"
	case KindValidationMismatch:
		return "validation_mismatch"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a failure of one grading stage. Msg is what the student sees,
// Err keeps the underlying cause (compiler output, io error) for the logs.
type Error struct {
	Kind  Kind
	Stage string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Cause() error { return e.Err }

func New(kind Kind, stage, msg string) error {
	return &Error{Kind: kind, Stage: stage, Msg: msg}
}

func Wrap(err error, kind Kind, stage, msg string) error {
	return &Error{Kind: kind, Stage: stage, Msg: msg, Err: err}
}

func MissingFile(stage, path string) error {
	return &Error{Kind: KindMissingFile, Stage: stage, Msg: fmt.Sprintf("%s is missing in submission", path)}
}

// KindOf returns the kind of the first *Error found in err's chain.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}

// Message returns the student facing message of err.
func Message(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
