package types

import (
	"time"

	"github.com/juju/errors"
)

var (
	_ error = &StageTimeoutError{}
	_ error = &BackendError{}
	_ error = &ClassificationError{}
)

// ErrAbandoned is returned to a driver whose wait was released by Reset or
// by a newer execution. The wait itself never settles.
var ErrAbandoned = errors.New("execution abandoned")

func NewStageTimeoutError(nodeID string, timeout time.Duration, format string, args ...interface{}) error {
	return &StageTimeoutError{
		baseError: newBaseErr(errors.Errorf(format, args...)),
		NodeID:    nodeID,
		Timeout:   timeout,
	}
}

// NewBackendError keeps message verbatim as the error text.
func NewBackendError(nodeID string, message string) error {
	return &BackendError{baseError: newBaseErr(errors.New(message)), NodeID: nodeID}
}

func NewClassificationError(otherErr error) error {
	return &ClassificationError{baseError: newBaseErr(otherErr)}
}

func NewClassificationErrorf(format string, args ...interface{}) error {
	return NewClassificationError(errors.Errorf(format, args...))
}

func IsStageTimeout(err error) bool {
	var e *StageTimeoutError
	return errors.As(err, &e)
}

func IsBackendError(err error) bool {
	var e *BackendError
	return errors.As(err, &e)
}

func IsAbandoned(err error) bool {
	return errors.Is(err, ErrAbandoned)
}

func newBaseErr(otherErr error) *baseError {
	return &baseError{unwrapErr(otherErr)}
}

func unwrapErr(err error) error {
	if err == nil {
		return nil
	}
	if ue, ok := err.(wrappedErr); ok {
		return unwrapErr(ue.UnwrapLocal())
	}
	return err
}

type wrappedErr interface {
	UnwrapLocal() error
}

type baseError struct {
	BaseErr error
}

func (e *baseError) Error() string {
	return e.BaseErr.Error()
}

func (e *baseError) UnwrapLocal() error {
	return e.BaseErr
}

type StageTimeoutError struct {
	*baseError
	NodeID  string
	Timeout time.Duration
}

type BackendError struct {
	*baseError
	NodeID string
}

type ClassificationError struct {
	*baseError
}
