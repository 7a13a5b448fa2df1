// Package errs defines the error-kind taxonomy shared across the
// installation directory manager. Every operation that can fail with one
// of these kinds wraps a sentinel with github.com/pkg/errors so that
// callers can test with errors.Is while still getting a context-prefixed
// message ("While pulling {ref} from {remote}: ...").
package errs

import (
	"github.com/pkg/errors"
)

// Kind is one of the error taxonomy members from the spec's error handling
// design. Use errors.Is(err, errs.NotFound) etc. to classify a returned
// error; Wrap/Wrapf attach operation context the way the rest of the
// codebase does with pkg/errors.
type Kind struct {
	name string
}

func (k *Kind) Error() string { return k.name }

var (
	NotFound          = &Kind{"not-found"}
	NotDeployed       = &Kind{"not-deployed"}
	AlreadyDeployed   = &Kind{"already-deployed"}
	AlreadyUndeployed = &Kind{"already-undeployed"}
	ParseError        = &Kind{"parse-error"}
	PolicyViolation   = &Kind{"policy-violation"}
	IOError           = &Kind{"io-error"}
	Unsupported       = &Kind{"unsupported"}
	Cancelled         = &Kind{"cancelled"}
)

// Wrap attaches kind to err and prefixes message, mirroring the teacher's
// "While doing X" convention from the pull/checkout/undeploy call sites.
func Wrap(kind *Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(&kindError{kind: kind, cause: err}, message)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind *Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(&kindError{kind: kind, cause: err}, format, args...)
}

// New creates a fresh error of the given kind with no wrapped cause.
func New(kind *Kind, message string) error {
	return errors.WithStack(&kindError{kind: kind, cause: errors.New(message)})
}

// Newf is New with a formatted message.
func Newf(kind *Kind, format string, args ...interface{}) error {
	return errors.WithStack(&kindError{kind: kind, cause: errors.Errorf(format, args...)})
}

type kindError struct {
	kind  *Kind
	cause error
}

func (e *kindError) Error() string { return e.cause.Error() }
func (e *kindError) Unwrap() error { return e.cause }
func (e *kindError) Is(target error) bool {
	k, ok := target.(*Kind)
	return ok && k == e.kind
}
