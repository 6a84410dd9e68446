package models

import (
	"errors"
)

// Error taxonomy shared by the registry, engines and external clients.
// Callers wrap these with fmt.Errorf("...: %w") and classify with errors.Is.
var (
	// ErrNotFound means a record or issue does not exist. Expected, non-fatal.
	ErrNotFound = errors.New("not found")

	// ErrValidation means malformed input (identity, wallet, comment, record).
	ErrValidation = errors.New("validation failed")

	// ErrTransient means a network or rate-limit failure that survived retries.
	ErrTransient = errors.New("transient failure")

	// ErrCorrupt means a stored record could not be parsed or failed schema checks.
	ErrCorrupt = errors.New("corrupt record")

	// ErrConflict means the requested mutation was already applied.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyExists is the Conflict raised by duplicate record creation.
	ErrAlreadyExists = &kindError{msg: "already exists", kind: ErrConflict}

	// ErrNoneAvailable means no Sentinel can take another assignment.
	ErrNoneAvailable = errors.New("no sentinel available")

	// ErrNotEligible is the ValidationFailure raised by premature promotion.
	ErrNotEligible = &kindError{msg: "not eligible for promotion", kind: ErrValidation}
)

// kindError is a named error that also matches its broader kind.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.kind }

// Outcome values reported in command results.
const (
	OutcomeOK            = "ok"
	OutcomeNotFound      = "not_found"
	OutcomeInvalid       = "invalid"
	OutcomeConflict      = "conflict"
	OutcomeAlreadyExists = "already_exists"
	OutcomeNoneAvailable = "none_available"
	OutcomeNotEligible   = "not_eligible"
	OutcomeTransient     = "transient"
	OutcomeCorrupt       = "corrupt"
	OutcomeError         = "error"
)

// Outcome classifies err for the structured result payload.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrAlreadyExists):
		return OutcomeAlreadyExists
	case errors.Is(err, ErrNotEligible):
		return OutcomeNotEligible
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrConflict):
		return OutcomeConflict
	case errors.Is(err, ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, ErrNoneAvailable):
		return OutcomeNoneAvailable
	case errors.Is(err, ErrTransient):
		return OutcomeTransient
	case errors.Is(err, ErrCorrupt):
		return OutcomeCorrupt
	default:
		return OutcomeError
	}
}

// IsExpected reports whether err is an outcome the orchestration branches on
// rather than a failure of the run itself.
func IsExpected(err error) bool {
	switch Outcome(err) {
	case OutcomeOK, OutcomeNotFound, OutcomeInvalid, OutcomeConflict,
		OutcomeAlreadyExists, OutcomeNoneAvailable, OutcomeNotEligible:
		return true
	}
	return false
}
