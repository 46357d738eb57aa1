// Package vaulttypes holds the Vault aggregate and its nested entities,
// shared across every core package so none of them import each other's
// concrete state.
package vaulttypes

import "errors"

// Sentinel errors for the taxonomy every core package reports through.
// Callers compare with errors.Is; wrapped with fmt.Errorf("%w: ...") at the
// point of failure so the message can carry detail without losing the kind.
var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrBadPassphrase      = errors.New("bad_passphrase")
	ErrCorruptFile        = errors.New("corrupt_file")
	ErrUnsupportedVersion = errors.New("unsupported_version")
	ErrDuplicateID        = errors.New("duplicate_id")
	ErrIOFailure          = errors.New("io_failure")
	ErrNotFound           = errors.New("not_found")
)

// InvariantError reports a broken §3 post-condition. It is fatal: a
// VaultHandle that produces one must refuse further writes until reloaded.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return "internal_invariant_violation: " + e.Detail
}

// NewInvariantError builds an InvariantError with the given detail message.
func NewInvariantError(detail string) *InvariantError {
	return &InvariantError{Detail: detail}
}
