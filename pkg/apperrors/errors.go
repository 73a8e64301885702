// Package apperrors defines the error taxonomy for the ingestion pipeline.
// Per-record errors never abort a batch; only source-level transport errors
// stop a pull run.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrDuplicateRecord signals a submission whose external id already
	// exists. Duplicates are skipped, never updated.
	ErrDuplicateRecord = errors.New("duplicate record")
)

// MalformedFieldError reports a raw value that could not be coerced to the
// declared type of its target field. Non-identifying fields are nulled and
// logged; the record itself survives.
type MalformedFieldError struct {
	Key   string // source key path, e.g. "sec_c/cd_age"
	Value any
	Err   error
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("malformed field %q (value %v): %v", e.Key, e.Value, e.Err)
}

func (e *MalformedFieldError) Unwrap() error { return e.Err }

// InvalidIdentifierError reports a form or instance identifier that is
// missing or not a well-formed UUID. Identifiers are load-bearing for
// cross-referencing submissions, so this rejects the whole record.
type InvalidIdentifierError struct {
	Key   string
	Value string
	Err   error
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q (value %q): %v", e.Key, e.Value, e.Err)
}

func (e *InvalidIdentifierError) Unwrap() error { return e.Err }

// IntegrityViolationError reports a storage-enforced constraint breach on a
// record's write. The record's transaction rolls back entirely and the batch
// continues.
type IntegrityViolationError struct {
	Constraint string
	Err        error
}

func (e *IntegrityViolationError) Error() string {
	return fmt.Sprintf("integrity violation on %q: %v", e.Constraint, e.Err)
}

func (e *IntegrityViolationError) Unwrap() error { return e.Err }

// TransportError reports a failure talking to the source API. A pull run
// stops on the first transport error, retaining records already ingested.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
