package domain

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned by format detection for files with an
// unrecognized extension. It is the one error that aborts an import before
// any parsing is attempted; the message is part of the external contract.
var ErrUnsupportedFormat = errors.New("Invalid file type")

// ParseError reports a malformed source record. Non-fatal: the record is
// skipped and the rest of the batch proceeds.
type ParseError struct {
	Record  int // zero-based position in source file order
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports a record whose amount or date failed normalization.
// Non-fatal, same handling as ParseError.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// StorageError wraps a failure from the ledger store. Fatal for the batch
// transaction; the store must roll back any partial writes.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
