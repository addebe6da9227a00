package cardpdf

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTemplate      = errors.New("unknown card template")
	ErrUnknownLayout        = errors.New("incomplete card layout")
	ErrMissingTemplateAsset = errors.New("card template asset not found")
	ErrValidation           = errors.New("invalid card document request")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StorageError wraps a failed object store call.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
