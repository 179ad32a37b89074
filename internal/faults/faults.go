// Package faults defines the error kinds surfaced by the query pipeline.
package faults

import (
	"errors"
	"fmt"
)

// InputError reports a missing or unreadable audio or image input.
type InputError struct {
	Op  string
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// TranscriptionError reports a failure of the underlying speech model.
type TranscriptionError struct {
	Backend string
	Err     error
}

func (e *TranscriptionError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("transcription failed: %v", e.Err)
	}
	return fmt.Sprintf("transcription failed (%s): %v", e.Backend, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// GenerationError reports a failure of the generative model. The query
// generator converts it into a result value; it only escapes as an error
// from lower-level clients.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Input wraps err as an InputError.
func Input(op string, err error) error {
	if err == nil {
		return nil
	}
	return &InputError{Op: op, Err: err}
}

// Transcription wraps err as a TranscriptionError.
func Transcription(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &TranscriptionError{Backend: backend, Err: err}
}

// IsInput reports whether err (or anything it wraps) is an InputError.
func IsInput(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// IsTranscription reports whether err (or anything it wraps) is a TranscriptionError.
func IsTranscription(err error) bool {
	var te *TranscriptionError
	return errors.As(err, &te)
}
