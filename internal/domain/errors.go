package domain

import (
	"errors"
	"fmt"
)

var (
	ErrIO          = errors.New("io error")
	ErrConfig      = errors.New("invalid configuration")
	ErrModelLoad   = errors.New("embedding model unavailable")
	ErrIndexLoad   = errors.New("index load failed")
	ErrSynthesis   = errors.New("answer synthesis failed")
	ErrStaleIndex  = errors.New("index built with different settings")
	ErrEmptyCorpus = fmt.Errorf("%w: corpus contains no indexable text", ErrIO)
)

// SynthesisError reports a failed completion-service call for a query.
type SynthesisError struct {
	Query string
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("answer synthesis failed for %q: %v", e.Query, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

func (e *SynthesisError) Is(target error) bool {
	return target == ErrSynthesis
}
