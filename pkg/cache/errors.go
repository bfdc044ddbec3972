package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrSynthesisFailed indicates the synthesizer returned an error.
	// It is the only condition surfaced to callers of Manager.Get.
	ErrSynthesisFailed = errors.New("synthesis failed")

	// ErrEntryTooLarge indicates an encoded artifact exceeds a tier's byte budget
	ErrEntryTooLarge = errors.New("entry too large to cache")

	// ErrDecodeCorruption indicates a stored entry could not be decoded
	ErrDecodeCorruption = errors.New("stored entry failed to decode")

	// ErrLoadBudgetExceeded indicates Tier-1 loading stopped at its byte budget.
	// The partially loaded store is still installed and usable.
	ErrLoadBudgetExceeded = errors.New("tier-1 byte budget reached, load stopped")

	// ErrInvalidDetailLevel indicates an unknown detail level was requested
	ErrInvalidDetailLevel = errors.New("invalid detail level")

	// ErrInvalidConfig indicates the cache configuration failed validation
	ErrInvalidConfig = errors.New("invalid cache config")
)

// SynthesisError wraps an error returned by the synthesizer.
type SynthesisError struct {
	Entity string
	Err    error
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s for %q: %v", ErrSynthesisFailed, e.Entity, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Is reports a match against ErrSynthesisFailed.
func (e *SynthesisError) Is(target error) bool {
	return target == ErrSynthesisFailed
}
