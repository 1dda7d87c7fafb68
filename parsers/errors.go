package parsers

import (
	"errors"
	"fmt"
)

var (
	// ErrParse - Output did not match the expected neighbor or fact block.
	ErrParse = errors.New("failed to parse device output")
	// ErrUnknownUptimeUnit - Uptime string contained a unit without a known weight.
	ErrUnknownUptimeUnit = errors.New("unknown uptime unit")
	// ErrFactMissing - Fact field not found in the command output.
	ErrFactMissing = errors.New("fact not found in output")
)

// FieldError - A fact field that could not be extracted.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("fact %v: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
