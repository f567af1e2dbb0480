package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// ErrInvalidInput marks subject attributes outside the known domain
	// (negative age, unknown gender, unknown covariate level).
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration marks an unusable randomization setup. It is never
	// recovered from by substituting a default.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnknownStrata marks a stratification key outside the engine's domain
	ErrUnknownStrata = errors.New("unknown strata")

	ErrNotFound = errors.New("resource not found")
)

// Error constructors with context
func NewInvalidInputError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, reason)
}

func NewConfigurationError(reason string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, reason)
}

func NewUnknownStrataError(key string) error {
	return fmt.Errorf("%w: %q", ErrUnknownStrata, key)
}

// Error checking helpers
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrUnknownStrata)
}
