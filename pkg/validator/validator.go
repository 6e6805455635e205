package validator

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// All returns the first non-nil error.
func All(errors ...error) error {
	for _, err := range errors {
		if err != nil {
			return err
		}
	}
	return nil
}

type Validatable interface {
	Validate() error
}

func Each[T Validatable](items []T) error {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func NotEmpty(field, description string) error {
	if field == "" {
		return fmt.Errorf("%s must not be empty", description)
	}
	return nil
}

func NonNegative[T cmp.Ordered](field T, description string) error {
	var zero T
	if field < zero {
		return fmt.Errorf("%s must not be negative, got %v", description, field)
	}
	return nil
}

func MatchesAllowed[T comparable](field T, allowed []T, description string) error {
	if !slices.Contains(allowed, field) {
		return fmt.Errorf("%s must be one of %v, got %v", description, allowed, field)
	}
	return nil
}

// HasNoDelimiters rejects text that would be read as template syntax.
func HasNoDelimiters(field string, description string) error {
	if strings.Contains(field, "{{") || strings.Contains(field, "{%") {
		return fmt.Errorf("%s must not contain template delimiters", description)
	}
	return nil
}
