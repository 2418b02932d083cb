package models

import "fmt"

// ValidationError is a user-input problem detected before any backend call.
// Err optionally carries a sentinel the problem corresponds to.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func ValidateDates(issue, expiry *Date) error {
	if issue != nil && expiry != nil && issue.After(*expiry) {
		return &ValidationError{Field: "expiry_date", Message: "Expiry date must be after issue date"}
	}
	return nil
}
