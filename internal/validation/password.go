// Package validation provides input validation utilities
package validation

import (
	"errors"
	"unicode"
)

const (
	MinPasswordLength = 8
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
)

// ValidatePassword checks if a password meets the registration policy.
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return errors.New("password must be at least 8 characters long")
	}
	if len(password) > MaxPasswordLength {
		return errors.New("password must not exceed 72 bytes")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsSpace(r):
			return errors.New("password must not contain whitespace")
		}
	}
	if !hasLetter {
		return errors.New("password must contain at least one letter")
	}
	if !hasDigit {
		return errors.New("password must contain at least one digit")
	}
	return nil
}

// ValidatePasswordConfirmation checks that both password fields match.
func ValidatePasswordConfirmation(password, confirm string) error {
	if password != confirm {
		return errors.New("passwords do not match")
	}
	return nil
}
