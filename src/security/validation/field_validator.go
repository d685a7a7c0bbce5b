package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxSymbolLength       = 12
	MaxCurrencyCodeLength = 3
	MaxNoteLength         = 1024
	MaxUsernameLength     = 50
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

var symbolRegex = regexp.MustCompile(`^[A-Z0-9.\-]+$`)

// ValidateSymbol checks that a ticker symbol is uppercase alphanumeric with
// dots and hyphens. Callers normalize to uppercase before validating.
func ValidateSymbol(s string) error {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, "Symbol"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(trimmed, MaxSymbolLength, "Symbol"); err != nil {
		return err
	}
	if !symbolRegex.MatchString(trimmed) {
		return fmt.Errorf("%w: Symbol ('%s') is not in the expected format (uppercase letters, digits, dots, hyphens)", ErrValidationFailed, s)
	}
	return nil
}

// ValidatePositiveFloat checks that a numeric field is strictly positive.
func ValidatePositiveFloat(val float64, fieldName string) error {
	if val <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %v", ErrValidationFailed, fieldName, val)
	}
	return nil
}

// ValidateNonNegativeFloat checks that a numeric field is not negative.
func ValidateNonNegativeFloat(val float64, fieldName string) error {
	if val < 0 {
		return fmt.Errorf("%w: %s cannot be negative, got %v", ErrValidationFailed, fieldName, val)
	}
	return nil
}

// ValidateDateString checks if a string is a valid date in "YYYY-MM-DD" format.
func ValidateDateString(s, fieldName string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, fieldName); err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s ('%s') is not a valid date (expected YYYY-MM-DD): %v", ErrValidationFailed, fieldName, s, err)
	}
	if t.Format("2006-01-02") != trimmed {
		return time.Time{}, fmt.Errorf("%w: %s ('%s') is an invalid date (e.g., day/month mismatch)", ErrValidationFailed, fieldName, s)
	}
	return t, nil
}
