// Package nickname validates participant display names.
package nickname

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Default length bounds, counted in runes.
const (
	DefaultMinLength = 2
	DefaultMaxLength = 20
)

// IsValid reports whether name has between DefaultMinLength and DefaultMaxLength runes.
func IsValid(name string) bool {
	return NewValidator(DefaultMinLength, DefaultMaxLength).IsValid(name)
}

// Normalize trims surrounding whitespace and composes the name into NFC so
// visually identical names have the same length.
func Normalize(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Validator checks names against configurable length bounds.
type Validator struct {
	min int
	max int
}

// NewValidator returns a Validator. Non-positive bounds fall back to the
// defaults and inverted bounds are swapped.
func NewValidator(minLength, maxLength int) Validator {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if minLength > maxLength {
		minLength, maxLength = maxLength, minLength
	}
	return Validator{min: minLength, max: maxLength}
}

// IsValid reports whether name is within the validator's bounds. It never fails.
func (v Validator) IsValid(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= v.min && n <= v.max
}

// MinLength is the shortest accepted name, in runes.
func (v Validator) MinLength() int { return v.min }

// MaxLength is the longest accepted name, in runes.
func (v Validator) MaxLength() int { return v.max }
