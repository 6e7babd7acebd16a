// Package coerce converts raw CSV field strings into typed values.
// All converters report whether the input was usable instead of failing,
// so callers can count or default without error plumbing per field.
package coerce

import (
	"strconv"
	"strings"
)

// Int parses s as a base-10 integer.
// Empty or non-numeric input yields (0, false).
func Int(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IntOrZero parses s as an integer, defaulting to zero.
func IntOrZero(s string) int {
	n, _ := Int(s)
	return n
}

// Float parses s as a float64. Empty or non-numeric input yields (0, false).
func Float(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Bool parses the collector's Python-style boolean literals.
// Only "True" and "False" (any case) are recognized.
func Bool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// BoolOrFalse parses s as a boolean, defaulting to false.
func BoolOrFalse(s string) bool {
	b, _ := Bool(s)
	return b
}
