// Package validation checks and sanitizes user edits before they reach the
// orbit session, and validates inbound transport messages.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Message limits for the UI transport
const (
	MaxMessageSize   = 4 * 1024
	MaxPresetNameLen = 32
)

// ErrInvalidNumber is returned for edits that are not finite numbers in range.
var ErrInvalidNumber = errors.New("invalid number")

var (
	nonDecimalChars = regexp.MustCompile(`[^\d.]`)
	nonDigitChars   = regexp.MustCompile(`[^\d]`)
	presetNameChars = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateMessage checks a raw inbound message for size and JSON shape
func ValidateMessage(data []byte) error {
	if len(data) > MaxMessageSize {
		return fmt.Errorf("message too large: %d bytes (max %d)", len(data), MaxMessageSize)
	}
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON format")
	}
	return nil
}

// ValidatePositiveFinite rejects NaN, infinities, zero and negatives
func ValidatePositiveFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be finite, got %v: %w", name, v, ErrInvalidNumber)
	}
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %v: %w", name, v, ErrInvalidNumber)
	}
	return nil
}

// ValidateEccentricity requires a closed orbit, 0 <= e < 1
func ValidateEccentricity(e float64) error {
	if math.IsNaN(e) || e < 0 || e >= 1 {
		return fmt.Errorf("eccentricity must be in [0, 1), got %v: %w", e, ErrInvalidNumber)
	}
	return nil
}

// ValidateSemiMajorAxisAU requires a positive, finite axis in AU
func ValidateSemiMajorAxisAU(au float64) error {
	return ValidatePositiveFinite("semi-major axis", au)
}

// ValidateCentralMass requires a positive mantissa whose combined mass
// mantissa × 10^exponent is a positive finite number.
func ValidateCentralMass(mantissa float64, exponent int) error {
	if err := ValidatePositiveFinite("mass mantissa", mantissa); err != nil {
		return err
	}
	return ValidatePositiveFinite("central mass", mantissa*math.Pow(10, float64(exponent)))
}

// SanitizeDecimal drops every character other than digits and '.', the
// filter applied to the mass mantissa field.
func SanitizeDecimal(text string) string {
	return nonDecimalChars.ReplaceAllString(text, "")
}

// SanitizeDigits drops every character other than digits, the filter
// applied to the mass exponent field.
func SanitizeDigits(text string) string {
	return nonDigitChars.ReplaceAllString(text, "")
}

// ParseMantissa sanitizes and parses a mass mantissa field
func ParseMantissa(text string) (float64, error) {
	clean := SanitizeDecimal(text)
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("mass mantissa %q: %w", text, ErrInvalidNumber)
	}
	if err := ValidatePositiveFinite("mass mantissa", v); err != nil {
		return 0, err
	}
	return v, nil
}

// ParseExponent sanitizes and parses a mass exponent field
func ParseExponent(text string) (int, error) {
	clean := SanitizeDigits(text)
	v, err := strconv.Atoi(clean)
	if err != nil {
		return 0, fmt.Errorf("mass exponent %q: %w", text, ErrInvalidNumber)
	}
	return v, nil
}

// ParseSemiMajorAxisAU parses the semi-major axis field. Unlike the mass
// fields the text is not filtered; anything that is not a positive number is
// rejected.
func ParseSemiMajorAxisAU(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("semi-major axis %q: %w", text, ErrInvalidNumber)
	}
	if err := ValidateSemiMajorAxisAU(v); err != nil {
		return 0, err
	}
	return v, nil
}

// NormalizePresetName trims and lower-cases a preset name and checks its
// character set.
func NormalizePresetName(name string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return "", fmt.Errorf("preset name cannot be empty")
	}
	if len(trimmed) > MaxPresetNameLen {
		return "", fmt.Errorf("preset name too long: %d characters (max %d)", len(trimmed), MaxPresetNameLen)
	}
	if !presetNameChars.MatchString(trimmed) {
		return "", fmt.Errorf("preset name contains invalid characters")
	}
	return trimmed, nil
}
