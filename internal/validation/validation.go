package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// MaxRegionIDLength bounds region identifiers in runes.
const MaxRegionIDLength = 64

// ErrRegionEmpty is returned when the region ID is empty or whitespace-only after trim.
var ErrRegionEmpty = errors.New("region id is required")

// ErrRegionTooLong is returned when the region ID exceeds MaxRegionIDLength.
var ErrRegionTooLong = errors.New("region id too long")

// ErrRegionInvalidChars is returned when the region ID contains disallowed characters.
var ErrRegionInvalidChars = errors.New("region id contains invalid characters")

// ErrInvalidDays is returned when a day count is not an integer in range.
var ErrInvalidDays = errors.New("invalid days")

// ErrInvalidCoordinates is returned for latitude/longitude outside the valid range.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// ValidateRegionID trims and lowercases the input and restricts it to letters, digits,
// hyphen and underscore. Returns the normalized ID or an error suitable for 400 responses.
func ValidateRegionID(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrRegionEmpty
	}
	if len(r) > MaxRegionIDLength {
		return "", ErrRegionTooLong
	}
	for _, c := range r {
		if !isAllowedRegionRune(c) {
			return "", ErrRegionInvalidChars
		}
	}
	return s, nil
}

func isAllowedRegionRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	return r == '-' || r == '_'
}

// ParseDays parses a day-count query parameter. Empty input returns def.
// The value must be an integer in [1, max].
func ParseDays(raw string, def, max int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidDays, raw)
	}
	if n < 1 || n > max {
		return 0, fmt.Errorf("%w: %d outside [1, %d]", ErrInvalidDays, n, max)
	}
	return n, nil
}

// ValidateCoordinates checks latitude in [-90, 90] and longitude in [-180, 180].
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinates, lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinates, lon)
	}
	return nil
}
