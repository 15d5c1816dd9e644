// Package validate holds the pure validation and normalisation helpers
// applied to plant telemetry before it reaches the relational store.
package validate

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	minLatitude  = -90.0
	maxLatitude  = 90.0
	minLongitude = -180.0
	maxLongitude = 180.0
)

// PlaceholderMarkers are substrings identifying image URLs that need
// privileged access and are therefore useless downstream
var PlaceholderMarkers = []string{"upgrade_access"}

var (
	nameStripPattern  = regexp.MustCompile("[()`'‘’]")
	whitespacePattern = regexp.MustCompile(`\s+`)
	phoneStripPattern = regexp.MustCompile(`[+.()\-\s]`)
)

// CoordinateError is returned when a coordinate cannot be cast to a float
type CoordinateError struct {
	Value string
	Err   error
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate %q: %v", e.Value, e.Err)
}

func (e *CoordinateError) Unwrap() error {
	return e.Err
}

// Latitude reports whether v is a number within [-90, 90]
func Latitude(v any) bool {
	f, ok := numeric(v)
	if !ok {
		return false
	}
	return f >= minLatitude && f <= maxLatitude
}

// Longitude reports whether v is a number within [-180, 180]
func Longitude(v any) bool {
	f, ok := numeric(v)
	if !ok {
		return false
	}
	return f >= minLongitude && f <= maxLongitude
}

// Text reports whether v is a string with non-whitespace content
func Text(v any) bool {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s) != ""
	case *string:
		return s != nil && strings.TrimSpace(*s) != ""
	default:
		return false
	}
}

// numeric converts Go numeric kinds to float64. Strings are not numbers here.
func numeric(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case *float64:
		if n == nil {
			return 0, false
		}
		f = *n
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// CleanCityCountry trims and title-cases a city or country name
func CleanCityCountry(s string) string {
	return titleCase(strings.TrimSpace(s))
}

// ParseCoordinate casts a textual coordinate to a float
func ParseCoordinate(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, &CoordinateError{Value: s, Err: err}
	}
	return f, nil
}

// CleanName strips quote and bracket punctuation, collapses whitespace and
// title-cases. Returns nil for missing or empty input.
func CleanName(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	name := nameStripPattern.ReplaceAllString(*s, "")
	name = whitespacePattern.ReplaceAllString(name, " ")
	name = strings.TrimSpace(titleCase(name))
	if name == "" {
		return nil
	}
	return &name
}

// CleanPhoneNumber renders a phone number as [+code-]XXX-XXX-XXXX[xEXT].
// Returns nil for missing or empty input.
func CleanPhoneNumber(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}

	number, ext, hasExt := strings.Cut(*s, "x")
	number = phoneStripPattern.ReplaceAllString(number, "")

	// Too short to split into area/exchange/line; keep the digits as given
	if len(number) < 10 {
		out := number
		if hasExt {
			out += "x" + ext
		}
		return &out
	}

	countryCode := 0
	if prefix := number[:len(number)-10]; prefix != "" {
		if code, err := strconv.Atoi(prefix); err == nil {
			countryCode = code
		}
	}

	local := number[len(number)-10:]
	out := local[:3] + "-" + local[3:6] + "-" + local[6:]
	if countryCode > 0 {
		out = "+" + strconv.Itoa(countryCode) + "-" + out
	}
	if hasExt {
		out += "x" + ext
	}
	return &out
}

// FilterURL returns nil for missing, empty or placeholder URLs
func FilterURL(u *string) *string {
	if u == nil || strings.TrimSpace(*u) == "" {
		return nil
	}
	for _, marker := range PlaceholderMarkers {
		if strings.Contains(*u, marker) {
			return nil
		}
	}
	return u
}

// titleCase uses a fresh Caser per call since Casers are not safe for
// concurrent use
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
