// Package shotdate parses image capture dates and derives the YYYYMMDD
// integer form stored alongside vectors for range filtering.
package shotdate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the wire format of a shot date.
const Layout = "2006-01-02"

// ErrInvalid is returned when a shot date is not a valid YYYY-MM-DD calendar date.
var ErrInvalid = errors.New("invalid shot date")

// Parse parses a YYYY-MM-DD date.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalid)
	}

	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (expected YYYY-MM-DD)", ErrInvalid, s)
	}
	return t, nil
}

// YMD returns t as a YYYYMMDD integer, e.g. 2023-07-12 -> 20230712.
func YMD(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// ParseYMD parses a YYYY-MM-DD date straight into its integer form.
func ParseYMD(s string) (int, error) {
	t, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return YMD(t), nil
}

// Normalize re-formats a parsed date, dropping surrounding whitespace.
func Normalize(s string) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return t.Format(Layout), nil
}

// FromYMD formats a YYYYMMDD integer back to YYYY-MM-DD.
func FromYMD(ymd int) string {
	return fmt.Sprintf("%04d-%02d-%02d", ymd/10000, (ymd/100)%100, ymd%100)
}
