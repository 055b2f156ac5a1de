package core

// convert.go turns the strings people type into grid cells into typed values.
//
// Users paste from spreadsheets, so numeric input arrives with currency
// symbols, thousands separators and accounting parentheses, and boolean input
// arrives as yes/no, y/n, t/f or 1/0. Timestamps are accepted only when they
// name an absolute instant.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// timestampLayouts carry an explicit zone offset and therefore name an instant.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

// dateOnlyLayouts are four-digit-year calendar layouts that cannot be read two ways.
var dateOnlyLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"Jan 2, 2006",
	"2 Jan 2006",
	"20060102",
}

// parseNumber converts user input to a finite float64.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	// Remove common currency symbols and thousands separators
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	// The regex also keeps out "NaN" and "Inf", which ParseFloat would accept
	if !numericRegex.MatchString(s) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(f) {
		return 0, false
	}
	return f, true
}

// parseBoolWord accepts various representations: true/false, yes/no, t/f, y/n, 1/0.
func parseBoolWord(s string) (value bool, ok bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1", "on":
		return true, true
	case "false", "f", "no", "n", "0", "off", "":
		return false, true
	default:
		return false, false
	}
}

// parseTimestamp parses an absolute timestamp. Zone-less input is rejected.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseDateOnly parses a calendar date and returns UTC midnight of that day.
func parseDateOnly(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateOnlyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if t, ok := parseTimestamp(s); ok {
		return truncateToDate(t), true
	}
	return time.Time{}, false
}

// fromUnixMillis converts a JavaScript-style epoch milliseconds number.
func fromUnixMillis(ms float64) (time.Time, bool) {
	if !isFinite(ms) || ms != math.Trunc(ms) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}

func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// roundTo rounds f to the given number of decimal places. Negative places leave f unchanged.
func roundTo(f float64, places int) float64 {
	if places < 0 {
		return f
	}
	// Formatting and re-parsing keeps 0.1+0.2-style noise out of the stored value
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', places, 64), 64)
	if err != nil {
		return f
	}
	return r
}

// formatNumber renders a number in its shortest decimal form.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
