package utils

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// NormalizeHeader canonicalises a tabular header: strips a UTF-8 BOM, trims, collapses
// internal whitespace runs to a single underscore and upper-cases the result.
// "  Underlying asset " and "UNDERLYING_ASSET" both become "UNDERLYING_ASSET".
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\uFEFF")
	return strings.ToUpper(strings.Join(strings.Fields(h), "_"))
}

// ParseNumber coerces a numeric cell that may carry thousands separators,
// surrounding quotes or whitespace. Unparseable values (including "-", "nan" and "inf") yield 0.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"`))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseBool interprets the boolean spellings found in exported spreadsheets.
// The second return value is false when the cell is blank or not recognised.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "1.0", "yes", "y", "t":
		return true, true
	case "false", "0", "0.0", "no", "n", "f":
		return false, true
	}
	return false, false
}

// ContainsFold reports whether substr is within s, ignoring case
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Truncate shortens s to at most max bytes without splitting a rune, appending "..." when cut
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
