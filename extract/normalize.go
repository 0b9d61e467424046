package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// isGroupingSeparator reports characters used to group thousands.
func isGroupingSeparator(r rune) bool {
	switch r {
	case '.', ',', '\'', ' ', '\u00a0', '\u202f':
		return true
	}
	return false
}

// ParseDigits applies the numeric policy: keep digits and grouping
// separators, drop the separators, parse what is left. Text without any
// digit yields false, never zero.
func ParseDigits(raw string) (int64, bool) {
	var kept strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || isGroupingSeparator(r) {
			kept.WriteRune(r)
		}
	}
	digits := strings.Map(func(r rune) rune {
		if isGroupingSeparator(r) {
			return -1
		}
		return r
	}, kept.String())
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// CollapseSpace trims s and folds every whitespace run into one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// CountDigits returns the number of ASCII digits in s.
func CountDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// --- transforms ---

// Amount parses a non-negative integer with ParseDigits.
func Amount(raw string) (int64, bool) {
	return ParseDigits(raw)
}

// Text accepts any text that is non-empty after whitespace collapse.
func Text(raw string) (string, bool) {
	t := CollapseSpace(raw)
	return t, t != ""
}

// Phone accepts text carrying at least minDigits digits.
func Phone(minDigits int) func(string) (string, bool) {
	return func(raw string) (string, bool) {
		t := CollapseSpace(raw)
		if CountDigits(t) < minDigits {
			return "", false
		}
		return t, true
	}
}

// Counted extracts the first group of re from the lowercased text and
// accepts it when it parses to a positive integer.
func Counted(re *regexp.Regexp) func(string) (int, bool) {
	return func(raw string) (int, bool) {
		m := re.FindStringSubmatch(strings.ToLower(CollapseSpace(raw)))
		if len(m) < 2 {
			return 0, false
		}
		n, ok := ParseDigits(m[1])
		if !ok || n <= 0 || n > int64(^uint32(0)>>1) {
			return 0, false
		}
		return int(n), true
	}
}
