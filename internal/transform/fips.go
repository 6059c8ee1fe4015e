package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// BlockGroupFIPSLen is the length of a census block group identifier:
// 2 state + 3 county + 6 tract + 1 block group digit.
const BlockGroupFIPSLen = 12

// fipsCutset is stripped from both ends of raw identifier cells.
const fipsCutset = "\" \t"

// NormalizeBlockGroupFIPS converts a raw identifier cell into the canonical
// 12-character block group code. Spreadsheet exports frequently turn the code
// into a float ("4.8113E+11"), which loses its leading zero; any value that
// parses as a finite decimal number is truncated to an integer and rendered
// as plain digits before padding. Length is counted in characters, not
// bytes, and invalid UTF-8 becomes U+FFFD. Values longer than 12 characters
// keep their leftmost 12. The result may be all zeros or non-numeric; it
// never errors.
func NormalizeBlockGroupFIPS(raw string) string {
	s := strings.Trim(raw, fipsCutset)

	if f, ok := ParseDecimal(s); ok {
		s = strconv.FormatFloat(math.Trunc(f), 'f', 0, 64)
	}

	r := []rune(s)
	switch {
	case len(r) > BlockGroupFIPSLen:
		return string(r[:BlockGroupFIPSLen])
	case len(r) < BlockGroupFIPSLen:
		return strings.Repeat("0", BlockGroupFIPSLen-len(r)) + string(r)
	}
	return string(r)
}

// IsCanonicalBlockGroupFIPS reports whether fips is valid UTF-8 of exactly
// 12 characters.
func IsCanonicalBlockGroupFIPS(fips string) bool {
	return utf8.ValidString(fips) && utf8.RuneCountInString(fips) == BlockGroupFIPSLen
}

// ParseDecimal parses a finite decimal number. Hexadecimal floats, digit
// separators, NaN and infinities are rejected.
func ParseDecimal(s string) (float64, bool) {
	if s == "" || strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// SplitBlockGroupFIPS slices a block group code into its state, county and
// tract prefixes by character. Non-canonical inputs are normalized first.
func SplitBlockGroupFIPS(fips string) (state, county, tract string) {
	if !IsCanonicalBlockGroupFIPS(fips) {
		fips = NormalizeBlockGroupFIPS(fips)
	}
	r := []rune(fips)
	return string(r[0:2]), string(r[2:5]), string(r[0:11])
}

// NormalizeFIPSState normalizes a state FIPS code to 2 digits with zero-padding.
func NormalizeFIPSState(code string) string {
	code = strings.Trim(code, fipsCutset)
	if code == "" {
		return ""
	}
	if len(code) == 1 {
		return "0" + code
	}
	return code
}

// NormalizeFIPSCounty normalizes a county FIPS code to 3 digits with zero-padding.
func NormalizeFIPSCounty(code string) string {
	code = strings.Trim(code, fipsCutset)
	if code == "" {
		return ""
	}
	if len(code) < 3 {
		code = strings.Repeat("0", 3-len(code)) + code
	}
	return code
}

// CombineFIPS joins state and county codes into the 5-digit county key.
func CombineFIPS(state, county string) string {
	s := NormalizeFIPSState(state)
	c := NormalizeFIPSCounty(county)
	if s == "" || c == "" {
		return ""
	}
	return s + c
}

// FormatFIPS formats a numeric FIPS code with proper zero-padding.
func FormatFIPS(code int, digits int) string {
	return fmt.Sprintf("%0*d", digits, code)
}
