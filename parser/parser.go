package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Any Unicode decimal digit counts, not only ASCII.
var tonePattern = regexp.MustCompile(`\p{Nd}+\.\p{Nd}+`)

// naTokens are the cell values treated as missing, matching the NA markers
// spreadsheet exports of the catalog produce.
var naTokens = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// ExtractTone finds the first digits.digits token (e.g. 1.0, 1.10, 10.02) in text.
func ExtractTone(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	m := tonePattern.FindString(text)
	if m == "" {
		return "", false
	}
	return m, true
}

// ToneOf extracts the tone from an image's alt text, falling back to its src.
func ToneOf(alt, src string) (string, bool) {
	if tone, ok := ExtractTone(alt); ok {
		return tone, true
	}
	return ExtractTone(src)
}

// IsMissing reports whether a raw CSV cell is a null marker.
func IsMissing(cell string) bool {
	_, ok := naTokens[strings.TrimSpace(cell)]
	return ok
}

// NormalizeCode trims a product code; missing codes yield false.
func NormalizeCode(cell string) (string, bool) {
	if IsMissing(cell) {
		return "", false
	}
	return strings.TrimSpace(cell), true
}

// NormalizeID coerces an article id cell to its integer string form
// ("10915.0" -> "10915"). Non-numeric, non-integral and out of range values
// yield false.
func NormalizeID(cell string) (string, bool) {
	if IsMissing(cell) {
		return "", false
	}
	s := strings.TrimSpace(cell)

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return "", false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return "", false
	}
	return strconv.FormatInt(int64(f), 10), true
}
