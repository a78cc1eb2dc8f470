package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Longest leading decimal prefix, so trailing noise after the number
// ("448.000.00") does not discard the whole value.
var reLeadingNumber = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)`)

// ExtractNumber pulls a floating-point number out of noisy OCR text.
// Every character other than digits, '.', ',' and '-' is stripped; commas
// are then removed unconditionally, treated as thousands separators.
// Returns nil when nothing parseable remains or the value is not finite.
//
// Known limitation: comma-decimal locales ("1.234,56") are misparsed.
// Callers depend on the thousands-separator assumption; do not change
// this without a product decision.
func ExtractNumber(text string) *float64 {
	if text == "" {
		return nil
	}

	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(b.String(), ",", "")
	if cleaned == "" {
		return nil
	}

	prefix := reLeadingNumber.FindString(cleaned)
	if prefix == "" {
		return nil
	}
	num, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsInf(num, 0) || math.IsNaN(num) {
		return nil
	}
	return &num
}

// Round2 rounds to exactly 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
