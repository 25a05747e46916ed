package nota

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberTokenRe = regexp.MustCompile(`(?i)(rp\.?\s*)?(\d+(?:[.,]\d+)*)`)
	centsSuffixRe = regexp.MustCompile(`^(\d{4,}|\d{1,3}(?:[.,]\d{3})+)[.,]\d{2}$`)
	nonDigitRe    = regexp.MustCompile(`\D`)
)

const (
	decomposeMinDigits = 5
	decomposeMaxQty    = 49
	decomposeMinPrice  = 1000
)

// ExtractNumbers returns the positive numbers found in line, in order of
// appearance. Digit runs of five or more digits that read like a quantity
// glued to a round price ("212000" -> 2, 12000) are split in two.
func ExtractNumbers(line string) []float64 {
	matches := numberTokenRe.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return nil
	}

	numbers := make([]float64, 0, len(matches))
	for _, m := range matches {
		hasCurrency := m[1] != ""
		raw := stripCents(m[2])
		digits := nonDigitRe.ReplaceAllString(raw, "")

		value, err := strconv.ParseFloat(digits, 64)
		if err != nil || value <= 0 {
			continue
		}

		// Only bare runs are candidates: separators or an Rp prefix mean the
		// OCR already saw a single amount.
		if !hasCurrency && !strings.ContainsAny(raw, ".,") {
			if qty, price, ok := DecomposeDigits(digits); ok {
				numbers = append(numbers, qty, price)
				continue
			}
		}
		numbers = append(numbers, value)
	}
	return numbers
}

// DecomposeDigits tries to split a merged digit run into a quantity prefix of
// one or two digits (1-49) and a price remainder that is at least 1000 and a
// multiple of 100 or 1000. The one-digit split is tried first.
func DecomposeDigits(digits string) (qty, price float64, ok bool) {
	if len(digits) < decomposeMinDigits {
		return 0, 0, false
	}

	for _, n := range []int{1, 2} {
		prefix, rest := digits[:n], digits[n:]
		q, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil || q < 1 || q > decomposeMaxQty {
			continue
		}
		p, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || p < decomposeMinPrice {
			continue
		}
		if p%100 == 0 || p%1000 == 0 {
			return float64(q), float64(p), true
		}
	}
	return 0, 0, false
}

// stripCents drops a trailing two-digit decimal part from amounts such as
// "25.000,00" or "150000.00".
func stripCents(raw string) string {
	if centsSuffixRe.MatchString(raw) {
		return raw[:len(raw)-3]
	}
	return raw
}

// digitValue returns the integer value of s with every non-digit removed.
func digitValue(s string) float64 {
	v, err := strconv.ParseFloat(nonDigitRe.ReplaceAllString(stripCents(s), ""), 64)
	if err != nil {
		return 0
	}
	return v
}

var decimalQtyRe = regexp.MustCompile(`^(\d+)[.,](\d{1,2})$`)

// parseQuantity reads a captured quantity token. "1,5" and "1.5" are
// decimals; anything with three digits after a separator is a grouped
// integer.
func parseQuantity(s string) float64 {
	if m := decimalQtyRe.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1]+"."+m[2], 64)
		if err == nil {
			return v
		}
	}
	return digitValue(s)
}
