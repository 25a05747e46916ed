package nota

import (
	"regexp"
	"strings"
)

const (
	supplierScanLines     = 15
	supplierFallbackLines = 5
	supplierMinLen        = 3
	supplierMaxLen        = 60
	supplierLongLine      = 30
)

var (
	supplierMarkerRe = regexp.MustCompile(`(?i)\b(toko|store|supplier|cv|pt|ud|distributor|warung|swalayan)\b\.?`)
	dottedLeaderRe   = regexp.MustCompile(`^\s*\.{2,}\s*(.+?)\s*\.{2,}`)
	addressCutRe     = regexp.MustCompile(`(?i),|\b(jl|jln|jalan|no|ruko|blok|kav|rt|rw|telp|hp)\b\.?`)
	alphaRunRe       = regexp.MustCompile(`[A-Za-z]{3,}`)
	fallbackCutRe    = regexp.MustCompile(`\s*[,\-]`)
	totalLineRe      = regexp.MustCompile(`(?i)\b(grand\s*total|sub\s*total|total|jumlah)\b[\s:]*(?:rp\.?)?\s*(\d[\d.,]*)`)
)

// footerWords mark total and payment lines. A marker word on such a line
// ("Terima kasih sudah belanja di toko kami") is not a store name.
var footerWords = []string{
	"total", "terima kasih", "thank you",
	"pembayaran", "kembalian", "tunai", "cash",
}

// ExtractSupplier looks for the store name in the receipt header. It returns
// the name and the index of the line it came from, or "" and -1.
func ExtractSupplier(lines []string) (string, int) {
	return defaultParser.extractSupplier(lines)
}

func (p *Parser) extractSupplier(lines []string) (string, int) {
	limit := min(len(lines), supplierScanLines)
	for i := 0; i < limit; i++ {
		line := lines[i]
		if isFooterLine(line) {
			continue
		}
		loc := supplierMarkerRe.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if name := supplierAfterMarker(line[loc[1]:]); validSupplier(name) {
			return name, i
		}
		// "Indah Jaya Store" puts the marker last.
		if name := cleanSupplier(line[:loc[0]]); validSupplier(name) {
			return name, i
		}
	}

	limit = min(len(lines), supplierFallbackLines)
	for i := 0; i < limit; i++ {
		line := strings.TrimSpace(lines[i])
		if dateRe.MatchString(line) || isSkipLine(line) || !alphaRunRe.MatchString(line) {
			continue
		}
		// A header-less nota starts straight with items.
		if _, ok := p.ParseLine(line); ok {
			continue
		}
		if len(line) > supplierLongLine {
			if loc := fallbackCutRe.FindStringIndex(line); loc != nil && loc[0] > 0 {
				line = line[:loc[0]]
			}
		}
		line = strings.TrimSpace(line)
		if len(line) > supplierMaxLen {
			line = strings.TrimSpace(line[:supplierMaxLen])
		}
		if validSupplier(line) {
			return line, i
		}
	}
	return "", -1
}

func isFooterLine(line string) bool {
	lower := strings.ToLower(line)
	for _, w := range footerWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func supplierAfterMarker(rest string) string {
	if g := dottedLeaderRe.FindStringSubmatch(rest); g != nil {
		return strings.TrimSpace(g[1])
	}
	rest = strings.TrimLeft(rest, " \t:.-")
	return cleanSupplier(rest)
}

// cleanSupplier cuts the name at the first address token or comma.
func cleanSupplier(s string) string {
	s = dateRe.ReplaceAllString(s, " ")
	if loc := addressCutRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.Trim(s, " \t:.-,")
}

func validSupplier(name string) bool {
	if len(name) < supplierMinLen || len(name) > supplierMaxLen {
		return false
	}
	return alphaRunRe.MatchString(name)
}

// ExtractDate returns the first date-shaped substring, verbatim.
func ExtractDate(lines []string) string {
	for _, line := range lines {
		if d := dateRe.FindString(line); d != "" {
			return d
		}
	}
	return ""
}

// ExtractTotal returns the amount on the first labelled total line.
func ExtractTotal(lines []string) (float64, bool) {
	for _, line := range lines {
		g := totalLineRe.FindStringSubmatch(line)
		if g == nil {
			continue
		}
		if v := digitValue(g[2]); v > 0 {
			return v, true
		}
	}
	return 0, false
}
