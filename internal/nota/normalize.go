package nota

import (
	"math"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const DefaultUnit = "pcs"

// unitSynonyms maps lowercase unit tokens to their canonical unit.
var unitSynonyms = map[string]string{
	"kg": "kg", "kilo": "kg", "kilogram": "kg",
	"g": "gram", "gr": "gram", "grm": "gram", "gram": "gram",
	"ton": "ton",
	"l": "liter", "lt": "liter", "ltr": "liter", "liter": "liter", "litre": "liter",
	"ml": "ml", "mili": "ml", "cc": "ml",
	"gal": "gallon", "galon": "gallon", "gallon": "gallon",
	"pcs": "pcs", "pc": "pcs", "buah": "pcs", "biji": "pcs",
	"pack": "pack", "pak": "pack", "pck": "pack",
	"box": "box", "kotak": "box",
	"dus": "dus",
	"karton": "karton",
	"botol": "botol", "btl": "botol",
	"cup": "cup", "gelas": "cup",
}

// NormalizeUnit maps a raw unit token onto the canonical unit set.
// Unrecognized or empty units become "pcs".
func NormalizeUnit(raw string) string {
	key := strings.ToLower(strings.Trim(strings.TrimSpace(raw), "."))
	if unit, ok := unitSynonyms[key]; ok {
		return unit
	}
	return DefaultUnit
}

// isMeasureUnit reports whether a canonical unit is a fine-grained volume or
// weight unit, which allows larger quantities.
func isMeasureUnit(unit string) bool {
	return unit == "ml" || unit == "gram"
}

var (
	currencyPriceRe = regexp.MustCompile(`(?i)\brp\.?\s*\d[\d.,]*`)
	bareAmountRe    = regexp.MustCompile(`\b\d{1,3}(?:[.,]\d{3})+\b|\b\d{4,}\b`)
	qtyUnitRe       = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(?:kg|kilo|gram|grm|gr|g|ton|liter|litre|ltr|lt|l|ml|mili|cc|gal|galon|pcs|pc|buah|biji|pack|pak|box|kotak|dus|karton|botol|btl|cup|gelas|oz|x)\b`)
	nameSymbolRe    = regexp.MustCompile(`[@=]`)
	nameSepRe       = regexp.MustCompile(`[:\-_/\\]`)
	spacesRe        = regexp.MustCompile(`\s+`)
)

// CleanName strips prices, quantities and symbols from a raw item name and
// title-cases what is left. Applying it to its own output is a no-op.
func CleanName(raw string) string {
	name := currencyPriceRe.ReplaceAllString(raw, " ")
	name = bareAmountRe.ReplaceAllString(name, " ")
	name = qtyUnitRe.ReplaceAllString(name, " ")
	name = nameSymbolRe.ReplaceAllString(name, " ")
	name = nameSepRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(spacesRe.ReplaceAllString(name, " "))
	if name == "" {
		return ""
	}
	// Casers keep state, so one per call.
	return cases.Title(language.Indonesian).String(name)
}

// FormatRupiah renders amount as "Rp 25.000". Zero, negative and NaN
// amounts have no display value and yield "".
func FormatRupiah(amount float64) string {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ""
	}
	p := message.NewPrinter(language.Indonesian)
	return p.Sprintf("Rp %d", int64(math.Round(amount)))
}
