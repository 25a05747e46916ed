package nota

import (
	"regexp"
	"strings"
)

// skipWords mark header, footer and payment lines that never carry items.
var skipWords = []string{
	"grand total", "subtotal", "total",
	"terima kasih", "thank you",
	"pembayaran", "kembalian", "tunai", "cash",
	"tanggal", "nota", "invoice", "receipt",
	"kasir", "alamat", "telp", "website",
}

const recognizedUnits = `kg|kilo|gram|grm|gr|g|liter|litre|ltr|lt|l|ml|cc|pcs|pc|pack|pak|box|dus|botol|btl|cup`

var (
	dateRe         = regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{2,4}`)
	timeRe         = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
	longNumberRe   = regexp.MustCompile(`\d{3,}`)
	numericLineRe  = regexp.MustCompile(`(?i)^(?:rp\.?)?[\d\s.,:\-]+$`)
	letterRe       = regexp.MustCompile(`[A-Za-z]`)
	rpTokenRe      = regexp.MustCompile(`(?i)\brp\.?`)
	nonNameCharsRe = regexp.MustCompile(`[\d.,@=:\-_/\\()*#%+]+`)

	nameQtyUnitRe   = regexp.MustCompile(`^([A-Za-z][A-Za-z\s]*?)\s+(\d+(?:[.,]\d+)?)\s*([A-Za-z]+)`)
	qtyUnitNameRe   = regexp.MustCompile(`(?i)^(\d+(?:[.,]\d+)?)\s*(` + recognizedUnits + `)\b\s+(.+)$`)
	nameSepQtyRe    = regexp.MustCompile(`(?i)^(.+?)[\s:\-]+(\d+(?:[.,]\d+)?)\s*(` + recognizedUnits + `)\b`)
	nameDigitsRe    = regexp.MustCompile(`^([A-Za-z][A-Za-z\s]*?)\s+(\d+(?:[.,]\d+)*)\s*([A-Za-z]+)?`)
	currencyTokenRe = regexp.MustCompile(`(?i)^rp$`)
)

const (
	maxQuantity        = 1000
	maxMeasureQuantity = 10000
	minPlausiblePrice  = 1000
)

// linePattern is one step of the matching cascade.
type linePattern struct {
	name  string
	match func(m *Matcher, line string, numbers []float64) (*LineMatch, bool)
}

// Matcher recognizes item lines. Patterns are tried in order and the first
// one that matches and passes its checks wins.
type Matcher struct {
	vocab    *Vocabulary
	patterns []linePattern
}

// NewMatcher builds the default cascade. A nil vocabulary uses the default.
func NewMatcher(vocab *Vocabulary) *Matcher {
	if vocab == nil {
		vocab = NewVocabulary()
	}
	return &Matcher{
		vocab: vocab,
		patterns: []linePattern{
			{"name_qty_unit", matchNameQtyUnit},
			{"qty_unit_name", matchQtyUnitName},
			{"name_sep_qty_unit", matchNameSepQtyUnit},
			{"name_digits", matchNameDigits},
			{"vocabulary", matchVocabulary},
		},
	}
}

// Skip reports whether line can be rejected before any pattern is tried.
func (m *Matcher) Skip(line, supplier string) bool {
	line = strings.TrimSpace(line)
	if supplier != "" && line == supplier {
		return true
	}
	if len(line) < 2 || numericLineRe.MatchString(line) {
		return true
	}
	if isSkipLine(line) {
		return true
	}
	if dateRe.MatchString(line) {
		return true
	}
	if timeRe.MatchString(line) && !longNumberRe.MatchString(timeRe.ReplaceAllString(line, " ")) {
		return true
	}
	return false
}

// Match runs the cascade over one line.
func (m *Matcher) Match(line string) (*LineMatch, bool) {
	line = strings.TrimSpace(line)
	numbers := ExtractNumbers(line)
	for _, p := range m.patterns {
		if lm, ok := p.match(m, line, numbers); ok {
			lm.Pattern = p.name
			return lm, true
		}
	}
	return nil, false
}

func isSkipLine(line string) bool {
	lower := strings.ToLower(line)
	for _, w := range skipWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func matchNameQtyUnit(_ *Matcher, line string, numbers []float64) (*LineMatch, bool) {
	g := nameQtyUnitRe.FindStringSubmatch(line)
	if g == nil || !validName(g[1]) || currencyTokenRe.MatchString(g[3]) {
		return nil, false
	}
	qty := parseQuantity(g[2])
	if !quantityInBounds(qty, g[3]) {
		return nil, false
	}
	return newMatch(g[1], g[2], g[3], numbers), true
}

func matchQtyUnitName(_ *Matcher, line string, numbers []float64) (*LineMatch, bool) {
	g := qtyUnitNameRe.FindStringSubmatch(line)
	if g == nil || !validName(g[3]) {
		return nil, false
	}
	if !quantityInBounds(parseQuantity(g[1]), g[2]) {
		return nil, false
	}
	return newMatch(g[3], g[1], g[2], numbers), true
}

func matchNameSepQtyUnit(_ *Matcher, line string, numbers []float64) (*LineMatch, bool) {
	g := nameSepQtyRe.FindStringSubmatch(line)
	if g == nil || !validName(g[1]) {
		return nil, false
	}
	if !quantityInBounds(parseQuantity(g[2]), g[3]) {
		return nil, false
	}
	return newMatch(g[1], g[2], g[3], numbers), true
}

func matchNameDigits(m *Matcher, line string, numbers []float64) (*LineMatch, bool) {
	g := nameDigitsRe.FindStringSubmatch(line)
	if g == nil || !validName(g[1]) {
		return nil, false
	}
	if !hasPlausiblePrice(numbers) && !m.vocab.IsRelevant(line) {
		return nil, false
	}

	unit := g[3]
	if currencyTokenRe.MatchString(unit) {
		unit = ""
	}
	// A large run is a price, not a quantity: leave it for the classifier.
	if parseQuantity(g[2]) >= maxQuantity {
		return &LineMatch{
			Name:      strings.TrimSpace(g[1]),
			Unit:      unit,
			Remaining: append([]float64(nil), numbers...),
		}, true
	}
	return newMatch(g[1], g[2], unit, numbers), true
}

func matchVocabulary(m *Matcher, line string, numbers []float64) (*LineMatch, bool) {
	if len(numbers) == 0 || !m.vocab.IsRelevant(line) {
		return nil, false
	}
	name := qtyUnitRe.ReplaceAllString(line, " ")
	name = rpTokenRe.ReplaceAllString(name, " ")
	name = nonNameCharsRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(spacesRe.ReplaceAllString(name, " "))
	if len(name) <= 2 {
		return nil, false
	}
	return &LineMatch{
		Name:      name,
		Remaining: append([]float64(nil), numbers...),
	}, true
}

// newMatch builds a match whose quantity came from qtyToken, removing that
// quantity once from the line's numbers.
func newMatch(name, qtyToken, unit string, numbers []float64) *LineMatch {
	return &LineMatch{
		Name:      strings.TrimSpace(name),
		Quantity:  parseQuantity(qtyToken),
		Unit:      unit,
		Remaining: removeFirst(numbers, digitValue(qtyToken)),
	}
}

func removeFirst(numbers []float64, value float64) []float64 {
	out := make([]float64, 0, len(numbers))
	removed := false
	for _, n := range numbers {
		if !removed && n == value {
			removed = true
			continue
		}
		out = append(out, n)
	}
	return out
}

func validName(name string) bool {
	name = strings.TrimSpace(name)
	if currencyTokenRe.MatchString(name) {
		return false
	}
	return len(letterRe.FindAllString(name, 2)) >= 2
}

func quantityInBounds(qty float64, unit string) bool {
	if qty <= 0 {
		return false
	}
	if isMeasureUnit(NormalizeUnit(unit)) {
		return qty <= maxMeasureQuantity
	}
	return qty < maxQuantity
}

func hasPlausiblePrice(numbers []float64) bool {
	for _, n := range numbers {
		if n >= minPlausiblePrice {
			return true
		}
	}
	return false
}
