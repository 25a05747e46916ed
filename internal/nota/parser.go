package nota

import (
	"strings"

	"go.uber.org/zap"
)

// Parser turns OCR text into a ParsedReceipt. It holds only immutable tables
// and may be shared between goroutines.
type Parser struct {
	vocab   *Vocabulary
	matcher *Matcher
	logger  *zap.Logger
}

// NewParser creates a parser with the default vocabulary.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	vocab := NewVocabulary()
	return &Parser{
		vocab:   vocab,
		matcher: NewMatcher(vocab),
		logger:  logger,
	}
}

var defaultParser = NewParser(nil)

// Parse parses text with the default parser.
func Parse(text string) *ParsedReceipt {
	return defaultParser.Parse(text)
}

// Vocabulary returns the vocabulary used for scoring and categories.
func (p *Parser) Vocabulary() *Vocabulary {
	return p.vocab
}

// Parse extracts header fields and line items from raw OCR text. An empty or
// unrecognizable receipt yields a result with zero items, never an error.
func (p *Parser) Parse(text string) *ParsedReceipt {
	lines := SplitLines(text)
	result := &ParsedReceipt{Items: []LineItem{}}

	supplier, supplierLine := p.extractSupplier(lines)
	result.Supplier = supplier
	result.Date = ExtractDate(lines)
	if total, ok := ExtractTotal(lines); ok {
		result.Total = FormatRupiah(total)
		result.TotalAmount = int64(total)
	}

	for i, line := range lines {
		if i == supplierLine || p.matcher.Skip(line, supplier) {
			continue
		}
		item, ok := p.ParseLine(line)
		if !ok {
			continue
		}
		result.Items = append(result.Items, item)
	}

	p.logger.Debug("Parsed nota",
		zap.Int("lines", len(lines)),
		zap.Int("items", len(result.Items)),
		zap.String("supplier", result.Supplier),
		zap.String("date", result.Date),
		zap.String("total", result.Total),
	)
	return result
}

// ParseLine runs the matcher, classifier and normalizer over a single line.
// The pre-filter is not applied.
func (p *Parser) ParseLine(line string) (LineItem, bool) {
	lm, ok := p.matcher.Match(line)
	if !ok {
		return LineItem{}, false
	}

	name := CleanName(lm.Name)
	if len(letterRe.FindAllString(name, 2)) < 2 {
		p.logger.Debug("Dropped match without a usable name",
			zap.String("line", line), zap.String("pattern", lm.Pattern))
		return LineItem{}, false
	}

	c := Reconcile(lm.Quantity, Classify(lm.Remaining))
	item := LineItem{
		Name:       name,
		Quantity:   c.Quantity,
		Unit:       NormalizeUnit(lm.Unit),
		Category:   p.vocab.Categorize(name),
		Group:      p.vocab.Group(name),
		UnitPrice:  FormatRupiah(c.UnitPrice),
		TotalPrice: FormatRupiah(c.Total),
	}
	if item.UnitPrice != "" {
		item.UnitPriceAmount = int64(c.UnitPrice)
	}
	if item.TotalPrice != "" {
		item.TotalAmount = int64(c.Total)
	}

	p.logger.Debug("Matched item line",
		zap.String("line", line),
		zap.String("pattern", lm.Pattern),
		zap.String("name", item.Name),
		zap.Float64("quantity", item.Quantity),
	)
	return item, true
}

// SplitLines splits text into trimmed, non-empty lines.
func SplitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(strings.ReplaceAll(l, "\r", "")); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
