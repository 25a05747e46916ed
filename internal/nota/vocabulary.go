package nota

import (
	"regexp"
	"strings"
)

// Keyword weights per match kind.
const (
	priorityExactScore = 20
	priorityWordScore  = 15
	prioritySubScore   = 10

	generalExactScore = 10
	generalWordScore  = 8
	generalSubScore   = 5

	// Shorter keywords only count as whole words.
	substringMinLen = 4
)

var priorityKeywords = []string{
	"kopi", "coffee",
	"susu", "milk",
	"gula", "sugar",
	"teh", "tea",
	"cup", "gelas",
	"air", "water",
}

var generalKeywords = []string{
	// coffee & dairy
	"arabica", "robusta", "espresso", "latte", "biji kopi", "kopi bubuk",
	"uht", "fresh milk", "susu kental", "skm", "cream", "creamer", "whipping cream",
	"keju", "cheese", "butter", "yogurt", "oat milk", "almond milk",
	// sweeteners
	"gula pasir", "gula aren", "gula merah", "brown sugar", "madu", "honey", "fructose",
	// tea
	"green tea", "black tea", "thai tea", "jasmine",
	// syrups & sauces
	"sirup", "syrup", "saus", "sauce", "vanilla", "caramel", "karamel", "hazelnut",
	"monin", "torani", "denali",
	// powders
	"bubuk", "powder", "matcha", "coklat", "chocolate", "cocoa", "milo", "ovaltine", "taro",
	// packaging
	"paper cup", "plastic cup", "sedotan", "straw", "lid", "tutup", "sleeve",
	"box", "paper bag", "kantong", "plastik", "plastic", "tissue", "serbet", "napkin", "wrapper",
	// drinks
	"air mineral", "aqua", "mineral water", "soda", "jus", "juice",
	// toppings
	"boba", "pearl", "jelly", "oreo", "es batu", "ice", "nata de coco", "pudding",
	// brands
	"frisian flag", "indomilk", "greenfields", "diamond", "nestle", "kapal api", "ultra", "walls",
}

type categoryRule struct {
	name     string
	keywords []string
}

var categoryRules = []categoryRule{
	{CategoryKopi, []string{"kopi", "coffee", "arabica", "robusta", "espresso", "latte", "kapal api"}},
	{CategorySusu, []string{"susu", "milk", "uht", "cream", "creamer", "keju", "cheese", "butter", "yogurt", "skm", "indomilk", "greenfields", "frisian flag", "diamond"}},
	{CategoryTeh, []string{"teh", "tea", "jasmine"}},
	{CategoryPemanis, []string{"gula", "sugar", "madu", "honey", "fructose", "sweetener"}},
	{CategorySirup, []string{"sirup", "syrup", "saus", "sauce", "vanilla", "caramel", "karamel", "hazelnut", "monin", "torani", "denali"}},
	{CategoryBubuk, []string{"bubuk", "powder", "matcha", "coklat", "chocolate", "cocoa", "milo", "ovaltine", "taro"}},
	{CategoryKemasan, []string{"cup", "gelas", "sedotan", "straw", "lid", "tutup", "sleeve", "paper bag", "kantong", "plastik", "plastic", "tissue", "serbet", "napkin", "wrapper", "box", "label"}},
	{CategoryMinuman, []string{"air mineral", "aqua", "mineral", "water", "soda", "jus", "juice"}},
	{CategoryTopping, []string{"boba", "pearl", "jelly", "oreo", "nata de coco", "pudding", "es batu"}},
}

type keyword struct {
	text     string
	priority bool
	word     *regexp.Regexp
}

// Vocabulary scores text against the coffee-shop supply vocabulary and maps
// names to categories. It is immutable after construction and safe for
// concurrent use.
type Vocabulary struct {
	keywords   []keyword
	categories []categoryRule
}

// NewVocabulary builds the default vocabulary.
func NewVocabulary() *Vocabulary {
	v := &Vocabulary{categories: categoryRules}
	add := func(words []string, priority bool) {
		for _, w := range words {
			v.keywords = append(v.keywords, keyword{
				text:     w,
				priority: priority,
				word:     regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`),
			})
		}
	}
	add(priorityKeywords, true)
	add(generalKeywords, false)
	return v
}

// Score sums the keyword hits in text. Each keyword counts once, at its
// strongest match kind.
func (v *Vocabulary) Score(text string) int {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return 0
	}

	score := 0
	for _, kw := range v.keywords {
		exact, word, sub := generalExactScore, generalWordScore, generalSubScore
		if kw.priority {
			exact, word, sub = priorityExactScore, priorityWordScore, prioritySubScore
		}

		switch {
		case lower == kw.text:
			score += exact
		case kw.word.MatchString(lower):
			score += word
		case len(kw.text) >= substringMinLen && strings.Contains(lower, kw.text):
			score += sub
		}
	}
	return score
}

// IsRelevant reports whether text mentions anything from the vocabulary.
func (v *Vocabulary) IsRelevant(text string) bool {
	return v.Score(text) > 0
}

// Categorize returns the first category whose keywords occur in name.
func (v *Vocabulary) Categorize(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range v.categories {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.name
			}
		}
	}
	return CategoryDefault
}

// Group maps name to the coarse inventory group.
func (v *Vocabulary) Group(name string) string {
	category := v.Categorize(name)
	switch {
	case category == CategoryKemasan:
		return GroupKemasan
	case category != CategoryDefault:
		return GroupBahanBaku
	case v.IsRelevant(name):
		return GroupBahanBaku
	default:
		return GroupLainnya
	}
}
