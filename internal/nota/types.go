// Package nota turns the plain-text OCR output of a purchase receipt (nota)
// into structured line items plus the supplier, date and grand total printed
// on it. Everything here is pure text heuristics: no layout information is
// available and nothing is stored between calls.
package nota

// Category groups used by the inventory screens.
const (
	GroupBahanBaku = "Bahan Baku"
	GroupKemasan   = "Kemasan"
	GroupLainnya   = "Lainnya"
)

// Fine-grained categories, in the order they are tried.
const (
	CategoryKopi    = "Kopi"
	CategorySusu    = "Susu & Dairy"
	CategoryTeh     = "Teh"
	CategoryPemanis = "Pemanis"
	CategorySirup   = "Sirup & Saus"
	CategoryBubuk   = "Bubuk & Powder"
	CategoryKemasan = "Kemasan"
	CategoryMinuman = "Minuman"
	CategoryTopping = "Topping"

	// CategoryDefault is returned when no category keyword matches.
	CategoryDefault = "Bahan Baku"
)

// LineItem is one purchased product recovered from a receipt line.
type LineItem struct {
	Name     string  `json:"name" yaml:"name"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
	Unit     string  `json:"unit" yaml:"unit"`
	Category string  `json:"category" yaml:"category"`
	Group    string  `json:"group" yaml:"group"`

	// Display strings, empty when the amount is unknown.
	UnitPrice  string `json:"unit_price,omitempty" yaml:"unit_price,omitempty"`
	TotalPrice string `json:"total_price,omitempty" yaml:"total_price,omitempty"`

	UnitPriceAmount int64 `json:"unit_price_amount,omitempty" yaml:"unit_price_amount,omitempty"`
	TotalAmount     int64 `json:"total_amount,omitempty" yaml:"total_amount,omitempty"`
}

// ParsedReceipt is the result of a single Parse call.
type ParsedReceipt struct {
	Items       []LineItem `json:"items" yaml:"items"`
	Supplier    string     `json:"supplier,omitempty" yaml:"supplier,omitempty"`
	Date        string     `json:"date,omitempty" yaml:"date,omitempty"`
	Total       string     `json:"total,omitempty" yaml:"total,omitempty"`
	TotalAmount int64      `json:"total_amount,omitempty" yaml:"total_amount,omitempty"`
}

// ItemCount returns the number of parsed line items.
func (r *ParsedReceipt) ItemCount() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}

// Classification is the quantity/price split the classifier settled on for
// one line. Zero means the field was not determined.
type Classification struct {
	Quantity  float64
	UnitPrice float64
	Total     float64
}

// LineMatch is what the line matcher recovered from one OCR line.
type LineMatch struct {
	Name     string
	Quantity float64 // 0 when the pattern did not capture a quantity
	Unit     string  // raw unit token, not normalized
	Pattern  string

	// Remaining holds every number on the line except the captured quantity.
	Remaining []float64
}
