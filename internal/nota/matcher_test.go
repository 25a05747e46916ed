package nota

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Skip(t *testing.T) {
	m := NewMatcher(nil)
	supplier := "Indah Abadi"

	skipped := []string{
		"Indah Abadi",
		"A",
		"150.000",
		"Rp 150.000",
		"Total Rp 150.000",
		"SUBTOTAL 140.000",
		"Terima Kasih",
		"Pembayaran: TUNAI",
		"Kasir: Ani",
		"08/11/2024",
		"Tgl 8-11-24",
		"Jam 14:30",
	}
	for _, line := range skipped {
		assert.True(t, m.Skip(line, supplier), "Line should be skipped: %q", line)
	}

	kept := []string{
		"Kopi Arabica 2 Kg 50000",
		"Kopi 2 kg 14:30 50000",
		"Gula 1.25 kg 20.000",
	}
	for _, line := range kept {
		assert.False(t, m.Skip(line, supplier), "Line should be kept: %q", line)
	}
}

func TestMatcher_Match(t *testing.T) {
	m := NewMatcher(nil)

	tests := []struct {
		line      string
		pattern   string
		name      string
		quantity  float64
		unit      string
		remaining []float64
	}{
		{"Kopi Arabica 2 Kg 50000", "name_qty_unit", "Kopi Arabica", 2, "Kg", []float64{50000}},
		{"2 kg Kopi Robusta 90.000", "qty_unit_name", "Kopi Robusta 90.000", 2, "kg", []float64{90000}},
		{"Gula Pasir - 5kg 75.000", "name_sep_qty_unit", "Gula Pasir", 5, "kg", []float64{75000}},
		{"Sedotan 500 12.000", "name_digits", "Sedotan", 500, "", []float64{12000}},
		{"Gula 1500 gram 20.000", "name_qty_unit", "Gula", 1500, "gram", []float64{20000}},
		{"2x Kopi Susu 30.000", "vocabulary", "Kopi Susu", 0, "", []float64{2, 30000}},
	}

	for _, test := range tests {
		lm, ok := m.Match(test.line)
		require.True(t, ok, "Line: %s", test.line)
		assert.Equal(t, test.pattern, lm.Pattern, "Line: %s", test.line)
		assert.Equal(t, test.name, lm.Name, "Line: %s", test.line)
		assert.Equal(t, test.quantity, lm.Quantity, "Line: %s", test.line)
		assert.Equal(t, test.unit, lm.Unit, "Line: %s", test.line)
		assert.Equal(t, test.remaining, lm.Remaining, "Line: %s", test.line)
	}
}

func TestMatcher_QuantityBounds(t *testing.T) {
	m := NewMatcher(nil)

	// 1500 pcs is out of bounds for a count unit, so the run is left as a
	// number for the classifier.
	lm, ok := m.Match("Gula 1500 pcs 20.000")
	require.True(t, ok)
	assert.Equal(t, "name_digits", lm.Pattern)
	assert.Zero(t, lm.Quantity)
	assert.Equal(t, []float64{1500, 20000}, lm.Remaining)
}

func TestMatcher_NoMatch(t *testing.T) {
	m := NewMatcher(nil)

	for _, line := range []string{
		"Unknown Widget",
		"Ongkos Kirim 3",
		"Rp 2 kg",
	} {
		_, ok := m.Match(line)
		assert.False(t, ok, "Line: %s", line)
	}
}
