package nota

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSupplier(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		supplier string
		index    int
	}{
		{"dotted leader", []string{"Toko ...Indah Abadi... Jl. Merdeka No. 5", "08/11/2024"}, "Indah Abadi", 0},
		{"comma address", []string{"CV. Sumber Rejeki, Jl. Raya 10"}, "Sumber Rejeki", 0},
		{"marker last", []string{"08/11/2024", "Indah Jaya Store"}, "Indah Jaya", 1},
		{"colon and ruko", []string{"PT: Kopi Nusantara Ruko Blok A2"}, "Kopi Nusantara", 0},
		{"fallback truncated", []string{"08/11/2024", "Sinar Jaya Makmur Sentosa Abadi, Jl. Veteran 12"}, "Sinar Jaya Makmur Sentosa Abadi", 1},
		{"fallback plain", []string{"Kedai Bu Tini", "Kopi Arabica 2 Kg 50000"}, "Kedai Bu Tini", 0},
		{"marker line with phone", []string{"CV Sumber Makmur Telp 021555", "Kopi Arabica 2 Kg 50000"}, "Sumber Makmur", 0},
		{"nota inside the name", []string{"Toko Kopi Nota Jaya", "Gula Pasir 2 kg 30.000"}, "Kopi Nota Jaya", 0},
		{"no header", []string{"Kopi Arabica 2 Kg 50000", "Susu UHT 1 liter 18.000"}, "", -1},
		{"item lines before the name", []string{"Gula Pasir 2 kg 30.000", "Kedai Bu Tini"}, "Kedai Bu Tini", 1},
		{"thank you line ignored", []string{"Terima kasih sudah belanja di toko kami"}, "", -1},
		{"nothing", []string{"12345", "08/11/2024"}, "", -1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			supplier, index := ExtractSupplier(test.lines)
			assert.Equal(t, test.supplier, supplier)
			assert.Equal(t, test.index, index)
		})
	}
}

func TestExtractDate(t *testing.T) {
	assert.Equal(t, "08/11/2024", ExtractDate([]string{"Toko Maju", "08/11/2024"}))
	assert.Equal(t, "8-11-24", ExtractDate([]string{"Kasir: Ani", "Tgl 8-11-24 10:00"}))
	assert.Empty(t, ExtractDate([]string{"Kopi 2 kg"}))
}

func TestExtractTotal(t *testing.T) {
	tests := []struct {
		lines    []string
		expected float64
		ok       bool
	}{
		{[]string{"Kopi 2 kg 50000", "Total Rp 150.000"}, 150000, true},
		{[]string{"Grand Total: 1.250.000,00"}, 1250000, true},
		{[]string{"Subtotal 140.000", "Total 150.000"}, 140000, true},
		{[]string{"JUMLAH Rp.75.500"}, 75500, true},
		{[]string{"Total Item 3"}, 0, false},
		{[]string{"Kopi 2 kg 50000"}, 0, false},
	}

	for _, test := range tests {
		total, ok := ExtractTotal(test.lines)
		assert.Equal(t, test.ok, ok, "Lines: %v", test.lines)
		assert.Equal(t, test.expected, total, "Lines: %v", test.lines)
	}
}
