// Package export writes the inventory and nota history as an XLSX workbook
// for the bookkeeping spreadsheet.
package export

import (
	"fmt"

	"github.com/gmsas95/notakopi/internal/inventory"
	"github.com/xuri/excelize/v2"
)

const (
	SheetItems = "Inventori"
	SheetNotas = "Nota"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	itemHeaders = []string{"Kode", "Nama Barang", "Jumlah", "Satuan", "Kategori", "Toko", "Harga Terakhir", "Catatan", "Diperbarui"}
	notaHeaders = []string{"Tanggal Simpan", "Sumber", "Toko", "Tanggal Nota", "Jumlah Item", "Total"}
)

// Workbook renders items and notas into an XLSX file.
func Workbook(items []inventory.Item, notas []inventory.NotaRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// The default sheet becomes the inventory sheet.
	if err := f.SetSheetName(f.GetSheetName(0), SheetItems); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetNotas); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	rupiah, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr(`"Rp "#,##0`)})
	if err != nil {
		return nil, err
	}

	sw := sheetWriter{f: f, sheet: SheetItems}
	sw.header(itemHeaders, bold)
	for i, item := range items {
		row := i + 2
		sw.row(row,
			item.Code, item.Name, item.Quantity, item.Unit, item.Category,
			item.Supplier, priceCell(item.LastUnitPrice), item.Notes,
			item.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	sw.numberFormat("G", len(items), rupiah)
	sw.widths(map[string]float64{"A": 10, "B": 30, "C": 10, "D": 10, "E": 16, "F": 24, "G": 16, "H": 36, "I": 18})

	sw = sheetWriter{f: f, sheet: SheetNotas}
	sw.header(notaHeaders, bold)
	for i, n := range notas {
		row := i + 2
		sw.row(row,
			n.CreatedAt.Format("2006-01-02 15:04"), n.Source, n.Supplier, n.Date,
			n.ItemCount, priceCell(n.TotalAmount),
		)
	}
	sw.numberFormat("F", len(notas), rupiah)
	sw.widths(map[string]float64{"A": 18, "B": 24, "C": 28, "D": 14, "E": 12, "F": 16})

	if sw.err != nil {
		return nil, sw.err
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetWriter keeps the first error so callers can write cells unchecked.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) header(headers []string, style int) {
	if w.err != nil {
		return
	}
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	w.row(1, row...)
	if w.err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		w.err = w.f.SetCellStyle(w.sheet, "A1", last, style)
	}
	if w.err == nil {
		w.err = w.f.SetPanes(w.sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}
}

func (w *sheetWriter) row(row int, values ...interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(w.sheet, cell, &values)
}

func (w *sheetWriter) numberFormat(col string, rows, style int) {
	if w.err != nil || rows == 0 {
		return
	}
	w.err = w.f.SetCellStyle(w.sheet, col+"2", fmt.Sprintf("%s%d", col, rows+1), style)
}

func (w *sheetWriter) widths(cols map[string]float64) {
	for col, width := range cols {
		if w.err != nil {
			return
		}
		w.err = w.f.SetColWidth(w.sheet, col, col, width)
	}
}

// priceCell leaves unknown prices blank instead of writing zero.
func priceCell(amount int64) interface{} {
	if amount <= 0 {
		return ""
	}
	return amount
}

func strPtr(s string) *string { return &s }
