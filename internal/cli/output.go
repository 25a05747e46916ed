package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gmsas95/notakopi/internal/inventory"
	"github.com/gmsas95/notakopi/internal/nota"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// resolveFormat returns the requested format, or a table on a terminal and
// JSON when piped.
func resolveFormat(format string, out io.Writer) string {
	if format != "" {
		return strings.ToLower(format)
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return FormatTable
	}
	return FormatJSON
}

func encode(out io.Writer, v interface{}, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (use table, json or yaml)", format)
	}
}

func writeReceipt(out io.Writer, r *nota.ParsedReceipt, format string) error {
	if format == FormatTable {
		_, err := fmt.Fprintln(out, receiptTable(r))
		return err
	}
	return encode(out, r, format)
}

func writeItems(out io.Writer, items []inventory.Item, format string) error {
	if format == FormatTable {
		_, err := fmt.Fprintln(out, itemsTable(items))
		return err
	}
	if items == nil {
		items = []inventory.Item{}
	}
	return encode(out, items, format)
}

func receiptTable(r *nota.ParsedReceipt) string {
	var b strings.Builder

	supplier := r.Supplier
	if supplier == "" {
		supplier = "Unknown supplier"
	}
	b.WriteString(titleStyle.Render(supplier))
	if r.Date != "" {
		b.WriteString(mutedStyle.Render("  " + r.Date))
	}
	b.WriteString("\n")

	t := newTable("#", "Item", "Qty", "Unit", "Category", "Unit price", "Total").
		StyleFunc(alignRight(0, 2, 5, 6))
	for i, item := range r.Items {
		t.Row(strconv.Itoa(i+1), item.Name, formatQty(item.Quantity), item.Unit,
			item.Category, item.UnitPrice, item.TotalPrice)
	}
	b.WriteString(t.String())

	b.WriteString("\n")
	if r.Total != "" {
		b.WriteString(titleStyle.Render("Total " + r.Total))
		b.WriteString("  ")
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d items", r.ItemCount())))
	return b.String()
}

func itemsTable(items []inventory.Item) string {
	t := newTable("Code", "Item", "Qty", "Unit", "Category", "Supplier").
		StyleFunc(alignRight(2))
	for _, item := range items {
		t.Row(item.Code, item.Name, formatQty(item.Quantity), item.Unit, item.Category, item.Supplier)
	}
	return t.String() + "\n" + mutedStyle.Render(fmt.Sprintf("%d items", len(items)))
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

func alignRight(cols ...int) func(row, col int) lipgloss.Style {
	return func(row, col int) lipgloss.Style {
		for _, c := range cols {
			if c == col {
				return cellStyle.Align(lipgloss.Right)
			}
		}
		return cellStyle
	}
}

func formatQty(q float64) string {
	if q == 0 {
		return "-"
	}
	return strconv.FormatFloat(q, 'f', -1, 64)
}
