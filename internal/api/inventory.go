package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gmsas95/notakopi/internal/export"
	"github.com/gmsas95/notakopi/internal/inventory"
	"github.com/gofiber/fiber/v2"
)

// itemRequest mirrors the admin UI's form payload
type itemRequest struct {
	ID       string   `json:"id"`
	Name     string   `json:"nama_barang"`
	Quantity *float64 `json:"jumlah"`
	Unit     string   `json:"satuan"`
	Category string   `json:"kategori"`
	Notes    string   `json:"catatan"`
	Supplier string   `json:"nama_toko"`
}

func (r *itemRequest) apply(item *inventory.Item) {
	item.Name = strings.TrimSpace(r.Name)
	item.Quantity = *r.Quantity
	item.Category = r.Category
	item.Notes = r.Notes
	item.Supplier = r.Supplier
	if r.Unit != "" {
		item.Unit = r.Unit
	}
}

func (s *Server) handleListItems(c *fiber.Ctx) error {
	items, err := s.inventory.List(inventory.ListFilter{
		Category: c.Query("kategori"),
		Search:   c.Query("search"),
		Limit:    c.QueryInt("limit", 0),
	})
	if err != nil {
		return s.fail(c, err, "Gagal mengambil data inventori")
	}
	return c.JSON(fiber.Map{"data": items})
}

func (s *Server) handleCreateItem(c *fiber.Ctx) error {
	var req itemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if strings.TrimSpace(req.Name) == "" || req.Quantity == nil {
		return c.Status(400).JSON(fiber.Map{"error": "Nama barang dan jumlah harus diisi"})
	}

	item := &inventory.Item{}
	req.apply(item)
	if err := s.inventory.Create(item); err != nil {
		return s.fail(c, err, "Gagal menambahkan item inventori")
	}
	return c.Status(201).JSON(fiber.Map{"data": item})
}

func (s *Server) handleUpdateItem(c *fiber.Ctx) error {
	var req itemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.ID == "" || strings.TrimSpace(req.Name) == "" || req.Quantity == nil {
		return c.Status(400).JSON(fiber.Map{"error": "Field yang diperlukan tidak lengkap"})
	}

	item, err := s.inventory.Get(req.ID)
	if err != nil {
		return s.fail(c, err, "Gagal mengupdate item inventori")
	}
	req.apply(item)
	if err := s.inventory.Update(item); err != nil {
		return s.fail(c, err, "Gagal mengupdate item inventori")
	}
	return c.JSON(fiber.Map{"data": item})
}

func (s *Server) handleDeleteItem(c *fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return c.Status(400).JSON(fiber.Map{"error": "ID diperlukan"})
	}
	if err := s.inventory.Delete(id); err != nil {
		return s.fail(c, err, "Gagal menghapus item inventori")
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleLowStock(c *fiber.Ctx) error {
	threshold := s.config.Inbox.LowStockThreshold
	if v := c.QueryFloat("threshold", -1); v >= 0 {
		threshold = v
	}
	items, err := s.inventory.LowStock(threshold)
	if err != nil {
		return s.fail(c, err, "Gagal mengambil data inventori")
	}
	return c.JSON(fiber.Map{"data": items, "threshold": threshold})
}

// handleExport downloads the inventory and nota history as XLSX
func (s *Server) handleExport(c *fiber.Ctx) error {
	items, err := s.inventory.List(inventory.ListFilter{Category: c.Query("kategori")})
	if err != nil {
		return s.fail(c, err, "Gagal mengambil data inventori")
	}
	notas, err := s.inventory.ListNotas(0)
	if err != nil {
		return s.fail(c, err, "Gagal mengambil riwayat nota")
	}

	data, err := export.Workbook(items, notas)
	if err != nil {
		return s.fail(c, err, "Gagal membuat file export")
	}

	c.Attachment(fmt.Sprintf("inventori-%s.xlsx", time.Now().Format("20060102")))
	c.Set(fiber.HeaderContentType, export.ContentType)
	return c.Send(data)
}
