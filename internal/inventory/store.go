package inventory

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/gmsas95/notakopi/internal/errors"
	"gorm.io/gorm"
)

const codePrefix = "BRG"

// ListFilter narrows List results
type ListFilter struct {
	Category string
	Search   string
	Limit    int
}

// Store handles inventory persistence
type Store struct {
	db *gorm.DB
}

// NewStore creates a new inventory store
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Item{}, &NotaRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate inventory schemas: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) withTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// NextCode returns the code after the highest BRGnnnn in use.
func (s *Store) NextCode() (string, error) {
	var item Item
	err := s.db.Where("code LIKE ?", codePrefix+"%").
		Order("length(code) DESC, code DESC").
		First(&item).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return formatCode(1), nil
	}
	if err != nil {
		return "", err
	}

	n, err := strconv.Atoi(strings.TrimPrefix(item.Code, codePrefix))
	if err != nil {
		return formatCode(1), nil
	}
	return formatCode(n + 1), nil
}

func formatCode(n int) string {
	return fmt.Sprintf("%s%04d", codePrefix, n)
}

func validateItem(item *Item) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return apperrors.New(apperrors.ErrItemInvalid.Code, "nama_barang is required")
	}
	if item.Quantity < 0 {
		return apperrors.New(apperrors.ErrItemInvalid.Code, "jumlah cannot be negative")
	}
	return nil
}

// Create inserts item, assigning the next code when it has none
func (s *Store) Create(item *Item) error {
	if err := validateItem(item); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if item.Code == "" {
			code, err := s.withTx(tx).NextCode()
			if err != nil {
				return err
			}
			item.Code = code
		}
		return tx.Create(item).Error
	})
}

func (s *Store) Get(id string) (*Item, error) {
	var item Item
	err := s.db.Where("id = ?", id).First(&item).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.ErrItemNotFound.Code, fmt.Sprintf("item %s not found", id))
	}
	return &item, err
}

func (s *Store) List(filter ListFilter) ([]Item, error) {
	query := s.db.Model(&Item{})
	if filter.Category != "" && filter.Category != "all" {
		query = query.Where("category = ?", filter.Category)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var items []Item
	err := query.Order("created_at DESC").Find(&items).Error
	return items, err
}

// Update replaces the editable fields of an existing item
func (s *Store) Update(item *Item) error {
	if err := validateItem(item); err != nil {
		return err
	}
	existing, err := s.Get(item.ID)
	if err != nil {
		return err
	}
	item.Code = existing.Code
	item.CreatedAt = existing.CreatedAt
	return s.db.Save(item).Error
}

func (s *Store) Delete(id string) error {
	res := s.db.Where("id = ?", id).Delete(&Item{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrItemNotFound.Code, fmt.Sprintf("item %s not found", id))
	}
	return nil
}

// LowStock returns items at or below threshold, lowest first
func (s *Store) LowStock(threshold float64) ([]Item, error) {
	var items []Item
	err := s.db.Where("quantity <= ?", threshold).
		Order("quantity ASC, name ASC").
		Find(&items).Error
	return items, err
}

// Nota history

func (s *Store) CreateNota(rec *NotaRecord) error {
	return s.db.Create(rec).Error
}

func (s *Store) GetNota(id string) (*NotaRecord, error) {
	var rec NotaRecord
	err := s.db.Where("id = ?", id).First(&rec).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.ErrNotFound.Code, fmt.Sprintf("nota %s not found", id))
	}
	return &rec, err
}

func (s *Store) ListNotas(limit int) ([]NotaRecord, error) {
	query := s.db.Omit("payload", "raw_text").Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var recs []NotaRecord
	err := query.Find(&recs).Error
	return recs, err
}
