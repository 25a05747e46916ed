package inventory

import (
	"context"
	"strings"

	apperrors "github.com/gmsas95/notakopi/internal/errors"
	"github.com/gmsas95/notakopi/internal/nota"
	"github.com/gmsas95/notakopi/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SaveResult describes what SaveNota did with each parsed line
type SaveResult struct {
	Nota    *NotaRecord `json:"nota"`
	Created []Item      `json:"created"`
	Merged  []Item      `json:"merged"`
}

// Service applies parsed notas to the inventory
type Service struct {
	store  *Store
	logger *zap.Logger
}

// NewService creates a new inventory service
func NewService(st *Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, logger: logger}
}

// Store returns the underlying store for CRUD handlers
func (s *Service) Store() *Store {
	return s.store
}

// SaveNota adds every item of receipt to the inventory in one transaction.
// An item similar to an existing one increases its quantity; anything else
// becomes a new item. The nota itself is kept in the history.
func (s *Service) SaveNota(ctx context.Context, receipt *nota.ParsedReceipt, source, rawText string) (*SaveResult, error) {
	if receipt == nil || len(receipt.Items) == 0 {
		return nil, apperrors.ErrEmptyNota
	}

	result := &SaveResult{Created: []Item{}, Merged: []Item{}}
	err := s.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := s.store.withTx(tx)

		existing, err := st.List(ListFilter{})
		if err != nil {
			return err
		}

		for _, line := range receipt.Items {
			if strings.TrimSpace(line.Name) == "" {
				continue
			}
			if i := bestMatch(line.Name, line.Unit, existing); i >= 0 {
				item := &existing[i]
				mergeLine(item, line, receipt.Supplier)
				if err := tx.Save(item).Error; err != nil {
					return err
				}
				result.Merged = append(result.Merged, *item)
				continue
			}

			item := newItemFromLine(line, receipt.Supplier)
			if err := st.Create(item); err != nil {
				return err
			}
			existing = append(existing, *item)
			result.Created = append(result.Created, *item)
		}

		rec := &NotaRecord{
			Source:      source,
			Supplier:    receipt.Supplier,
			Date:        receipt.Date,
			Total:       receipt.Total,
			TotalAmount: receipt.TotalAmount,
			ItemCount:   len(receipt.Items),
			RawText:     rawText,
			Payload:     string(store.ToJSON(receipt)),
		}
		if err := st.CreateNota(rec); err != nil {
			return err
		}
		result.Nota = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Saved nota to inventory",
		zap.String("nota_id", result.Nota.ID),
		zap.String("supplier", receipt.Supplier),
		zap.Int("created", len(result.Created)),
		zap.Int("merged", len(result.Merged)),
	)
	return result, nil
}

// LowStock returns items whose quantity is at or below threshold
func (s *Service) LowStock(threshold float64) ([]Item, error) {
	return s.store.LowStock(threshold)
}

func newItemFromLine(line nota.LineItem, supplier string) *Item {
	category := line.Category
	if category == "" {
		category = nota.CategoryDefault
	}
	return &Item{
		Name:          line.Name,
		Quantity:      line.Quantity,
		Unit:          line.Unit,
		Category:      category,
		Notes:         itemNotes(line.Unit, supplier),
		Supplier:      supplier,
		LastUnitPrice: line.UnitPriceAmount,
	}
}

func mergeLine(item *Item, line nota.LineItem, supplier string) {
	item.Quantity += line.Quantity
	if item.Unit == "" {
		item.Unit = line.Unit
	}
	if item.Category == "" || item.Category == nota.CategoryDefault {
		if line.Category != "" {
			item.Category = line.Category
		}
	}
	if supplier != "" {
		item.Supplier = supplier
	}
	if line.UnitPriceAmount > 0 {
		item.LastUnitPrice = line.UnitPriceAmount
	}
}

// itemNotes renders "unit - supplier" the way items saved from a nota are
// annotated.
func itemNotes(unit, supplier string) string {
	if supplier == "" {
		return unit
	}
	if unit == "" {
		return supplier
	}
	return unit + " - " + supplier
}
