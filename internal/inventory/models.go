package inventory

import (
	"time"

	"github.com/gmsas95/notakopi/internal/nota"
	"github.com/gmsas95/notakopi/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Item is one stock line in the inventory. JSON names follow the admin UI.
type Item struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Code          string    `gorm:"uniqueIndex;size:16" json:"kode_barang"`
	Name          string    `gorm:"index;not null" json:"nama_barang"`
	Quantity      float64   `json:"jumlah"`
	Unit          string    `json:"satuan,omitempty"`
	Category      string    `gorm:"index" json:"kategori"`
	Notes         string    `json:"catatan"`
	Supplier      string    `json:"nama_toko,omitempty"`
	LastUnitPrice int64     `json:"harga_terakhir,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName keeps the table name used by the original app
func (Item) TableName() string {
	return "inventori"
}

// BeforeCreate hook for Item
func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// NotaRecord is the history entry written for every saved nota
type NotaRecord struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Source      string    `gorm:"index" json:"source"`
	Supplier    string    `json:"supplier"`
	Date        string    `json:"date"`
	Total       string    `json:"total"`
	TotalAmount int64     `json:"total_amount"`
	ItemCount   int       `json:"item_count"`
	RawText     string    `gorm:"type:text" json:"raw_text,omitempty"`
	Payload     string    `gorm:"type:text" json:"-"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate hook for NotaRecord
func (r *NotaRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Receipt decodes the parsed receipt stored with the record
func (r *NotaRecord) Receipt() (*nota.ParsedReceipt, error) {
	var receipt nota.ParsedReceipt
	if err := store.FromJSON([]byte(r.Payload), &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}
