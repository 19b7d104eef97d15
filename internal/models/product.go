package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type Product struct {
	ID        string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SKU       string          `gorm:"column:sku;type:text;uniqueIndex" json:"sku"`
	NameEN    string          `gorm:"column:name_en;type:text" json:"name_en"`
	NameAR    string          `gorm:"column:name_ar;type:text" json:"name_ar"`
	Category  string          `gorm:"column:category;type:text;index" json:"category"` // HDPE, LDPE, PP, ...
	PriceEGP  float64         `gorm:"column:price_egp" json:"price_egp"`
	Unit      string          `gorm:"column:unit;type:text" json:"unit"` // kg | ton | bag
	StockKg   float64         `gorm:"column:stock_kg" json:"stock_kg"`
	Attrs     datatypes.JSON  `gorm:"column:attrs;type:jsonb" json:"attrs,omitempty"`
	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`
	CreatedAt time.Time       `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Product) TableName() string { return "products" }

// Name returns the display name for the given locale.
func (p Product) Name(locale string) string {
	if locale == "ar" && p.NameAR != "" {
		return p.NameAR
	}
	return p.NameEN
}
