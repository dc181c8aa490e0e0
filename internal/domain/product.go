package domain

import (
	"time"

	"github.com/google/uuid"
)

// Category is the fixed set of catalog categories.
type Category string

const (
	CategoryMen     Category = "men"
	CategoryWomen   Category = "women"
	CategoryKids    Category = "kids"
	CategoryPremium Category = "premium"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryMen, CategoryWomen, CategoryKids, CategoryPremium:
		return true
	}
	return false
}

// ProductImage is a single image hosted on the external media store.
// StorageID identifies the asset for later deletion.
type ProductImage struct {
	ID        uuid.UUID `json:"id" db:"id"`
	URL       string    `json:"url" db:"url"`
	StorageID string    `json:"storage_id" db:"storage_id"`
}

// Product represents a catalog entry.
type Product struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	Name        string         `json:"name" db:"name"`
	Description string         `json:"description" db:"description"`
	Price       float64        `json:"price" db:"price"`
	Category    Category       `json:"category" db:"category"`
	Images      []ProductImage `json:"images"`
	Stock       int            `json:"stock" db:"stock"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}
