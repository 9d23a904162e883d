package catalog

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Product types known to the storefront.
const (
	TypeSimple    = "simple"
	TypeVariable  = "variable"
	TypeVariation = "variation"
	TypeLineItem  = "line_item"
)

const statusTrash = "trash"

// ErrProductNotFound is returned when the product does not exist.
var ErrProductNotFound = errors.New("product not found")

// Product is the subset of the store catalog the express checkout needs.
type Product struct {
	ID             int64           `json:"id"`
	ParentID       int64           `json:"parent_id,omitempty"`
	Name           string          `json:"name"`
	SKU            string          `json:"sku"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	Price          decimal.Decimal `json:"price"`
	ImageURL       string          `json:"image_url,omitempty"`
	GlobalUniqueID string          `json:"global_unique_id,omitempty"`
	Purchasable    bool            `json:"purchasable"`
}

// Exists reports whether the product still represents a live catalog entry.
func (p Product) Exists() bool {
	return p.ID > 0 && p.Status != statusTrash
}

// IsVariation reports whether the product is a variation of a variable parent.
func (p Product) IsVariation() bool {
	return p.Type == TypeVariation
}

// HasVariations reports whether a variation must be chosen before purchase.
func (p Product) HasVariations() bool {
	return p.Type == TypeVariable
}
