package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a live catalog entry created by publishing a draft. The store
// owns its persisted shape.
type Product struct {
	ID               string           `json:"id"`
	SourceDraftID    string           `json:"source_draft_id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	ShortDescription string           `json:"short_description"`
	Category         string           `json:"category"`
	Price            decimal.Decimal  `json:"price"`
	CompareAtPrice   *decimal.Decimal `json:"compare_at_price,omitempty"`
	Images           []string         `json:"images"`
	InStock          bool             `json:"in_stock"`
	Featured         bool             `json:"featured"`
	CreatedAt        time.Time        `json:"created_at"`
}

// ProductInput is the catalog write model.
type ProductInput struct {
	SourceDraftID    string
	Name             string
	Description      string
	ShortDescription string
	Category         string
	Price            decimal.Decimal
	CompareAtPrice   *decimal.Decimal
	Images           []string
	InStock          bool
	Featured         bool
}

// CentsToPrice converts an integer amount of minor units to a decimal price.
func CentsToPrice(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
