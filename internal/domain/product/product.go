package product

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrInvalidName      = errors.New("product name is required")
	ErrInvalidPrice     = errors.New("product price cannot be negative")
	ErrInvalidInventory = errors.New("inventory cannot be negative")
	ErrInvalidCategory  = errors.New("category is required")
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 2000
)

// Product is a catalog entry. Owned and mutated only by admin operations;
// order items snapshot name and price at checkout instead of referencing
// the product live.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Images      []string  `json:"images"`
	Category    string    `json:"category"`
	Inventory   int       `json:"inventory"`
	Featured    bool      `json:"featured"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the admin-facing creation/update invariants.
func (p *Product) Validate() error {
	name := strings.TrimSpace(p.Name)
	if name == "" || len(name) > maxNameLength {
		return ErrInvalidName
	}
	if len(p.Description) > maxDescriptionLength {
		return errors.New("description cannot exceed 2000 characters")
	}
	if p.Price < 0 {
		return ErrInvalidPrice
	}
	if p.Inventory < 0 {
		return ErrInvalidInventory
	}
	if strings.TrimSpace(p.Category) == "" {
		return ErrInvalidCategory
	}
	return nil
}

// MainImage returns the first image URL, the one shown on listings.
func (p *Product) MainImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
