package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product condition values accepted by the catalog
const (
	ConditionNew         = "new"
	ConditionUsed        = "used"
	ConditionRefurbished = "refurbished"
)

// Product represents a listing in the catalog. IsAvailable doubles as the
// soft-delete marker: rows with IsAvailable=false stay in the table but are
// excluded from all public listing and search queries.
type Product struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Description   string    `json:"description" db:"description"`
	CategoryID    uuid.UUID `json:"category_id" db:"category_id"`
	Condition     string    `json:"condition" db:"condition"`
	Price         float64   `json:"price" db:"price"`
	OriginalPrice *float64  `json:"original_price,omitempty" db:"original_price"`
	OwnerID       uuid.UUID `json:"owner_id" db:"owner_id"`
	Location      string    `json:"location" db:"location"`
	IsAvailable   bool      `json:"is_available" db:"is_available"`
	IsFeatured    bool      `json:"is_featured" db:"is_featured"`
	ViewCount     int       `json:"view_count" db:"view_count"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`

	// Populated by joins on read paths, not stored on the products table.
	CategoryName  string         `json:"category_name,omitempty" db:"-"`
	OwnerUsername string         `json:"owner_username,omitempty" db:"-"`
	Images        []ProductImage `json:"images,omitempty" db:"-"`
}

// ProductImage is an attachment owned by its parent product and removed with it.
type ProductImage struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	URL       string    `json:"url" db:"url"`
	AltText   string    `json:"alt_text" db:"alt_text"`
	IsPrimary bool      `json:"is_primary" db:"is_primary"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Category represents a taxonomy node products are classified under
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description" db:"description"`
	Icon        string    `json:"icon" db:"icon"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CategoryCount pairs a category with its number of available products
type CategoryCount struct {
	CategoryID   uuid.UUID `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Count        int       `json:"count"`
}

// CatalogStats is the analytics snapshot computed over available products
type CatalogStats struct {
	TotalProducts       int             `json:"total_products"`
	TotalCategories     int             `json:"total_categories"`
	AvgPrice            float64         `json:"avg_price"`
	MinPrice            float64         `json:"min_price"`
	MaxPrice            float64         `json:"max_price"`
	ProductsPerCategory []CategoryCount `json:"products_per_category"`
	RecentProducts      []*Product      `json:"recent_products"`
}
