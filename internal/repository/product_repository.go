package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ecofinds/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product, images []domain.ProductImage) error
	Update(ctx context.Context, product *domain.Product) error
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	IncrementViewCount(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error)
	Featured(ctx context.Context, limit int) ([]*domain.Product, error)
	Trending(ctx context.Context, limit int) ([]*domain.Product, error)
	Search(ctx context.Context, query ProductQuery) ([]*domain.Product, int, error)
	ReplaceImages(ctx context.Context, productID uuid.UUID, images []domain.ProductImage) error
	AppendImages(ctx context.Context, productID uuid.UUID, images []domain.ProductImage) error
	ListImages(ctx context.Context, productID uuid.UUID) ([]domain.ProductImage, error)
	Stats(ctx context.Context) (*domain.CatalogStats, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

// productSelect joins the category and owner so read paths carry their names
const productSelect = `
	SELECT p.id, p.title, p.description, p.category_id, p.condition, p.price,
	       p.original_price, p.owner_id, p.location, p.is_available, p.is_featured,
	       p.view_count, p.created_at, p.updated_at, c.name, u.username
	FROM products p
	JOIN categories c ON c.id = p.category_id
	JOIN users u ON u.id = p.owner_id
`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.Title,
		&product.Description,
		&product.CategoryID,
		&product.Condition,
		&product.Price,
		&product.OriginalPrice,
		&product.OwnerID,
		&product.Location,
		&product.IsAvailable,
		&product.IsFeatured,
		&product.ViewCount,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.CategoryName,
		&product.OwnerUsername,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (r *productRepository) scanProducts(rows *sql.Rows) ([]*domain.Product, error) {
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// Create inserts a product and its images in a single transaction
func (r *productRepository) Create(ctx context.Context, product *domain.Product, images []domain.ProductImage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO products (id, title, description, category_id, condition, price,
		                      original_price, owner_id, location, is_available,
		                      is_featured, view_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = tx.ExecContext(
		ctx,
		query,
		product.ID,
		product.Title,
		product.Description,
		product.CategoryID,
		product.Condition,
		product.Price,
		product.OriginalPrice,
		product.OwnerID,
		product.Location,
		product.IsAvailable,
		product.IsFeatured,
		product.ViewCount,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	if err := insertImages(ctx, tx, images); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit product creation: %w", err)
	}

	return nil
}

// Update replaces the mutable fields of a product. The owner column is never
// part of the SET list; ownership is fixed at creation.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET title = $2, description = $3, category_id = $4, condition = $5,
		    price = $6, original_price = $7, location = $8, is_available = $9,
		    is_featured = $10, updated_at = $11
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Title,
		product.Description,
		product.CategoryID,
		product.Condition,
		product.Price,
		product.OriginalPrice,
		product.Location,
		product.IsAvailable,
		product.IsFeatured,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// SetAvailability flips the soft-delete marker
func (r *productRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	query := `
		UPDATE products
		SET is_available = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, available)
	if err != nil {
		return fmt.Errorf("failed to set product availability: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product with its images, regardless of availability
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := productSelect + " WHERE p.id = $1"

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	images, err := r.ListImages(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Images = images

	return product, nil
}

// IncrementViewCount bumps the detail-view counter by one
func (r *productRepository) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE products SET view_count = view_count + 1 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment view count: %w", err)
	}

	return nil
}

// ListByOwner lists everything the owner has, soft-deleted rows included
func (r *productRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error) {
	query := productSelect + " WHERE p.owner_id = $1 ORDER BY p.created_at DESC, p.id ASC"

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products by owner: %w", err)
	}

	return r.scanProducts(rows)
}

// Featured lists available featured products, newest first
func (r *productRepository) Featured(ctx context.Context, limit int) ([]*domain.Product, error) {
	query := productSelect + `
		WHERE p.is_available = TRUE AND p.is_featured = TRUE
		ORDER BY p.created_at DESC, p.id ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list featured products: %w", err)
	}

	return r.scanProducts(rows)
}

// Trending lists available products by view count
func (r *productRepository) Trending(ctx context.Context, limit int) ([]*domain.Product, error) {
	query := productSelect + `
		WHERE p.is_available = TRUE
		ORDER BY p.view_count DESC, p.id ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trending products: %w", err)
	}

	return r.scanProducts(rows)
}

// Search executes a ProductQuery: one count over the full filtered set, then
// the ordered page slice. Both run against the same WHERE clause so the count
// always matches the filters.
func (r *productRepository) Search(ctx context.Context, query ProductQuery) ([]*domain.Product, int, error) {
	query = query.Normalize()

	where, args := query.WhereClause()

	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM products p
		JOIN categories c ON c.id = p.category_id
		%s
	`, where)

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	pageQuery := fmt.Sprintf(
		"%s %s %s LIMIT $%d OFFSET $%d",
		productSelect, where, query.OrderClause(), len(args)+1, len(args)+2,
	)
	args = append(args, query.PageSize, query.Offset())

	rows, err := r.db.QueryContext(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search products: %w", err)
	}

	products, err := r.scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// ReplaceImages swaps the full image set in one transaction (delete-then-insert)
func (r *productRepository) ReplaceImages(ctx context.Context, productID uuid.UUID, images []domain.ProductImage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_images WHERE product_id = $1`, productID); err != nil {
		return fmt.Errorf("failed to delete product images: %w", err)
	}

	if err := insertImages(ctx, tx, images); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit image replacement: %w", err)
	}

	return nil
}

// AppendImages adds images without touching the existing set
func (r *productRepository) AppendImages(ctx context.Context, productID uuid.UUID, images []domain.ProductImage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertImages(ctx, tx, images); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit image append: %w", err)
	}

	return nil
}

// ListImages returns a product's images, primary first then oldest first
func (r *productRepository) ListImages(ctx context.Context, productID uuid.UUID) ([]domain.ProductImage, error) {
	query := `
		SELECT id, product_id, url, alt_text, is_primary, created_at
		FROM product_images
		WHERE product_id = $1
		ORDER BY is_primary DESC, created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product images: %w", err)
	}
	defer rows.Close()

	images := []domain.ProductImage{}
	for rows.Next() {
		image := domain.ProductImage{}
		err := rows.Scan(
			&image.ID,
			&image.ProductID,
			&image.URL,
			&image.AltText,
			&image.IsPrimary,
			&image.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product image: %w", err)
		}
		images = append(images, image)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product images: %w", err)
	}

	return images, nil
}

func insertImages(ctx context.Context, tx *sql.Tx, images []domain.ProductImage) error {
	query := `
		INSERT INTO product_images (id, product_id, url, alt_text, is_primary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, image := range images {
		_, err := tx.ExecContext(
			ctx,
			query,
			image.ID,
			image.ProductID,
			image.URL,
			image.AltText,
			image.IsPrimary,
			image.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert product image: %w", err)
		}
	}

	return nil
}

// Stats computes the analytics snapshot over available products
func (r *productRepository) Stats(ctx context.Context) (*domain.CatalogStats, error) {
	stats := &domain.CatalogStats{}

	aggregate := `
		SELECT COUNT(*),
		       COALESCE(AVG(price), 0),
		       COALESCE(MIN(price), 0),
		       COALESCE(MAX(price), 0)
		FROM products
		WHERE is_available = TRUE
	`
	err := r.db.QueryRowContext(ctx, aggregate).Scan(
		&stats.TotalProducts,
		&stats.AvgPrice,
		&stats.MinPrice,
		&stats.MaxPrice,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate product stats: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE is_active = TRUE`).
		Scan(&stats.TotalCategories)
	if err != nil {
		return nil, fmt.Errorf("failed to count active categories: %w", err)
	}

	perCategory := `
		SELECT c.id, c.name, COUNT(p.id)
		FROM categories c
		JOIN products p ON p.category_id = c.id AND p.is_available = TRUE
		GROUP BY c.id, c.name
		ORDER BY COUNT(p.id) DESC, c.name ASC
	`
	rows, err := r.db.QueryContext(ctx, perCategory)
	if err != nil {
		return nil, fmt.Errorf("failed to count products per category: %w", err)
	}
	defer rows.Close()

	stats.ProductsPerCategory = []domain.CategoryCount{}
	for rows.Next() {
		count := domain.CategoryCount{}
		if err := rows.Scan(&count.CategoryID, &count.CategoryName, &count.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		stats.ProductsPerCategory = append(stats.ProductsPerCategory, count)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category counts: %w", err)
	}

	recent, _, err := r.Search(ctx, ProductQuery{PageSize: 5})
	if err != nil {
		return nil, err
	}
	stats.RecentProducts = recent

	return stats, nil
}
