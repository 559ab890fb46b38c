package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"ecofinds/internal/domain"
	"ecofinds/internal/repository"

	"github.com/google/uuid"
)

const (
	// FeaturedLimit and TrendingLimit cap the curated public listings
	FeaturedLimit = 10
	TrendingLimit = 10
)

var (
	ErrPermissionDenied = errors.New("you do not have permission to modify this product")
)

// ImageInput describes one image attachment supplied by the caller
type ImageInput struct {
	URL     string
	AltText string
}

// CreateProductInput carries the fields for a new listing
type CreateProductInput struct {
	Title         string
	Description   string
	CategoryID    uuid.UUID
	Condition     string
	Price         float64
	OriginalPrice *float64
	Location      string
	Images        []ImageInput
}

// UpdateProductInput carries partial updates; nil fields are left unchanged.
// A non-nil Images slice fully replaces the existing image set.
type UpdateProductInput struct {
	Title         *string
	Description   *string
	CategoryID    *uuid.UUID
	Condition     *string
	Price         *float64
	OriginalPrice *float64
	Location      *string
	IsAvailable   *bool
	IsFeatured    *bool
	Images        *[]ImageInput
}

// CategoryInput carries the fields for creating or updating a category
type CategoryInput struct {
	Name        string
	Slug        string
	Description string
	Icon        string
	IsActive    *bool
}

// SearchResult is the paginated view returned by the search engine
type SearchResult struct {
	Results    []*domain.Product `json:"results"`
	Count      int               `json:"count"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

// CatalogService defines the interface for product and category business
// logic. Mutating operations take the caller identity explicitly and guard
// ownership before touching anything.
type CatalogService interface {
	CreateProduct(ctx context.Context, ownerID uuid.UUID, input CreateProductInput) (*domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id, callerID uuid.UUID, input UpdateProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id, callerID uuid.UUID) error
	ToggleAvailability(ctx context.Context, id, callerID uuid.UUID) (*domain.Product, error)
	UploadImages(ctx context.Context, id, callerID uuid.UUID, images []ImageInput) ([]domain.ProductImage, error)
	MyProducts(ctx context.Context, callerID uuid.UUID) ([]*domain.Product, error)
	FeaturedProducts(ctx context.Context) ([]*domain.Product, error)
	TrendingProducts(ctx context.Context) ([]*domain.Product, error)
	SearchProducts(ctx context.Context, query repository.ProductQuery) (*SearchResult, error)
	Analytics(ctx context.Context) (*domain.CatalogStats, error)

	ListCategories(ctx context.Context, activeOnly bool) ([]*domain.Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	CreateCategory(ctx context.Context, input CategoryInput) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type catalogService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
) CatalogService {
	return &catalogService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
	}
}

// ensureOwner is the authorization guard for mutating product operations
func ensureOwner(product *domain.Product, callerID uuid.UUID) error {
	if product.OwnerID != callerID {
		return ErrPermissionDenied
	}
	return nil
}

// CreateProduct inserts a listing owned by the caller. The owner comes from
// the authenticated identity, never from the request body.
func (s *catalogService) CreateProduct(ctx context.Context, ownerID uuid.UUID, input CreateProductInput) (*domain.Product, error) {
	if _, err := s.categoryRepo.FindByID(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	now := time.Now()
	product := &domain.Product{
		ID:            uuid.New(),
		Title:         input.Title,
		Description:   input.Description,
		CategoryID:    input.CategoryID,
		Condition:     input.Condition,
		Price:         input.Price,
		OriginalPrice: input.OriginalPrice,
		OwnerID:       ownerID,
		Location:      input.Location,
		IsAvailable:   true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	images := buildImages(product.ID, input.Images, true)

	if err := s.productRepo.Create(ctx, product, images); err != nil {
		return nil, err
	}

	product.Images = images
	return product, nil
}

// GetProduct fetches a single listing and counts the detail view
func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.productRepo.IncrementViewCount(ctx, id); err != nil {
		return nil, err
	}
	product.ViewCount++

	return product, nil
}

// UpdateProduct applies a partial update after the ownership guard passes
func (s *catalogService) UpdateProduct(ctx context.Context, id, callerID uuid.UUID, input UpdateProductInput) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ensureOwner(product, callerID); err != nil {
		return nil, err
	}

	if input.Title != nil {
		product.Title = *input.Title
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.CategoryID != nil {
		if _, err := s.categoryRepo.FindByID(ctx, *input.CategoryID); err != nil {
			return nil, err
		}
		product.CategoryID = *input.CategoryID
	}
	if input.Condition != nil {
		product.Condition = *input.Condition
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.OriginalPrice != nil {
		product.OriginalPrice = input.OriginalPrice
	}
	if input.Location != nil {
		product.Location = *input.Location
	}
	if input.IsAvailable != nil {
		product.IsAvailable = *input.IsAvailable
	}
	if input.IsFeatured != nil {
		product.IsFeatured = *input.IsFeatured
	}
	product.UpdatedAt = time.Now()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	// A supplied image set replaces the old one wholesale, never merges
	if input.Images != nil {
		images := buildImages(product.ID, *input.Images, true)
		if err := s.productRepo.ReplaceImages(ctx, product.ID, images); err != nil {
			return nil, err
		}
		product.Images = images
	}

	return product, nil
}

// DeleteProduct soft-deletes: the row survives for the owner's listing but
// disappears from every public query.
func (s *catalogService) DeleteProduct(ctx context.Context, id, callerID uuid.UUID) error {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := ensureOwner(product, callerID); err != nil {
		return err
	}

	return s.productRepo.SetAvailability(ctx, id, false)
}

// ToggleAvailability flips the soft-delete marker for the owner
func (s *catalogService) ToggleAvailability(ctx context.Context, id, callerID uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ensureOwner(product, callerID); err != nil {
		return nil, err
	}

	if err := s.productRepo.SetAvailability(ctx, id, !product.IsAvailable); err != nil {
		return nil, err
	}
	product.IsAvailable = !product.IsAvailable

	return product, nil
}

// UploadImages appends to the image set. A new image only becomes primary
// when the product has no images yet, so a product never carries two.
func (s *catalogService) UploadImages(ctx context.Context, id, callerID uuid.UUID, inputs []ImageInput) ([]domain.ProductImage, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ensureOwner(product, callerID); err != nil {
		return nil, err
	}

	images := buildImages(id, inputs, len(product.Images) == 0)

	if err := s.productRepo.AppendImages(ctx, id, images); err != nil {
		return nil, err
	}

	return s.productRepo.ListImages(ctx, id)
}

// MyProducts lists the caller's products including soft-deleted ones
func (s *catalogService) MyProducts(ctx context.Context, callerID uuid.UUID) ([]*domain.Product, error) {
	return s.productRepo.ListByOwner(ctx, callerID)
}

// FeaturedProducts lists the ten newest featured listings
func (s *catalogService) FeaturedProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.productRepo.Featured(ctx, FeaturedLimit)
}

// TrendingProducts lists the ten most viewed available listings
func (s *catalogService) TrendingProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.productRepo.Trending(ctx, TrendingLimit)
}

// SearchProducts runs the filtered, sorted, paginated view over the catalog
func (s *catalogService) SearchProducts(ctx context.Context, query repository.ProductQuery) (*SearchResult, error) {
	query = query.Normalize()

	products, count, err := s.productRepo.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		Results:    products,
		Count:      count,
		Page:       query.Page,
		PageSize:   query.PageSize,
		TotalPages: repository.TotalPages(count, query.PageSize),
	}, nil
}

// Analytics returns the read-only aggregate snapshot
func (s *catalogService) Analytics(ctx context.Context) (*domain.CatalogStats, error) {
	return s.productRepo.Stats(ctx)
}

// ListCategories lists taxonomy nodes, active only for public callers
func (s *catalogService) ListCategories(ctx context.Context, activeOnly bool) ([]*domain.Category, error) {
	return s.categoryRepo.List(ctx, activeOnly)
}

// GetCategory retrieves one category by id
func (s *catalogService) GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return s.categoryRepo.FindByID(ctx, id)
}

// CreateCategory inserts a taxonomy node, deriving the slug from the name
// when none is supplied
func (s *catalogService) CreateCategory(ctx context.Context, input CategoryInput) (*domain.Category, error) {
	// Explicit slugs are normalized the same way derived ones are, so the
	// stored value is always URL-safe
	slug := slugify(input.Slug)
	if slug == "" {
		slug = slugify(input.Name)
	}
	if slug == "" {
		return nil, fmt.Errorf("cannot derive slug from name %q", input.Name)
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	category := &domain.Category{
		ID:          uuid.New(),
		Name:        input.Name,
		Slug:        slug,
		Description: input.Description,
		Icon:        input.Icon,
		IsActive:    active,
		CreatedAt:   time.Now(),
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

// UpdateCategory replaces the mutable fields of a category
func (s *catalogService) UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (*domain.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		category.Name = input.Name
	}
	if input.Slug != "" {
		category.Slug = slugify(input.Slug)
	}
	if input.Description != "" {
		category.Description = input.Description
	}
	if input.Icon != "" {
		category.Icon = input.Icon
	}
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

// DeleteCategory removes a taxonomy node
func (s *catalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.categoryRepo.Delete(ctx, id)
}

func buildImages(productID uuid.UUID, inputs []ImageInput, allowPrimary bool) []domain.ProductImage {
	images := make([]domain.ProductImage, 0, len(inputs))
	for i, input := range inputs {
		images = append(images, domain.ProductImage{
			ID:        uuid.New(),
			ProductID: productID,
			URL:       input.URL,
			AltText:   input.AltText,
			IsPrimary: allowPrimary && i == 0,
			CreatedAt: time.Now(),
		})
	}
	return images
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// slugify normalizes a name into a URL-safe slug
func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = nonSlugChars.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
