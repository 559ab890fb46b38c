package transport

import (
	"net/http"
	"strconv"

	"ecofinds/internal/middleware"
	"ecofinds/internal/repository"
	"ecofinds/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImageRequest describes one image attachment in a request body
type ImageRequest struct {
	URL     string `json:"url" validate:"required,url"`
	AltText string `json:"alt_text"`
}

// CreateProductRequest represents the create-listing payload
type CreateProductRequest struct {
	Title         string         `json:"title" validate:"required,max=255"`
	Description   string         `json:"description"`
	CategoryID    string         `json:"category_id" validate:"required,uuid"`
	Condition     string         `json:"condition" validate:"required,oneof=new used refurbished"`
	Price         float64        `json:"price" validate:"required,gte=0"`
	OriginalPrice *float64       `json:"original_price" validate:"omitempty,gte=0"`
	Location      string         `json:"location"`
	Images        []ImageRequest `json:"images" validate:"dive"`
}

// UpdateProductRequest carries partial updates; a non-nil images array
// replaces the existing set
type UpdateProductRequest struct {
	Title         *string         `json:"title" validate:"omitempty,max=255"`
	Description   *string         `json:"description"`
	CategoryID    *string         `json:"category_id" validate:"omitempty,uuid"`
	Condition     *string         `json:"condition" validate:"omitempty,oneof=new used refurbished"`
	Price         *float64        `json:"price" validate:"omitempty,gte=0"`
	OriginalPrice *float64        `json:"original_price" validate:"omitempty,gte=0"`
	Location      *string         `json:"location"`
	IsAvailable   *bool           `json:"is_available"`
	IsFeatured    *bool           `json:"is_featured"`
	Images        *[]ImageRequest `json:"images" validate:"omitempty,dive"`
}

// UploadImagesRequest represents the upload-images payload
type UploadImagesRequest struct {
	Images []ImageRequest `json:"images" validate:"required,min=1,dive"`
}

// CreateCategoryRequest represents the category creation payload
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Slug        string `json:"slug" validate:"omitempty,max=100"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	IsActive    *bool  `json:"is_active"`
}

// UpdateCategoryRequest carries partial category updates; empty fields are
// left unchanged
type UpdateCategoryRequest struct {
	Name        string `json:"name" validate:"omitempty,max=100"`
	Slug        string `json:"slug" validate:"omitempty,max=100"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	IsActive    *bool  `json:"is_active"`
}

// ProductHandler handles HTTP requests for the catalog, categories, search
// and analytics
type ProductHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, logger: logger}
}

// RegisterRoutes registers all catalog routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		// Public read paths
		r.Get("/", h.Search)
		r.Get("/search", h.Search)
		r.Get("/featured", h.Featured)
		r.Get("/trending", h.Trending)
		r.Get("/analytics", h.Analytics)
		r.Get("/categories", h.ListCategories)
		r.Get("/categories/{id}", h.GetCategory)
		r.Get("/{id}", h.GetProduct)

		// Owner-scoped paths
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.CreateProduct)
			r.Get("/my-products", h.MyProducts)
			r.Put("/{id}", h.UpdateProduct)
			r.Patch("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
			r.Post("/{id}/toggle-availability", h.ToggleAvailability)
			r.Post("/{id}/upload-images", h.UploadImages)
		})

		// Category administration
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, adminMiddleware)
			r.Post("/categories", h.CreateCategory)
			r.Put("/categories/{id}", h.UpdateCategory)
			r.Delete("/categories/{id}", h.DeleteCategory)
		})
	})
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// respondCatalogError maps catalog service errors onto the error taxonomy
func (h *ProductHandler) respondCatalogError(w http.ResponseWriter, err error, fallback string) {
	switch err {
	case repository.ErrProductNotFound, repository.ErrCategoryNotFound:
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case service.ErrPermissionDenied:
		middleware.RespondWithError(w, http.StatusForbidden, err.Error())
	case repository.ErrCategoryAlreadyExists:
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

// parseProductQuery builds the explicit search specification from URL
// query parameters; absent parameters leave their filters disabled
func parseProductQuery(r *http.Request) repository.ProductQuery {
	params := r.URL.Query()

	query := repository.ProductQuery{
		Query:        params.Get("search"),
		CategorySlug: params.Get("category"),
		Condition:    params.Get("condition"),
		Location:     params.Get("location"),
		Sort:         params.Get("sort_by"),
	}

	if v, err := strconv.ParseFloat(params.Get("min_price"), 64); err == nil {
		query.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(params.Get("max_price"), 64); err == nil {
		query.MaxPrice = &v
	}
	if v, err := strconv.ParseBool(params.Get("featured")); err == nil {
		query.FeaturedOnly = v
	}
	if v, err := strconv.Atoi(params.Get("page")); err == nil {
		query.Page = v
	}
	if v, err := strconv.Atoi(params.Get("page_size")); err == nil {
		query.PageSize = v
	}

	return query
}

func toImageInputs(images []ImageRequest) []service.ImageInput {
	inputs := make([]service.ImageInput, 0, len(images))
	for _, image := range images {
		inputs = append(inputs, service.ImageInput{URL: image.URL, AltText: image.AltText})
	}
	return inputs
}

// Search serves both the public listing and the search endpoint
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	result, err := h.catalog.SearchProducts(r.Context(), parseProductQuery(r))
	if err != nil {
		h.respondCatalogError(w, err, "failed to search products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// GetProduct returns one listing and counts the view
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.respondCatalogError(w, err, "failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// CreateProduct inserts a listing owned by the caller
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	categoryID, _ := uuid.Parse(req.CategoryID)

	product, err := h.catalog.CreateProduct(r.Context(), ownerID, service.CreateProductInput{
		Title:         req.Title,
		Description:   req.Description,
		CategoryID:    categoryID,
		Condition:     req.Condition,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		Location:      req.Location,
		Images:        toImageInputs(req.Images),
	})
	if err != nil {
		if err == repository.ErrCategoryNotFound {
			middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
				{Field: "category_id", Message: "Unknown category"},
			})
			return
		}
		h.respondCatalogError(w, err, "failed to create product")
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("owner_id", ownerID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct applies a partial update for the owner
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	caller, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product update validation failed", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.UpdateProductInput{
		Title:         req.Title,
		Description:   req.Description,
		Condition:     req.Condition,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		Location:      req.Location,
		IsAvailable:   req.IsAvailable,
		IsFeatured:    req.IsFeatured,
	}
	if req.CategoryID != nil {
		categoryID, _ := uuid.Parse(*req.CategoryID)
		input.CategoryID = &categoryID
	}
	if req.Images != nil {
		images := toImageInputs(*req.Images)
		input.Images = &images
	}

	product, err := h.catalog.UpdateProduct(r.Context(), id, caller, input)
	if err != nil {
		h.respondCatalogError(w, err, "failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct soft-deletes the owner's listing
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	caller, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), id, caller); err != nil {
		h.respondCatalogError(w, err, "failed to delete product")
		return
	}

	h.logger.Info("Product soft-deleted", zap.String("product_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// ToggleAvailability flips the listing's availability for the owner
func (h *ProductHandler) ToggleAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	caller, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	product, err := h.catalog.ToggleAvailability(r.Context(), id, caller)
	if err != nil {
		h.respondCatalogError(w, err, "failed to toggle availability")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// UploadImages appends image attachments to the owner's listing
func (h *ProductHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	caller, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UploadImagesRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Image upload validation failed", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	images, err := h.catalog.UploadImages(r.Context(), id, caller, toImageInputs(req.Images))
	if err != nil {
		h.respondCatalogError(w, err, "failed to upload images")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, images)
}

// MyProducts lists the caller's products, soft-deleted included
func (h *ProductHandler) MyProducts(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	products, err := h.catalog.MyProducts(r.Context(), caller)
	if err != nil {
		h.respondCatalogError(w, err, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// Featured lists the curated featured products
func (h *ProductHandler) Featured(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.FeaturedProducts(r.Context())
	if err != nil {
		h.respondCatalogError(w, err, "failed to list featured products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// Trending lists the most viewed products
func (h *ProductHandler) Trending(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.TrendingProducts(r.Context())
	if err != nil {
		h.respondCatalogError(w, err, "failed to list trending products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// Analytics serves the aggregate snapshot over the catalog
func (h *ProductHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Analytics(r.Context())
	if err != nil {
		h.respondCatalogError(w, err, "failed to compute analytics")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, stats)
}

// ListCategories lists active categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context(), true)
	if err != nil {
		h.respondCatalogError(w, err, "failed to list categories")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// GetCategory returns one category by id
func (h *ProductHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	category, err := h.catalog.GetCategory(r.Context(), id)
	if err != nil {
		h.respondCatalogError(w, err, "failed to get category")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, category)
}

// CreateCategory inserts a taxonomy node (admin only)
func (h *ProductHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Category validation failed", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), service.CategoryInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Icon:        req.Icon,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.respondCatalogError(w, err, "failed to create category")
		return
	}

	h.logger.Info("Category created", zap.String("slug", category.Slug))
	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

// UpdateCategory replaces category fields (admin only)
func (h *ProductHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var req UpdateCategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Category validation failed", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category, err := h.catalog.UpdateCategory(r.Context(), id, service.CategoryInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Icon:        req.Icon,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.respondCatalogError(w, err, "failed to update category")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, category)
}

// DeleteCategory removes a taxonomy node (admin only)
func (h *ProductHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		h.respondCatalogError(w, err, "failed to delete category")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "category deleted"})
}
