package transport

import (
	"errors"
	"net/http"
	"strconv"

	"threadmart/internal/domain"
	"threadmart/internal/middleware"
	"threadmart/internal/repository"
	"threadmart/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxUploadSize bounds a multipart product write request (32 MB)
const maxUploadSize = 32 << 20

var (
	errInvalidMultipart      = errors.New("invalid multipart form")
	errInvalidPriceField     = errors.New("price must be a number")
	errInvalidStockField     = errors.New("stock must be a non-negative integer")
	errInvalidCategoryFilter = errors.New("unknown category filter")
	errInvalidPriceFilter    = errors.New("price filters must be numbers")
	errInvalidPagination     = errors.New("page and limit must be positive integers")
	errInvalidSortOrder      = errors.New("sort_order must be asc or desc")
)

// ProductListResponse is one page of catalog results with counts
type ProductListResponse struct {
	Products   []*domain.Product `json:"products"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
}

// ProductHandler handles HTTP requests for catalog operations
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers catalog routes. Reads are public, writes are
// admin-only.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(adminMiddleware)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List returns a filtered, sorted, paginated page of products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.productService.ListProducts(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Products:   page.Products,
		Total:      page.Total,
		Page:       page.Page,
		TotalPages: page.TotalPages,
	})
}

// GetByID returns a single product
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	product, err := h.productService.GetProduct(r.Context(), id)
	if err != nil {
		if err == repository.ErrProductNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to get product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Create handles the multipart product creation request
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, uploads, err := parseProductForm(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.productService.CreateProduct(r.Context(), input, uploads)
	if err != nil {
		h.respondProductError(w, err, "failed to create product")
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update handles the multipart product update request
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	input, uploads, err := parseProductForm(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.productService.UpdateProduct(r.Context(), id, input, uploads)
	if err != nil {
		h.respondProductError(w, err, "failed to update product")
		return
	}

	h.logger.Info("Product updated", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete removes a product and its externally stored images
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.productService.DeleteProduct(r.Context(), id); err != nil {
		h.respondProductError(w, err, "failed to delete product")
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) respondProductError(w http.ResponseWriter, err error, fallback string) {
	switch err {
	case service.ErrMissingProductFields, service.ErrInvalidCategory, service.ErrInvalidPrice, service.ErrNoImages:
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case repository.ErrProductNotFound:
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	default:
		h.logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func parseProductForm(r *http.Request) (service.ProductInput, []service.ImageUpload, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return service.ProductInput{}, nil, errInvalidMultipart
	}

	input := service.ProductInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
	}

	if priceStr := r.FormValue("price"); priceStr != "" {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			return service.ProductInput{}, nil, errInvalidPriceField
		}
		input.Price = price
	}

	if stockStr := r.FormValue("stock"); stockStr != "" {
		stock, err := strconv.Atoi(stockStr)
		if err != nil || stock < 0 {
			return service.ProductInput{}, nil, errInvalidStockField
		}
		input.Stock = stock
	}

	uploads := []service.ImageUpload{}
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["images"] {
			file, err := header.Open()
			if err != nil {
				return service.ProductInput{}, nil, errInvalidMultipart
			}
			uploads = append(uploads, service.ImageUpload{
				Filename: header.Filename,
				Reader:   file,
			})
		}
	}

	return input, uploads, nil
}

func parseProductFilter(r *http.Request) (repository.ProductFilter, error) {
	q := r.URL.Query()

	filter := repository.ProductFilter{
		Search: q.Get("search"),
		SortBy: q.Get("sort_by"),
	}

	if category := q.Get("category"); category != "" {
		c := domain.Category(category)
		if !c.Valid() {
			return filter, errInvalidCategoryFilter
		}
		filter.Category = &c
	}

	if minStr := q.Get("min_price"); minStr != "" {
		min, err := strconv.ParseFloat(minStr, 64)
		if err != nil {
			return filter, errInvalidPriceFilter
		}
		filter.MinPrice = &min
	}

	if maxStr := q.Get("max_price"); maxStr != "" {
		max, err := strconv.ParseFloat(maxStr, 64)
		if err != nil {
			return filter, errInvalidPriceFilter
		}
		filter.MaxPrice = &max
	}

	if pageStr := q.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return filter, errInvalidPagination
		}
		filter.Page = page
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return filter, errInvalidPagination
		}
		filter.PageSize = limit
	}

	if order := q.Get("sort_order"); order != "" {
		switch order {
		case "asc":
			filter.SortOrder = repository.SortOrderAsc
		case "desc":
			filter.SortOrder = repository.SortOrderDesc
		default:
			return filter, errInvalidSortOrder
		}
	}

	return filter, nil
}
