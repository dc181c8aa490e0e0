package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"threadmart/internal/domain"
	"threadmart/internal/repository"
	"threadmart/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrMissingProductFields = errors.New("name, price and category are required")
	ErrInvalidCategory      = errors.New("invalid category")
	ErrInvalidPrice         = errors.New("price must be a positive number")
	ErrNoImages             = errors.New("at least one image is required")
)

// ImageUpload is a single incoming image file from a multipart request.
type ImageUpload struct {
	Filename string
	Reader   io.Reader
}

// ProductInput carries the writable product fields.
type ProductInput struct {
	Name        string
	Description string
	Price       float64
	Category    string
	Stock       int
}

// ProductPage is one page of a filtered catalog listing.
type ProductPage struct {
	Products   []*domain.Product
	Total      int
	Page       int
	TotalPages int
}

// ProductService defines the interface for catalog business logic
type ProductService interface {
	CreateProduct(ctx context.Context, input ProductInput, uploads []ImageUpload) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput, uploads []ImageUpload) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) (*ProductPage, error)
}

type productService struct {
	productRepo repository.ProductRepository
	media       storage.MediaStore
}

// NewProductService creates a new instance of ProductService
func NewProductService(productRepo repository.ProductRepository, media storage.MediaStore) ProductService {
	return &productService{
		productRepo: productRepo,
		media:       media,
	}
}

func validateInput(input ProductInput, uploads []ImageUpload) error {
	if input.Name == "" || input.Price == 0 || input.Category == "" {
		return ErrMissingProductFields
	}
	if !domain.Category(input.Category).Valid() {
		return ErrInvalidCategory
	}
	if input.Price <= 0 {
		return ErrInvalidPrice
	}
	if len(uploads) == 0 {
		return ErrNoImages
	}
	return nil
}

// CreateProduct validates the input, pushes the images to the media host
// and persists the product.
func (s *productService) CreateProduct(ctx context.Context, input ProductInput, uploads []ImageUpload) (*domain.Product, error) {
	if err := validateInput(input, uploads); err != nil {
		return nil, err
	}

	images, err := s.uploadAll(ctx, uploads)
	if err != nil {
		return nil, err
	}

	product := &domain.Product{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Category:    domain.Category(input.Category),
		Images:      images,
		Stock:       input.Stock,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		// Don't leave the freshly uploaded assets orphaned on the host.
		s.deleteAssets(ctx, images)
		return nil, err
	}

	return product, nil
}

// UpdateProduct replaces a product's fields and images. Every previously
// stored asset is deleted from the media host before the new uploads are
// attached; images are never partially replaced.
func (s *productService) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput, uploads []ImageUpload) (*domain.Product, error) {
	if err := validateInput(input, uploads); err != nil {
		return nil, err
	}

	existing, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.deleteAssets(ctx, existing.Images); err != nil {
		return nil, err
	}

	images, err := s.uploadAll(ctx, uploads)
	if err != nil {
		return nil, err
	}

	product := &domain.Product{
		ID:          id,
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Category:    domain.Category(input.Category),
		Images:      images,
		Stock:       input.Stock,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   time.Now(),
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// DeleteProduct cascades deletion of the externally stored images before
// removing the record.
func (s *productService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.deleteAssets(ctx, product.Images); err != nil {
		return err
	}

	return s.productRepo.Delete(ctx, id)
}

// GetProduct retrieves a single product
func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

// ListProducts applies defaults to the filter and returns one page plus the
// total and page counts.
func (s *productService) ListProducts(ctx context.Context, filter repository.ProductFilter) (*ProductPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 10
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}

	products, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(filter.PageSize)))
	}

	return &ProductPage{
		Products:   products,
		Total:      total,
		Page:       filter.Page,
		TotalPages: totalPages,
	}, nil
}

func (s *productService) uploadAll(ctx context.Context, uploads []ImageUpload) ([]domain.ProductImage, error) {
	images := make([]domain.ProductImage, 0, len(uploads))
	for _, upload := range uploads {
		asset, err := s.media.Upload(ctx, upload.Filename, upload.Reader)
		if err != nil {
			// Roll back the assets uploaded so far.
			s.deleteAssets(ctx, images)
			return nil, fmt.Errorf("failed to upload image %s: %w", upload.Filename, err)
		}
		images = append(images, domain.ProductImage{
			ID:        uuid.New(),
			URL:       asset.URL,
			StorageID: asset.StorageID,
		})
	}
	return images, nil
}

func (s *productService) deleteAssets(ctx context.Context, images []domain.ProductImage) error {
	for _, img := range images {
		if err := s.media.Delete(ctx, img.StorageID); err != nil {
			return fmt.Errorf("failed to delete image asset %s: %w", img.StorageID, err)
		}
	}
	return nil
}
