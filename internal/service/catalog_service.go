package service

import (
	"context"
	"fmt"
	"io"

	"petstore-service/internal/models"
	"petstore-service/internal/objectstore"
	"petstore-service/internal/store"
	"petstore-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CatalogService handles product catalog management
type CatalogService struct {
	store  *store.Store
	images objectstore.Store
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store, images objectstore.Store) *CatalogService {
	return &CatalogService{
		store:  store,
		images: images,
		logger: util.GetLogger(),
	}
}

// CreateProductRequest represents a new catalog entry
type CreateProductRequest struct {
	Name     string `json:"name" binding:"required"`
	Category string `json:"category" binding:"required"`
	Price    int64  `json:"price" binding:"required,min=1"`
	Stock    int    `json:"stock" binding:"min=0"`
	ImageURL string `json:"image_url"`
}

// UpdateProductRequest carries a partial product update; nil fields are
// left untouched.
type UpdateProductRequest struct {
	Name     *string `json:"name"`
	Category *string `json:"category"`
	Price    *int64  `json:"price"`
	Stock    *int    `json:"stock"`
	ImageURL *string `json:"image_url"`
}

// ListProducts retrieves the catalog, optionally filtered by category.
func (s *CatalogService) ListProducts(ctx context.Context, category string) ([]models.Product, error) {
	return s.store.ListProducts(ctx, category)
}

// GetProduct retrieves a product by ID.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// CreateProduct inserts a new catalog entry.
func (s *CatalogService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	product := &models.Product{
		ID:       uuid.New().String(),
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		Stock:    req.Stock,
		InStock:  true,
		ImageURL: req.ImageURL,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("name", product.Name))
	return product, nil
}

// UpdateProduct applies a partial update to a catalog entry.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, req *UpdateProductRequest) (*models.Product, error) {
	product, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct removes a catalog entry.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	return s.store.DeleteProduct(ctx, id)
}

// ToggleStock flips the catalog visibility flag.
func (s *CatalogService) ToggleStock(ctx context.Context, id string, inStock bool) error {
	return s.store.SetProductInStock(ctx, id, inStock)
}

// UploadImage stores a product image and returns its URL.
func (s *CatalogService) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	url, err := s.images.Put(ctx, filename, r)
	if err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return url, nil
}

// Seed inserts the starter catalog when the store is empty.
func (s *CatalogService) Seed(ctx context.Context) error {
	existing, err := s.store.ListProducts(ctx, "")
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	s.logger.Info("Seeding product catalog", zap.Int("count", len(seedProducts)))
	for _, seed := range seedProducts {
		product := seed
		product.ID = uuid.New().String()
		product.InStock = true
		if err := s.store.CreateProduct(ctx, &product); err != nil {
			return fmt.Errorf("failed to seed product %q: %w", product.Name, err)
		}
	}
	return nil
}

var seedProducts = []models.Product{
	{Name: "Feline Dewormer Tablets", Category: "Cats", Price: 1200, Stock: 50},
	{Name: "Hairball Remedy Gel", Category: "Cats", Price: 850, Stock: 40},
	{Name: "Flea & Tick Spot-on (Cats)", Category: "Cats", Price: 2100, Stock: 100},
	{Name: "Cat Multivitamins", Category: "Cats", Price: 1500, Stock: 60},
	{Name: "Antibiotic Eye Drops", Category: "Cats", Price: 600, Stock: 30},
	{Name: "Cat Urinary Support", Category: "Cats", Price: 1800, Stock: 25},
	{Name: "Kitten Milk Replacer", Category: "Cats", Price: 2000, Stock: 20},
	{Name: "Canine Heartworm Preventative", Category: "Dogs", Price: 3500, Stock: 45},
	{Name: "Hip & Joint Glucosamine", Category: "Dogs", Price: 2800, Stock: 55},
	{Name: "Anti-Itch Spray", Category: "Dogs", Price: 950, Stock: 70},
	{Name: "Dog Ear Cleaner", Category: "Dogs", Price: 700, Stock: 80},
	{Name: "Dental Water Additive", Category: "Dogs", Price: 1300, Stock: 40},
	{Name: "Puppy Probiotics", Category: "Dogs", Price: 1600, Stock: 50},
	{Name: "Dog Vitamin C", Category: "Dogs", Price: 1500, Stock: 65},
	{Name: "Calming Chews for Dogs", Category: "Dogs", Price: 2200, Stock: 35},
	{Name: "Rabbit Digestive Support", Category: "Other Animals", Price: 900, Stock: 30},
	{Name: "Hamster Multivitamin Drops", Category: "Other Animals", Price: 500, Stock: 40},
	{Name: "Bird Mite & Lice Spray", Category: "Other Animals", Price: 750, Stock: 25},
	{Name: "Aquarium Antibiotics", Category: "Other Animals", Price: 1100, Stock: 15},
	{Name: "Turtle Shell Conditioner", Category: "Other Animals", Price: 650, Stock: 20},
	{Name: "Guinea Pig Vitamin C", Category: "Other Animals", Price: 800, Stock: 100},
}
