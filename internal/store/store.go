package store

import (
	"context"
	"errors"
	"fmt"

	"petstore-service/internal/docstore"
	"petstore-service/internal/models"
)

// Store is the typed data-access layer over the document store. Multi-
// document transaction bodies live here; orchestration stays in the
// service layer.
type Store struct {
	docs        docstore.Store
	maxAttempts int
}

// NewStore creates a store. maxTxAttempts bounds how often a transaction
// body is re-run after an optimistic conflict.
func NewStore(docs docstore.Store, maxTxAttempts int) *Store {
	if maxTxAttempts < 1 {
		maxTxAttempts = 1
	}
	return &Store{docs: docs, maxAttempts: maxTxAttempts}
}

// Docs returns the underlying document store.
func (s *Store) Docs() docstore.Store {
	return s.docs
}

// runTx re-runs the transaction body on optimistic conflicts, up to the
// configured attempt limit. Validation failures abort immediately; an
// exhausted conflict still satisfies errors.Is(err, docstore.ErrConflict)
// so callers can surface it as retryable.
func (s *Store) runTx(ctx context.Context, fn func(tx docstore.Tx) error) error {
	var err error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		err = s.docs.RunTransaction(ctx, fn)
		if err == nil || !errors.Is(err, docstore.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction conflict after %d attempts: %w", s.maxAttempts, err)
}

// GetProduct retrieves a product by ID.
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := s.docs.Get(ctx, models.CollectionProducts, id, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves the whole catalog, optionally filtered by category.
func (s *Store) ListProducts(ctx context.Context, category string) ([]models.Product, error) {
	q := docstore.Query{OrderBy: "name"}
	if category != "" {
		q.Filters = []docstore.Filter{{Field: "category", Value: category}}
	}
	var products []models.Product
	if err := s.docs.Query(ctx, models.CollectionProducts, q, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct inserts a new catalog entry.
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	return s.runTx(ctx, func(tx docstore.Tx) error {
		product.CreatedAt = tx.ServerTime()
		return tx.Create(models.CollectionProducts, product.ID, product)
	})
}

// UpdateProduct overwrites a catalog entry.
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	return s.runTx(ctx, func(tx docstore.Tx) error {
		return tx.Update(models.CollectionProducts, product.ID, product)
	})
}

// SetProductInStock flips the catalog visibility flag.
func (s *Store) SetProductInStock(ctx context.Context, id string, inStock bool) error {
	return s.runTx(ctx, func(tx docstore.Tx) error {
		var product models.Product
		if err := tx.Get(models.CollectionProducts, id, &product); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return &ProductNotFoundError{ProductID: id}
			}
			return err
		}
		product.InStock = inStock
		return tx.Update(models.CollectionProducts, id, &product)
	})
}

// DeleteProduct removes a catalog entry.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.runTx(ctx, func(tx docstore.Tx) error {
		return tx.Delete(models.CollectionProducts, id)
	})
}

// GetUser retrieves a profile record.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.docs.Get(ctx, models.CollectionUsers, id, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a profile record.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.runTx(ctx, func(tx docstore.Tx) error {
		user.CreatedAt = tx.ServerTime()
		return tx.Create(models.CollectionUsers, user.ID, user)
	})
}

// UpdateUser overwrites a profile record.
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	return s.runTx(ctx, func(tx docstore.Tx) error {
		return tx.Update(models.CollectionUsers, user.ID, user)
	})
}

// ListAddresses retrieves a user's address book.
func (s *Store) ListAddresses(ctx context.Context, userID string) ([]models.Address, error) {
	var addresses []models.Address
	q := docstore.Query{Filters: []docstore.Filter{{Field: "userId", Value: userID}}}
	if err := s.docs.Query(ctx, models.CollectionAddresses, q, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

// GetAddress retrieves a single address.
func (s *Store) GetAddress(ctx context.Context, id string) (*models.Address, error) {
	var address models.Address
	if err := s.docs.Get(ctx, models.CollectionAddresses, id, &address); err != nil {
		return nil, err
	}
	return &address, nil
}

// CreateAddress inserts an address.
func (s *Store) CreateAddress(ctx context.Context, address *models.Address) error {
	return s.runTx(ctx, func(tx docstore.Tx) error {
		return tx.Create(models.CollectionAddresses, address.ID, address)
	})
}

// UpdateAddress overwrites an address.
func (s *Store) UpdateAddress(ctx context.Context, address *models.Address) error {
	return s.runTx(ctx, func(tx docstore.Tx) error {
		return tx.Update(models.CollectionAddresses, address.ID, address)
	})
}

// DeleteAddress removes an address.
func (s *Store) DeleteAddress(ctx context.Context, id string) error {
	return s.runTx(ctx, func(tx docstore.Tx) error {
		return tx.Delete(models.CollectionAddresses, id)
	})
}
