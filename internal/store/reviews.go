package store

import (
	"context"
	"errors"

	"petstore-service/internal/docstore"
	"petstore-service/internal/models"
)

// SubmitReviewTx records a review and folds its rating into the product's
// running average, atomically. The running average keeps the update O(1)
// without storing the full rating distribution:
//
//	newAverage = (average*count + rating) / (count + 1)
//
// Purchase verification happens in the service layer, outside this
// transaction.
func (s *Store) SubmitReviewTx(ctx context.Context, review *models.Review) error {
	return s.runTx(ctx, func(tx docstore.Tx) error {
		var product models.Product
		if err := tx.Get(models.CollectionProducts, review.ProductID, &product); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return &ProductNotFoundError{ProductID: review.ProductID}
			}
			return err
		}

		newCount := product.RatingCount + 1
		product.AverageRating = (product.AverageRating*float64(product.RatingCount) + float64(review.Rating)) / float64(newCount)
		product.RatingCount = newCount

		review.CreatedAt = tx.ServerTime()
		if err := tx.Create(models.CollectionReviews, review.ID, review); err != nil {
			return err
		}
		return tx.Update(models.CollectionProducts, product.ID, &product)
	})
}

// GetReviewsByProductID retrieves a product's reviews, newest first.
func (s *Store) GetReviewsByProductID(ctx context.Context, productID string) ([]models.Review, error) {
	var reviews []models.Review
	q := docstore.Query{
		Filters: []docstore.Filter{{Field: "productId", Value: productID}},
		OrderBy: "createdAt",
		Desc:    true,
	}
	if err := s.docs.Query(ctx, models.CollectionReviews, q, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}
