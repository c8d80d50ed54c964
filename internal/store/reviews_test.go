package store

import (
	"context"
	"testing"

	"petstore-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitReview(t *testing.T, s *Store, id, productID string, rating int) {
	t.Helper()
	err := s.SubmitReviewTx(context.Background(), &models.Review{
		ID:        id,
		ProductID: productID,
		UserID:    "user-1",
		Rating:    rating,
	})
	require.NoError(t, err)
}

func TestSubmitReviewUpdatesAverage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedProduct(t, s, "p1", 500, 10)

	submitReview(t, s, "r1", "p1", 4)

	product, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, product.RatingCount)
	assert.InDelta(t, 4.0, product.AverageRating, 1e-9)

	submitReview(t, s, "r2", "p1", 2)

	product, err = s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, product.RatingCount)
	assert.InDelta(t, 3.0, product.AverageRating, 1e-9)

	submitReview(t, s, "r3", "p1", 5)

	product, err = s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, product.RatingCount)
	assert.InDelta(t, (4.0+2.0+5.0)/3.0, product.AverageRating, 1e-9)
}

func TestSubmitReviewUnknownProduct(t *testing.T) {
	s := newTestStore(t)

	err := s.SubmitReviewTx(context.Background(), &models.Review{
		ID:        "r1",
		ProductID: "ghost",
		Rating:    5,
	})

	var notFound *ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestGetReviewsByProduct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedProduct(t, s, "p1", 500, 10)
	seedProduct(t, s, "p2", 300, 10)

	submitReview(t, s, "r1", "p1", 4)
	submitReview(t, s, "r2", "p2", 1)
	submitReview(t, s, "r3", "p1", 5)

	reviews, err := s.GetReviewsByProductID(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
	for _, review := range reviews {
		assert.Equal(t, "p1", review.ProductID)
		assert.False(t, review.CreatedAt.IsZero())
	}
}
