package service

import (
	"context"
	"errors"
	"fmt"

	"petstore-service/internal/models"
	"petstore-service/internal/store"
	"petstore-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPurchaseNotVerified is returned when a user reviews a product they
// never ordered.
var ErrPurchaseNotVerified = errors.New("you can only review products you have purchased")

// ErrInvalidRating is returned for ratings outside 1..5.
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// ReviewService handles review submission and lookup
type ReviewService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewReviewService creates a new review service
func NewReviewService(store *store.Store) *ReviewService {
	return &ReviewService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// SubmitReviewRequest represents a review submission
type SubmitReviewRequest struct {
	UserID    string `json:"-"`
	UserName  string `json:"-"`
	ProductID string `json:"product_id" binding:"required"`
	Rating    int    `json:"rating" binding:"required"`
	Comment   string `json:"comment"`
}

// SubmitReview records a review and updates the product's running rating
// average, provided the user has a committed order (any status) containing
// the product. The purchase check reads outside the review transaction;
// a purchase-history change between check and commit is tolerated.
func (s *ReviewService) SubmitReview(ctx context.Context, req *SubmitReviewRequest) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.SubmitReview")
	defer span.End()

	if req.Rating < 1 || req.Rating > 5 {
		util.ReviewsRejectedTotal.WithLabelValues("invalid_rating").Inc()
		return nil, ErrInvalidRating
	}

	orders, err := s.store.GetOrdersByUserID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase history: %w", err)
	}
	if !containsProduct(orders, req.ProductID) {
		util.ReviewsRejectedTotal.WithLabelValues("purchase_not_verified").Inc()
		return nil, ErrPurchaseNotVerified
	}

	review := &models.Review{
		ID:        uuid.New().String(),
		ProductID: req.ProductID,
		UserID:    req.UserID,
		UserName:  req.UserName,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}

	if err := s.store.SubmitReviewTx(ctx, review); err != nil {
		return nil, err
	}

	util.ReviewsSubmittedTotal.Inc()
	s.logger.Info("Review submitted",
		zap.String("product_id", req.ProductID),
		zap.String("user_id", req.UserID),
		zap.Int("rating", req.Rating))
	return review, nil
}

// ListReviews retrieves a product's reviews, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, productID string) ([]models.Review, error) {
	return s.store.GetReviewsByProductID(ctx, productID)
}

func containsProduct(orders []models.Order, productID string) bool {
	for _, order := range orders {
		for _, item := range order.Items {
			if item.ProductID == productID {
				return true
			}
		}
	}
	return false
}
