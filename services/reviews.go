package services

import (
	"context"
	"strings"
	"time"

	"food-marketplace-api/models"
	"food-marketplace-api/store"

	"go.uber.org/zap"
)

// ReviewService records reviews and keeps restaurant ratings aggregated.
type ReviewService struct {
	store    *store.Storage
	onChange func(context.Context)
	logger   *zap.SugaredLogger
}

// NewReviewService builds the review ledger. onChange, if not nil, is called after
// a review changed a restaurant's rating.
func NewReviewService(st *store.Storage, onChange func(context.Context), logger *zap.SugaredLogger) *ReviewService {
	return &ReviewService{store: st, onChange: onChange, logger: logger}
}

// ApplyRating folds one more rating into a running average.
func ApplyRating(oldRating float64, oldCount, rating int) (float64, int) {
	count := oldCount + 1
	return (oldRating*float64(oldCount) + float64(rating)) / float64(count), count
}

// AddReview stores the review and updates the restaurant's rating and review
// count in the same transaction, retrying if a concurrent review won the race.
func (s *ReviewService) AddReview(ctx context.Context, user *models.User, restaurantID string, rating int, text string) (*models.Review, error) {
	if user == nil {
		return nil, unauthenticated("you must be signed in to leave a review")
	}
	if rating < 1 || rating > 5 {
		return nil, invalid("rating must be between 1 and 5")
	}
	text = strings.TrimSpace(text)
	if len(text) > 2000 {
		return nil, invalid("review text must be at most 2000 characters")
	}

	var review *models.Review
	err := store.RetryOnConflict(ctx, MaxWriteAttempts, func() error {
		return s.store.Transaction(ctx, func(tx *store.Storage) error {
			restaurant, err := tx.Restaurants.GetByID(ctx, restaurantID)
			if err != nil {
				return err
			}
			review = &models.Review{
				RestaurantID: restaurant.ID,
				UserID:       user.ID,
				UserName:     user.Name,
				Rating:       rating,
				Text:         text,
				CreatedAt:    time.Now(),
			}
			if err := tx.Reviews.Create(ctx, review); err != nil {
				return err
			}
			newRating, newCount := ApplyRating(restaurant.Rating, restaurant.ReviewCount, rating)
			return tx.Restaurants.UpdateIfVersion(ctx, restaurant, map[string]any{
				"rating":       newRating,
				"review_count": newCount,
			})
		})
	})
	if err != nil {
		return nil, storeError(err, "restaurant not found", "failed to add review")
	}

	s.logger.Infow("review added", "restaurant_id", restaurantID, "user_id", user.ID, "rating", rating)
	if s.onChange != nil {
		s.onChange(ctx)
	}
	return review, nil
}

// ListReviews returns the restaurant's reviews, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, restaurantID string) ([]models.Review, error) {
	reviews, err := s.store.Reviews.ListByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, storeError(err, "restaurant not found", "failed to list reviews")
	}
	return reviews, nil
}
