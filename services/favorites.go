package services

import (
	"context"

	"food-marketplace-api/models"
	"food-marketplace-api/store"

	"go.uber.org/zap"
)

// FavoritesService maintains per-user favorite sets.
type FavoritesService struct {
	store  *store.Storage
	logger *zap.SugaredLogger
}

func NewFavoritesService(st *store.Storage, logger *zap.SugaredLogger) *FavoritesService {
	return &FavoritesService{store: st, logger: logger}
}

// ToggleFavorite removes restaurantID from the user's favorites if present and
// adds it otherwise. It returns whether the restaurant is now a favorite, and
// leaves user.FavoriteRestaurants set to the stored result.
func (s *FavoritesService) ToggleFavorite(ctx context.Context, user *models.User, restaurantID string) (bool, error) {
	if user == nil {
		return false, unauthenticated("you must be signed in to manage favorites")
	}
	if restaurantID == "" {
		return false, invalid("restaurant id is required")
	}

	current, err := s.store.Users.Favorites(ctx, user.ID)
	if err != nil {
		return false, storeError(err, "user not found", "failed to load favorites")
	}

	favorited := !containsID(current, restaurantID)
	if favorited {
		if _, err := s.store.Restaurants.GetByID(ctx, restaurantID); err != nil {
			return false, storeError(err, "restaurant not found", "failed to load restaurant")
		}
		err = s.store.Users.AddFavorite(ctx, user.ID, restaurantID)
	} else {
		err = s.store.Users.RemoveFavorite(ctx, user.ID, restaurantID)
	}
	if err != nil {
		return false, storeError(err, "user not found", "failed to update favorites")
	}

	updated, err := s.store.Users.Favorites(ctx, user.ID)
	if err != nil {
		return false, storeError(err, "user not found", "failed to load favorites")
	}
	user.FavoriteRestaurants = updated
	return favorited, nil
}

// Favorites returns the user's favorite restaurants that still exist.
func (s *FavoritesService) Favorites(ctx context.Context, user *models.User) ([]models.Restaurant, error) {
	if user == nil {
		return nil, unauthenticated("you must be signed in to see favorites")
	}
	ids, err := s.store.Users.Favorites(ctx, user.ID)
	if err != nil {
		return nil, storeError(err, "user not found", "failed to load favorites")
	}
	restaurants := make([]models.Restaurant, 0, len(ids))
	for _, id := range ids {
		r, err := s.store.Restaurants.GetByID(ctx, id)
		if err != nil {
			s.logger.Debugw("skipping missing favorite", "user_id", user.ID, "restaurant_id", id, "error", err)
			continue
		}
		restaurants = append(restaurants, *r)
	}
	return restaurants, nil
}
