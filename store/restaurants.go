package store

import (
	"context"
	"fmt"
	"time"

	"food-marketplace-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RestaurantRepository struct {
	db *gorm.DB
}

// RestaurantFilter narrows List. Zero values are ignored.
type RestaurantFilter struct {
	OwnerID    string
	Type       string
	Cuisine    string
	Search     string
	GoGreen    *bool
	ActiveOnly bool
}

func (r *RestaurantRepository) Create(ctx context.Context, restaurant *models.Restaurant) error {
	if restaurant.ID == "" {
		restaurant.ID = uuid.NewString()
	}
	if restaurant.Menu == nil {
		restaurant.Menu = models.Menu{}
	}
	restaurant.Version = 1
	if err := r.db.WithContext(ctx).Create(restaurant).Error; err != nil {
		return fmt.Errorf("failed to create restaurant: %w", err)
	}
	return nil
}

func (r *RestaurantRepository) GetByID(ctx context.Context, id string) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := r.db.WithContext(ctx).First(&restaurant, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get restaurant: %w", notFound(err))
	}
	return &restaurant, nil
}

func (r *RestaurantRepository) List(ctx context.Context, filter RestaurantFilter) ([]models.Restaurant, error) {
	restaurants := []models.Restaurant{}
	query := r.db.WithContext(ctx).Order("created_at asc")

	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Cuisine != "" {
		query = query.Where("LOWER(cuisine) LIKE LOWER(?)", "%"+filter.Cuisine+"%")
	}
	if filter.Search != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
	}
	if filter.GoGreen != nil {
		query = query.Where("is_go_green = ?", *filter.GoGreen)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	if err := query.Find(&restaurants).Error; err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	return restaurants, nil
}

// Update applies a partial update unconditionally (last writer wins) and bumps the
// version so in-flight conditional writes notice.
func (r *RestaurantRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	fields["version"] = gorm.Expr("version + 1")
	if _, ok := fields["updated_at"]; !ok {
		fields["updated_at"] = time.Now()
	}
	result := r.db.WithContext(ctx).Model(&models.Restaurant{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update restaurant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update restaurant: %w", ErrNotFound)
	}
	return nil
}

// UpdateIfVersion applies fields only if the stored version still equals
// restaurant.Version, returning ErrVersionConflict otherwise.
func (r *RestaurantRepository) UpdateIfVersion(ctx context.Context, restaurant *models.Restaurant, fields map[string]any) error {
	fields["version"] = restaurant.Version + 1
	if _, ok := fields["updated_at"]; !ok {
		fields["updated_at"] = time.Now()
	}
	result := r.db.WithContext(ctx).Model(&models.Restaurant{}).
		Where("id = ? AND version = ?", restaurant.ID, restaurant.Version).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update restaurant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	restaurant.Version++
	return nil
}

func (r *RestaurantRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Restaurant{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete restaurant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to delete restaurant: %w", ErrNotFound)
	}
	return nil
}
