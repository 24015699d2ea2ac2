package store

import (
	"context"
	"fmt"
	"time"

	"food-marketplace-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.FavoriteRestaurants = []string{}
	user.OwnedRestaurants = []string{}
	user.CalorieTracking = map[string]int{}
	return nil
}

// GetByID returns the user with favorites, owned restaurants and calorie ledger filled in.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get user: %w", notFound(err))
	}
	if err := r.hydrate(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, fmt.Errorf("failed to get user: %w", notFound(err))
	}
	if err := r.hydrate(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns all users, optionally restricted to one role. Users are not hydrated.
func (r *UserRepository) List(ctx context.Context, role models.UserRole) ([]models.User, error) {
	var users []models.User
	query := r.db.WithContext(ctx).Order("created_at asc")
	if role != "" {
		query = query.Where("role = ?", role)
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Update applies a partial update to the user row.
func (r *UserRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update user: %w", ErrNotFound)
	}
	return nil
}

func (r *UserRepository) AddFavorite(ctx context.Context, userID, restaurantID string) error {
	fav := models.Favorite{UserID: userID, RestaurantID: restaurantID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&fav).Error
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

func (r *UserRepository) RemoveFavorite(ctx context.Context, userID, restaurantID string) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND restaurant_id = ?", userID, restaurantID).
		Delete(&models.Favorite{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

func (r *UserRepository) Favorites(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&models.Favorite{}).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Pluck("restaurant_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}
	return ids, nil
}

func (r *UserRepository) AddOwnership(ctx context.Context, userID, restaurantID string) error {
	own := models.Ownership{UserID: userID, RestaurantID: restaurantID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&own).Error
	if err != nil {
		return fmt.Errorf("failed to add ownership: %w", err)
	}
	return nil
}

func (r *UserRepository) RemoveOwnership(ctx context.Context, userID, restaurantID string) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND restaurant_id = ?", userID, restaurantID).
		Delete(&models.Ownership{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove ownership: %w", err)
	}
	return nil
}

func (r *UserRepository) Owned(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&models.Ownership{}).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Pluck("restaurant_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load owned restaurants: %w", err)
	}
	return ids, nil
}

// AddCalories adds calories to the user's entry for date and to the running total
// in one transaction, so the total always equals the sum of the ledger.
func (r *UserRepository) AddCalories(ctx context.Context, userID, date string, calories int) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
			"total_calories_consumed": gorm.Expr("total_calories_consumed + ?", calories),
			"updated_at":              now,
		})
		if result.Error != nil {
			return fmt.Errorf("failed to update calorie total: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("failed to update calorie total: %w", ErrNotFound)
		}

		entry := models.CalorieEntry{UserID: userID, Date: date, Calories: calories, UpdatedAt: now}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]any{
				"calories":   gorm.Expr("calorie_entries.calories + ?", calories),
				"updated_at": now,
			}),
		}).Create(&entry).Error
		if err != nil {
			return fmt.Errorf("failed to update calorie ledger: %w", err)
		}
		return nil
	})
}

// Ledger returns the user's date → calories mapping.
func (r *UserRepository) Ledger(ctx context.Context, userID string) (map[string]int, error) {
	var entries []models.CalorieEntry
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load calorie ledger: %w", err)
	}
	ledger := make(map[string]int, len(entries))
	for _, e := range entries {
		ledger[e.Date] = e.Calories
	}
	return ledger, nil
}

func (r *UserRepository) hydrate(ctx context.Context, user *models.User) error {
	var err error
	if user.FavoriteRestaurants, err = r.Favorites(ctx, user.ID); err != nil {
		return err
	}
	if user.OwnedRestaurants, err = r.Owned(ctx, user.ID); err != nil {
		return err
	}
	if user.CalorieTracking, err = r.Ledger(ctx, user.ID); err != nil {
		return err
	}
	return nil
}
