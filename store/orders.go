package store

import (
	"context"
	"fmt"
	"time"

	"food-marketplace-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

// OrderFilter narrows List. Zero values are ignored.
type OrderFilter struct {
	UserID        string
	RestaurantIDs []string
	Status        models.OrderStatus
	Limit         int
}

// Create inserts the order together with its item snapshots.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", notFound(err))
	}
	return &order, nil
}

// List returns matching orders, newest first.
func (r *OrderRepository) List(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	orders := []models.Order{}
	query := r.db.WithContext(ctx).Preload("Items").Order("created_at desc")

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.RestaurantIDs != nil {
		if len(filter.RestaurantIDs) == 0 {
			return orders, nil
		}
		query = query.Where("restaurant_id IN ?", filter.RestaurantIDs)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves the order from one status to another and records the change.
// It returns ErrVersionConflict if the stored status is no longer from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, changedBy string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, from).
			Updates(map[string]any{"status": to, "updated_at": now})
		if result.Error != nil {
			return fmt.Errorf("failed to update order status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}

		history := models.OrderStatusHistory{
			OrderID:    id,
			FromStatus: from,
			ToStatus:   to,
			ChangedBy:  changedBy,
			CreatedAt:  now,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to record status history: %w", err)
		}
		return nil
	})
}
