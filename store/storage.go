package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"food-marketplace-api/models"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a conditional write lost a race.
	ErrVersionConflict = errors.New("version conflict")
)

// Storage groups the repositories over one gorm handle. Inside Transaction the
// repositories share the transaction.
type Storage struct {
	db          *gorm.DB
	Users       *UserRepository
	Restaurants *RestaurantRepository
	Orders      *OrderRepository
	Reviews     *ReviewRepository
}

func New(db *gorm.DB) *Storage {
	return &Storage{
		db:          db,
		Users:       &UserRepository{db: db},
		Restaurants: &RestaurantRepository{db: db},
		Orders:      &OrderRepository{db: db},
		Reviews:     &ReviewRepository{db: db},
	}
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Favorite{},
		&models.Ownership{},
		&models.CalorieEntry{},
		&models.Restaurant{},
		&models.Review{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
	)
}

func (s *Storage) DB() *gorm.DB {
	return s.db
}

func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn with repositories bound to a single database transaction.
func (s *Storage) Transaction(ctx context.Context, fn func(tx *Storage) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// RetryOnConflict re-runs fn while it fails with ErrVersionConflict, up to attempts
// times. fn must re-read the documents it writes on every call.
func RetryOnConflict(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !errors.Is(err, ErrVersionConflict) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 5 * time.Millisecond):
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
