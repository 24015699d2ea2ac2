package models

import (
	"time"
)

// UserRole defines allowed roles in the system
type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleAdmin    UserRole = "admin"
)

type User struct {
	ID                    string    `json:"id" gorm:"primaryKey;size:36"`
	Name                  string    `json:"name" gorm:"not null"`
	Email                 string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash          string    `json:"-"`
	Role                  UserRole  `json:"role" gorm:"not null;default:'customer'"`
	Phone                 string    `json:"phone"`
	Address               string    `json:"address"`
	TotalCaloriesConsumed int       `json:"total_calories_consumed" gorm:"not null;default:0"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`

	// Hydrated from the favorites, ownerships and calorie_entries tables.
	FavoriteRestaurants []string       `json:"favorite_restaurants" gorm:"-"`
	OwnedRestaurants    []string       `json:"owned_restaurants" gorm:"-"`
	CalorieTracking     map[string]int `json:"calorie_tracking" gorm:"-"`
}

// IsAdmin reports whether the user may act on any restaurant.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsFavorite reports whether restaurantID is in the user's favorite set.
func (u *User) IsFavorite(restaurantID string) bool {
	for _, id := range u.FavoriteRestaurants {
		if id == restaurantID {
			return true
		}
	}
	return false
}

// Favorite is one row of a user's favorite set.
type Favorite struct {
	UserID       string    `json:"user_id" gorm:"primaryKey;size:36"`
	RestaurantID string    `json:"restaurant_id" gorm:"primaryKey;size:36;index"`
	CreatedAt    time.Time `json:"created_at"`
}

// Ownership mirrors restaurants.owner_id so a user's owned set can be read without
// scanning restaurants.
type Ownership struct {
	UserID       string    `json:"user_id" gorm:"primaryKey;size:36"`
	RestaurantID string    `json:"restaurant_id" gorm:"primaryKey;size:36"`
	CreatedAt    time.Time `json:"created_at"`
}

// CalorieEntry is the calories consumed by a user on one calendar date (YYYY-MM-DD).
type CalorieEntry struct {
	UserID    string    `json:"user_id" gorm:"primaryKey;size:36"`
	Date      string    `json:"date" gorm:"primaryKey;size:10"`
	Calories  int       `json:"calories" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}
