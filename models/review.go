package models

import "time"

type Review struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	RestaurantID string    `json:"restaurant_id" gorm:"not null;index;size:36"`
	UserID       string    `json:"user_id" gorm:"not null;index;size:36"`
	UserName     string    `json:"user_name"`
	Rating       int       `json:"rating" gorm:"not null"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}
