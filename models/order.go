package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents all possible states of a food delivery order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusOnTheWay  OrderStatus = "on_the_way"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// AllOrderStatuses lists every status in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusOnTheWay,
	StatusDelivered,
	StatusCancelled,
}

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	for _, known := range AllOrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type Order struct {
	ID              string               `json:"id" gorm:"primaryKey;size:36"`
	RestaurantID    string               `json:"restaurant_id" gorm:"not null;index;size:36"`
	RestaurantName  string               `json:"restaurant_name"`
	UserID          string               `json:"user_id" gorm:"not null;index;size:36"`
	UserName        string               `json:"user_name"`
	UserEmail       string               `json:"user_email"`
	Items           []OrderItem          `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	TotalPrice      decimal.Decimal      `json:"total_price" gorm:"type:decimal(12,2);not null"`
	TotalCalories   int                  `json:"total_calories" gorm:"not null;default:0"`
	Status          OrderStatus          `json:"status" gorm:"not null;default:'pending';index"`
	DeliveryAddress string               `json:"delivery_address" gorm:"not null"`
	StatusHistory   []OrderStatusHistory `json:"status_history,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time            `json:"created_at" gorm:"index"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// OrderItem is a snapshot of a menu item at the time the order was placed.
type OrderItem struct {
	ID         uint            `json:"-" gorm:"primaryKey"`
	OrderID    string          `json:"-" gorm:"not null;index;size:36"`
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Image      string          `json:"image"`
	Price      decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Calories   int             `json:"calories"`
	Quantity   int             `json:"quantity" gorm:"not null"`
}

// LineTotal is price × quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// LineCalories is calories × quantity.
func (i OrderItem) LineCalories() int {
	return i.Calories * i.Quantity
}

// OrderStatusHistory tracks every status change
type OrderStatusHistory struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	OrderID    string      `json:"order_id" gorm:"not null;index;size:36"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status" gorm:"not null"`
	ChangedBy  string      `json:"changed_by"`
	CreatedAt  time.Time   `json:"created_at"`
}
