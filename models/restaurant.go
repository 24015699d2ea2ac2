package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Restaurant struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	OwnerID       string    `json:"owner_id" gorm:"not null;index;size:36"`
	OwnerName     string    `json:"owner_name"`
	OwnerEmail    string    `json:"owner_email"`
	Name          string    `json:"name" gorm:"not null"`
	Cuisine       string    `json:"cuisine"`
	Type          string    `json:"type" gorm:"index"`
	Description   string    `json:"description"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	Address       string    `json:"address"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Image         string    `json:"image"`
	ImagePublicID string    `json:"image_public_id"`
	Rating        float64   `json:"rating" gorm:"not null;default:0"`
	ReviewCount   int       `json:"review_count" gorm:"not null;default:0"`
	Menu          Menu      `json:"menu"`
	IsActive      bool      `json:"is_active" gorm:"default:true"`
	IsGoGreen     bool      `json:"is_go_green" gorm:"default:false"`
	Version       int       `json:"version" gorm:"not null;default:1"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsOwnedBy reports whether user may mutate the restaurant: its owner or any admin.
func (r *Restaurant) IsOwnedBy(user *User) bool {
	if user == nil {
		return false
	}
	return r.OwnerID == user.ID || user.IsAdmin()
}

// FindMenuItem returns the menu item with the given id, if any.
func (r *Restaurant) FindMenuItem(id string) (MenuItem, bool) {
	for _, item := range r.Menu {
		if item.ID == id {
			return item, true
		}
	}
	return MenuItem{}, false
}

type MenuItem struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Calories      int             `json:"calories"`
	Category      string          `json:"category"`
	IsAvailable   bool            `json:"is_available"`
	Image         string          `json:"image"`
	ImagePublicID string          `json:"image_public_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Menu is the embedded menu array, stored as a single JSON column so that every
// mutation replaces the whole array.
type Menu []MenuItem

func (Menu) GormDataType() string {
	return "text"
}

func (m Menu) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Menu) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*m = Menu{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("menu: unsupported source type %T", src)
	}
	if len(b) == 0 {
		*m = Menu{}
		return nil
	}
	var items []MenuItem
	if err := json.Unmarshal(b, &items); err != nil {
		return errors.Join(errors.New("menu: invalid json"), err)
	}
	*m = items
	return nil
}

// Clone returns a copy that can be modified without touching the receiver.
func (m Menu) Clone() Menu {
	out := make(Menu, len(m))
	copy(out, m)
	return out
}
