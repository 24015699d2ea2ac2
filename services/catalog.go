package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"food-marketplace-api/blob"
	"food-marketplace-api/feed"
	"food-marketplace-api/models"
	"food-marketplace-api/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxWriteAttempts bounds the optimistic retry loops on restaurant documents.
const MaxWriteAttempts = 5

const topicRestaurants = "restaurants"

type RestaurantInput struct {
	Name        string   `json:"name" validate:"required,max=120"`
	Cuisine     string   `json:"cuisine" validate:"max=80"`
	Type        string   `json:"type" validate:"required"`
	Description string   `json:"description" validate:"max=2000"`
	Phone       string   `json:"phone" validate:"max=40"`
	Email       string   `json:"email" validate:"omitempty,email"`
	Address     string   `json:"address" validate:"required,max=300"`
	Latitude    *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" validate:"required,min=-180,max=180"`
	IsGoGreen   bool     `json:"is_go_green"`
}

// RestaurantPatch is a partial restaurant update; nil fields are left alone.
type RestaurantPatch struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=120"`
	Cuisine     *string  `json:"cuisine" validate:"omitempty,max=80"`
	Type        *string  `json:"type"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Phone       *string  `json:"phone" validate:"omitempty,max=40"`
	Email       *string  `json:"email" validate:"omitempty,email"`
	Address     *string  `json:"address" validate:"omitempty,min=1,max=300"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	IsActive    *bool    `json:"is_active"`
	IsGoGreen   *bool    `json:"is_go_green"`
}

// MenuItemInput describes a new menu item. Calories accepts numbers or numeric
// strings and is coerced with CoerceCalories.
type MenuItemInput struct {
	Name        string          `json:"name" validate:"required,max=120"`
	Description string          `json:"description" validate:"max=1000"`
	Price       decimal.Decimal `json:"price"`
	Calories    any             `json:"calories"`
	Category    string          `json:"category" validate:"max=60"`
	IsAvailable *bool           `json:"is_available"`
}

// MenuItemPatch is a partial menu item update; nil fields are left alone.
type MenuItemPatch struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string          `json:"description" validate:"omitempty,max=1000"`
	Price       *decimal.Decimal `json:"price"`
	Calories    any              `json:"calories"`
	Category    *string          `json:"category" validate:"omitempty,max=60"`
	IsAvailable *bool            `json:"is_available"`
}

// OwnershipAction selects what UpdateUserOwnedRestaurants does.
type OwnershipAction string

const (
	OwnershipAdd    OwnershipAction = "add"
	OwnershipRemove OwnershipAction = "remove"
)

// TypeStat is one row of the restaurant type breakdown.
type TypeStat struct {
	Type       string  `json:"type"`
	Color      string  `json:"color"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type TypeStats struct {
	Total       int        `json:"total"`
	WithoutType int        `json:"without_type"`
	Types       []TypeStat `json:"types"`
}

// CatalogService owns restaurants and their menus.
type CatalogService struct {
	store  *store.Storage
	blobs  blob.Store
	types  *models.RestaurantTypeCatalog
	hub    *feed.Hub[[]models.Restaurant]
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewCatalogService(st *store.Storage, blobs blob.Store, types *models.RestaurantTypeCatalog, logger *zap.SugaredLogger) *CatalogService {
	return &CatalogService{
		store:  st,
		blobs:  blobs,
		types:  types,
		hub:    feed.NewHub[[]models.Restaurant](),
		logger: logger,
		now:    time.Now,
	}
}

// Types returns the restaurant type catalogue used for validation.
func (s *CatalogService) Types() *models.RestaurantTypeCatalog {
	return s.types
}

// CreateRestaurant persists a new restaurant owned by owner and returns its id.
// An image upload failure is returned as KindUpload before anything is written.
func (s *CatalogService) CreateRestaurant(ctx context.Context, owner *models.User, in RestaurantInput, image *blob.Source) (string, error) {
	if owner == nil {
		return "", unauthenticated("you must be signed in to create a restaurant")
	}
	if err := validateStruct(in); err != nil {
		return "", err
	}
	if !s.types.IsValid(in.Type) {
		return "", invalid("type must be one of the restaurant types")
	}

	var uploaded blob.Image
	if image != nil {
		img, err := s.blobs.Upload(ctx, *image, "restaurants/"+owner.ID)
		if err != nil {
			return "", uploadFailed(err)
		}
		uploaded = img
	}

	restaurant := &models.Restaurant{
		OwnerID:       owner.ID,
		OwnerName:     owner.Name,
		OwnerEmail:    owner.Email,
		Name:          in.Name,
		Cuisine:       in.Cuisine,
		Type:          in.Type,
		Description:   in.Description,
		Phone:         in.Phone,
		Email:         in.Email,
		Address:       in.Address,
		Latitude:      *in.Latitude,
		Longitude:     *in.Longitude,
		Image:         uploaded.URL,
		ImagePublicID: uploaded.PublicID,
		Menu:          models.Menu{},
		IsActive:      true,
		IsGoGreen:     in.IsGoGreen,
	}

	err := s.store.Transaction(ctx, func(tx *store.Storage) error {
		if err := tx.Restaurants.Create(ctx, restaurant); err != nil {
			return err
		}
		return tx.Users.AddOwnership(ctx, owner.ID, restaurant.ID)
	})
	if err != nil {
		s.deleteImage(ctx, uploaded.PublicID)
		return "", storeError(err, "owner not found", "failed to create restaurant")
	}

	if !containsID(owner.OwnedRestaurants, restaurant.ID) {
		owner.OwnedRestaurants = append(owner.OwnedRestaurants, restaurant.ID)
	}
	s.logger.Infow("restaurant created", "restaurant_id", restaurant.ID, "owner_id", owner.ID)
	s.publishRestaurants(ctx)
	return restaurant.ID, nil
}

// UpdateRestaurant applies patch to the restaurant. A new image replaces the old
// one, which is deleted best-effort once the update is stored.
func (s *CatalogService) UpdateRestaurant(ctx context.Context, actor *models.User, restaurantID string, patch RestaurantPatch, image *blob.Source) error {
	if actor == nil {
		return unauthenticated("you must be signed in to update a restaurant")
	}
	if err := validateStruct(patch); err != nil {
		return err
	}
	if patch.Type != nil && !s.types.IsValid(*patch.Type) {
		return invalid("type must be one of the restaurant types")
	}

	restaurant, err := s.ownedRestaurant(ctx, actor, restaurantID)
	if err != nil {
		return err
	}

	fields := patch.fields()
	var uploaded blob.Image
	if image != nil {
		uploaded, err = s.blobs.Upload(ctx, *image, "restaurants/"+restaurant.OwnerID)
		if err != nil {
			return uploadFailed(err)
		}
		fields["image"] = uploaded.URL
		fields["image_public_id"] = uploaded.PublicID
	}
	fields["updated_at"] = s.now()

	if err := s.store.Restaurants.Update(ctx, restaurant.ID, fields); err != nil {
		s.deleteImage(ctx, uploaded.PublicID)
		return storeError(err, "restaurant not found", "failed to update restaurant")
	}
	if image != nil {
		s.deleteImage(ctx, restaurant.ImagePublicID)
	}

	s.publishRestaurants(ctx)
	return nil
}

func (p RestaurantPatch) fields() map[string]any {
	fields := map[string]any{}
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Cuisine != nil {
		fields["cuisine"] = *p.Cuisine
	}
	if p.Type != nil {
		fields["type"] = *p.Type
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Phone != nil {
		fields["phone"] = *p.Phone
	}
	if p.Email != nil {
		fields["email"] = *p.Email
	}
	if p.Address != nil {
		fields["address"] = *p.Address
	}
	if p.Latitude != nil {
		fields["latitude"] = *p.Latitude
	}
	if p.Longitude != nil {
		fields["longitude"] = *p.Longitude
	}
	if p.IsActive != nil {
		fields["is_active"] = *p.IsActive
	}
	if p.IsGoGreen != nil {
		fields["is_go_green"] = *p.IsGoGreen
	}
	return fields
}

// DeleteRestaurant removes the restaurant and its ownership entry. Stored images
// are deleted best-effort.
func (s *CatalogService) DeleteRestaurant(ctx context.Context, actor *models.User, restaurantID string) error {
	if actor == nil {
		return unauthenticated("you must be signed in to delete a restaurant")
	}
	restaurant, err := s.ownedRestaurant(ctx, actor, restaurantID)
	if err != nil {
		return err
	}

	s.deleteImage(ctx, restaurant.ImagePublicID)
	for _, item := range restaurant.Menu {
		s.deleteImage(ctx, item.ImagePublicID)
	}

	err = s.store.Transaction(ctx, func(tx *store.Storage) error {
		if err := tx.Restaurants.Delete(ctx, restaurant.ID); err != nil {
			return err
		}
		return tx.Users.RemoveOwnership(ctx, restaurant.OwnerID, restaurant.ID)
	})
	if err != nil {
		return storeError(err, "restaurant not found", "failed to delete restaurant")
	}

	if actor.ID == restaurant.OwnerID {
		actor.OwnedRestaurants = removeID(actor.OwnedRestaurants, restaurant.ID)
	}
	s.logger.Infow("restaurant deleted", "restaurant_id", restaurant.ID, "by", actor.ID)
	s.publishRestaurants(ctx)
	return nil
}

// UpdateUserOwnedRestaurants adds or removes restaurantID from the user's owned set.
func (s *CatalogService) UpdateUserOwnedRestaurants(ctx context.Context, userID, restaurantID string, action OwnershipAction) error {
	var err error
	switch action {
	case OwnershipAdd:
		err = s.store.Users.AddOwnership(ctx, userID, restaurantID)
	case OwnershipRemove:
		err = s.store.Users.RemoveOwnership(ctx, userID, restaurantID)
	default:
		return invalid("unknown ownership action " + string(action))
	}
	if err != nil {
		return storeError(err, "user not found", "failed to update owned restaurants")
	}
	return nil
}

// AddMenuItem appends a new item to the restaurant's menu and returns it.
func (s *CatalogService) AddMenuItem(ctx context.Context, actor *models.User, restaurantID string, in MenuItemInput, image *blob.Source) (models.MenuItem, error) {
	if actor == nil {
		return models.MenuItem{}, unauthenticated("you must be signed in to edit a menu")
	}
	if err := validateStruct(in); err != nil {
		return models.MenuItem{}, err
	}
	if in.Price.IsNegative() {
		return models.MenuItem{}, invalid("price cannot be negative")
	}
	calories, err := CoerceCalories(in.Calories)
	if err != nil {
		return models.MenuItem{}, err
	}

	restaurant, err := s.ownedRestaurant(ctx, actor, restaurantID)
	if err != nil {
		return models.MenuItem{}, err
	}

	now := s.now()
	item := models.MenuItem{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price.Round(2),
		Calories:    calories,
		Category:    in.Category,
		IsAvailable: in.IsAvailable == nil || *in.IsAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if image != nil {
		img, err := s.blobs.Upload(ctx, *image, "menu/"+restaurant.OwnerID)
		if err != nil {
			return models.MenuItem{}, uploadFailed(err)
		}
		item.Image = img.URL
		item.ImagePublicID = img.PublicID
	}

	err = s.mutateMenu(ctx, actor, restaurantID, func(menu models.Menu) (models.Menu, error) {
		return append(menu, item), nil
	})
	if err != nil {
		s.deleteImage(ctx, item.ImagePublicID)
		return models.MenuItem{}, err
	}
	return item, nil
}

// UpdateMenuItem merges patch into the menu item with the given id.
func (s *CatalogService) UpdateMenuItem(ctx context.Context, actor *models.User, restaurantID, itemID string, patch MenuItemPatch, image *blob.Source) (models.MenuItem, error) {
	if actor == nil {
		return models.MenuItem{}, unauthenticated("you must be signed in to edit a menu")
	}
	if err := validateStruct(patch); err != nil {
		return models.MenuItem{}, err
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return models.MenuItem{}, invalid("price cannot be negative")
	}
	var calories *int
	if patch.Calories != nil {
		c, err := CoerceCalories(patch.Calories)
		if err != nil {
			return models.MenuItem{}, err
		}
		calories = &c
	}

	restaurant, err := s.ownedRestaurant(ctx, actor, restaurantID)
	if err != nil {
		return models.MenuItem{}, err
	}
	if _, ok := restaurant.FindMenuItem(itemID); !ok {
		return models.MenuItem{}, notFound("menu item not found")
	}

	var uploaded blob.Image
	if image != nil {
		uploaded, err = s.blobs.Upload(ctx, *image, "menu/"+restaurant.OwnerID)
		if err != nil {
			return models.MenuItem{}, uploadFailed(err)
		}
	}

	var updated models.MenuItem
	var oldImage string
	err = s.mutateMenu(ctx, actor, restaurantID, func(menu models.Menu) (models.Menu, error) {
		for i := range menu {
			if menu[i].ID != itemID {
				continue
			}
			item := menu[i]
			oldImage = item.ImagePublicID
			if patch.Name != nil {
				item.Name = *patch.Name
			}
			if patch.Description != nil {
				item.Description = *patch.Description
			}
			if patch.Price != nil {
				item.Price = patch.Price.Round(2)
			}
			if calories != nil {
				item.Calories = *calories
			}
			if patch.Category != nil {
				item.Category = *patch.Category
			}
			if patch.IsAvailable != nil {
				item.IsAvailable = *patch.IsAvailable
			}
			if image != nil {
				item.Image = uploaded.URL
				item.ImagePublicID = uploaded.PublicID
			}
			item.UpdatedAt = s.now()
			menu[i] = item
			updated = item
			return menu, nil
		}
		return nil, notFound("menu item not found")
	})
	if err != nil {
		s.deleteImage(ctx, uploaded.PublicID)
		return models.MenuItem{}, err
	}
	if image != nil {
		s.deleteImage(ctx, oldImage)
	}
	return updated, nil
}

// DeleteMenuItem removes the menu item with the given id.
func (s *CatalogService) DeleteMenuItem(ctx context.Context, actor *models.User, restaurantID, itemID string) error {
	if actor == nil {
		return unauthenticated("you must be signed in to edit a menu")
	}
	restaurant, err := s.ownedRestaurant(ctx, actor, restaurantID)
	if err != nil {
		return err
	}
	item, ok := restaurant.FindMenuItem(itemID)
	if !ok {
		return notFound("menu item not found")
	}
	s.deleteImage(ctx, item.ImagePublicID)

	return s.mutateMenu(ctx, actor, restaurantID, func(menu models.Menu) (models.Menu, error) {
		out := menu[:0]
		for _, m := range menu {
			if m.ID != itemID {
				out = append(out, m)
			}
		}
		return out, nil
	})
}

// mutateMenu replaces the whole menu array with fn's result using a versioned
// write, re-reading and retrying when another writer got there first.
func (s *CatalogService) mutateMenu(ctx context.Context, actor *models.User, restaurantID string, fn func(models.Menu) (models.Menu, error)) error {
	err := store.RetryOnConflict(ctx, MaxWriteAttempts, func() error {
		restaurant, err := s.ownedRestaurant(ctx, actor, restaurantID)
		if err != nil {
			return err
		}
		menu, err := fn(restaurant.Menu.Clone())
		if err != nil {
			return err
		}
		return s.store.Restaurants.UpdateIfVersion(ctx, restaurant, map[string]any{
			"menu":       menu,
			"updated_at": s.now(),
		})
	})
	if err != nil {
		return storeError(err, "restaurant not found", "failed to update menu")
	}
	s.publishRestaurants(ctx)
	return nil
}

// ownedRestaurant loads the restaurant and checks that actor may mutate it.
func (s *CatalogService) ownedRestaurant(ctx context.Context, actor *models.User, restaurantID string) (*models.Restaurant, error) {
	restaurant, err := s.store.Restaurants.GetByID(ctx, restaurantID)
	if err != nil {
		return nil, storeError(err, "restaurant not found", "failed to load restaurant")
	}
	if !restaurant.IsOwnedBy(actor) {
		return nil, forbidden("only the restaurant owner or an admin can do this")
	}
	return restaurant, nil
}

func (s *CatalogService) GetRestaurant(ctx context.Context, restaurantID string) (*models.Restaurant, error) {
	restaurant, err := s.store.Restaurants.GetByID(ctx, restaurantID)
	if err != nil {
		return nil, storeError(err, "restaurant not found", "failed to load restaurant")
	}
	return restaurant, nil
}

func (s *CatalogService) ListRestaurants(ctx context.Context, filter store.RestaurantFilter) ([]models.Restaurant, error) {
	restaurants, err := s.store.Restaurants.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "restaurants not found", "failed to list restaurants")
	}
	return restaurants, nil
}

// OwnedRestaurants returns the restaurants owned by user.
func (s *CatalogService) OwnedRestaurants(ctx context.Context, user *models.User) ([]models.Restaurant, error) {
	if user == nil {
		return nil, unauthenticated("you must be signed in to see your restaurants")
	}
	return s.ListRestaurants(ctx, store.RestaurantFilter{OwnerID: user.ID})
}

// TypeStats counts restaurants per catalogue type.
func (s *CatalogService) TypeStats(ctx context.Context) (TypeStats, error) {
	restaurants, err := s.ListRestaurants(ctx, store.RestaurantFilter{})
	if err != nil {
		return TypeStats{}, err
	}
	return ComputeTypeStats(s.types, restaurants), nil
}

// ComputeTypeStats breaks restaurants down by type. Restaurants whose type is
// empty or not in the catalogue count as without type.
func ComputeTypeStats(types *models.RestaurantTypeCatalog, restaurants []models.Restaurant) TypeStats {
	counts := map[string]int{}
	stats := TypeStats{Total: len(restaurants), Types: []TypeStat{}}
	for _, r := range restaurants {
		if types.IsValid(r.Type) {
			counts[r.Type]++
		} else {
			stats.WithoutType++
		}
	}
	for _, t := range types.Types {
		stat := TypeStat{Type: t.Name, Color: t.Color, Count: counts[t.Name]}
		if stats.Total > 0 {
			stat.Percentage = float64(stat.Count) * 100 / float64(stats.Total)
		}
		stats.Types = append(stats.Types, stat)
	}
	sort.SliceStable(stats.Types, func(i, j int) bool {
		return stats.Types[i].Count > stats.Types[j].Count
	})
	return stats
}

// GroupByType buckets restaurants by their type. Untyped restaurants are keyed "".
func GroupByType(restaurants []models.Restaurant) map[string][]models.Restaurant {
	groups := map[string][]models.Restaurant{}
	for _, r := range restaurants {
		groups[r.Type] = append(groups[r.Type], r)
	}
	return groups
}

// SubscribeToRestaurants calls fn with the full restaurant list now and after
// every catalog change until the returned func is called.
func (s *CatalogService) SubscribeToRestaurants(ctx context.Context, fn func([]models.Restaurant)) (func(), error) {
	snapshot, err := s.ListRestaurants(ctx, store.RestaurantFilter{})
	if err != nil {
		return nil, err
	}
	unsubscribe := s.hub.Subscribe(topicRestaurants, fn)
	fn(snapshot)
	return unsubscribe, nil
}

// NotifyRestaurantsChanged republishes the restaurant snapshot, used by other
// services that write to restaurant documents.
func (s *CatalogService) NotifyRestaurantsChanged(ctx context.Context) {
	s.publishRestaurants(ctx)
}

func (s *CatalogService) publishRestaurants(ctx context.Context) {
	if !s.hub.HasSubscribers(topicRestaurants) {
		return
	}
	restaurants, err := s.store.Restaurants.List(ctx, store.RestaurantFilter{})
	if err != nil {
		s.logger.Warnw("failed to publish restaurant snapshot", "error", err)
		return
	}
	s.hub.Publish(topicRestaurants, restaurants)
}

func (s *CatalogService) deleteImage(ctx context.Context, publicID string) {
	if publicID == "" {
		return
	}
	if err := s.blobs.Delete(ctx, publicID); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warnw("failed to delete stored image", "public_id", publicID, "error", err)
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
