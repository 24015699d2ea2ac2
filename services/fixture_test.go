package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"food-marketplace-api/blob"
	"food-marketplace-api/config"
	"food-marketplace-api/models"
	"food-marketplace-api/store"
	"food-marketplace-api/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBlobs struct {
	mu         sync.Mutex
	failUpload error
	failDelete error
	uploaded   []string
	deleted    []string
}

func (f *fakeBlobs) Upload(_ context.Context, src blob.Source, folder string) (blob.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload != nil {
		return blob.Image{}, f.failUpload
	}
	id := folder + "/" + src.Filename
	f.uploaded = append(f.uploaded, id)
	return blob.Image{URL: "https://cdn.test/" + id, PublicID: id}, nil
}

func (f *fakeBlobs) Delete(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicID)
	return f.failDelete
}

func (f *fakeBlobs) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type failingRecorder struct{}

func (failingRecorder) RecordConsumption(context.Context, string, int, string) error {
	return &Error{Kind: KindPersistence, Message: "failed to record consumption", Err: errors.New("disk full")}
}

type fixture struct {
	st        *store.Storage
	blobs     *fakeBlobs
	catalog   *CatalogService
	orders    *OrderService
	nutrition *NutritionService
	favorites *FavoritesService
	reviews   *ReviewService
	accounts  *AccountService
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop().Sugar()
	st := storetest.New(t)
	types := config.DefaultRestaurantTypes()
	blobs := &fakeBlobs{}

	f := &fixture{
		st:    st,
		blobs: blobs,
		now:   time.Date(2026, time.October, 14, 15, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.catalog = NewCatalogService(st, blobs, types, logger)
	f.nutrition = NewNutritionService(st, types.GoGreen, time.UTC, logger)
	f.nutrition.now = clock
	f.orders = NewOrderService(st, f.nutrition, nil, time.UTC, logger)
	f.orders.now = clock
	f.favorites = NewFavoritesService(st, logger)
	f.reviews = NewReviewService(st, f.catalog.NotifyRestaurantsChanged, logger)
	f.accounts = NewAccountService(st, []string{"admin@example.com"}, logger)
	return f
}

func (f *fixture) user(t *testing.T, name string, role models.UserRole) *models.User {
	t.Helper()
	ctx := context.Background()
	u := &models.User{
		Name:    name,
		Email:   strings.ToLower(name) + "@example.com",
		Role:    role,
		Address: "1 Main St",
	}
	require.NoError(t, f.st.Users.Create(ctx, u))
	got, err := f.st.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	return got
}

func restaurantInput(name, typ string) RestaurantInput {
	lat, lng := 40.7128, -74.0060
	return RestaurantInput{
		Name:      name,
		Cuisine:   "Italian",
		Type:      typ,
		Address:   "10 Market St",
		Latitude:  &lat,
		Longitude: &lng,
	}
}

func (f *fixture) restaurant(t *testing.T, owner *models.User, name string) *models.Restaurant {
	t.Helper()
	ctx := context.Background()
	id, err := f.catalog.CreateRestaurant(ctx, owner, restaurantInput(name, "Cafe"), nil)
	require.NoError(t, err)
	r, err := f.catalog.GetRestaurant(ctx, id)
	require.NoError(t, err)
	return r
}

func (f *fixture) menuItem(t *testing.T, owner *models.User, restaurantID, name, price string, calories any) models.MenuItem {
	t.Helper()
	item, err := f.catalog.AddMenuItem(context.Background(), owner, restaurantID, MenuItemInput{
		Name:     name,
		Price:    mustDecimal(price),
		Calories: calories,
		Category: "Mains",
	}, nil)
	require.NoError(t, err)
	return item
}

func (f *fixture) deliver(t *testing.T, actor *models.User, orderID string) {
	t.Helper()
	for _, s := range []models.OrderStatus{models.StatusConfirmed, models.StatusPreparing, models.StatusOnTheWay, models.StatusDelivered} {
		_, err := f.orders.UpdateOrderStatus(context.Background(), actor, orderID, s)
		require.NoError(t, err)
	}
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "error: %v", err)
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
