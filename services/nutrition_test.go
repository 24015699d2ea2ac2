package services

import (
	"context"
	"testing"
	"time"

	"food-marketplace-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowStart(t *testing.T) {
	wednesday := time.Date(2026, time.October, 14, 15, 30, 0, 0, time.UTC)
	sunday := time.Date(2026, time.October, 11, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		tf   Timeframe
		now  time.Time
		want time.Time
	}{
		{"daily", Daily, wednesday, time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)},
		{"weekly", Weekly, wednesday, sunday},
		{"weekly on sunday", Weekly, sunday.Add(23 * time.Hour), sunday},
		{"weekly across months", Weekly, time.Date(2026, time.November, 3, 8, 0, 0, 0, time.UTC), time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC)},
		{"weekly across years", Weekly, time.Date(2027, time.January, 1, 8, 0, 0, 0, time.UTC), time.Date(2026, time.December, 27, 0, 0, 0, 0, time.UTC)},
		{"monthly", Monthly, wednesday, time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(WindowStart(tt.tf, tt.now)), "got %v", WindowStart(tt.tf, tt.now))
		})
	}
}

func TestWindowStartUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 20:00 UTC on the 14th is already the 15th in Tokyo
	now := time.Date(2026, time.October, 14, 20, 0, 0, 0, time.UTC).In(tokyo)
	assert.True(t, time.Date(2026, time.October, 15, 0, 0, 0, 0, tokyo).Equal(WindowStart(Daily, now)))
	assert.Equal(t, "2026-10-15", DateKey(now, tokyo))
	assert.Equal(t, "2026-10-14", DateKey(now, time.UTC))
}

func TestCalorieStats(t *testing.T) {
	now := time.Date(2026, time.October, 14, 15, 0, 0, 0, time.UTC)
	user := &models.User{ID: "u1"}
	order := func(status models.OrderStatus, calories int, at time.Time) models.Order {
		return models.Order{UserID: "u1", Status: status, TotalCalories: calories, CreatedAt: at}
	}
	orders := []models.Order{
		order(models.StatusDelivered, 100, time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)),
		order(models.StatusDelivered, 200, time.Date(2026, time.October, 11, 8, 0, 0, 0, time.UTC)),
		order(models.StatusDelivered, 400, time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)),
		order(models.StatusDelivered, 800, time.Date(2026, time.September, 30, 23, 59, 0, 0, time.UTC)),
		order(models.StatusPending, 1600, time.Date(2026, time.October, 14, 11, 0, 0, 0, time.UTC)),
		order(models.StatusCancelled, 3200, time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)),
		{UserID: "u2", Status: models.StatusDelivered, TotalCalories: 6400, CreatedAt: now},
	}

	assert.Equal(t, 100, CalorieStats(user, orders, Daily, now))
	assert.Equal(t, 300, CalorieStats(user, orders, Weekly, now))
	assert.Equal(t, 700, CalorieStats(user, orders, Monthly, now))
	assert.Equal(t, 0, CalorieStats(nil, orders, Daily, now))
	assert.Equal(t, 0, CalorieStats(user, nil, Monthly, now))
}

func TestParseTimeframe(t *testing.T) {
	for in, want := range map[string]Timeframe{"": Daily, "daily": Daily, "weekly": Weekly, "monthly": Monthly} {
		got, err := ParseTimeframe(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTimeframe("yearly")
	requireKind(t, err, KindValidation)
}

func TestRecordConsumption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "Bob", models.RoleCustomer)

	require.NoError(t, f.nutrition.RecordConsumption(ctx, u.ID, 300, "2026-10-14"))
	require.NoError(t, f.nutrition.RecordConsumption(ctx, u.ID, 200, "2026-10-14"))
	require.NoError(t, f.nutrition.RecordConsumption(ctx, u.ID, 50, "2026-10-15"))

	ledger, err := f.nutrition.Ledger(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2026-10-14": 500, "2026-10-15": 50}, ledger.Entries)
	assert.Equal(t, 550, ledger.Total)

	requireKind(t, f.nutrition.RecordConsumption(ctx, u.ID, -10, "2026-10-14"), KindValidation)
	requireKind(t, f.nutrition.RecordConsumption(ctx, u.ID, 10, "14/10/2026"), KindValidation)
	requireKind(t, f.nutrition.RecordConsumption(ctx, "", 10, "2026-10-14"), KindUnauthenticated)
	requireKind(t, f.nutrition.RecordConsumption(ctx, "missing", 10, "2026-10-14"), KindNotFound)

	ledger, err = f.nutrition.Ledger(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, 550, ledger.Total)
	assert.Equal(t, "2026-10-14", f.nutrition.Today())
}

func TestNutritionStatsFromDeliveredOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)
	customer := f.user(t, "Bob", models.RoleCustomer)
	r := f.restaurant(t, owner, "Cafe X")
	items := []models.OrderItem{{Name: "Latte", Price: mustDecimal("3.5"), Calories: 120, Quantity: 2}}

	delivered, err := f.orders.PlaceOrder(ctx, customer, r, items, "")
	require.NoError(t, err)
	f.deliver(t, owner, delivered.OrderID)
	_, err = f.orders.PlaceOrder(ctx, customer, r, items, "")
	require.NoError(t, err)

	report, err := f.nutrition.Stats(ctx, customer, Daily)
	require.NoError(t, err)
	assert.Equal(t, 240, report.Calories)
	assert.Equal(t, Daily, report.Timeframe)

	// the ledger counts both orders at placement; the stats only the delivered one
	ledger, err := f.nutrition.Ledger(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, 480, ledger.Total)
}

func TestComputeGoGreenSavings(t *testing.T) {
	factors := models.GoGreenFactors{CarbonKgPerMeal: 0.85, PlasticGramsPerMeal: 12, WaterLitersPerMeal: 15}
	restaurants := []models.Restaurant{{ID: "green", IsGoGreen: true}, {ID: "plain"}}
	orders := []models.Order{
		{RestaurantID: "green", Status: models.StatusDelivered, Items: []models.OrderItem{{Quantity: 2}, {Quantity: 1}}},
		{RestaurantID: "green", Status: models.StatusDelivered, Items: []models.OrderItem{{Quantity: 4}}},
		{RestaurantID: "green", Status: models.StatusPending, Items: []models.OrderItem{{Quantity: 10}}},
		{RestaurantID: "plain", Status: models.StatusDelivered, Items: []models.OrderItem{{Quantity: 10}}},
		{RestaurantID: "deleted", Status: models.StatusDelivered, Items: []models.OrderItem{{Quantity: 10}}},
	}

	s := ComputeGoGreenSavings(orders, restaurants, factors)
	assert.Equal(t, 2, s.TotalGoGreenOrders)
	assert.Equal(t, 7, s.TotalMeals)
	assert.InDelta(t, 5.95, s.CarbonSavedKg, 1e-9)
	assert.InDelta(t, 84.0, s.PlasticSavedGrams, 1e-9)
	assert.InDelta(t, 105.0, s.WaterSavedLiters, 1e-9)
	assert.Equal(t, 0.85, s.CarbonKgPerMeal)
}

func TestGoGreenSavingsForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)
	customer := f.user(t, "Bob", models.RoleCustomer)

	in := restaurantInput("Leafy", "Casual Dining")
	in.IsGoGreen = true
	id, err := f.catalog.CreateRestaurant(ctx, owner, in, nil)
	require.NoError(t, err)
	green, err := f.catalog.GetRestaurant(ctx, id)
	require.NoError(t, err)

	res, err := f.orders.PlaceOrder(ctx, customer, green, []models.OrderItem{{Name: "Bowl", Price: mustDecimal("9"), Quantity: 3}}, "")
	require.NoError(t, err)
	f.deliver(t, owner, res.OrderID)

	s, err := f.nutrition.GoGreenSavings(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalGoGreenOrders)
	assert.Equal(t, 3, s.TotalMeals)
	assert.InDelta(t, 2.55, s.CarbonSavedKg, 1e-9)
}
