package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"food-marketplace-api/blob"
	"food-marketplace-api/models"
	"food-marketplace-api/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRestaurantDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)

	id, err := f.catalog.CreateRestaurant(ctx, owner, restaurantInput("Cafe X", "Cafe"), nil)
	require.NoError(t, err)

	r, err := f.catalog.GetRestaurant(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Cafe X", r.Name)
	assert.Equal(t, owner.ID, r.OwnerID)
	assert.Equal(t, owner.Name, r.OwnerName)
	assert.Equal(t, owner.Email, r.OwnerEmail)
	assert.Zero(t, r.Rating)
	assert.Zero(t, r.ReviewCount)
	assert.Empty(t, r.Menu)
	assert.True(t, r.IsActive)
	assert.Empty(t, r.Image)

	assert.Contains(t, owner.OwnedRestaurants, id)
	stored, err := f.st.Users.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, stored.OwnedRestaurants)
}

func TestCreateRestaurantRequiresUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.catalog.CreateRestaurant(context.Background(), nil, restaurantInput("Cafe X", "Cafe"), nil)
	requireKind(t, err, KindUnauthenticated)
}

func TestCreateRestaurantValidation(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "Alice", models.RoleCustomer)

	tests := []struct {
		name   string
		mutate func(*RestaurantInput)
	}{
		{"missing name", func(in *RestaurantInput) { in.Name = "" }},
		{"unknown type", func(in *RestaurantInput) { in.Type = "Steakhouse" }},
		{"go green is not a type", func(in *RestaurantInput) { in.Type = "Go Green" }},
		{"latitude too high", func(in *RestaurantInput) { v := 90.5; in.Latitude = &v }},
		{"latitude too low", func(in *RestaurantInput) { v := -91.0; in.Latitude = &v }},
		{"longitude out of range", func(in *RestaurantInput) { v := 180.1; in.Longitude = &v }},
		{"missing latitude", func(in *RestaurantInput) { in.Latitude = nil }},
		{"missing longitude", func(in *RestaurantInput) { in.Longitude = nil }},
		{"missing address", func(in *RestaurantInput) { in.Address = "" }},
		{"bad email", func(in *RestaurantInput) { in.Email = "not-an-email" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := restaurantInput("Cafe X", "Cafe")
			tt.mutate(&in)
			_, err := f.catalog.CreateRestaurant(context.Background(), owner, in, nil)
			requireKind(t, err, KindValidation)
		})
	}

	restaurants, err := f.catalog.ListRestaurants(context.Background(), store.RestaurantFilter{})
	require.NoError(t, err)
	assert.Empty(t, restaurants)
}

func TestCreateRestaurantBoundaryCoordinates(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "Alice", models.RoleCustomer)

	in := restaurantInput("Pole", "Bar")
	lat, lng := -90.0, 180.0
	in.Latitude, in.Longitude = &lat, &lng
	_, err := f.catalog.CreateRestaurant(context.Background(), owner, in, nil)
	require.NoError(t, err)
}

func TestCreateRestaurantUploadFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)
	f.blobs.failUpload = errors.New("cdn unavailable")

	image := &blob.Source{Filename: "front.jpg", Reader: strings.NewReader("jpeg")}
	_, err := f.catalog.CreateRestaurant(ctx, owner, restaurantInput("Cafe X", "Cafe"), image)
	requireKind(t, err, KindUpload)

	restaurants, err := f.catalog.ListRestaurants(ctx, store.RestaurantFilter{})
	require.NoError(t, err)
	assert.Empty(t, restaurants)

	// retrying without the image goes through with the same fields
	f.blobs.failUpload = nil
	id, err := f.catalog.CreateRestaurant(ctx, owner, restaurantInput("Cafe X", "Cafe"), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestCreateRestaurantWithImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)

	image := &blob.Source{Filename: "front.jpg", Reader: strings.NewReader("jpeg")}
	id, err := f.catalog.CreateRestaurant(ctx, owner, restaurantInput("Cafe X", "Cafe"), image)
	require.NoError(t, err)

	r, err := f.catalog.GetRestaurant(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "restaurants/"+owner.ID+"/front.jpg", r.ImagePublicID)
	assert.Equal(t, "https://cdn.test/restaurants/"+owner.ID+"/front.jpg", r.Image)
}

func TestOwnershipInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)
	other := f.user(t, "Bob", models.RoleCustomer)
	r := f.restaurant(t, owner, "Cafe X")

	name := "Hijacked"
	err := f.catalog.UpdateRestaurant(ctx, other, r.ID, RestaurantPatch{Name: &name}, nil)
	requireKind(t, err, KindForbidden)

	err = f.catalog.DeleteRestaurant(ctx, other, r.ID)
	requireKind(t, err, KindForbidden)

	_, err = f.catalog.AddMenuItem(ctx, other, r.ID, MenuItemInput{Name: "Latte", Price: mustDecimal("3.5")}, nil)
	requireKind(t, err, KindForbidden)

	after, err := f.catalog.GetRestaurant(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cafe X", after.Name)
	assert.Equal(t, r.Version, after.Version)
	assert.Empty(t, after.Menu)
}

func TestAdminMayActOnAnyRestaurant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)
	admin := f.user(t, "Root", models.RoleAdmin)
	r := f.restaurant(t, owner, "Cafe X")

	name := "Cafe Y"
	require.NoError(t, f.catalog.UpdateRestaurant(ctx, admin, r.ID, RestaurantPatch{Name: &name}, nil))
	got, err := f.catalog.GetRestaurant(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cafe Y", got.Name)

	require.NoError(t, f.catalog.DeleteRestaurant(ctx, admin, r.ID))
	stored, err := f.st.Users.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.OwnedRestaurants)
}

func TestUpdateRestaurantNotFound(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "Alice", models.RoleCustomer)

	name := "Ghost"
	err := f.catalog.UpdateRestaurant(context.Background(), owner, "missing", RestaurantPatch{Name: &name}, nil)
	requireKind(t, err, KindNotFound)

	err = f.catalog.UpdateRestaurant(context.Background(), nil, "missing", RestaurantPatch{Name: &name}, nil)
	requireKind(t, err, KindUnauthenticated)
}

func TestUpdateRestaurantPatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)
	r := f.restaurant(t, owner, "Cafe X")

	typ, active, green := "Bakery", false, true
	lat := 51.5
	patch := RestaurantPatch{Type: &typ, IsActive: &active, IsGoGreen: &green, Latitude: &lat}
	require.NoError(t, f.catalog.UpdateRestaurant(ctx, owner, r.ID, patch, nil))

	got, err := f.catalog.GetRestaurant(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bakery", got.Type)
	assert.False(t, got.IsActive)
	assert.True(t, got.IsGoGreen)
	assert.Equal(t, 51.5, got.Latitude)
	assert.Equal(t, r.Longitude, got.Longitude)
	assert.Equal(t, "Cafe X", got.Name)
	assert.Greater(t, got.Version, r.Version)

	bad := "Steakhouse"
	err = f.catalog.UpdateRestaurant(ctx, owner, r.ID, RestaurantPatch{Type: &bad}, nil)
	requireKind(t, err, KindValidation)

	far := 200.0
	err = f.catalog.UpdateRestaurant(ctx, owner, r.ID, RestaurantPatch{Longitude: &far}, nil)
	requireKind(t, err, KindValidation)
}

func TestUpdateRestaurantReplacesImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)

	first := &blob.Source{Filename: "old.jpg", Reader: strings.NewReader("a")}
	id, err := f.catalog.CreateRestaurant(ctx, owner, restaurantInput("Cafe X", "Cafe"), first)
	require.NoError(t, err)

	// a failing delete of the old image does not fail the update
	f.blobs.failDelete = errors.New("cdn unavailable")
	second := &blob.Source{Filename: "new.jpg", Reader: strings.NewReader("b")}
	require.NoError(t, f.catalog.UpdateRestaurant(ctx, owner, id, RestaurantPatch{}, second))

	got, err := f.catalog.GetRestaurant(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "restaurants/"+owner.ID+"/new.jpg", got.ImagePublicID)
	assert.Equal(t, []string{"restaurants/" + owner.ID + "/old.jpg"}, f.blobs.deletedIDs())
}

func TestUpdateRestaurantUploadFailureKeepsRestaurant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)
	r := f.restaurant(t, owner, "Cafe X")
	f.blobs.failUpload = errors.New("cdn unavailable")

	name := "Renamed"
	image := &blob.Source{Filename: "new.jpg", Reader: strings.NewReader("b")}
	err := f.catalog.UpdateRestaurant(ctx, owner, r.ID, RestaurantPatch{Name: &name}, image)
	requireKind(t, err, KindUpload)

	got, err := f.catalog.GetRestaurant(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cafe X", got.Name)
}

func TestDeleteRestaurant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)

	image := &blob.Source{Filename: "front.jpg", Reader: strings.NewReader("a")}
	id, err := f.catalog.CreateRestaurant(ctx, owner, restaurantInput("Cafe X", "Cafe"), image)
	require.NoError(t, err)
	keep := f.restaurant(t, owner, "Cafe Y")

	f.blobs.failDelete = errors.New("cdn unavailable")
	require.NoError(t, f.catalog.DeleteRestaurant(ctx, owner, id))

	_, err = f.catalog.GetRestaurant(ctx, id)
	requireKind(t, err, KindNotFound)
	assert.Contains(t, f.blobs.deletedIDs(), "restaurants/"+owner.ID+"/front.jpg")
	assert.Equal(t, []string{keep.ID}, owner.OwnedRestaurants)

	stored, err := f.st.Users.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, stored.OwnedRestaurants)

	err = f.catalog.DeleteRestaurant(ctx, owner, id)
	requireKind(t, err, KindNotFound)
}

func TestMenuItemLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)
	r := f.restaurant(t, owner, "Cafe X")

	latte := f.menuItem(t, owner, r.ID, "Latte", "3.50", 120)
	assert.NotEmpty(t, latte.ID)
	assert.True(t, latte.IsAvailable)
	assert.False(t, latte.CreatedAt.IsZero())
	bagel := f.menuItem(t, owner, r.ID, "Bagel", "2.25", nil)
	assert.Zero(t, bagel.Calories)

	price := mustDecimal("4.00")
	unavailable := false
	updated, err := f.catalog.UpdateMenuItem(ctx, owner, r.ID, latte.ID, MenuItemPatch{
		Price:       &price,
		Calories:    "150",
		IsAvailable: &unavailable,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Latte", updated.Name)
	assert.True(t, updated.Price.Equal(price))
	assert.Equal(t, 150, updated.Calories)
	assert.False(t, updated.IsAvailable)

	got, err := f.catalog.GetRestaurant(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got.Menu, 2)
	stored, ok := got.FindMenuItem(latte.ID)
	require.True(t, ok)
	assert.Equal(t, 150, stored.Calories)
	assert.Equal(t, "Mains", stored.Category)
	untouched, ok := got.FindMenuItem(bagel.ID)
	require.True(t, ok)
	assert.True(t, untouched.Price.Equal(mustDecimal("2.25")))

	require.NoError(t, f.catalog.DeleteMenuItem(ctx, owner, r.ID, bagel.ID))
	got, err = f.catalog.GetRestaurant(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got.Menu, 1)
	assert.Equal(t, latte.ID, got.Menu[0].ID)

	_, err = f.catalog.UpdateMenuItem(ctx, owner, r.ID, "missing", MenuItemPatch{Price: &price}, nil)
	requireKind(t, err, KindNotFound)
	err = f.catalog.DeleteMenuItem(ctx, owner, r.ID, bagel.ID)
	requireKind(t, err, KindNotFound)
}

func TestMenuItemCalorieCoercion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)
	r := f.restaurant(t, owner, "Cafe X")

	item := f.menuItem(t, owner, r.ID, "Pasta", "12.00", "350.9")
	assert.Equal(t, 350, item.Calories)

	got, err := f.catalog.GetRestaurant(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 350, got.Menu[0].Calories)

	_, err = f.catalog.AddMenuItem(ctx, owner, r.ID, MenuItemInput{Name: "Bad", Price: mustDecimal("1"), Calories: -5}, nil)
	requireKind(t, err, KindValidation)

	_, err = f.catalog.AddMenuItem(ctx, owner, r.ID, MenuItemInput{Name: "Bad", Price: mustDecimal("1"), Calories: "lots"}, nil)
	requireKind(t, err, KindValidation)

	_, err = f.catalog.UpdateMenuItem(ctx, owner, r.ID, item.ID, MenuItemPatch{Calories: "-1"}, nil)
	requireKind(t, err, KindValidation)

	_, err = f.catalog.AddMenuItem(ctx, owner, r.ID, MenuItemInput{Name: "Free", Price: mustDecimal("-1")}, nil)
	requireKind(t, err, KindValidation)

	got, err = f.catalog.GetRestaurant(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, got.Menu, 1)
}

func TestCoerceCalories(t *testing.T) {
	tests := []struct {
		in      any
		want    int
		wantErr bool
	}{
		{nil, 0, false},
		{"", 0, false},
		{" 42 ", 42, false},
		{"350.9", 350, false},
		{350.9, 350, false},
		{120, 120, false},
		{int64(7), 7, false},
		{"0", 0, false},
		{-1, 0, true},
		{"-0.5", 0, true},
		{"abc", 0, true},
		{"NaN", 0, true},
		{true, 0, true},
	}
	for _, tt := range tests {
		got, err := CoerceCalories(tt.in)
		if tt.wantErr {
			assert.Equal(t, KindValidation, KindOf(err), "input %#v", tt.in)
			continue
		}
		require.NoError(t, err, "input %#v", tt.in)
		assert.Equal(t, tt.want, got, "input %#v", tt.in)
	}
}

func TestMenuItemImageLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)
	r := f.restaurant(t, owner, "Cafe X")

	item, err := f.catalog.AddMenuItem(ctx, owner, r.ID, MenuItemInput{Name: "Latte", Price: mustDecimal("3.5")},
		&blob.Source{Filename: "latte.jpg", Reader: strings.NewReader("a")})
	require.NoError(t, err)
	assert.Equal(t, "menu/"+owner.ID+"/latte.jpg", item.ImagePublicID)

	updated, err := f.catalog.UpdateMenuItem(ctx, owner, r.ID, item.ID, MenuItemPatch{},
		&blob.Source{Filename: "latte2.jpg", Reader: strings.NewReader("b")})
	require.NoError(t, err)
	assert.Equal(t, "menu/"+owner.ID+"/latte2.jpg", updated.ImagePublicID)
	assert.Equal(t, []string{"menu/" + owner.ID + "/latte.jpg"}, f.blobs.deletedIDs())

	require.NoError(t, f.catalog.DeleteMenuItem(ctx, owner, r.ID, item.ID))
	assert.Contains(t, f.blobs.deletedIDs(), "menu/"+owner.ID+"/latte2.jpg")

	f.blobs.failUpload = errors.New("cdn unavailable")
	_, err = f.catalog.AddMenuItem(ctx, owner, r.ID, MenuItemInput{Name: "Mocha", Price: mustDecimal("4")},
		&blob.Source{Filename: "mocha.jpg", Reader: strings.NewReader("c")})
	requireKind(t, err, KindUpload)
}

func TestConcurrentMenuAddsAreNotLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)
	r := f.restaurant(t, owner, "Cafe X")

	const writers = 4
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.catalog.AddMenuItem(ctx, owner, r.ID, MenuItemInput{
				Name:  "Item " + string(rune('A'+i)),
				Price: mustDecimal("1"),
			}, nil)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := f.catalog.GetRestaurant(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, got.Menu, writers)
}

func TestTypeStatsAndGrouping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)

	for _, in := range []RestaurantInput{
		restaurantInput("A", "Cafe"),
		restaurantInput("B", "Cafe"),
		restaurantInput("C", "Bar"),
	} {
		_, err := f.catalog.CreateRestaurant(ctx, owner, in, nil)
		require.NoError(t, err)
	}
	legacy := f.restaurant(t, owner, "Legacy")
	require.NoError(t, f.st.Restaurants.Update(ctx, legacy.ID, map[string]any{"type": ""}))

	stats, err := f.catalog.TypeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.WithoutType)
	assert.Len(t, stats.Types, len(f.catalog.Types().Types))
	assert.Equal(t, "Cafe", stats.Types[0].Type)
	assert.Equal(t, 2, stats.Types[0].Count)
	assert.InDelta(t, 50.0, stats.Types[0].Percentage, 1e-9)
	assert.Equal(t, "Bar", stats.Types[1].Type)

	restaurants, err := f.catalog.ListRestaurants(ctx, store.RestaurantFilter{})
	require.NoError(t, err)
	groups := GroupByType(restaurants)
	assert.Len(t, groups["Cafe"], 2)
	assert.Len(t, groups["Bar"], 1)
	assert.Len(t, groups[""], 1)
}

func TestSubscribeToRestaurants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "Alice", models.RoleCustomer)
	f.restaurant(t, owner, "Cafe X")

	var snapshots [][]models.Restaurant
	unsubscribe, err := f.catalog.SubscribeToRestaurants(ctx, func(rs []models.Restaurant) {
		snapshots = append(snapshots, rs)
	})
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Len(t, snapshots[0], 1)

	r2 := f.restaurant(t, owner, "Cafe Y")
	require.Len(t, snapshots, 2)
	assert.Len(t, snapshots[1], 2)

	f.menuItem(t, owner, r2.ID, "Latte", "3.5", 120)
	require.Len(t, snapshots, 3)

	unsubscribe()
	f.restaurant(t, owner, "Cafe Z")
	assert.Len(t, snapshots, 3)
}

func TestUpdateUserOwnedRestaurants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "Alice", models.RoleCustomer)

	require.NoError(t, f.catalog.UpdateUserOwnedRestaurants(ctx, u.ID, "r1", OwnershipAdd))
	require.NoError(t, f.catalog.UpdateUserOwnedRestaurants(ctx, u.ID, "r1", OwnershipAdd))
	stored, err := f.st.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, stored.OwnedRestaurants)

	require.NoError(t, f.catalog.UpdateUserOwnedRestaurants(ctx, u.ID, "r1", OwnershipRemove))
	stored, err = f.st.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.OwnedRestaurants)

	err = f.catalog.UpdateUserOwnedRestaurants(ctx, u.ID, "r1", OwnershipAction("swap"))
	requireKind(t, err, KindValidation)
}
