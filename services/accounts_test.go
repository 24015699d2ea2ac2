package services

import (
	"context"
	"sync"
	"testing"

	"food-marketplace-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUpAndSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.accounts.SignUp(ctx, SignUpInput{Name: " Bob ", Email: "Bob@Example.com", Password: "secret1", Address: "2 High St"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", u.Name)
	assert.Equal(t, "bob@example.com", u.Email)
	assert.Equal(t, models.RoleCustomer, u.Role)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	got, err := f.accounts.SignIn(ctx, "BOB@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.accounts.SignIn(ctx, "bob@example.com", "wrong")
	requireKind(t, err, KindUnauthenticated)
	_, err = f.accounts.SignIn(ctx, "nobody@example.com", "secret1")
	requireKind(t, err, KindUnauthenticated)

	_, err = f.accounts.SignUp(ctx, SignUpInput{Name: "Bob 2", Email: "bob@example.com", Password: "secret2"})
	requireKind(t, err, KindConflict)
}

func TestSignUpValidation(t *testing.T) {
	f := newFixture(t)
	tests := map[string]SignUpInput{
		"missing name":   {Email: "a@example.com", Password: "secret1"},
		"bad email":      {Name: "A", Email: "a-at-example", Password: "secret1"},
		"short password": {Name: "A", Email: "a@example.com", Password: "123"},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.accounts.SignUp(context.Background(), in)
			requireKind(t, err, KindValidation)
		})
	}
}

func TestSignUpGrantsConfiguredAdmins(t *testing.T) {
	f := newFixture(t)
	u, err := f.accounts.SignUp(context.Background(), SignUpInput{Name: "Root", Email: "ADMIN@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.True(t, u.IsAdmin())
}

func TestEnsureUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.accounts.EnsureUser(ctx, Identity{ID: "ext-1", Email: "carol@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "carol", u.Name)
	assert.Equal(t, models.RoleCustomer, u.Role)
	assert.Empty(t, u.FavoriteRestaurants)
	assert.Zero(t, u.TotalCaloriesConsumed)

	again, err := f.accounts.EnsureUser(ctx, Identity{ID: "ext-1", Email: "carol@example.com", Name: "Other"})
	require.NoError(t, err)
	assert.Equal(t, "carol", again.Name)

	_, err = f.accounts.EnsureUser(ctx, Identity{})
	requireKind(t, err, KindUnauthenticated)
}

func TestEnsureUserConcurrentFirstSight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := f.accounts.EnsureUser(ctx, Identity{ID: "ext-race", Email: "dave@example.com"})
			errs[i] = err
			if err == nil {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "ext-race", ids[i])
	}
	users, err := f.accounts.ListUsers(ctx, "")
	require.NoError(t, err)
	count := 0
	for _, u := range users {
		if u.ID == "ext-race" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "Bob", models.RoleCustomer)

	name, phone := "Robert", "555-0100"
	got, err := f.accounts.UpdateProfile(ctx, u, ProfilePatch{Name: &name, Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Robert", got.Name)
	assert.Equal(t, "555-0100", got.Phone)
	assert.Equal(t, u.Address, got.Address)

	empty := ""
	_, err = f.accounts.UpdateProfile(ctx, u, ProfilePatch{Name: &empty})
	requireKind(t, err, KindValidation)
	_, err = f.accounts.UpdateProfile(ctx, nil, ProfilePatch{})
	requireKind(t, err, KindUnauthenticated)

	users, err := f.accounts.ListUsers(ctx, models.RoleCustomer)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	_, err = f.accounts.ListUsers(ctx, models.UserRole("driver"))
	requireKind(t, err, KindValidation)
}
