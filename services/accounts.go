package services

import (
	"context"
	"errors"
	"strings"

	"food-marketplace-api/models"
	"food-marketplace-api/store"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type SignUpInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Phone    string `json:"phone" validate:"max=40"`
	Address  string `json:"address" validate:"max=300"`
}

type ProfilePatch struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=100"`
	Phone   *string `json:"phone" validate:"omitempty,max=40"`
	Address *string `json:"address" validate:"omitempty,max=300"`
}

// Identity is an authenticated principal that may not have a user record yet.
type Identity struct {
	ID    string
	Email string
	Name  string
}

// AccountService provisions users and manages their profiles.
type AccountService struct {
	store       *store.Storage
	adminEmails map[string]bool
	logger      *zap.SugaredLogger
}

// NewAccountService builds the account service. Users signing up with one of
// adminEmails get the admin role.
func NewAccountService(st *store.Storage, adminEmails []string, logger *zap.SugaredLogger) *AccountService {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[normalizeEmail(e)] = true
	}
	return &AccountService{store: st, adminEmails: admins, logger: logger}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AccountService) roleFor(email string) models.UserRole {
	if s.adminEmails[email] {
		return models.RoleAdmin
	}
	return models.RoleCustomer
}

// EnsureUser returns the user record for identity, creating it on first sight.
// The display name defaults to the local part of the email.
func (s *AccountService) EnsureUser(ctx context.Context, identity Identity) (*models.User, error) {
	if identity.ID == "" {
		return nil, unauthenticated("no signed-in user")
	}
	user, err := s.store.Users.GetByID(ctx, identity.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, storeError(err, "user not found", "failed to load user")
	}

	email := normalizeEmail(identity.Email)
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	user = &models.User{
		ID:    identity.ID,
		Name:  name,
		Email: email,
		Role:  s.roleFor(email),
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		// a concurrent request may have provisioned the same identity first
		if existing, getErr := s.store.Users.GetByID(ctx, identity.ID); getErr == nil {
			return existing, nil
		}
		return nil, storeError(err, "user not found", "failed to create user")
	}
	s.logger.Infow("user provisioned", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// SignUp registers a new user with a bcrypt password hash.
func (s *AccountService) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	if _, err := s.store.Users.GetByEmail(ctx, in.Email); err == nil {
		return nil, &Error{Kind: KindConflict, Message: "email already registered"}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, storeError(err, "user not found", "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, &Error{Kind: KindPersistence, Message: "failed to hash password", Err: err}
	}

	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         s.roleFor(in.Email),
		Phone:        in.Phone,
		Address:      in.Address,
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, storeError(err, "user not found", "failed to create user")
	}
	s.logger.Infow("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// SignIn checks the credentials and returns the user.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.Users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, unauthenticated("invalid email or password")
	}
	if err != nil {
		return nil, storeError(err, "user not found", "failed to load user")
	}
	if user.PasswordHash == "" {
		return nil, unauthenticated("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, unauthenticated("invalid email or password")
	}
	return user, nil
}

func (s *AccountService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.Users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "user not found", "failed to load user")
	}
	return user, nil
}

// UpdateProfile merges patch into the user's profile and returns the stored user.
func (s *AccountService) UpdateProfile(ctx context.Context, user *models.User, patch ProfilePatch) (*models.User, error) {
	if user == nil {
		return nil, unauthenticated("you must be signed in to update your profile")
	}
	if err := validateStruct(patch); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if patch.Name != nil {
		fields["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Phone != nil {
		fields["phone"] = *patch.Phone
	}
	if patch.Address != nil {
		fields["address"] = *patch.Address
	}
	if len(fields) > 0 {
		if err := s.store.Users.Update(ctx, user.ID, fields); err != nil {
			return nil, storeError(err, "user not found", "failed to update profile")
		}
	}
	return s.GetUser(ctx, user.ID)
}

// ListUsers returns all users, optionally only those with role.
func (s *AccountService) ListUsers(ctx context.Context, role models.UserRole) ([]models.User, error) {
	if role != "" && role != models.RoleCustomer && role != models.RoleAdmin {
		return nil, invalid("unknown role " + string(role))
	}
	users, err := s.store.Users.List(ctx, role)
	if err != nil {
		return nil, storeError(err, "users not found", "failed to list users")
	}
	return users, nil
}
