package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"canchita/internal/cache"
	apperr "canchita/internal/errors"
	"canchita/internal/logger"
	"canchita/internal/models"
	"canchita/internal/permissions"
	"canchita/internal/validation"
)

const usersKey = "users"

// UserAdmin manages staff and client accounts on behalf of managers.
type UserAdmin struct {
	backend UserBackend
	cache   *cache.TTL[string, []models.User]
}

func NewUserAdmin(backend UserBackend, ttl time.Duration, now func() time.Time) *UserAdmin {
	return &UserAdmin{
		backend: backend,
		cache:   cache.NewTTL[string, []models.User](ttl, now),
	}
}

func (s *UserAdmin) List(ctx context.Context, actor *models.Identity) ([]models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Get(usersKey); ok {
		return slices.Clone(cached), nil
	}

	users, err := s.backend.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Role = models.ParseRole(string(users[i].Role))
	}
	s.cache.Set(usersKey, users)
	return slices.Clone(users), nil
}

// Create registers an account with the requested role, if actor may assign it.
func (s *UserAdmin) Create(ctx context.Context, actor *models.Identity, req models.RegisterRequest) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	req.Role = models.ParseRole(string(req.Role))
	if !permissions.CanCreateUserWithRole(actor.Role, req.Role) {
		return nil, fmt.Errorf("%s cannot create %s: %w", actor.Role, req.Role, apperr.ErrNotAuthorized)
	}

	res, err := s.backend.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	if res.User == nil {
		s.cache.Delete(usersKey)
		logger.WithContext(ctx).Info("User created", "email", req.Email, "role", req.Role)
		return &models.User{Name: req.Name, Surname: req.Surname, Email: req.Email, Role: req.Role}, nil
	}

	u := userFromIdentity(res.User)
	s.cache.Update(usersKey, func(us []models.User) []models.User {
		return append(slices.Clone(us), u)
	})
	logger.WithContext(ctx).Info("User created", "user_id", u.ID, "role", u.Role)
	return &u, nil
}

// findUser looks id up in the cached list, refetching once on a miss.
func (s *UserAdmin) findUser(ctx context.Context, actor *models.Identity, id int64) (*models.User, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			s.cache.Delete(usersKey)
		}
		users, err := s.List(ctx, actor)
		if err != nil {
			return nil, err
		}
		for i := range users {
			if users[i].ID == id {
				return &users[i], nil
			}
		}
	}
	return nil, fmt.Errorf("user %d: %w", id, apperr.ErrUserNotFound)
}

// target loads the account actor wants to change. Only accounts whose
// current role actor could have created are editable.
func (s *UserAdmin) target(ctx context.Context, actor *models.Identity, id int64) (*models.User, error) {
	u, err := s.findUser(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !permissions.CanCreateUserWithRole(actor.Role, u.Role) {
		return nil, fmt.Errorf("%s cannot manage %s %d: %w", actor.Role, u.Role, id, apperr.ErrNotAuthorized)
	}
	return u, nil
}

// Update edits an account. Both the current and the new role must be
// roles actor may create.
func (s *UserAdmin) Update(ctx context.Context, actor *models.Identity, id int64, req models.UpdateUserRequest) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	req.Role = models.ParseRole(string(req.Role))
	if !permissions.CanCreateUserWithRole(actor.Role, req.Role) {
		return nil, fmt.Errorf("%s cannot assign %s: %w", actor.Role, req.Role, apperr.ErrNotAuthorized)
	}
	if _, err := s.target(ctx, actor, id); err != nil {
		return nil, err
	}

	res, err := s.backend.UpdateUser(ctx, id, req)
	if err != nil {
		return nil, err
	}

	if res.User == nil {
		s.cache.Delete(usersKey)
		return s.findUser(ctx, actor, id)
	}

	u := *res.User
	u.Role = models.ParseRole(string(u.Role))
	s.cache.Update(usersKey, func(us []models.User) []models.User {
		out := slices.Clone(us)
		for i := range out {
			if out[i].ID == id {
				out[i] = u
			}
		}
		return out
	})
	return &u, nil
}

func (s *UserAdmin) Delete(ctx context.Context, actor *models.Identity, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if _, err := s.target(ctx, actor, id); err != nil {
		return err
	}
	if err := s.backend.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.cache.Update(usersKey, func(us []models.User) []models.User {
		return slices.DeleteFunc(slices.Clone(us), func(u models.User) bool { return u.ID == id })
	})
	logger.WithContext(ctx).Info("User deleted", "user_id", id)
	return nil
}

func userFromIdentity(id *models.Identity) models.User {
	return models.User{
		ID:      id.ID,
		Name:    id.Name,
		Surname: id.Surname,
		Email:   id.Email,
		Role:    models.ParseRole(string(id.Role)),
		Age:     id.Age,
		DNI:     id.DNI,
		Phone:   id.Phone,
	}
}
