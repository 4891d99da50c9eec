package service

import (
	"context"
	"strings"

	apperr "canchita/internal/errors"
	"canchita/internal/external"
	"canchita/internal/logger"
	"canchita/internal/models"
	"canchita/internal/session"
	"canchita/internal/validation"
)

// AuthService drives login, registration and logout and keeps the session cache in step.
type AuthService struct {
	backend  AuthBackend
	sessions *session.Manager
}

func NewAuthService(backend AuthBackend, sessions *session.Manager) *AuthService {
	return &AuthService{backend: backend, sessions: sessions}
}

func (s *AuthService) sessionID(sid string) string {
	if sid == "" {
		return s.sessions.NewSessionID()
	}
	return sid
}

// Current returns the identity bound to sid.
func (s *AuthService) Current(ctx context.Context, sid string) (*models.Identity, bool) {
	if sid == "" {
		return nil, false
	}
	return s.sessions.Get(ctx, sid).Current()
}

func (s *AuthService) Login(ctx context.Context, sid string, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	res, err := s.backend.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	id := *res.User
	id.Token = res.Token
	return s.bind(ctx, sid, &id, false), nil
}

// Register creates a client account. Self-registration never grants staff roles.
func (s *AuthService) Register(ctx context.Context, sid string, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	req.Role = models.RoleClient

	res, err := s.backend.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.User == nil {
		return &models.AuthResponse{}, nil
	}

	id := *res.User
	id.Token = res.Token
	return s.bind(ctx, sid, &id, false), nil
}

// GoogleSignIn exchanges a provider-verified profile for a backend user.
// If the exchange fails the session gets a guest client identity instead.
func (s *AuthService) GoogleSignIn(ctx context.Context, sid string, req models.GoogleSignInRequest) (*models.AuthResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	first, last := SplitName(req.DisplayName)

	res, err := s.backend.GoogleAuth(ctx, external.GoogleAuthPayload{
		Email:   req.Email,
		Name:    first,
		Surname: last,
		UID:     req.UID,
	})
	if err != nil {
		logger.WithContext(ctx).Warn("Google exchange failed, using guest identity", "email", req.Email, "error", err)
		guest := &models.Identity{
			ID:      0,
			Name:    first,
			Surname: last,
			Email:   req.Email,
			Role:    models.RoleClient,
			Guest:   true,
		}
		return s.bind(ctx, sid, guest, true), nil
	}

	id := *res.User
	id.Token = res.Token
	if id.Name == "" && id.Surname == "" {
		id.Name, id.Surname = first, last
	}
	return s.bind(ctx, sid, &id, false), nil
}

func (s *AuthService) bind(ctx context.Context, sid string, id *models.Identity, fallback bool) *models.AuthResponse {
	sid = s.sessionID(sid)
	c := s.sessions.Get(ctx, sid)
	c.Set(ctx, id)

	cur, _ := c.Current()
	logger.WithContext(logger.ContextWithSessionID(ctx, sid)).Info("Session started", "user_id", cur.ID, "role", cur.Role, "fallback", fallback)
	return &models.AuthResponse{SessionID: sid, Identity: cur, Fallback: fallback}
}

// Logout tells the backend and always clears the local session,
// whatever the backend answers.
func (s *AuthService) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		return apperr.ErrNotAuthenticated
	}
	c := s.sessions.Get(ctx, sid)

	if id, ok := c.Current(); ok && !id.Guest {
		if err := s.backend.Logout(ctx, id.Token); err != nil {
			logger.WithContext(ctx).Warn("Backend logout failed, clearing session anyway", "user_id", id.ID, "error", err)
		}
	}

	c.Clear(ctx)
	s.sessions.Forget(sid)
	return nil
}

// SplitName takes the first word as the first name and the rest as the last name.
func SplitName(display string) (first, last string) {
	parts := strings.Fields(display)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
