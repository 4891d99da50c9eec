package handlers

import (
	"io"
	"net/http"

	apperr "canchita/internal/errors"
	"canchita/internal/middleware"
	"canchita/internal/models"
	"canchita/internal/permissions"

	"github.com/gin-gonic/gin"
)

const sessionCookieMaxAge = 7 * 24 * 60 * 60

// Login - POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.services.Auth.Login(c.Request.Context(), middleware.SessionID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondSession(c, http.StatusOK, res)
}

// Register - POST /api/auth/register
// Самостоятельная регистрация всегда создает клиента
func (h *Handlers) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.services.Auth.Register(c.Request.Context(), middleware.SessionID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondSession(c, http.StatusCreated, res)
}

// GoogleSignIn - POST /api/auth/google
func (h *Handlers) GoogleSignIn(c *gin.Context) {
	var req models.GoogleSignInRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.services.Auth.GoogleSignIn(c.Request.Context(), middleware.SessionID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondSession(c, http.StatusOK, res)
}

func (h *Handlers) respondSession(c *gin.Context, status int, res *models.AuthResponse) {
	if res.SessionID != "" {
		c.Header(middleware.SessionHeader, res.SessionID)
		c.SetCookie(middleware.SessionCookie, res.SessionID, sessionCookieMaxAge, "/", "", false, true)
	}
	res.Identity = public(res.Identity)
	c.JSON(status, res)
}

// Logout - POST /api/auth/logout
// Локальная сессия очищается даже если бэкенд не ответил
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.services.Auth.Logout(c.Request.Context(), middleware.SessionID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

// CurrentSession - GET /api/auth/session
func (h *Handlers) CurrentSession(c *gin.Context) {
	id, ok := middleware.Identity(c)
	if !ok {
		respondError(c, apperr.ErrNotAuthenticated)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": middleware.SessionID(c), "identity": public(id)})
}

// Permissions - GET /api/auth/permissions
// Разделы и роли, доступные текущему пользователю
func (h *Handlers) Permissions(c *gin.Context) {
	id, ok := middleware.Identity(c)
	if !ok {
		respondError(c, apperr.ErrNotAuthenticated)
		return
	}

	c.JSON(http.StatusOK, models.PermissionsResponse{
		Role:           id.Role,
		Sections:       permissions.SectionsFor(id.Role),
		CreatableRoles: permissions.RolesCreatableBy(id.Role),
		CanReserve:     permissions.CanReserve(id),
	})
}

// SessionEvents - GET /api/auth/session/events
// Поток изменений личности сессии (server-sent events)
func (h *Handlers) SessionEvents(c *gin.Context) {
	sid := middleware.SessionID(c)
	if sid == "" {
		respondError(c, apperr.ErrNotAuthenticated)
		return
	}

	ctx := c.Request.Context()
	cache := h.sessions.Get(ctx, sid)
	changes, cancel := cache.Subscribe()
	defer cancel()

	current, _ := cache.Current()
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("identity", gin.H{"identity": public(current)})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("identity", gin.H{"identity": public(ev.Identity), "at": ev.At})
			return true
		}
	})
}
