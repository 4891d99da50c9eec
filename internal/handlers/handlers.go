package handlers

import (
	"errors"
	"net/http"
	"strconv"

	apperr "canchita/internal/errors"
	"canchita/internal/logger"
	"canchita/internal/middleware"
	"canchita/internal/models"
	"canchita/internal/permissions"
	"canchita/internal/service"
	"canchita/internal/session"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	services *service.Services
	sessions *session.Manager
}

func NewHandlers(services *service.Services, sessions *session.Manager) *Handlers {
	return &Handlers{
		services: services,
		sessions: sessions,
	}
}

// respondError - единственное место, где ошибки превращаются в HTTP ответы
func respondError(c *gin.Context, err error) {
	var (
		status = http.StatusInternalServerError
		body   = gin.H{"error": "Internal server error"}
		verr   *apperr.ValidationError
	)

	switch {
	case errors.Is(err, apperr.ErrConfirmationRequired):
		status = http.StatusPreconditionRequired
		body = gin.H{"error": "Confirmation required: repeat the request with confirm=true"}
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body = gin.H{"error": "Validation failed", "fields": verr.Fields}
	case errors.Is(err, apperr.ErrInvalidDate):
		status = http.StatusBadRequest
		body = gin.H{"error": "Date is in the past"}
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
		body = gin.H{"error": err.Error()}
	case errors.Is(err, apperr.ErrNotAuthenticated):
		status = http.StatusUnauthorized
		body = gin.H{"error": "Authentication required", "redirect": permissions.SignInRoute}
	case errors.Is(err, apperr.ErrNotAuthorized):
		id, _ := middleware.Identity(c)
		status = http.StatusForbidden
		body = gin.H{"error": "Not allowed", "redirect": permissions.RedirectFor(id)}
	case apperr.IsNotFound(err):
		status = http.StatusNotFound
		body = gin.H{"error": notFoundMessage(err)}
	case errors.Is(err, apperr.ErrSlotConflict):
		status = http.StatusConflict
		body = gin.H{"error": "The slot was just taken", "refresh_availability": true}
	case errors.Is(err, apperr.ErrInvalidState):
		status = http.StatusConflict
		body = gin.H{"error": "Booking is not active"}
	case errors.Is(err, apperr.ErrFieldUnavailable):
		status = http.StatusUnprocessableEntity
		body = gin.H{"error": "Field is not available for booking"}
	case errors.Is(err, apperr.ErrBackendUnreachable):
		status = http.StatusServiceUnavailable
		body = gin.H{"error": "Booking service is temporarily unavailable", "retryable": true}
	}

	log := logger.WithContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "path", c.FullPath(), "status", status, "error", err)
	} else {
		log.Info("Request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	_ = c.Error(err)
	c.JSON(status, body)
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, apperr.ErrFieldNotFound):
		return "Field not found"
	case errors.Is(err, apperr.ErrBookingNotFound):
		return "Booking not found"
	default:
		return "User not found"
	}
}

// bindJSON разбирает тело запроса; ошибка разбора - это 400
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, apperr.NewValidationError("body", "malformed JSON: "+err.Error()))
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, apperr.NewValidationError(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

// confirmed проверяет confirm=true для разрушающих операций
func confirmed(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	if !ok {
		respondError(c, apperr.ErrConfirmationRequired)
	}
	return ok
}

func identity(c *gin.Context) *models.Identity {
	id, _ := middleware.Identity(c)
	return id
}

// public убирает токен бэкенда из ответа клиенту
func public(id *models.Identity) *models.Identity {
	if id == nil {
		return nil
	}
	out := *id
	out.Token = ""
	return &out
}
