package handlers

import (
	"net/http"

	"canchita/internal/models"

	"github.com/gin-gonic/gin"
)

// ListUsers - GET /api/admin/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.services.Users.List(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// CreateUser - POST /api/admin/users
// Создать пользователя с ролью, которую разрешено назначать
func (h *Handlers) CreateUser(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.services.Users.Create(c.Request.Context(), identity(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// UpdateUser - PUT /api/admin/users/:id
func (h *Handlers) UpdateUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.services.Users.Update(c.Request.Context(), identity(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// DeleteUser - DELETE /api/admin/users/:id?confirm=true
func (h *Handlers) DeleteUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if !confirmed(c) {
		return
	}

	if err := h.services.Users.Delete(c.Request.Context(), identity(c), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
