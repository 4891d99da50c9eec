package handlers

import (
	"net/http"
	"strconv"

	"canchita/internal/models"
	"canchita/internal/permissions"
	"canchita/internal/validation"

	"github.com/gin-gonic/gin"
)

// ListFields - GET /api/fields?all=true
// Площадки, доступные для брони; all=true отдает весь каталог администраторам
func (h *Handlers) ListFields(c *gin.Context) {
	ctx := c.Request.Context()

	all, _ := strconv.ParseBool(c.Query("all"))
	if all {
		id := identity(c)
		if id == nil || !permissions.CanAccessSection(id.Role, models.SectionAdmin) {
			all = false
		}
	}

	var (
		fields []models.Field
		err    error
	)
	if all {
		fields, err = h.services.Fields.List(ctx)
	} else {
		fields, err = h.services.Fields.ListOfferable(ctx)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"fields": fields})
}

// SearchFields - GET /api/fields/search?q=&limit=
func (h *Handlers) SearchFields(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	fields, err := h.services.Fields.Search(c.Request.Context(), c.Query("q"), true, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"fields": fields})
}

// CreateField - POST /api/admin/fields
func (h *Handlers) CreateField(c *gin.Context) {
	var in models.FieldInput
	if !bindJSON(c, &in) {
		return
	}

	field, err := h.services.Fields.Create(c.Request.Context(), identity(c), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, field)
}

// UpdateField - PUT /api/admin/fields/:id
// Отключение через обновление тоже требует confirm=true
func (h *Handlers) UpdateField(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in models.FieldInput
	if !bindJSON(c, &in) {
		return
	}
	if in.Enabled != nil && !*in.Enabled && !confirmed(c) {
		return
	}

	field, err := h.services.Fields.Update(c.Request.Context(), identity(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, field)
}

// SetFieldEnabled - PATCH /api/admin/fields/:id/enabled
// Отключение площадки требует confirm=true
func (h *Handlers) SetFieldEnabled(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.SetFieldEnabledRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		respondError(c, err)
		return
	}
	if !*req.Enabled && !confirmed(c) {
		return
	}

	field, err := h.services.Fields.SetEnabled(c.Request.Context(), identity(c), id, *req.Enabled)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, field)
}

// DeleteField - DELETE /api/admin/fields/:id?confirm=true
func (h *Handlers) DeleteField(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if !confirmed(c) {
		return
	}

	if err := h.services.Fields.Delete(c.Request.Context(), identity(c), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ReindexFields - POST /api/admin/fields/reindex
// Переиндексировать весь каталог в Elasticsearch
func (h *Handlers) ReindexFields(c *gin.Context) {
	n, err := h.services.Fields.Reindex(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"indexed": n})
}
