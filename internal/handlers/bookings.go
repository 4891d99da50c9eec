package handlers

import (
	"net/http"

	"canchita/internal/models"

	"github.com/gin-gonic/gin"
)

// Bookings handlers

// CreateBooking - POST /api/bookings
// Создать бронирование
func (h *Handlers) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.services.Bookings.Create(c.Request.Context(), identity(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// ListBookings - GET /api/bookings?from=&to=
// Получить свои бронирования со сводкой
func (h *Handlers) ListBookings(c *gin.Context) {
	response, err := h.services.Bookings.ListOwn(c.Request.Context(), identity(c), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// CancelBooking - PATCH /api/bookings/:id/cancel?confirm=true
// Отменить бронирование
func (h *Handlers) CancelBooking(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.CancelBookingRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	if !confirmed(c) {
		return
	}

	booking, err := h.services.Bookings.Cancel(c.Request.Context(), identity(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// GetAvailability - GET /api/fields/:id/availability?date=YYYY-MM-DD
// Сетка слотов площадки на дату
func (h *Handlers) GetAvailability(c *gin.Context) {
	fieldID, ok := pathID(c, "id")
	if !ok {
		return
	}

	availability, err := h.services.Availability.Resolve(c.Request.Context(), fieldID, c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, availability)
}

// ListFieldBookings - GET /api/fields/:id/bookings?date=
// Все бронирования площадки на дату (для администраторов)
func (h *Handlers) ListFieldBookings(c *gin.Context) {
	fieldID, ok := pathID(c, "id")
	if !ok {
		return
	}

	bookings, err := h.services.Bookings.ListForField(c.Request.Context(), identity(c), fieldID, c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}
