package service

import (
	"context"

	"canchita/internal/external"
	"canchita/internal/models"
)

// FieldBackend is the part of the legacy backend that owns the field catalog.
type FieldBackend interface {
	ListFields(ctx context.Context) ([]models.Field, error)
	CreateField(ctx context.Context, in models.FieldInput) (*external.FieldResult, error)
	UpdateField(ctx context.Context, id int64, in models.FieldInput) (*external.FieldResult, error)
	DeleteField(ctx context.Context, id int64) error
}

// ScheduleBackend serves the slot catalog and the booking records.
type ScheduleBackend interface {
	ListSlotCatalog(ctx context.Context) ([]models.SlotCatalogEntry, error)
	ListBookings(ctx context.Context, q external.BookingQuery) ([]models.Booking, error)
}

// BookingBackend is the authoritative writer of bookings.
type BookingBackend interface {
	ScheduleBackend
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CreateBooking(ctx context.Context, p external.CreateBookingPayload) (*external.BookingResult, error)
	CancelBooking(ctx context.Context, id int64, reason string) error
}

type AuthBackend interface {
	Login(ctx context.Context, email, password string) (*external.AuthResult, error)
	Register(ctx context.Context, req models.RegisterRequest) (*external.AuthResult, error)
	Logout(ctx context.Context, token string) error
	GoogleAuth(ctx context.Context, p external.GoogleAuthPayload) (*external.AuthResult, error)
}

type UserBackend interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	Register(ctx context.Context, req models.RegisterRequest) (*external.AuthResult, error)
	UpdateUser(ctx context.Context, id int64, req models.UpdateUserRequest) (*external.UserResult, error)
	DeleteUser(ctx context.Context, id int64) error
}

// Backend is everything the gateway consumes. *external.BackendClient satisfies it.
type Backend interface {
	FieldBackend
	BookingBackend
	AuthBackend
	UserBackend
}

// FieldSearcher is the full-text index over the field catalog.
type FieldSearcher interface {
	Search(ctx context.Context, query string, offerableOnly bool, limit int) ([]models.Field, error)
}

// FieldIndexer keeps the full-text index in sync with catalog writes.
type FieldIndexer interface {
	IndexField(ctx context.Context, field models.Field) error
	DeleteField(ctx context.Context, id int64) error
}

var _ Backend = (*external.BackendClient)(nil)
