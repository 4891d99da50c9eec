package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperr "canchita/internal/errors"
	"canchita/internal/external"
	"canchita/internal/models"
)

// fakeBackend is an in-memory backend that enforces slot conflicts like the real one.
type fakeBackend struct {
	mu sync.Mutex

	fields   []models.Field
	catalog  []models.SlotCatalogEntry
	bookings []models.Booking
	users    []models.User
	nextID   int64

	echoWrites   bool
	unreachable  bool
	hideBookings bool
	logoutErr    error
	googleErr    error
	createCalls  int
	fieldLists   int
	logoutTokens []string
}

func newFakeBackend() *fakeBackend {
	f := &fakeBackend{nextID: 100, echoWrites: true}
	f.fields = []models.Field{
		{ID: 1, Name: "Cancha Fútbol 5", Category: "futbol", Price: models.MoneyFromUnits(2500), Enabled: true},
		{ID: 2, Name: "Pádel Cubierta", Category: "padel", Price: models.MoneyFromUnits(1800), Enabled: false},
	}
	for h := 8; h <= 21; h++ {
		f.catalog = append(f.catalog, models.SlotCatalogEntry{ID: int64(h), Time: fmt.Sprintf("%02d:00:00", h), Enabled: true})
	}
	return f
}

func (f *fakeBackend) down() error {
	if f.unreachable {
		return fmt.Errorf("dial tcp: connection refused: %w", apperr.ErrBackendUnreachable)
	}
	return nil
}

func (f *fakeBackend) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeBackend) ListFields(ctx context.Context) ([]models.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldLists++
	if err := f.down(); err != nil {
		return nil, err
	}
	return append([]models.Field(nil), f.fields...), nil
}

func (f *fakeBackend) CreateField(ctx context.Context, in models.FieldInput) (*external.FieldResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	field := models.Field{ID: f.id(), Name: in.Name, Category: in.Category, Price: models.MoneyFromUnits(in.Price), Enabled: true}
	if in.Enabled != nil {
		field.Enabled = models.FlexibleBool(*in.Enabled)
	}
	f.fields = append(f.fields, field)
	res := &external.FieldResult{Result: external.Result{Success: true}}
	if f.echoWrites {
		res.Field = &field
	}
	return res, nil
}

func (f *fakeBackend) UpdateField(ctx context.Context, id int64, in models.FieldInput) (*external.FieldResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.fields {
		if f.fields[i].ID != id {
			continue
		}
		f.fields[i].Name = in.Name
		f.fields[i].Category = in.Category
		f.fields[i].Price = models.MoneyFromUnits(in.Price)
		if in.Enabled != nil {
			f.fields[i].Enabled = models.FlexibleBool(*in.Enabled)
		}
		res := &external.FieldResult{Result: external.Result{Success: true}}
		if f.echoWrites {
			field := f.fields[i]
			res.Field = &field
		}
		return res, nil
	}
	return nil, apperr.ErrFieldNotFound
}

func (f *fakeBackend) DeleteField(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.fields {
		if f.fields[i].ID == id {
			f.fields = append(f.fields[:i], f.fields[i+1:]...)
			return nil
		}
	}
	return apperr.ErrFieldNotFound
}

func (f *fakeBackend) ListSlotCatalog(ctx context.Context) ([]models.SlotCatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	return append([]models.SlotCatalogEntry(nil), f.catalog...), nil
}

func (f *fakeBackend) ListBookings(ctx context.Context, q external.BookingQuery) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	if f.hideBookings {
		return nil, nil
	}
	var out []models.Booking
	for _, b := range f.bookings {
		if q.FieldID != 0 && b.FieldID != q.FieldID {
			continue
		}
		if q.UserID != 0 && b.UserID != q.UserID {
			continue
		}
		if q.Date != "" && b.Date != q.Date {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBackend) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, fmt.Errorf("booking %d: %w", id, apperr.ErrBookingNotFound)
}

func (f *fakeBackend) CreateBooking(ctx context.Context, p external.CreateBookingPayload) (*external.BookingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if err := f.down(); err != nil {
		return nil, err
	}

	start, _ := models.ParseClock(p.Time)
	end := start + models.SpanMinutes(p.Duration)
	for _, b := range f.bookings {
		if b.FieldID != p.FieldID || b.Date != p.Date || !b.Status.IsActive() {
			continue
		}
		bs, be, _ := b.Interval()
		if bs < end && start < be {
			return nil, fmt.Errorf("failed to create booking: %w", apperr.ErrSlotConflict)
		}
	}

	b := models.Booking{
		ID:       f.id(),
		UserID:   p.UserID,
		FieldID:  p.FieldID,
		Date:     p.Date,
		Time:     p.Time,
		Duration: p.Duration,
		Total:    p.Total,
		Status:   models.BookingConfirmed,
	}
	f.bookings = append(f.bookings, b)
	return &external.BookingResult{
		Result:      external.Result{Success: true},
		EmailStatus: "sent",
		BookingID:   b.ID,
		Status:      string(b.Status),
	}, nil
}

func (f *fakeBackend) CancelBooking(ctx context.Context, id int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.bookings {
		if f.bookings[i].ID != id {
			continue
		}
		if !f.bookings[i].Status.IsActive() {
			return apperr.ErrInvalidState
		}
		f.bookings[i].Status = models.BookingCancelled
		f.bookings[i].Cancelled = true
		return nil
	}
	return apperr.ErrBookingNotFound
}

func (f *fakeBackend) Login(ctx context.Context, email, password string) (*external.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email && password == "secret1" {
			return &external.AuthResult{
				Result: external.Result{Success: true},
				User:   &models.Identity{ID: u.ID, Name: u.Name, Surname: u.Surname, Email: u.Email, Role: u.Role},
				Token:  "opaque-" + u.Email,
			}, nil
		}
	}
	return nil, apperr.ErrNotAuthenticated
}

func (f *fakeBackend) Register(ctx context.Context, req models.RegisterRequest) (*external.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := models.User{ID: f.id(), Name: req.Name, Surname: req.Surname, Email: req.Email, Role: req.Role}
	f.users = append(f.users, u)
	res := &external.AuthResult{Result: external.Result{Success: true}}
	if f.echoWrites {
		res.User = &models.Identity{ID: u.ID, Name: u.Name, Surname: u.Surname, Email: u.Email, Role: u.Role}
		res.Token = "opaque-" + u.Email
	}
	return res, nil
}

func (f *fakeBackend) Logout(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutTokens = append(f.logoutTokens, token)
	return f.logoutErr
}

func (f *fakeBackend) GoogleAuth(ctx context.Context, p external.GoogleAuthPayload) (*external.AuthResult, error) {
	if f.googleErr != nil {
		return nil, f.googleErr
	}
	return &external.AuthResult{
		Result: external.Result{Success: true},
		User:   &models.Identity{ID: 77, Email: p.Email, Name: p.Name, Surname: p.Surname, Role: models.RoleClient},
		Token:  "google-token",
	}, nil
}

func (f *fakeBackend) ListUsers(ctx context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.User(nil), f.users...), nil
}

func (f *fakeBackend) UpdateUser(ctx context.Context, id int64, req models.UpdateUserRequest) (*external.UserResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].Name, f.users[i].Surname, f.users[i].Email, f.users[i].Role = req.Name, req.Surname, req.Email, req.Role
			res := &external.UserResult{Result: external.Result{Success: true}}
			if f.echoWrites {
				u := f.users[i]
				res.User = &u
			}
			return res, nil
		}
	}
	return nil, apperr.ErrUserNotFound
}

func (f *fakeBackend) DeleteUser(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID == id {
			f.users = append(f.users[:i], f.users[i+1:]...)
			return nil
		}
	}
	return apperr.ErrUserNotFound
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, subject)
	return nil
}

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

var testNow = time.Date(2025, 8, 31, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

var (
	owner  = &models.Identity{ID: 1, Name: "Ana", Surname: "Dueña", Email: "ana@canchita.test", Role: models.RoleOwner}
	admin  = &models.Identity{ID: 2, Name: "Beto", Email: "beto@canchita.test", Role: models.RoleAdmin}
	client = &models.Identity{ID: 10, Name: "Carla", Surname: "Gómez", Email: "carla@canchita.test", Role: models.RoleClient}
	other  = &models.Identity{ID: 11, Name: "Diego", Email: "diego@canchita.test", Role: models.RoleClient}
	guest  = &models.Identity{ID: 0, Name: "Invitado", Role: models.RoleClient, Guest: true}
)

func newTestServices(t interface{ Helper() }, backend *fakeBackend, pub *recordingPublisher) *Services {
	t.Helper()
	d := Deps{
		Backend:  backend,
		CacheTTL: 5 * time.Minute,
		Location: time.UTC,
		Now:      fixedNow,
	}
	if pub != nil {
		d.Publisher = pub
	}
	return NewServices(d)
}
