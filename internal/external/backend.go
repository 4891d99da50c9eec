package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperr "canchita/internal/errors"
	"canchita/internal/models"
)

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// RequestObserver receives the outcome of every backend call. status is 0 on transport failure.
type RequestObserver func(endpoint string, status int, elapsed time.Duration)

// BackendClient talks to the legacy REST backend that owns users, fields and bookings.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	observe    RequestObserver
}

// Result is the envelope most write endpoints answer with.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// AuthResult - ответ /login, /register и /google-auth
type AuthResult struct {
	Result
	User  *models.Identity `json:"user,omitempty"`
	Token string           `json:"token,omitempty"`
}

// CreateBookingPayload - тело POST /reservarCancha
type CreateBookingPayload struct {
	UserID   int64        `json:"user_id"`
	FieldID  int64        `json:"field_id"`
	Date     string       `json:"date"`
	Time     string       `json:"time"`
	Duration float64      `json:"duration"`
	Total    models.Money `json:"total"`
	Comments string       `json:"comments,omitempty"`
}

// BookingResult - ответ POST /reservarCancha
type BookingResult struct {
	Result
	EmailStatus string          `json:"email_status,omitempty"`
	BookingID   int64           `json:"booking_id,omitempty"`
	Status      string          `json:"status,omitempty"`
	Booking     *models.Booking `json:"booking,omitempty"`
}

// FieldResult - ответ на запись площадки. Field is set only when the backend echoes the entity.
type FieldResult struct {
	Result
	Field *models.Field `json:"field,omitempty"`
}

// UserResult - ответ на запись пользователя
type UserResult struct {
	Result
	User *models.User `json:"user,omitempty"`
}

// BookingQuery filters GET /reservas. Zero values are omitted.
type BookingQuery struct {
	ID      int64
	UserID  int64
	FieldID int64
	Date    string
}

type GoogleAuthPayload struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	UID     string `json:"uid"`
}

type cancelPayload struct {
	BookingID int64  `json:"booking_id"`
	Reason    string `json:"reason,omitempty"`
}

type fieldPayload struct {
	Name     string       `json:"name"`
	Category string       `json:"category,omitempty"`
	Price    models.Money `json:"price"`
	Enabled  *bool        `json:"enabled,omitempty"`
}

const slotConflictCode = "slot_conflict"

func NewBackendClient(cfg BackendConfig) *BackendClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &BackendClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// WithObserver installs a hook called after each request.
func (bc *BackendClient) WithObserver(fn RequestObserver) *BackendClient {
	bc.observe = fn
	return bc
}

type call struct {
	method   string
	endpoint string
	query    url.Values
	body     any
	token    string
	out      any
	notFound error
}

func (bc *BackendClient) do(ctx context.Context, c call) error {
	var body io.Reader
	if c.body != nil {
		jsonBody, err := json.Marshal(c.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	target := bc.baseURL + c.endpoint
	if len(c.query) > 0 {
		target += "?" + c.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, c.method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := bc.httpClient.Do(req)
	if bc.observe != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		bc.observe(c.endpoint, status, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", c.method, c.endpoint, apperr.ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w: %w", c.method, c.endpoint, apperr.ErrBackendUnreachable, err)
	}

	if err := statusError(c, resp.StatusCode, data); err != nil {
		return err
	}

	if c.out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, c.out); err != nil {
		return fmt.Errorf("%s %s: malformed response: %w: %w", c.method, c.endpoint, apperr.ErrBackendUnreachable, err)
	}
	return nil
}

func statusError(c call, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	var env Result
	_ = json.Unmarshal(body, &env)
	msg := env.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status >= 500:
		return fmt.Errorf("%s %s: status %d: %w", c.method, c.endpoint, status, apperr.ErrBackendUnreachable)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", msg, apperr.ErrNotAuthenticated)
	case status == http.StatusForbidden:
		return fmt.Errorf("%s: %w", msg, apperr.ErrNotAuthorized)
	case status == http.StatusNotFound && c.notFound != nil:
		return fmt.Errorf("%s: %w", msg, c.notFound)
	case status == http.StatusConflict:
		return fmt.Errorf("%s: %w", msg, apperr.ErrSlotConflict)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return apperr.NewValidationError("request", msg)
	default:
		return fmt.Errorf("%s %s: unexpected status code: %d", c.method, c.endpoint, status)
	}
}

// rejected turns a success:false envelope into an error. A 2xx answer without an
// envelope counts as success.
func rejected(r Result, fallback error) error {
	if r.Success || (r.Message == "" && r.Code == "") {
		return nil
	}
	if r.Code == slotConflictCode {
		return fmt.Errorf("%s: %w", r.Message, apperr.ErrSlotConflict)
	}
	if r.Message == "" {
		return fallback
	}
	return fmt.Errorf("%s: %w", r.Message, fallback)
}

func (bc *BackendClient) ListFields(ctx context.Context) ([]models.Field, error) {
	var fields []models.Field
	if err := bc.do(ctx, call{method: http.MethodGet, endpoint: "/canchas", out: &fields}); err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	return fields, nil
}

func (bc *BackendClient) CreateField(ctx context.Context, in models.FieldInput) (*FieldResult, error) {
	var res FieldResult
	err := bc.do(ctx, call{method: http.MethodPost, endpoint: "/canchas", body: toFieldPayload(in), out: &res})
	if err != nil {
		return nil, fmt.Errorf("failed to create field: %w", err)
	}
	if err := rejected(res.Result, apperr.ErrValidation); err != nil {
		return nil, fmt.Errorf("failed to create field: %w", err)
	}
	return &res, nil
}

func (bc *BackendClient) UpdateField(ctx context.Context, id int64, in models.FieldInput) (*FieldResult, error) {
	var res FieldResult
	err := bc.do(ctx, call{
		method:   http.MethodPut,
		endpoint: "/canchas/" + strconv.FormatInt(id, 10),
		body:     toFieldPayload(in),
		out:      &res,
		notFound: apperr.ErrFieldNotFound,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update field: %w", err)
	}
	if err := rejected(res.Result, apperr.ErrValidation); err != nil {
		return nil, fmt.Errorf("failed to update field: %w", err)
	}
	return &res, nil
}

func (bc *BackendClient) DeleteField(ctx context.Context, id int64) error {
	var res Result
	err := bc.do(ctx, call{
		method:   http.MethodDelete,
		endpoint: "/canchas/" + strconv.FormatInt(id, 10),
		out:      &res,
		notFound: apperr.ErrFieldNotFound,
	})
	if err != nil {
		return fmt.Errorf("failed to delete field: %w", err)
	}
	if err := rejected(res, apperr.ErrInvalidState); err != nil {
		return fmt.Errorf("failed to delete field: %w", err)
	}
	return nil
}

func toFieldPayload(in models.FieldInput) fieldPayload {
	return fieldPayload{
		Name:     in.Name,
		Category: in.Category,
		Price:    models.MoneyFromUnits(in.Price),
		Enabled:  in.Enabled,
	}
}

func (bc *BackendClient) ListSlotCatalog(ctx context.Context) ([]models.SlotCatalogEntry, error) {
	var slots []models.SlotCatalogEntry
	if err := bc.do(ctx, call{method: http.MethodGet, endpoint: "/horarios", out: &slots}); err != nil {
		return nil, fmt.Errorf("failed to list slot catalog: %w", err)
	}
	return slots, nil
}

func (bc *BackendClient) ListBookings(ctx context.Context, q BookingQuery) ([]models.Booking, error) {
	params := url.Values{}
	if q.ID != 0 {
		params.Set("id", strconv.FormatInt(q.ID, 10))
	}
	if q.UserID != 0 {
		params.Set("user_id", strconv.FormatInt(q.UserID, 10))
	}
	if q.FieldID != 0 {
		params.Set("field_id", strconv.FormatInt(q.FieldID, 10))
	}
	if q.Date != "" {
		params.Set("date", q.Date)
	}

	var bookings []models.Booking
	if err := bc.do(ctx, call{method: http.MethodGet, endpoint: "/reservas", query: params, out: &bookings}); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	for i := range bookings {
		bookings[i].Normalize()
	}
	return bookings, nil
}

// GetBooking looks a booking up by id through the /reservas filter.
func (bc *BackendClient) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	bookings, err := bc.ListBookings(ctx, BookingQuery{ID: id})
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		if bookings[i].ID == id {
			return &bookings[i], nil
		}
	}
	return nil, apperr.ErrBookingNotFound
}

func (bc *BackendClient) CreateBooking(ctx context.Context, p CreateBookingPayload) (*BookingResult, error) {
	var res BookingResult
	if err := bc.do(ctx, call{method: http.MethodPost, endpoint: "/reservarCancha", body: p, out: &res}); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	if err := rejected(res.Result, apperr.ErrValidation); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	return &res, nil
}

func (bc *BackendClient) CancelBooking(ctx context.Context, id int64, reason string) error {
	var res Result
	err := bc.do(ctx, call{
		method:   http.MethodPut,
		endpoint: "/cancelar-reserva",
		body:     cancelPayload{BookingID: id, Reason: reason},
		out:      &res,
		notFound: apperr.ErrBookingNotFound,
	})
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	if err := rejected(res, apperr.ErrInvalidState); err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	return nil
}

func (bc *BackendClient) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var res AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := bc.do(ctx, call{method: http.MethodPost, endpoint: "/login", body: body, out: &res}); err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	if err := rejected(res.Result, apperr.ErrNotAuthenticated); err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	if res.User == nil {
		return nil, fmt.Errorf("failed to login: response has no user: %w", apperr.ErrNotAuthenticated)
	}
	return &res, nil
}

func (bc *BackendClient) Register(ctx context.Context, req models.RegisterRequest) (*AuthResult, error) {
	var res AuthResult
	if err := bc.do(ctx, call{method: http.MethodPost, endpoint: "/register", body: req, out: &res}); err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	if err := rejected(res.Result, apperr.ErrValidation); err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	return &res, nil
}

func (bc *BackendClient) Logout(ctx context.Context, token string) error {
	var res Result
	if err := bc.do(ctx, call{method: http.MethodPost, endpoint: "/logout", token: token, out: &res}); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	if err := rejected(res, apperr.ErrInvalidState); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

func (bc *BackendClient) GoogleAuth(ctx context.Context, p GoogleAuthPayload) (*AuthResult, error) {
	var res AuthResult
	if err := bc.do(ctx, call{method: http.MethodPost, endpoint: "/google-auth", body: p, out: &res}); err != nil {
		return nil, fmt.Errorf("failed to exchange google identity: %w", err)
	}
	if err := rejected(res.Result, apperr.ErrNotAuthenticated); err != nil {
		return nil, fmt.Errorf("failed to exchange google identity: %w", err)
	}
	if res.User == nil {
		return nil, errors.New("failed to exchange google identity: response has no user")
	}
	return &res, nil
}

func (bc *BackendClient) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := bc.do(ctx, call{method: http.MethodGet, endpoint: "/usuarios", out: &users}); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (bc *BackendClient) UpdateUser(ctx context.Context, id int64, req models.UpdateUserRequest) (*UserResult, error) {
	var res UserResult
	err := bc.do(ctx, call{
		method:   http.MethodPut,
		endpoint: "/usuarios/" + strconv.FormatInt(id, 10),
		body:     req,
		out:      &res,
		notFound: apperr.ErrUserNotFound,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if err := rejected(res.Result, apperr.ErrValidation); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &res, nil
}

func (bc *BackendClient) DeleteUser(ctx context.Context, id int64) error {
	var res Result
	err := bc.do(ctx, call{
		method:   http.MethodDelete,
		endpoint: "/usuarios/" + strconv.FormatInt(id, 10),
		out:      &res,
		notFound: apperr.ErrUserNotFound,
	})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err := rejected(res, apperr.ErrInvalidState); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
