package models

import (
	"fmt"
	"iter"
	"strings"
	"time"
)

// Role - уровень доступа пользователя. Значения совпадают с тем, что отдает backend.
type Role string

const (
	RoleOwner   Role = "Dueño"
	RoleAdmin   Role = "Administrador"
	RoleBar     Role = "Bar"
	RoleRental  Role = "Empleado"
	RoleParking Role = "Estacionamiento"
	RoleClient  Role = "Cliente"
)

// AllRoles in the order the admin UI lists them.
var AllRoles = []Role{RoleOwner, RoleAdmin, RoleRental, RoleClient, RoleBar, RoleParking}

// ParseRole maps a backend role string onto the closed role set.
// Unknown or empty values fall back to RoleClient.
func ParseRole(s string) Role {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("ñ", "n", "á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u").Replace(v)
	switch v {
	case "dueno", "owner":
		return RoleOwner
	case "administrador", "admin", "administrator":
		return RoleAdmin
	case "bar":
		return RoleBar
	case "empleado", "alquiler", "rental", "employee":
		return RoleRental
	case "estacionamiento", "parking":
		return RoleParking
	default:
		return RoleClient
	}
}

// Section - раздел приложения, доступ к которому проверяют guard'ы.
type Section string

const (
	SectionAdmin        Section = "admin"
	SectionBar          Section = "bar"
	SectionParking      Section = "estacionamiento"
	SectionReservations Section = "reservas"
	SectionDashboard    Section = "dashboard"
)

// Field - спортивная площадка (cancha)
type Field struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Category  string       `json:"category,omitempty"`
	Price     Money        `json:"price"`
	Enabled   FlexibleBool `json:"enabled"`
	Cancelled FlexibleBool `json:"cancelled"`
}

// Offerable reports whether the field may be offered for booking.
func (f Field) Offerable() bool {
	return f.Enabled.Bool() && !f.Cancelled.Bool()
}

// SlotCatalogEntry is one row of the backend /horarios catalog.
type SlotCatalogEntry struct {
	ID        int64        `json:"id"`
	Time      string       `json:"time"`
	Enabled   FlexibleBool `json:"enabled"`
	Cancelled FlexibleBool `json:"cancelled"`
}

// Slot - часовой слот с признаком доступности
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// Availability is the resolved slot grid for one field and date.
type Availability struct {
	FieldID  int64  `json:"field_id"`
	Date     string `json:"date"`
	Slots    []Slot `json:"slots"`
	Degraded bool   `json:"degraded"`
	Warning  string `json:"warning,omitempty"`
}

// All yields the slots in order. The sequence can be ranged over any number of times.
func (a *Availability) All() iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		for _, s := range a.Slots {
			if !yield(s) {
				return
			}
		}
	}
}

// IsAvailable reports whether the slot labelled t is present and free.
func (a *Availability) IsAvailable(t string) bool {
	for s := range a.All() {
		if s.Time == t {
			return s.Available
		}
	}
	return false
}

// BookingStatus - статус бронирования
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// ActiveStatuses hold a (field, date, slot) and may still be cancelled.
var ActiveStatuses = []BookingStatus{BookingPending, BookingConfirmed}

func (s BookingStatus) IsActive() bool {
	return s == BookingPending || s == BookingConfirmed
}

// ParseBookingStatus accepts both the english and the legacy spanish spelling.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "pendiente":
		return BookingPending, true
	case "confirmed", "confirmada":
		return BookingConfirmed, true
	case "cancelled", "canceled", "cancelada":
		return BookingCancelled, true
	case "completed", "completada":
		return BookingCompleted, true
	}
	return "", false
}

// Booking - бронирование площадки
type Booking struct {
	ID         int64         `json:"id"`
	UserID     int64         `json:"user_id"`
	FieldID    int64         `json:"field_id"`
	Date       string        `json:"date"`
	Time       string        `json:"time"`
	Duration   float64       `json:"duration"`
	Total      Money         `json:"total"`
	Status     BookingStatus `json:"status"`
	Comments   string        `json:"comments,omitempty"`
	CreatedAt  string        `json:"created_at,omitempty"`
	UpdatedAt  string        `json:"updated_at,omitempty"`
	FieldName  string        `json:"field_name,omitempty"`
	FieldPrice Money         `json:"field_price,omitempty"`
	UserName   string        `json:"user_name,omitempty"`
	UserEmail  string        `json:"user_email,omitempty"`
	Cancelled  FlexibleBool  `json:"cancelled,omitempty"`
}

// Normalize reconciles the legacy cancelled flag, the status string and the time format.
func (b *Booking) Normalize() {
	if st, ok := ParseBookingStatus(string(b.Status)); ok {
		b.Status = st
	} else if b.Cancelled.Bool() {
		b.Status = BookingCancelled
	} else {
		b.Status = BookingConfirmed
	}
	if b.Status == BookingCancelled {
		b.Cancelled = true
	}
	if t, err := NormalizeClock(b.Time); err == nil {
		b.Time = t
	}
	if len(b.Date) > len(DateLayout) {
		b.Date = b.Date[:len(DateLayout)]
	}
	if b.Duration <= 0 {
		b.Duration = 1
	}
}

// Interval returns the booking span in minutes since midnight.
func (b *Booking) Interval() (start, end int, err error) {
	start, err = ParseClock(b.Time)
	if err != nil {
		return 0, 0, err
	}
	return start, start + SpanMinutes(b.Duration), nil
}

// MinutesPerDay bounds every booking: none runs past midnight.
const MinutesPerDay = 24 * 60

// SpanMinutes converts a duration in hours to whole minutes, never less than
// one minute so that any booking occupies its start time.
func SpanMinutes(hours float64) int {
	if !(hours > 0) {
		return 1
	}
	if hours >= 24 {
		return MinutesPerDay
	}
	return max(int(hours*60+0.5), 1)
}

// Identity - аутентифицированный пользователь текущей сессии
type Identity struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
	Age     int    `json:"age,omitempty"`
	DNI     string `json:"dni,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Token   string `json:"token,omitempty"`
	Guest   bool   `json:"guest,omitempty"`
}

// Normalize forces the role into the closed set.
func (i *Identity) Normalize() {
	i.Role = ParseRole(string(i.Role))
}

func (i *Identity) FullName() string {
	return strings.TrimSpace(i.Name + " " + i.Surname)
}

// User is an account as the admin user list returns it.
type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Age       int    `json:"age,omitempty"`
	DNI       string `json:"dni,omitempty"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into minutes since midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	var layout string
	switch len(s) {
	case 5:
		layout = "15:04"
	case 8:
		layout = "15:04:05"
	default:
		return 0, fmt.Errorf("invalid time %q", s)
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClock turns "18:00:00" into "18:00".
func NormalizeClock(s string) (string, error) {
	m, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return FormatClock(m), nil
}
