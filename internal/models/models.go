package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexibleBool - гибкий boolean тип, поддерживающий строки и числа
type FlexibleBool bool

// UnmarshalJSON поддерживает парсинг boolean из строки, числа и boolean
func (fb *FlexibleBool) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)

	switch strings.ToLower(str) {
	case "true", "1", "yes", "on":
		*fb = true
	case "false", "0", "no", "off", "null", "":
		*fb = false
	default:
		return fmt.Errorf("invalid boolean value: %s", str)
	}
	return nil
}

// Bool возвращает bool значение
func (fb FlexibleBool) Bool() bool {
	return bool(fb)
}

// Money - сумма в минимальных единицах валюты (сентаво)
type Money int64

// MoneyFromUnits converts a decimal amount such as 2500.5 to minor units.
func MoneyFromUnits(units float64) Money {
	return Money(math.Round(units * 100))
}

// Units returns the amount as a decimal number of currency units.
func (m Money) Units() float64 {
	return float64(m) / 100
}

// Times multiplies the amount by a (possibly fractional) quantity, rounding to the minor unit.
func (m Money) Times(q float64) Money {
	return Money(math.Round(float64(m) * q))
}

func (m Money) String() string {
	return strconv.FormatFloat(m.Units(), 'f', 2, 64)
}

// MarshalJSON пишет сумму как десятичное число в единицах валюты
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON принимает число или строку с десятичной суммой
func (m *Money) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	if str == "" || str == "null" {
		*m = 0
		return nil
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fmt.Errorf("invalid amount: %s", str)
	}
	*m = MoneyFromUnits(f)
	return nil
}

// CreateBookingRequest - модель для создания бронирования
type CreateBookingRequest struct {
	FieldID  int64   `json:"field_id" validate:"required,gt=0"`
	Date     string  `json:"date" validate:"required,isodate"`
	Time     string  `json:"time" validate:"required,clock"`
	Duration float64 `json:"duration" validate:"required,gt=0,lte=24"`
	Comments string  `json:"comments,omitempty" validate:"max=500"`
}

// CancelBookingRequest - модель для отмены бронирования
type CancelBookingRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// BookingStats - сводка по бронированиям пользователя
type BookingStats struct {
	Total      int   `json:"total"`
	Confirmed  int   `json:"confirmed"`
	Cancelled  int   `json:"cancelled"`
	TotalSpent Money `json:"total_spent"`
}

// ListBookingsResponse - список бронирований со сводкой
type ListBookingsResponse struct {
	Bookings []Booking    `json:"bookings"`
	Stats    BookingStats `json:"stats"`
}

// LoginRequest - модель входа по email и паролю
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest - модель регистрации пользователя
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Surname  string `json:"surname" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Age      int    `json:"age,omitempty" validate:"omitempty,gte=0,lte=120"`
	DNI      string `json:"dni,omitempty" validate:"omitempty,dni"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,phone"`
	Role     Role   `json:"role,omitempty"`
}

// UpdateUserRequest - модель изменения пользователя администратором
type UpdateUserRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Surname string `json:"surname" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Age     int    `json:"age,omitempty" validate:"omitempty,gte=0,lte=120"`
	DNI     string `json:"dni,omitempty" validate:"omitempty,dni"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,phone"`
	Role    Role   `json:"role"`
}

// GoogleSignInRequest carries what the popup sign-in flow verified.
type GoogleSignInRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email" validate:"required,email"`
	UID         string `json:"uid" validate:"required"`
}

// FieldInput - модель создания и изменения площадки
type FieldInput struct {
	Name     string  `json:"name" validate:"required,max=100"`
	Category string  `json:"category" validate:"max=50"`
	Price    float64 `json:"price" validate:"gt=0"`
	Enabled  *bool   `json:"enabled,omitempty"`
}

// SetFieldEnabledRequest - включение/отключение площадки
type SetFieldEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// AuthResponse - ответ на вход, регистрацию и google sign-in
type AuthResponse struct {
	SessionID string    `json:"session_id"`
	Identity  *Identity `json:"identity"`
	Fallback  bool      `json:"fallback,omitempty"`
}

// PermissionsResponse - разделы и роли, доступные текущему пользователю
type PermissionsResponse struct {
	Role           Role      `json:"role"`
	Sections       []Section `json:"sections"`
	CreatableRoles []Role    `json:"creatable_roles"`
	CanReserve     bool      `json:"can_reserve"`
}
