package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldDecodingWithLegacyFlags(t *testing.T) {
	raw := `[
		{"id":1,"name":"Monumental","price":2500,"enabled":1,"cancelled":0},
		{"id":2,"name":"Bombonera","price":"3000.50","enabled":"yes","cancelled":true},
		{"id":3,"name":"Fortin","price":1800,"enabled":0,"cancelled":null}
	]`

	var fields []Field
	require.NoError(t, json.Unmarshal([]byte(raw), &fields))
	require.Len(t, fields, 3)

	assert.True(t, fields[0].Offerable())
	assert.Equal(t, Money(250000), fields[0].Price)
	assert.False(t, fields[1].Offerable())
	assert.Equal(t, Money(300050), fields[1].Price)
	assert.False(t, fields[2].Offerable())
}

func TestFlexibleBoolRejectsGarbage(t *testing.T) {
	var fb FlexibleBool
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &fb))
}

func TestMoneyTimes(t *testing.T) {
	price := MoneyFromUnits(2500)
	assert.Equal(t, MoneyFromUnits(5000), price.Times(2))
	assert.Equal(t, MoneyFromUnits(3750), price.Times(1.5))
	assert.Equal(t, Money(167), Money(111).Times(1.5))

	out, err := json.Marshal(MoneyFromUnits(5000))
	require.NoError(t, err)
	assert.Equal(t, "5000.00", string(out))
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleOwner, ParseRole("Dueño"))
	assert.Equal(t, RoleOwner, ParseRole("dueno"))
	assert.Equal(t, RoleAdmin, ParseRole(" ADMINISTRADOR "))
	assert.Equal(t, RoleParking, ParseRole("Estacionamiento"))
	assert.Equal(t, RoleRental, ParseRole("empleado"))
	assert.Equal(t, RoleBar, ParseRole("Bar"))
	assert.Equal(t, RoleClient, ParseRole(""))
	assert.Equal(t, RoleClient, ParseRole("root"))
}

func TestBookingNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		status BookingStatus
		time   string
	}{
		{"explicit status", `{"id":1,"status":"pending","time":"18:00:00","duration":2}`, BookingPending, "18:00"},
		{"spanish status", `{"id":2,"status":"cancelada","time":"18:00"}`, BookingCancelled, "18:00"},
		{"legacy flag", `{"id":3,"cancelled":1,"time":"09:00:00"}`, BookingCancelled, "09:00"},
		{"missing status", `{"id":4,"cancelled":0,"time":"10:00"}`, BookingConfirmed, "10:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Booking
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &b))
			b.Normalize()
			assert.Equal(t, tt.status, b.Status)
			assert.Equal(t, tt.time, b.Time)
			assert.Equal(t, tt.status == BookingCancelled, b.Cancelled.Bool())
		})
	}
}

func TestBookingInterval(t *testing.T) {
	b := Booking{Time: "18:00", Duration: 1.5}
	start, end, err := b.Interval()
	require.NoError(t, err)
	assert.Equal(t, 18*60, start)
	assert.Equal(t, 19*60+30, end)

	_, _, err = (&Booking{Time: "6pm"}).Interval()
	assert.Error(t, err)

	start, end, err = (&Booking{Time: "18:00", Duration: 0.001}).Interval()
	require.NoError(t, err)
	assert.Equal(t, start+1, end)
}

func TestSpanMinutes(t *testing.T) {
	tests := []struct {
		hours float64
		want  int
	}{
		{1, 60},
		{1.5, 90},
		{0.001, 1},
		{0, 1},
		{-3, 1},
		{24, MinutesPerDay},
		{1e300, MinutesPerDay},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SpanMinutes(tt.hours), "hours=%v", tt.hours)
	}
}

func TestAvailabilityAllIsRestartable(t *testing.T) {
	a := &Availability{Slots: []Slot{{"08:00", true}, {"09:00", false}, {"10:00", true}}}

	var first, second []string
	for s := range a.All() {
		first = append(first, s.Time)
	}
	for s := range a.All() {
		second = append(second, s.Time)
	}
	assert.Equal(t, first, second)
	assert.True(t, a.IsAvailable("08:00"))
	assert.False(t, a.IsAvailable("09:00"))
	assert.False(t, a.IsAvailable("23:00"))
}

func TestClockHelpers(t *testing.T) {
	m, err := ParseClock("21:30:00")
	require.NoError(t, err)
	assert.Equal(t, "21:30", FormatClock(m))

	_, err = ParseClock("25:00")
	assert.Error(t, err)
}
