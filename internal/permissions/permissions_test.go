package permissions

import (
	"testing"

	"canchita/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanCreateUserWithRole(t *testing.T) {
	tests := []struct {
		acting models.Role
		target models.Role
		want   bool
	}{
		{"Administrador", "Dueño", false},
		{"Dueño", "Administrador", true},
		{"Dueño", "Dueño", true},
		{"Administrador", "Administrador", false},
		{"Administrador", "Bar", true},
		{"Administrador", "Estacionamiento", true},
		{"Administrador", "Empleado", true},
		{"Administrador", "Cliente", true},
		{"Bar", "Cliente", false},
		{"Empleado", "Cliente", false},
		{"Estacionamiento", "Bar", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.acting)+"->"+string(tt.target), func(t *testing.T) {
			assert.Equal(t, tt.want, CanCreateUserWithRole(tt.acting, tt.target))
		})
	}
}

func TestClientCannotCreateAnyRole(t *testing.T) {
	for _, target := range models.AllRoles {
		assert.False(t, CanCreateUserWithRole(models.RoleClient, target), target)
	}
	assert.Empty(t, RolesCreatableBy(models.RoleClient))
}

func TestCanAccessSection(t *testing.T) {
	all := []models.Section{models.SectionAdmin, models.SectionBar, models.SectionParking, models.SectionReservations, models.SectionDashboard}

	for _, s := range all {
		assert.True(t, CanAccessSection(models.RoleOwner, s), s)
		assert.True(t, CanAccessSection(models.RoleAdmin, s), s)
	}

	assert.True(t, CanAccessSection(models.RoleBar, models.SectionBar))
	assert.False(t, CanAccessSection(models.RoleBar, models.SectionParking))
	assert.False(t, CanAccessSection(models.RoleBar, models.SectionAdmin))

	assert.True(t, CanAccessSection(models.RoleParking, models.SectionParking))
	assert.False(t, CanAccessSection(models.RoleParking, models.SectionBar))

	for _, r := range []models.Role{models.RoleClient, models.RoleRental} {
		assert.True(t, CanAccessSection(r, models.SectionReservations))
		assert.True(t, CanAccessSection(r, models.SectionDashboard))
		assert.False(t, CanAccessSection(r, models.SectionAdmin))
		assert.False(t, CanAccessSection(r, models.SectionBar))
		assert.False(t, CanAccessSection(r, models.SectionParking))
	}
}

func TestUnknownRoleActsAsClient(t *testing.T) {
	assert.False(t, CanAccessSection("superuser", models.SectionAdmin))
	assert.True(t, CanAccessSection("", models.SectionReservations))
	assert.Equal(t, SectionsFor(models.RoleClient), SectionsFor("whatever"))
}

func TestSectionsForReturnsCopy(t *testing.T) {
	s := SectionsFor(models.RoleClient)
	s[0] = models.SectionAdmin
	assert.False(t, CanAccessSection(models.RoleClient, models.SectionAdmin))
}

func TestCanCancelBooking(t *testing.T) {
	b := &models.Booking{ID: 1, UserID: 7}

	assert.True(t, CanCancelBooking(&models.Identity{ID: 7, Role: models.RoleClient}, b))
	assert.False(t, CanCancelBooking(&models.Identity{ID: 8, Role: models.RoleClient}, b))
	assert.False(t, CanCancelBooking(&models.Identity{ID: 8, Role: models.RoleBar}, b))
	assert.True(t, CanCancelBooking(&models.Identity{ID: 8, Role: models.RoleAdmin}, b))
	assert.True(t, CanCancelBooking(&models.Identity{ID: 8, Role: models.RoleOwner}, b))
	assert.False(t, CanCancelBooking(nil, b))
}

func TestReserveAndRedirect(t *testing.T) {
	assert.False(t, CanReserve(nil))
	assert.True(t, CanReserve(&models.Identity{Role: models.RoleParking}))
	assert.True(t, CanViewOwnBookings(&models.Identity{}))
	assert.Equal(t, SignInRoute, RedirectFor(nil))
	assert.Equal(t, HomeRoute, RedirectFor(&models.Identity{}))
}
