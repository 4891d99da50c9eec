// Package permissions is the static role/section matrix used by route guards and handlers.
package permissions

import (
	"slices"

	"canchita/internal/models"
)

// sharedSections are open to every authenticated role.
var sharedSections = []models.Section{models.SectionReservations, models.SectionDashboard}

var sectionsByRole = map[models.Role][]models.Section{
	models.RoleOwner:   {models.SectionReservations, models.SectionDashboard, models.SectionAdmin, models.SectionBar, models.SectionParking},
	models.RoleAdmin:   {models.SectionReservations, models.SectionDashboard, models.SectionAdmin, models.SectionBar, models.SectionParking},
	models.RoleBar:     {models.SectionReservations, models.SectionDashboard, models.SectionBar},
	models.RoleParking: {models.SectionReservations, models.SectionDashboard, models.SectionParking},
	models.RoleRental:  sharedSections,
	models.RoleClient:  sharedSections,
}

var creatableByRole = map[models.Role][]models.Role{
	models.RoleOwner: {models.RoleOwner, models.RoleAdmin, models.RoleRental, models.RoleClient, models.RoleBar, models.RoleParking},
	models.RoleAdmin: {models.RoleRental, models.RoleClient, models.RoleBar, models.RoleParking},
}

// Redirect targets for failed guards.
const (
	HomeRoute   = "/home"
	SignInRoute = "/auth/sign-in"
)

// CanAccessSection reports whether role may open section.
func CanAccessSection(role models.Role, section models.Section) bool {
	return slices.Contains(sectionsByRole[models.ParseRole(string(role))], section)
}

// CanCreateUserWithRole reports whether acting may create an account holding target.
func CanCreateUserWithRole(acting, target models.Role) bool {
	return slices.Contains(creatableByRole[models.ParseRole(string(acting))], models.ParseRole(string(target)))
}

// RolesCreatableBy lists the target roles acting may assign. Returns nil when none.
func RolesCreatableBy(acting models.Role) []models.Role {
	return slices.Clone(creatableByRole[models.ParseRole(string(acting))])
}

// SectionsFor lists the sections role may open.
func SectionsFor(role models.Role) []models.Section {
	return slices.Clone(sectionsByRole[models.ParseRole(string(role))])
}

// IsManager is true for roles with full access (Owner and Administrator).
func IsManager(role models.Role) bool {
	r := models.ParseRole(string(role))
	return r == models.RoleOwner || r == models.RoleAdmin
}

func CanReserve(id *models.Identity) bool {
	return id != nil
}

func CanViewOwnBookings(id *models.Identity) bool {
	return id != nil
}

// CanCancelBooking is true for the booking owner and for managers.
func CanCancelBooking(actor *models.Identity, b *models.Booking) bool {
	if actor == nil || b == nil {
		return false
	}
	return actor.ID == b.UserID || IsManager(actor.Role)
}

// RedirectFor returns the safe default route when a guard rejects id.
func RedirectFor(id *models.Identity) string {
	if id == nil {
		return SignInRoute
	}
	return HomeRoute
}
