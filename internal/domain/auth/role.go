// Package auth models staff roles, what each role may do, and API key
// authentication.
package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Role is a user's position in the restaurant.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleCashier  Role = "cashier"
	RoleCustomer Role = "customer"
)

// ParseRole converts a stored or user-supplied role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleManager, RoleCashier, RoleCustomer:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Capability is a single permission checked at the API boundary.
type Capability string

const (
	CapOrder       Capability = "order"
	CapConfirmCash Capability = "confirm_cash"
	CapViewReports Capability = "view_reports"
	CapManageMenu  Capability = "manage_menu"
	CapManageUsers Capability = "manage_users"
)

var capabilities = map[Role][]Capability{
	RoleAdmin:    {CapOrder, CapConfirmCash, CapViewReports, CapManageMenu, CapManageUsers},
	RoleManager:  {CapOrder, CapViewReports},
	RoleCashier:  {CapOrder, CapConfirmCash},
	RoleCustomer: {CapOrder},
}

// Capabilities lists what r is allowed to do.
func (r Role) Capabilities() []Capability {
	return slices.Clone(capabilities[r])
}

// Can reports whether r holds c.
func (r Role) Can(c Capability) bool {
	return slices.Contains(capabilities[r], c)
}

// View is a screen a terminal may open.
type View string

const (
	ViewOrdering  View = "ordering"
	ViewCashier   View = "cashier"
	ViewReports   View = "reports"
	ViewMenuAdmin View = "menu_admin"
	ViewUserAdmin View = "user_admin"
)

var viewCapability = []struct {
	view View
	cap  Capability
}{
	{ViewOrdering, CapOrder},
	{ViewCashier, CapConfirmCash},
	{ViewReports, CapViewReports},
	{ViewMenuAdmin, CapManageMenu},
	{ViewUserAdmin, CapManageUsers},
}

// Views returns the screens available to r, derived from its capabilities.
func Views(r Role) []View {
	var out []View
	for _, vc := range viewCapability {
		if r.Can(vc.cap) {
			out = append(out, vc.view)
		}
	}
	return out
}

// Principal is the authenticated staff member behind a request.
type Principal struct {
	UserID string
	Name   string
	Role   Role
	KeyID  string
}

// Can reports whether the principal's role holds c.
func (p Principal) Can(c Capability) bool {
	return p.Role.Can(c)
}

// ForbiddenError means the principal lacks a capability.
type ForbiddenError struct {
	Role       Role
	Capability Capability
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("role %s lacks %s", e.Role, e.Capability)
}

// Require returns a ForbiddenError unless p holds c.
func (p Principal) Require(c Capability) error {
	if !p.Can(c) {
		return &ForbiddenError{Role: p.Role, Capability: c}
	}
	return nil
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
