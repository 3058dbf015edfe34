// Package access maps actor roles to the permissions they grant.
package access

import (
	"context"
	"strings"

	"github.com/foxzi/hyperdrive/internal/apperr"
)

// Role is the persona an actor acts as
type Role string

const (
	RoleOwner         Role = "owner"
	RoleAdmin         Role = "admin"
	RoleManager       Role = "manager"
	RoleReviewer      Role = "reviewer"
	RoleViewer        Role = "viewer"
	RoleShopper       Role = "shopper"
	RolePlatformAdmin Role = "platform_admin"
	RoleSystem        Role = "system"
)

// Permission names one guarded operation
type Permission string

const (
	PermRead               Permission = "read"
	PermCampaignWrite      Permission = "campaign:write"
	PermCampaignDelete     Permission = "campaign:delete"
	PermCampaignTransition Permission = "campaign:transition"
	PermCampaignReview     Permission = "campaign:review"
	PermEnrollmentCreate   Permission = "enrollment:create"
	PermEnrollmentSubmit   Permission = "enrollment:submit"
	PermEnrollmentReview   Permission = "enrollment:review"
	PermExpire             Permission = "lifecycle:expire"
	PermWalletManage       Permission = "wallet:manage"
)

var grants = map[Role][]Permission{
	RoleOwner: {
		PermRead, PermCampaignWrite, PermCampaignDelete, PermCampaignTransition,
		PermEnrollmentReview, PermWalletManage,
	},
	RoleAdmin: {
		PermRead, PermCampaignWrite, PermCampaignDelete, PermCampaignTransition,
		PermEnrollmentReview, PermWalletManage,
	},
	RoleManager: {
		PermRead, PermCampaignWrite, PermCampaignTransition, PermEnrollmentReview,
	},
	RoleReviewer: {PermRead, PermEnrollmentReview},
	RoleViewer:   {PermRead},
	RoleShopper:  {PermRead, PermEnrollmentCreate, PermEnrollmentSubmit},
	RolePlatformAdmin: {
		PermRead, PermCampaignReview, PermCampaignTransition, PermEnrollmentReview,
	},
	RoleSystem: {
		PermRead, PermCampaignTransition, PermExpire, PermEnrollmentReview,
	},
}

var roleSet = func() map[Role]map[Permission]bool {
	out := make(map[Role]map[Permission]bool, len(grants))
	for role, perms := range grants {
		set := make(map[Permission]bool, len(perms))
		for _, p := range perms {
			set[p] = true
		}
		out[role] = set
	}
	return out
}()

// ParseRole normalizes a role name
func ParseRole(name string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := grants[r]; !ok {
		return "", apperr.Validation("unknown role: %s", name)
	}
	return r, nil
}

// Actor is the authenticated caller of an operation
type Actor struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Role           Role   `json:"role"`
}

// System is the actor background jobs run as
func System(orgID string) Actor {
	return Actor{ID: "system", OrganizationID: orgID, Role: RoleSystem}
}

// Can reports whether the actor's role grants perm
func (a Actor) Can(perm Permission) bool {
	return roleSet[a.Role][perm]
}

// Require returns a PermissionError when the actor lacks perm
func (a Actor) Require(perm Permission) error {
	if !a.Can(perm) {
		return apperr.Permission("role %q may not %s", a.Role, perm)
	}
	return nil
}

// CrossOrg reports whether the actor may see entities of any organization
func (a Actor) CrossOrg() bool {
	return a.Role == RolePlatformAdmin || a.Role == RoleSystem
}

// Sees reports whether an entity owned by orgID is visible to the actor
func (a Actor) Sees(orgID string) bool {
	return a.CrossOrg() || a.OrganizationID == orgID
}

type contextKey struct{}

// WithActor stores the actor in ctx
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the actor stored by WithActor
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}
