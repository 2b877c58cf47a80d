package auth

import (
	"context"

	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/domain/entity"
	"github.com/garyjia/ohsms/internal/domain/workflow"
)

type contextKey string

const userKey contextKey = "user"

// WithUser returns a context carrying the authenticated user
func WithUser(ctx context.Context, user *entity.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user stored by WithUser or nil
func UserFromContext(ctx context.Context) *entity.User {
	user, _ := ctx.Value(userKey).(*entity.User)
	return user
}

// DefaultPermissions is the role table used when configuration does not override a role.
// system_admin is granted everything in Policy.HasPermission and is not listed.
func DefaultPermissions() map[entity.Role][]workflow.Permission {
	return map[entity.Role][]workflow.Permission{
		entity.RoleSystemStaff: {
			workflow.PermissionView, workflow.PermissionReceive, workflow.PermissionAssign, workflow.PermissionAnnotate,
		},
		entity.RoleTopManagement: {
			workflow.PermissionView, workflow.PermissionClose, workflow.PermissionEscalate, workflow.PermissionAnnotate,
		},
		entity.RoleSafetyCommittee: {
			workflow.PermissionView, workflow.PermissionReceive, workflow.PermissionAssign,
			workflow.PermissionClose, workflow.PermissionEscalate, workflow.PermissionAnnotate,
		},
		entity.RoleBranchManager: {
			workflow.PermissionView, workflow.PermissionAssign, workflow.PermissionEscalate, workflow.PermissionAnnotate,
		},
		entity.RoleDepartmentManager: {
			workflow.PermissionView, workflow.PermissionAccept, workflow.PermissionComplete,
			workflow.PermissionEscalate, workflow.PermissionAnnotate,
		},
		entity.RoleSectionManager: {
			workflow.PermissionView, workflow.PermissionAccept, workflow.PermissionComplete, workflow.PermissionAnnotate,
		},
		entity.RoleSafetyCoordinator: {
			workflow.PermissionView, workflow.PermissionReceive, workflow.PermissionAssign, workflow.PermissionAccept,
			workflow.PermissionComplete, workflow.PermissionClose, workflow.PermissionAnnotate,
		},
		entity.RoleEmployee: {},
		entity.RoleExternal: {},
	}
}

// Policy implements port.Authorizer with a role to permission table.
// Permissions carried on the user itself are granted in addition to the role's.
type Policy struct {
	grants map[entity.Role]map[workflow.Permission]bool
}

// NewPolicy builds a policy from the defaults, replacing any role present in overrides
func NewPolicy(overrides map[string][]string) *Policy {
	table := DefaultPermissions()
	for role, perms := range overrides {
		list := make([]workflow.Permission, 0, len(perms))
		for _, p := range perms {
			list = append(list, workflow.Permission(p))
		}
		table[entity.Role(role)] = list
	}

	grants := make(map[entity.Role]map[workflow.Permission]bool, len(table))
	for role, perms := range table {
		set := make(map[workflow.Permission]bool, len(perms))
		for _, p := range perms {
			set[p] = true
		}
		grants[role] = set
	}
	return &Policy{grants: grants}
}

// CurrentUser returns the user attached to ctx by the auth middleware
func (p *Policy) CurrentUser(ctx context.Context) *entity.User {
	return UserFromContext(ctx)
}

// HasPermission reports whether user may exercise perm
func (p *Policy) HasPermission(user *entity.User, perm workflow.Permission) bool {
	if user == nil {
		return false
	}
	if user.Role == entity.RoleSystemAdmin {
		return true
	}
	for _, granted := range user.Permissions {
		if workflow.Permission(granted) == perm {
			return true
		}
	}
	return p.grants[user.Role][perm]
}

var _ port.Authorizer = (*Policy)(nil)
