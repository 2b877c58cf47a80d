package entity

// Role is one of the organisational roles a user can hold
type Role string

const (
	RoleSystemAdmin       Role = "system_admin"
	RoleSystemStaff       Role = "system_staff"
	RoleTopManagement     Role = "top_management"
	RoleSafetyCommittee   Role = "safety_committee"
	RoleBranchManager     Role = "branch_manager"
	RoleDepartmentManager Role = "department_manager"
	RoleSectionManager    Role = "section_manager"
	RoleSafetyCoordinator Role = "safety_coordinator"
	RoleEmployee          Role = "employee"
	RoleExternal          Role = "external"
)

// Roles returns every known role
func Roles() []Role {
	return []Role{
		RoleSystemAdmin, RoleSystemStaff, RoleTopManagement, RoleSafetyCommittee,
		RoleBranchManager, RoleDepartmentManager, RoleSectionManager,
		RoleSafetyCoordinator, RoleEmployee, RoleExternal,
	}
}

// IsValid returns true if the role is known
func (r Role) IsValid() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}

// User is the authenticated caller
type User struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Role        Role     `json:"role"`
	Department  string   `json:"department,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// DisplayName returns the name, falling back to the id
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
