package domain

import "time"

// Role enumerates privileged user roles. Plain requesters carry no role.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleHelper Role = "HELPER"
)

// User is the domain model for every account: requesters, helpers and admins.
type User struct {
	ID           string
	Username     string
	Name         string
	PasswordHash string
	Enabled      bool
	Roles        []Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role Role) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsStaff reports whether the user may claim or administer tickets.
func (u *User) IsStaff() bool {
	return u.HasRole(RoleAdmin) || u.HasRole(RoleHelper)
}
