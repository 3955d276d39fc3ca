package domain

import "time"

// Role is the fixed set of account roles, stored as an integer reference.
type Role int

const (
	RoleSuperAdmin   Role = 1
	RoleAdmin        Role = 2
	RoleSupportAgent Role = 3
	RoleEndUser      Role = 4
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r >= RoleSuperAdmin && r <= RoleEndUser
}

// IsStaff reports whether the role belongs to helpdesk personnel.
func (r Role) IsStaff() bool {
	return r == RoleSuperAdmin || r == RoleAdmin || r == RoleSupportAgent
}

// IsAdmin reports whether the role may administer users, categories and statuses.
func (r Role) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

func (r Role) String() string {
	switch r {
	case RoleSuperAdmin:
		return "super_admin"
	case RoleAdmin:
		return "admin"
	case RoleSupportAgent:
		return "support_agent"
	case RoleEndUser:
		return "user"
	default:
		return "unknown"
	}
}

// User is a helpdesk account. Phone-only accounts have no email.
type User struct {
	ID           int64
	Name         string
	Email        *string
	Phone        *string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EmailValue returns the email or an empty string.
func (u *User) EmailValue() string {
	if u == nil || u.Email == nil {
		return ""
	}
	return *u.Email
}

// PhoneValue returns the phone number or an empty string.
func (u *User) PhoneValue() string {
	if u == nil || u.Phone == nil {
		return ""
	}
	return *u.Phone
}
