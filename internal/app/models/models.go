package models

// RoleType defines the user role type
type RoleType string

const (
	RoleStudent RoleType = "student"
	RoleStaff   RoleType = "staff"
	RoleAdmin   RoleType = "admin"
)

// Valid reports whether r is a known role
func (r RoleType) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether r may act on other users' records
func (r RoleType) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID int64
	Email  string
	Role   RoleType
}

// IsStaff reports whether the actor may bypass ownership checks
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}
