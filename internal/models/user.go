package models

import (
	"time"
)

type UserRole string

const (
	RoleStudent     UserRole = "student"
	RoleTeacher     UserRole = "teacher"
	RoleProctor     UserRole = "proctor"
	RoleSchoolAdmin UserRole = "school_admin"
	RoleGlobalAdmin UserRole = "global_admin"
)

// User is sourced from the identity provider and is read-only inside this
// service. SchoolID is the tenant boundary every operation checks against.
type User struct {
	ID       string   `json:"id"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`

	SchoolID    string  `json:"school_id"`
	ClassroomID *string `json:"classroom_id"` // set for students only

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsStaff reports whether the user may perform proctoring/administrative
// session operations.
func (u *User) IsStaff() bool {
	switch u.Role {
	case RoleTeacher, RoleProctor, RoleSchoolAdmin, RoleGlobalAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the user has school-wide administrative rights.
func (u *User) IsAdmin() bool {
	return u.Role == RoleSchoolAdmin || u.Role == RoleGlobalAdmin
}
