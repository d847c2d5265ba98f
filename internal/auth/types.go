package auth

import "time"

// Role partitions accounts into the two sides of the marketplace. A user's
// role is fixed at registration; there is no role-change operation.
type Role string

const (
	// RoleClient marks accounts that create and fund annotation projects.
	RoleClient Role = "client"
	// RoleAnnotator marks accounts that claim and complete tasks.
	RoleAnnotator Role = "annotator"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleAnnotator
}

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
