package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's access level.
type Role string

const (
	RoleUser     Role = "user"
	RoleMerchant Role = "merchant"
	RoleAdmin    Role = "admin"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleMerchant, RoleAdmin:
		return true
	}
	return false
}

// User represents a dashboard account. Merchants and admins are users with
// elevated roles; the gateway API itself authenticates with API keys, not users.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
