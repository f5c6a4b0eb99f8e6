package domain

import "strings"

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleCashier Role = "CASHIER"
)

// ParseRole normalizes a backend role string. Unknown values are kept as-is
// so callers can tell them apart with Valid.
func ParseRole(s string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(s)))
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCashier
}

// String representation (for logging)
func (r Role) String() string {
	return string(r)
}

// Session is the authenticated operator of this terminal.
type Session struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// Credentials are the username/password pair typed by an operator.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
