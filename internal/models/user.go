package models

// Role is a site-wide account role.
type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleBanned Role = "banned"
)

type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Password string `json:"password,omitempty"` // argon2id encoded hash
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the user administers the whole site.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsBanned reports whether the user may not log in.
func (u User) IsBanned() bool {
	return u.Role == RoleBanned
}
