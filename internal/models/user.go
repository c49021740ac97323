package models

// UserRole is the authorization level reported by the identity endpoint.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// UserProfile is the authenticated user's identity as returned by /auth/me.
type UserProfile struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	FullName       string   `json:"full_name,omitempty"`
	Email          string   `json:"email,omitempty"`
	Age            int      `json:"age"`
	DOB            string   `json:"dob,omitempty"`
	Role           UserRole `json:"role"`
	ProfilePicture *string  `json:"profile_picture,omitempty"`
}

// IsAdmin reports whether the profile carries the admin role.
func (u *UserProfile) IsAdmin() bool {
	return u != nil && u.Role == UserRoleAdmin
}

// Opposite returns the role a toggle would switch to.
func (r UserRole) Opposite() UserRole {
	if r == UserRoleAdmin {
		return UserRoleUser
	}
	return UserRoleAdmin
}
