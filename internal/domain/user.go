package domain

import "time"

// User role constants.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents the authenticated account as returned by the Arrow3 API.
// The API serializes fields in camelCase.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	GoogleLinked    bool      `json:"googleLinked,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// FullName returns the user's display name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Merge applies the non-zero fields of patch onto a copy of u and returns it.
// Used after profile edits the server has already confirmed, so no round trip
// is needed to keep the session's user current.
func (u User) Merge(patch UserPatch) User {
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.IsEmailVerified != nil {
		u.IsEmailVerified = *patch.IsEmailVerified
	}
	if patch.GoogleLinked != nil {
		u.GoogleLinked = *patch.GoogleLinked
	}
	return u
}

// UserPatch holds the fields a profile update may change. Nil means unchanged.
type UserPatch struct {
	Email           *string
	FirstName       *string
	LastName        *string
	IsEmailVerified *bool
	GoogleLinked    *bool
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}
