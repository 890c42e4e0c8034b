// Package domain holds the backend-owned entities as seen by the web frontend.
package domain

import "time"

// Gender is the binary gender enum used by profiles and preferences.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// User is the account record owned by the backend.
type User struct {
	ID            string    `json:"id"`
	KakaoUserID   string    `json:"kakaoUserId"`
	PhoneVerified bool      `json:"phoneVerified"`
	Role          string    `json:"role,omitempty"`
	Banned        bool      `json:"banned"`
	CreatedAt     time.Time `json:"createdAt"`
}

// IsAdmin reports whether the backend tagged the user with the admin role.
func (u User) IsAdmin() bool {
	return u.Role == "admin"
}

// Me is the combined payload of GET /me.
type Me struct {
	User        User         `json:"user"`
	Profile     *Profile     `json:"profile,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}
