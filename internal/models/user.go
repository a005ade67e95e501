package models

import "strings"

// User is the authenticated account as returned by the login, signup and refresh endpoints.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// AuthResponse is the body of a successful login, signup or token refresh.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Session is the locally held view of a logged in user. The token half lives in the
// keystore and the profile half in the local cache; both must be present.
type Session struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Token     string `json:"-"`
}

// NewSession joins a token with the profile it was issued for.
func NewSession(token string, u User) Session {
	return Session{
		UserID:    u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Token:     token,
	}
}

// User returns the profile half of the session.
func (s Session) User() User {
	return User{ID: s.UserID, Username: s.Username, FirstName: s.FirstName, LastName: s.LastName}
}

// initials returns the first rune of each name, used by every list row.
func initials(first, last string) string {
	var b strings.Builder
	for _, s := range []string{first, last} {
		for _, r := range s {
			b.WriteRune(r)
			break
		}
	}
	return b.String()
}
