// internal/api/errors.go
package api

import (
	"errors"

	"github.com/jason-s-yu/clique/internal/keystore"
	"github.com/jason-s-yu/clique/internal/location"
)

var (
	ErrInvalidURL      = errors.New("invalid url")
	ErrInvalidResponse = errors.New("invalid response from server")
	ErrRequestFailed   = errors.New("request failed")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameExists     = errors.New("username already exists")
	ErrUnauthorized       = errors.New("unauthorized")

	ErrUserNotFound          = errors.New("user not found")
	ErrAlreadyFriends        = errors.New("already friends")
	ErrFriendshipNotFound    = errors.New("friendship not found")
	ErrFriendRequestNotFound = errors.New("friend request not found")
	ErrRequestAlreadySent    = errors.New("friend request already sent")
)

// messages are the texts shown to the user for each failure.
var messages = []struct {
	err error
	msg string
}{
	{ErrInvalidURL, "Invalid URL"},
	{ErrInvalidResponse, "Invalid response from server"},
	{ErrRequestFailed, "Request failed"},
	{ErrInvalidCredentials, "Invalid username or password"},
	{ErrUsernameExists, "Username already exists"},
	{ErrUnauthorized, "Please log in to continue"},
	{ErrUserNotFound, "User not found"},
	{ErrAlreadyFriends, "You are already friends with this user"},
	{ErrFriendshipNotFound, "Friendship not found"},
	{ErrFriendRequestNotFound, "Friend request not found"},
	{ErrRequestAlreadySent, "Friend request already sent"},
	{keystore.ErrKeystore, "Failed to save credentials securely"},
	{location.ErrAuthorizationDenied, "Location access denied. Please enable location services in Settings."},
	{location.ErrLocationUnavailable, "Unable to determine your location. Please try again."},
}

// Message turns any error surfaced by the client into a line fit for display.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	var locErr *location.FailedError
	if errors.As(err, &locErr) {
		return "Location error: " + locErr.Err.Error()
	}
	return err.Error()
}
