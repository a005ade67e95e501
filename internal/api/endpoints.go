// internal/api/endpoints.go
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/jason-s-yu/clique/internal/models"
)

// Paths relative to the base URL.
const (
	PathLogin                  = "/login"
	PathSignup                 = "/signup"
	PathRefreshToken           = "/refresh-token"
	PathStatuses               = "/statuses"
	PathUpdateStatus           = "/update-status"
	PathUpdateIconColor        = "/update-icon-color"
	PathAddUser                = "/add-user"
	PathFriends                = "/friends"
	PathAddFriend              = "/add-friend"
	PathRemoveFriend           = "/remove-friend"
	PathPendingFriendRequests  = "/pending-friend-requests"
	PathOutgoingFriendRequests = "/outgoing-friend-requests"
	PathRespondToFriendRequest = "/respond-to-friend-request"
	PathUpdateLocation         = "/update-location"
	PathClearLocation          = "/clear-location"
)

func conflictOf(err error) func([]byte) error {
	return func([]byte) error { return err }
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (*models.AuthResponse, error) {
	body := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{username, password}

	var resp models.AuthResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   PathLogin,
		body:   body,
		errs:   statusErrors{unauthorized: ErrInvalidCredentials},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signup creates an account and returns its first token.
func (c *Client) Signup(ctx context.Context, username, password, firstName, lastName string) (*models.AuthResponse, error) {
	body := struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}{username, password, firstName, lastName}

	var resp models.AuthResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   PathSignup,
		body:   body,
		errs:   statusErrors{conflict: conflictOf(ErrUsernameExists)},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefreshToken trades a still-valid token for a fresh one.
func (c *Client) RefreshToken(ctx context.Context, currentToken string) (*models.AuthResponse, error) {
	if currentToken == "" {
		return nil, ErrUnauthorized
	}
	var resp models.AuthResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   PathRefreshToken,
		authed: true,
		bearer: currentToken,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchStatuses returns every status visible to the user, their own included.
func (c *Client) FetchStatuses(ctx context.Context) ([]models.Status, error) {
	var statuses []models.Status
	err := c.do(ctx, request{method: http.MethodGet, path: PathStatuses, authed: true}, &statuses)
	return statuses, err
}

func (c *Client) UpdateStatus(ctx context.Context, emoji, text string) error {
	body := struct {
		StatusEmoji string `json:"statusEmoji"`
		StatusText  string `json:"statusText"`
	}{emoji, text}
	return c.do(ctx, request{method: http.MethodPost, path: PathUpdateStatus, body: body, authed: true}, nil)
}

func (c *Client) UpdateIconColor(ctx context.Context, color models.IconColor) error {
	body := struct {
		IconColor models.IconColor `json:"iconColor"`
	}{color}
	return c.do(ctx, request{method: http.MethodPost, path: PathUpdateIconColor, body: body, authed: true}, nil)
}

// AddUser adds username to the caller's status feed.
func (c *Client) AddUser(ctx context.Context, username string) error {
	body := struct {
		Username string `json:"username"`
	}{username}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   PathAddUser,
		body:   body,
		authed: true,
		errs: statusErrors{
			notFound: ErrUserNotFound,
			conflict: conflictOf(ErrAlreadyFriends),
		},
	}, nil)
}

func (c *Client) FetchFriends(ctx context.Context) ([]models.Friend, error) {
	var friends []models.Friend
	err := c.do(ctx, request{method: http.MethodGet, path: PathFriends, authed: true}, &friends)
	return friends, err
}

// AddFriend sends a friend request to username. The server answers with the user it
// resolved.
func (c *Client) AddFriend(ctx context.Context, username string) (*models.AddFriendResponse, error) {
	body := struct {
		Username string `json:"username"`
	}{username}

	var resp models.AddFriendResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   PathAddFriend,
		body:   body,
		authed: true,
		errs: statusErrors{
			notFound: ErrUserNotFound,
			conflict: func(b []byte) error {
				msg := strings.ToLower(serverMessage(b))
				if strings.Contains(msg, "sent") || strings.Contains(msg, "pending") {
					return ErrRequestAlreadySent
				}
				return ErrAlreadyFriends
			},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RemoveFriend(ctx context.Context, friendID string) error {
	body := struct {
		FriendID string `json:"friendId"`
	}{friendID}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   PathRemoveFriend,
		body:   body,
		authed: true,
		errs:   statusErrors{notFound: ErrFriendshipNotFound},
	}, nil)
}

func (c *Client) FetchPendingRequests(ctx context.Context) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := c.do(ctx, request{method: http.MethodGet, path: PathPendingFriendRequests, authed: true}, &reqs)
	return reqs, err
}

func (c *Client) FetchOutgoingRequests(ctx context.Context) ([]models.OutgoingFriendRequest, error) {
	var reqs []models.OutgoingFriendRequest
	err := c.do(ctx, request{method: http.MethodGet, path: PathOutgoingFriendRequests, authed: true}, &reqs)
	return reqs, err
}

// RespondToFriendRequest accepts or denies the friendship with the given id.
func (c *Client) RespondToFriendRequest(ctx context.Context, friendshipID string, action models.FriendAction) error {
	body := struct {
		FriendshipID string              `json:"friendshipId"`
		Action       models.FriendAction `json:"action"`
	}{friendshipID, action}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   PathRespondToFriendRequest,
		body:   body,
		authed: true,
		errs:   statusErrors{notFound: ErrFriendRequestNotFound},
	}, nil)
}

func (c *Client) UpdateLocation(ctx context.Context, coord models.Coordinate) error {
	return c.do(ctx, request{method: http.MethodPost, path: PathUpdateLocation, body: coord, authed: true}, nil)
}

func (c *Client) ClearLocation(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodPost, path: PathClearLocation, authed: true}, nil)
}
