// internal/models/friend.go
package models

// Friend is an accepted friendship, seen from the current user's side.
type Friend struct {
	ID        string     `json:"_id"`
	Username  string     `json:"username"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	IconColor *IconColor `json:"iconColor,omitempty"`
}

func (f Friend) FullName() string { return f.FirstName + " " + f.LastName }
func (f Friend) Initials() string { return initials(f.FirstName, f.LastName) }

// FriendRequest is an incoming request. ID is the friendship id, which is what the
// respond endpoint expects.
type FriendRequest struct {
	ID          string `json:"_id"`
	RequesterID string `json:"requesterId"`
	Username    string `json:"username"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
}

func (r FriendRequest) FullName() string { return r.FirstName + " " + r.LastName }
func (r FriendRequest) Initials() string { return initials(r.FirstName, r.LastName) }

// AsFriend builds the friend entry that appears once the request is accepted.
func (r FriendRequest) AsFriend() Friend {
	return Friend{
		ID:        r.RequesterID,
		Username:  r.Username,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}

// OutgoingFriendRequest is a request the current user sent and the recipient has not
// answered yet.
type OutgoingFriendRequest struct {
	ID          string `json:"_id"`
	RecipientID string `json:"recipientId"`
	Username    string `json:"username"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
}

func (r OutgoingFriendRequest) FullName() string { return r.FirstName + " " + r.LastName }

// FriendAction is the answer sent to the respond-to-friend-request endpoint.
type FriendAction string

const (
	FriendActionAccept FriendAction = "accept"
	FriendActionDeny   FriendAction = "deny"
)

// AddFriendResponse is the body returned by /add-friend.
type AddFriendResponse struct {
	Message string `json:"message"`
	Friend  Friend `json:"friend"`
}
