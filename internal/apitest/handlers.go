// internal/apitest/handlers.go
package apitest

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/clique/internal/models"
)

type ctxKey struct{}

// authed rejects requests without a valid bearer token and passes the caller's id on.
func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, ok := s.authenticateJWT(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		s.mu.Lock()
		_, exists := s.accounts[userID]
		s.mu.Unlock()
		if !exists {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		h(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	}
}

func callerID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}

// AddAccount registers a user directly, bypassing /signup, and returns its id.
func (s *Server) AddAccount(username, password, firstName, lastName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAccountLocked(username, password, firstName, lastName)
}

func (s *Server) addAccountLocked(username, password, firstName, lastName string) string {
	id := uuid.NewString()
	s.accounts[id] = &account{
		user:     models.User{ID: id, Username: username, FirstName: firstName, LastName: lastName},
		password: password,
		status:   models.Status{ID: id, FirstName: firstName, LastName: lastName},
		friends:  make(map[string]bool),
		feed:     make(map[string]bool),
	}
	s.byUsername[username] = id
	return id
}

// MakeFriends links two accounts as accepted friends.
func (s *Server) MakeFriends(a, b string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a].friends[b] = true
	s.accounts[b].friends[a] = true
}

// RequestFriendship records a pending request from requester to recipient and returns
// the friendship id.
func (s *Server) RequestFriendship(requester, recipient string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.friendships[id] = &friendship{id: id, requesterID: requester, recipientID: recipient}
	return id
}

// SetStatus sets an account's status text directly.
func (s *Server) SetStatus(userID, emoji, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[userID]
	a.status = a.status.WithText(emoji, text)
}

// IssueToken returns a valid token for userID.
func (s *Server) IssueToken(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, _ := s.createJWT(userID)
	return token
}

func (s *Server) authResponse(w http.ResponseWriter, status int, a *account) {
	token, err := s.createJWT(a.user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, status, models.AuthResponse{Token: token, User: a.user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUsername[req.Username]
	if !ok || s.accounts[id].password != req.Password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.authResponse(w, http.StatusOK, s.accounts[id])
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byUsername[req.Username]; exists {
		writeError(w, http.StatusConflict, "username already exists")
		return
	}
	id := s.addAccountLocked(req.Username, req.Password, req.FirstName, req.LastName)
	s.authResponse(w, http.StatusCreated, s.accounts[id])
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authResponse(w, http.StatusOK, s.accounts[callerID(r)])
}

func (s *Server) handleStatuses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.accounts[callerID(r)]

	ids := []string{me.user.ID}
	for id := range me.friends {
		ids = append(ids, id)
	}
	for id := range me.feed {
		if !me.friends[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids[1:])

	out := make([]models.Status, 0, len(ids))
	for _, id := range ids {
		a := s.accounts[id]
		st := a.status
		st.IsCurrentUser = id == me.user.ID
		if a.iconColor != "" {
			c := a.iconColor
			st.IconColor = &c
		}
		out = append(out, st)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StatusEmoji string `json:"statusEmoji"`
		StatusText  string `json:"statusText"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[callerID(r)]
	a.status = a.status.WithText(req.StatusEmoji, req.StatusText)
	writeJSON(w, http.StatusOK, map[string]string{"message": "status updated"})
}

func (s *Server) handleUpdateIconColor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IconColor string `json:"iconColor"`
	}
	if !decode(w, r, &req) {
		return
	}
	c := models.IconColor(req.IconColor)
	if !c.Valid() {
		writeError(w, http.StatusBadRequest, "unknown icon color")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[callerID(r)].iconColor = c
	writeJSON(w, http.StatusOK, map[string]string{"message": "icon color updated"})
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.accounts[callerID(r)]
	id, ok := s.byUsername[req.Username]
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if me.feed[id] || me.friends[id] {
		writeError(w, http.StatusConflict, "already added")
		return
	}
	me.feed[id] = true
	writeJSON(w, http.StatusOK, map[string]string{"message": "user added"})
}

func (s *Server) friendOf(id string) models.Friend {
	a := s.accounts[id]
	f := models.Friend{
		ID:        a.user.ID,
		Username:  a.user.Username,
		FirstName: a.user.FirstName,
		LastName:  a.user.LastName,
	}
	if a.iconColor != "" {
		c := a.iconColor
		f.IconColor = &c
	}
	return f
}

func (s *Server) handleFriends(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.accounts[callerID(r)]
	ids := make([]string, 0, len(me.friends))
	for id := range me.friends {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.accounts[ids[i]].user.Username < s.accounts[ids[j]].user.Username
	})
	out := make([]models.Friend, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.friendOf(id))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddFriend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	meID := callerID(r)
	id, ok := s.byUsername[req.Username]
	if !ok || id == meID {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if s.accounts[meID].friends[id] {
		writeError(w, http.StatusConflict, "already friends")
		return
	}
	for _, f := range s.friendships {
		if f.requesterID == meID && f.recipientID == id {
			writeError(w, http.StatusConflict, "friend request already sent")
			return
		}
	}
	fid := uuid.NewString()
	s.friendships[fid] = &friendship{id: fid, requesterID: meID, recipientID: id}
	writeJSON(w, http.StatusCreated, models.AddFriendResponse{
		Message: "friend request sent",
		Friend:  s.friendOf(id),
	})
}

func (s *Server) handleRemoveFriend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FriendID string `json:"friendId"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	me := s.accounts[callerID(r)]
	if !me.friends[req.FriendID] {
		writeError(w, http.StatusNotFound, "friendship not found")
		return
	}
	delete(me.friends, req.FriendID)
	delete(s.accounts[req.FriendID].friends, me.user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "friend removed"})
}

func (s *Server) sortedFriendships(match func(*friendship) bool) []*friendship {
	var out []*friendship
	for _, f := range s.friendships {
		if !f.accepted && match(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meID := callerID(r)
	out := []models.FriendRequest{}
	for _, f := range s.sortedFriendships(func(f *friendship) bool { return f.recipientID == meID }) {
		u := s.accounts[f.requesterID].user
		out = append(out, models.FriendRequest{
			ID:          f.id,
			RequesterID: u.ID,
			Username:    u.Username,
			FirstName:   u.FirstName,
			LastName:    u.LastName,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOutgoing(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meID := callerID(r)
	out := []models.OutgoingFriendRequest{}
	for _, f := range s.sortedFriendships(func(f *friendship) bool { return f.requesterID == meID }) {
		u := s.accounts[f.recipientID].user
		out = append(out, models.OutgoingFriendRequest{
			ID:          f.id,
			RecipientID: u.ID,
			Username:    u.Username,
			FirstName:   u.FirstName,
			LastName:    u.LastName,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FriendshipID string `json:"friendshipId"`
		Action       string `json:"action"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.friendships[req.FriendshipID]
	if !ok || f.accepted || f.recipientID != callerID(r) {
		writeError(w, http.StatusNotFound, "friend request not found")
		return
	}
	switch models.FriendAction(req.Action) {
	case models.FriendActionAccept:
		f.accepted = true
		s.accounts[f.requesterID].friends[f.recipientID] = true
		s.accounts[f.recipientID].friends[f.requesterID] = true
	case models.FriendActionDeny:
		delete(s.friendships, f.id)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req models.Coordinate
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[callerID(r)]
	lat, lon := req.Latitude, req.Longitude
	a.status.Latitude, a.status.Longitude = &lat, &lon
	writeJSON(w, http.StatusOK, map[string]string{"message": "location updated"})
}

func (s *Server) handleClearLocation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[callerID(r)]
	a.status.Latitude, a.status.Longitude = nil, nil
	writeJSON(w, http.StatusOK, map[string]string{"message": "location cleared"})
}
