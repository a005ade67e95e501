// Package apitest runs an in-memory implementation of the clique REST API for tests.
// It follows the real server's contract closely enough to drive every client
// operation, and lets tests inject failures and hold requests in flight.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jason-s-yu/clique/internal/middleware"
	"github.com/jason-s-yu/clique/internal/models"
	"github.com/sirupsen/logrus"
)

type account struct {
	user      models.User
	password  string
	status    models.Status
	friends   map[string]bool // user ids
	feed      map[string]bool // user ids added through /add-user
	iconColor models.IconColor
}

type friendship struct {
	id          string
	requesterID string
	recipientID string
	accepted    bool
}

// Server is a fake API. Create it with New and point a client at URL().
type Server struct {
	mu          sync.Mutex
	accounts    map[string]*account // by id
	byUsername  map[string]string   // username -> id
	friendships map[string]*friendship
	failures    map[string]int
	holds       map[string]chan struct{}
	calls       map[string]int
	secret      []byte
	tokenTTL    time.Duration

	ts *httptest.Server
}

// New starts a fake server. It is shut down when the test ends.
func New(t interface {
	Cleanup(func())
}) *Server {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	s := newServer()
	s.ts = httptest.NewServer(s.router(logger))
	t.Cleanup(s.Close)
	return s
}

// NewHandler returns a fake server without starting a listener, for serving it from a
// long-running process. URL and Close are not usable on it.
func NewHandler(logger *logrus.Logger) (*Server, http.Handler) {
	s := newServer()
	return s, s.router(logger)
}

func newServer() *Server {
	return &Server{
		accounts:    make(map[string]*account),
		byUsername:  make(map[string]string),
		friendships: make(map[string]*friendship),
		failures:    make(map[string]int),
		holds:       make(map[string]chan struct{}),
		calls:       make(map[string]int),
		secret:      []byte(uuid.NewString()),
		tokenTTL:    time.Hour,
	}
}

func (s *Server) router(logger *logrus.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.LogMiddleware(logger))
	r.Use(s.intercept)

	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/refresh-token", s.authed(s.handleRefresh)).Methods(http.MethodPost)
	r.HandleFunc("/statuses", s.authed(s.handleStatuses)).Methods(http.MethodGet)
	r.HandleFunc("/update-status", s.authed(s.handleUpdateStatus)).Methods(http.MethodPost)
	r.HandleFunc("/update-icon-color", s.authed(s.handleUpdateIconColor)).Methods(http.MethodPost)
	r.HandleFunc("/add-user", s.authed(s.handleAddUser)).Methods(http.MethodPost)
	r.HandleFunc("/friends", s.authed(s.handleFriends)).Methods(http.MethodGet)
	r.HandleFunc("/add-friend", s.authed(s.handleAddFriend)).Methods(http.MethodPost)
	r.HandleFunc("/remove-friend", s.authed(s.handleRemoveFriend)).Methods(http.MethodPost)
	r.HandleFunc("/pending-friend-requests", s.authed(s.handlePending)).Methods(http.MethodGet)
	r.HandleFunc("/outgoing-friend-requests", s.authed(s.handleOutgoing)).Methods(http.MethodGet)
	r.HandleFunc("/respond-to-friend-request", s.authed(s.handleRespond)).Methods(http.MethodPost)
	r.HandleFunc("/update-location", s.authed(s.handleUpdateLocation)).Methods(http.MethodPost)
	r.HandleFunc("/clear-location", s.authed(s.handleClearLocation)).Methods(http.MethodPost)
	return r
}

func (s *Server) URL() string { return s.ts.URL }

// Close releases any held requests and stops the server.
func (s *Server) Close() {
	s.mu.Lock()
	for path, ch := range s.holds {
		close(ch)
		delete(s.holds, path)
	}
	s.mu.Unlock()
	s.ts.Close()
}

// Fail makes every following request to path answer with status until Recover is called.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	s.failures[path] = status
	s.mu.Unlock()
}

func (s *Server) Recover(path string) {
	s.mu.Lock()
	delete(s.failures, path)
	s.mu.Unlock()
}

// Hold parks requests to path until the returned release func is called. Release is
// idempotent.
func (s *Server) Hold(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[path] = ch
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.holds[path] == ch {
			delete(s.holds, path)
			close(ch)
		}
	}
}

// Calls reports how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// SetTokenTTL changes the lifetime of tokens issued from now on.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	s.tokenTTL = d
	s.mu.Unlock()
}

// intercept counts calls, applies holds and injected failures before routing.
func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		hold := s.holds[r.URL.Path]
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}

		s.mu.Lock()
		status, failing := s.failures[r.URL.Path]
		s.mu.Unlock()
		if failing {
			writeError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// createJWT signs a token for userID with the server's current TTL.
func (s *Server) createJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"jti": uuid.NewString(),
	}
	if s.tokenTTL > 0 {
		claims["exp"] = time.Now().Add(s.tokenTTL).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// authenticateJWT verifies a token and returns its subject.
func (s *Server) authenticateJWT(tokenString string) (string, bool) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return "", false
	}
	sub, err := t.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
