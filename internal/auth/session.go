// internal/auth/session.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jason-s-yu/clique/internal/cache"
	"github.com/jason-s-yu/clique/internal/models"
	"github.com/sirupsen/logrus"
)

// State is the session's login state.
type State int

const (
	LoggedOut State = iota
	LoggedIn
)

func (s State) String() string {
	if s == LoggedIn {
		return "logged_in"
	}
	return "logged_out"
}

// ErrTokenExpired is reported when a stored token's exp claim has already passed.
var ErrTokenExpired = errors.New("stored token has expired")

// Gateway is the subset of the API the session needs.
type Gateway interface {
	Login(ctx context.Context, username, password string) (*models.AuthResponse, error)
	Signup(ctx context.Context, username, password, firstName, lastName string) (*models.AuthResponse, error)
	RefreshToken(ctx context.Context, currentToken string) (*models.AuthResponse, error)
}

// Purger is implemented by every component that holds per-user data in memory. Logout
// calls Purge on each registered one.
type Purger interface {
	Purge()
}

// Manager owns the login state. The token is kept in the keystore behind a TokenCache,
// the profile in the local cache.
type Manager struct {
	gateway Gateway
	tokens  *TokenCache
	store   cache.Store
	logger  *logrus.Logger
	now     func() time.Time

	mu      sync.RWMutex
	state   State
	user    *models.User
	purgers []Purger

	refreshing atomic.Bool
}

func NewManager(gateway Gateway, tokens *TokenCache, store cache.Store, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		gateway: gateway,
		tokens:  tokens,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Register adds components whose in-memory state is cleared on logout.
func (m *Manager) Register(p ...Purger) {
	m.mu.Lock()
	m.purgers = append(m.purgers, p...)
	m.mu.Unlock()
}

// Token implements api.TokenSource.
func (m *Manager) Token(ctx context.Context) (string, error) {
	return m.tokens.Token(ctx)
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) IsLoggedIn() bool { return m.State() == LoggedIn }

// CurrentUser returns the logged in user's profile.
func (m *Manager) CurrentUser() (models.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return models.User{}, false
	}
	return *m.user, true
}

// Session joins the profile with the stored token.
func (m *Manager) Session(ctx context.Context) (models.Session, bool) {
	u, ok := m.CurrentUser()
	if !ok {
		return models.Session{}, false
	}
	token, err := m.tokens.Token(ctx)
	if err != nil || token == "" {
		return models.Session{}, false
	}
	return models.NewSession(token, u), true
}

// Restore loads a previous session from storage. A token without a profile, or a profile
// without a token, is not a session: everything is cleared.
func (m *Manager) Restore(ctx context.Context) error {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stored token: %w", err)
	}
	var u models.User
	profileErr := cache.GetJSON(ctx, m.store, cache.CurrentUserKey, &u)

	switch {
	case token == "" && errors.Is(profileErr, cache.ErrNotFound):
		m.setState(LoggedOut, nil)
		return nil
	case token != "" && profileErr == nil:
		m.setState(LoggedIn, &u)
		m.logger.WithField("user_id", u.ID).Debug("restored session")
		return nil
	default:
		m.logger.WithField("has_token", token != "").Warn("incomplete stored session, logging out")
		return m.Logout(ctx)
	}
}

// Login authenticates and persists the session.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	resp, err := m.gateway.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := m.saveCredentials(ctx, resp); err != nil {
		return err
	}
	m.setState(LoggedIn, &resp.User)
	m.logger.WithField("user_id", resp.User.ID).Info("logged in")
	return nil
}

// Signup creates an account and logs into it.
func (m *Manager) Signup(ctx context.Context, username, password, firstName, lastName string) error {
	resp, err := m.gateway.Signup(ctx, username, password, firstName, lastName)
	if err != nil {
		return err
	}
	if err := m.saveCredentials(ctx, resp); err != nil {
		return err
	}
	m.setState(LoggedIn, &resp.User)
	m.logger.WithField("user_id", resp.User.ID).Info("signed up")
	return nil
}

// RefreshIfNeeded renews the stored token, typically once at startup. Concurrent calls
// while a refresh is running return immediately. Any failure ends the session.
func (m *Manager) RefreshIfNeeded(ctx context.Context) {
	if !m.refreshing.CompareAndSwap(false, true) {
		return
	}
	defer m.refreshing.Store(false)

	token, err := m.tokens.Token(ctx)
	if err != nil {
		m.failRefresh(ctx, err)
		return
	}
	if token == "" {
		return
	}

	if claims, err := ClaimsOf(token); err == nil && claims.Expired(m.now()) {
		m.failRefresh(ctx, ErrTokenExpired)
		return
	}

	resp, err := m.gateway.RefreshToken(ctx, token)
	if err != nil {
		m.failRefresh(ctx, err)
		return
	}
	if err := m.saveCredentials(ctx, resp); err != nil {
		m.failRefresh(ctx, err)
		return
	}
	m.setState(LoggedIn, &resp.User)

	fields := logrus.Fields{"user_id": resp.User.ID}
	if claims, err := ClaimsOf(resp.Token); err == nil && !claims.ExpiresAt.IsZero() {
		fields["expires_at"] = claims.ExpiresAt
	}
	m.logger.WithFields(fields).Info("token refreshed")
}

func (m *Manager) failRefresh(ctx context.Context, cause error) {
	m.logger.WithError(cause).Warn("token refresh failed, logging out")
	if err := m.Logout(ctx); err != nil {
		m.logger.WithError(err).Error("logout after failed refresh was incomplete")
	}
}

// Logout removes the token, the profile and every per-user cache, then clears the
// in-memory state of every registered component. It keeps going past storage errors
// and returns them joined.
func (m *Manager) Logout(ctx context.Context) error {
	var errs []error
	if err := m.tokens.Delete(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete token: %w", err))
	}
	keys := append([]string{cache.CurrentUserKey}, cache.UserKeys...)
	if err := m.store.Delete(ctx, keys...); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear caches: %w", err))
	}

	m.mu.Lock()
	m.state = LoggedOut
	m.user = nil
	purgers := append([]Purger(nil), m.purgers...)
	m.mu.Unlock()

	for _, p := range purgers {
		p.Purge()
	}
	m.logger.Info("logged out")
	return errors.Join(errs...)
}

func (m *Manager) saveCredentials(ctx context.Context, resp *models.AuthResponse) error {
	if err := m.tokens.Set(ctx, resp.Token); err != nil {
		return err
	}
	if err := cache.SetJSON(ctx, m.store, cache.CurrentUserKey, resp.User); err != nil {
		return err
	}
	return nil
}

func (m *Manager) setState(s State, u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	if u == nil {
		m.user = nil
		return
	}
	cp := *u
	m.user = &cp
}
