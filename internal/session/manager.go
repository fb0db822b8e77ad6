package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/KshitijGomber/arrow3-sub001/internal/domain"
	"github.com/KshitijGomber/arrow3-sub001/internal/tokenstore"
	"github.com/KshitijGomber/arrow3-sub001/internal/transport"
	apperrors "github.com/KshitijGomber/arrow3-sub001/pkg/errors"
	"github.com/KshitijGomber/arrow3-sub001/pkg/validator"
)

// ErrNoRefreshToken is returned by Refresh when no refresh token is stored.
var ErrNoRefreshToken = errors.New("no refresh token available")

// AuthResult is the outcome of a session operation. Expected failures are
// reported in Error rather than as a Go error, so callers render one surface
// for both outcomes.
type AuthResult struct {
	Success    bool
	User       *domain.User
	Error      string
	RedirectTo string
}

func failure(err error) AuthResult {
	return AuthResult{Error: apperrors.Normalize(err)}
}

// Credentials is the login form.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Registration is the signup form.
type Registration struct {
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

// authResponse is the payload of successful auth endpoints.
type authResponse struct {
	domain.TokenPair
	User *domain.User `json:"user"`
}

// Config holds the session manager settings.
type Config struct {
	// GoogleClientID enables Google sign-in. Empty means not configured.
	GoogleClientID string

	// OAuthCallbackPort is the loopback port the OAuth callback server binds.
	OAuthCallbackPort int

	// AuthorizeBaseURL is the API base the Google authorize redirect targets.
	AuthorizeBaseURL string

	// RefreshWindow triggers a proactive refresh when the access token expires
	// within it. Zero disables proactive refresh.
	RefreshWindow time.Duration
}

// Manager drives the session state machine. Session-mutating operations are
// serialized through opMu; concurrent Refresh calls are coalesced so the
// backend sees at most one refresh in flight.
type Manager struct {
	api    *transport.Client
	store  tokenstore.Store
	cfg    Config
	logger *slog.Logger

	opMu sync.Mutex

	stateMu sync.RWMutex
	state   State
	subs    []func(State)

	refresh    singleflight.Group
	refreshing atomic.Bool
}

// New creates a Manager in the pre-bootstrap state: anonymous, loading.
func New(api *transport.Client, store tokenstore.Store, cfg Config, log *slog.Logger) *Manager {
	return &Manager{
		api:    api,
		store:  store,
		cfg:    cfg,
		logger: log,
		state:  starting(),
	}
}

// State returns the current session snapshot.
func (m *Manager) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// Subscribe registers fn to receive every state change. The current state is
// delivered immediately so subscribers never miss the initial value.
func (m *Manager) Subscribe(fn func(State)) {
	m.stateMu.Lock()
	m.subs = append(m.subs, fn)
	current := m.state
	m.stateMu.Unlock()
	fn(current)
}

func (m *Manager) setState(s State) {
	m.stateMu.Lock()
	m.state = s
	subs := make([]func(State), len(m.subs))
	copy(subs, m.subs)
	m.stateMu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// Token returns the current access token for outgoing requests, refreshing
// it first when it is about to expire. An empty string means anonymous.
func (m *Manager) Token(ctx context.Context) string {
	token, err := m.store.Get(ctx, tokenstore.KeyAccessToken)
	if err != nil {
		return ""
	}

	// Skip the proactive check while a refresh is already running; the
	// refresh request itself must not recurse into another refresh.
	if m.cfg.RefreshWindow > 0 && !m.refreshing.Load() && expiresWithin(token, m.cfg.RefreshWindow) {
		if fresh, err := m.Refresh(ctx); err == nil {
			return fresh
		}
		return ""
	}
	return token
}

// expiresWithin reports whether the JWT's exp claim falls inside window.
// The token is decoded without signature verification; the backend remains
// the authority, this only schedules the refresh early.
func expiresWithin(token string, window time.Duration) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < window
}

// Login authenticates with email and password. Validation failures and
// server rejections both come back as a non-Success result.
func (m *Manager) Login(ctx context.Context, creds Credentials) AuthResult {
	if err := validator.Validate(creds); err != nil {
		return failure(err)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.setState(Authenticating())

	var resp authResponse
	if err := m.api.Post(ctx, "/auth/login", creds, &resp); err != nil {
		m.logger.Warn("login failed", slog.String("email", creds.Email), slog.String("error", err.Error()))
		m.setState(Errored(apperrors.Normalize(err)))
		return failure(err)
	}

	return m.completeAuth(ctx, resp)
}

// Register creates an account and signs the new user in.
func (m *Manager) Register(ctx context.Context, reg Registration) AuthResult {
	if err := validator.Validate(reg); err != nil {
		return failure(err)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.setState(Authenticating())

	var resp authResponse
	if err := m.api.Post(ctx, "/auth/register", reg, &resp); err != nil {
		m.logger.Warn("registration failed", slog.String("email", reg.Email), slog.String("error", err.Error()))
		m.setState(Errored(apperrors.Normalize(err)))
		return failure(err)
	}

	return m.completeAuth(ctx, resp)
}

// completeAuth persists the token pair and transitions to authenticated.
// Callers hold opMu.
func (m *Manager) completeAuth(ctx context.Context, resp authResponse) AuthResult {
	if err := m.persistTokens(ctx, resp.TokenPair); err != nil {
		m.setState(Errored(apperrors.Normalize(err)))
		return failure(err)
	}

	m.setState(Authenticated(resp.User))
	m.logger.Info("signed in", slog.String("user_id", resp.User.ID))
	return AuthResult{Success: true, User: resp.User}
}

func (m *Manager) persistTokens(ctx context.Context, pair domain.TokenPair) error {
	if err := m.store.Set(ctx, tokenstore.KeyAccessToken, pair.AccessToken); err != nil {
		return apperrors.Wrap(err, "persist access token")
	}
	if err := m.store.Set(ctx, tokenstore.KeyRefreshToken, pair.RefreshToken); err != nil {
		return apperrors.Wrap(err, "persist refresh token")
	}
	return nil
}

func (m *Manager) clearTokens(ctx context.Context) {
	if err := m.store.Delete(ctx, tokenstore.KeyAccessToken); err != nil {
		m.logger.Warn("clear access token", slog.String("error", err.Error()))
	}
	if err := m.store.Delete(ctx, tokenstore.KeyRefreshToken); err != nil {
		m.logger.Warn("clear refresh token", slog.String("error", err.Error()))
	}
}

// Refresh exchanges the stored refresh token for a new pair and returns the
// new access token. Concurrent calls are coalesced into one request. On any
// failure both tokens are cleared and the session drops to anonymous; this
// is the only path that signs a user out without an explicit logout.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	v, err, _ := m.refresh.Do("refresh", func() (any, error) {
		m.refreshing.Store(true)
		defer m.refreshing.Store(false)
		return m.doRefresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) doRefresh(ctx context.Context) (string, error) {
	refreshToken, err := m.store.Get(ctx, tokenstore.KeyRefreshToken)
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			return "", ErrNoRefreshToken
		}
		return "", apperrors.Wrap(err, "read refresh token")
	}

	previous := m.State()
	m.setState(Refreshing(previous.User()))

	var pair domain.TokenPair
	body := map[string]string{"refreshToken": refreshToken}
	if err := m.api.Post(ctx, "/auth/refresh", body, &pair); err != nil {
		m.logger.Warn("token refresh failed, signing out", slog.String("error", err.Error()))
		m.clearTokens(ctx)
		m.setState(Anonymous())
		return "", err
	}

	if err := m.persistTokens(ctx, pair); err != nil {
		m.clearTokens(ctx)
		m.setState(Anonymous())
		return "", err
	}

	if previous.User() != nil {
		m.setState(Authenticated(previous.User()))
	} else {
		m.setState(previous)
	}
	return pair.AccessToken, nil
}

// Logout revokes the session server-side when it can and always clears the
// local session.
func (m *Manager) Logout(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.api.Post(ctx, "/auth/logout", nil, nil); err != nil {
		// Best effort: the server may be unreachable, the local session
		// still ends.
		m.logger.Debug("server-side logout failed", slog.String("error", err.Error()))
	}

	m.clearTokens(ctx)
	m.setState(Anonymous())
	m.logger.Info("signed out")
}

// Bootstrap hydrates the session from persisted credentials. It runs once at
// startup: no stored token means anonymous without any network call; a
// stored token is verified, with exactly one refresh attempt if verification
// reports it expired. The loading flag is cleared in every outcome.
func (m *Manager) Bootstrap(ctx context.Context) State {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if _, err := m.store.Get(ctx, tokenstore.KeyAccessToken); err != nil {
		m.setState(Anonymous())
		return m.State()
	}

	user, err := m.verify(ctx)
	if err == nil {
		m.setState(Authenticated(user))
		return m.State()
	}

	if !errors.Is(err, apperrors.ErrUnauthorized) {
		// Backend unreachable or broken: keep the stored tokens for the next
		// start but report anonymous now.
		m.logger.Warn("session verification failed", slog.String("error", err.Error()))
		m.setState(Anonymous())
		return m.State()
	}

	if _, err := m.Refresh(ctx); err != nil {
		// Refresh already cleared tokens and dropped to anonymous.
		m.setState(Anonymous())
		return m.State()
	}

	user, err = m.verify(ctx)
	if err != nil {
		m.logger.Warn("verification failed after refresh", slog.String("error", err.Error()))
		m.clearTokens(ctx)
		m.setState(Anonymous())
		return m.State()
	}

	m.setState(Authenticated(user))
	return m.State()
}

func (m *Manager) verify(ctx context.Context) (*domain.User, error) {
	var resp struct {
		User *domain.User `json:"user"`
	}
	if err := m.api.Get(ctx, "/auth/verify", &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, apperrors.FromStatus(401, "INVALID_SESSION", "session could not be verified")
	}
	return resp.User, nil
}

// UpdateUser applies a server-confirmed profile patch to the session user.
// A no-op unless authenticated.
func (m *Manager) UpdateUser(patch domain.UserPatch) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	current := m.State()
	if !current.IsAuthenticated() {
		return
	}
	merged := current.User().Merge(patch)
	m.setState(current.withUser(&merged))
}

// ForgotPassword requests a password reset email. Stateless: the session is
// untouched regardless of outcome.
func (m *Manager) ForgotPassword(ctx context.Context, email string) AuthResult {
	form := struct {
		Email string `json:"email" validate:"required,email"`
	}{Email: email}
	if err := validator.Validate(form); err != nil {
		return failure(err)
	}

	if err := m.api.Post(ctx, "/auth/forgot-password", form, nil); err != nil {
		return failure(err)
	}
	return AuthResult{Success: true}
}

// ResetPassword completes a password reset with the emailed token.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) AuthResult {
	form := struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required,min=8"`
	}{Token: token, Password: newPassword}
	if err := validator.Validate(form); err != nil {
		return failure(err)
	}

	if err := m.api.Post(ctx, "/auth/reset-password", form, nil); err != nil {
		return failure(err)
	}
	return AuthResult{Success: true}
}

// LinkGoogle attaches a Google account to the signed-in user.
func (m *Manager) LinkGoogle(ctx context.Context, idToken string) AuthResult {
	body := map[string]string{"idToken": idToken}
	if err := m.api.Post(ctx, "/auth/google/link", body, nil); err != nil {
		return failure(err)
	}

	linked := true
	m.UpdateUser(domain.UserPatch{GoogleLinked: &linked})
	return AuthResult{Success: true, User: m.State().User()}
}

// UnlinkGoogle detaches the Google account from the signed-in user.
func (m *Manager) UnlinkGoogle(ctx context.Context) AuthResult {
	if err := m.api.Delete(ctx, "/auth/google/unlink", nil); err != nil {
		return failure(err)
	}

	linked := false
	m.UpdateUser(domain.UserPatch{GoogleLinked: &linked})
	return AuthResult{Success: true, User: m.State().User()}
}

// ClearError dismisses a failed operation, returning the session to
// anonymous. A no-op for other states.
func (m *Manager) ClearError() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.State().Status() == StatusError {
		m.setState(Anonymous())
	}
}
