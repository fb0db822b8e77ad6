package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/KshitijGomber/arrow3-sub001/internal/domain"
	"github.com/KshitijGomber/arrow3-sub001/internal/tokenstore"
	apperrors "github.com/KshitijGomber/arrow3-sub001/pkg/errors"
)

// oauthScopes are the profile claims requested from the provider.
var oauthScopes = []string{"openid", "email", "profile"}

// LoginWithGoogle prepares a Google sign-in. It returns the authorization
// URL the user must open in a browser; the backend completes the provider
// handshake and redirects to the loopback callback with the minted tokens.
//
// A missing client id is a configuration error detected before any network
// call, and the session state does not change. currentPath, when set and not
// itself an auth path, is saved so the flow can return the user there after
// sign-in.
func (m *Manager) LoginWithGoogle(ctx context.Context, currentPath string) (string, error) {
	if m.cfg.GoogleClientID == "" {
		return "", apperrors.Configuration("google sign-in is not configured: set ARROW3_GOOGLE_CLIENT_ID")
	}

	if currentPath != "" && !strings.HasPrefix(currentPath, "/auth") {
		if err := m.store.Set(ctx, tokenstore.KeyRedirectAfterLogin, currentPath); err != nil {
			m.logger.Warn("save post-login redirect", slog.String("error", err.Error()))
		}
	}

	conf := oauth2.Config{
		ClientID:    m.cfg.GoogleClientID,
		RedirectURL: fmt.Sprintf("http://127.0.0.1:%d/auth/google/callback", m.cfg.OAuthCallbackPort),
		Scopes:      oauthScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL: m.cfg.AuthorizeBaseURL + "/auth/google",
		},
	}
	return conf.AuthCodeURL(uuid.NewString()), nil
}

// HandleOAuthCallback finishes the OAuth flow with the values delivered to
// the callback. All three parameters must be present or the callback is
// rejected as malformed. userPayload may be a pre-parsed *domain.User, a
// map, or a JSON string/bytes; all decode to the same user.
func (m *Manager) HandleOAuthCallback(ctx context.Context, accessToken, refreshToken string, userPayload any) AuthResult {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if accessToken == "" || refreshToken == "" || userPayload == nil {
		err := apperrors.InvalidInput("oauth callback is missing required parameters")
		m.setState(Errored(err.Message))
		return failure(err)
	}

	user, err := decodeUserPayload(userPayload)
	if err != nil {
		m.setState(Errored(apperrors.Normalize(err)))
		return failure(err)
	}

	pair := domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}
	if err := m.persistTokens(ctx, pair); err != nil {
		m.setState(Errored(apperrors.Normalize(err)))
		return failure(err)
	}

	redirect := m.consumeRedirect(ctx)
	m.setState(Authenticated(user))
	m.logger.Info("signed in with google", slog.String("user_id", user.ID))
	return AuthResult{Success: true, User: user, RedirectTo: redirect}
}

// consumeRedirect pops the saved post-login path, if any.
func (m *Manager) consumeRedirect(ctx context.Context) string {
	path, err := m.store.Get(ctx, tokenstore.KeyRedirectAfterLogin)
	if err != nil {
		return ""
	}
	if err := m.store.Delete(ctx, tokenstore.KeyRedirectAfterLogin); err != nil {
		m.logger.Warn("clear post-login redirect", slog.String("error", err.Error()))
	}
	return path
}

func decodeUserPayload(payload any) (*domain.User, error) {
	switch v := payload.(type) {
	case *domain.User:
		return v, nil
	case domain.User:
		return &v, nil
	case string:
		return unmarshalUser([]byte(v))
	case []byte:
		return unmarshalUser(v)
	default:
		// Pre-parsed generic structures (e.g. map[string]any) round-trip
		// through JSON into the typed user.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, apperrors.InvalidInput("oauth callback user payload is not decodable")
		}
		return unmarshalUser(raw)
	}
}

func unmarshalUser(raw []byte) (*domain.User, error) {
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, apperrors.InvalidInput("oauth callback user payload is malformed")
	}
	if user.ID == "" {
		return nil, apperrors.InvalidInput("oauth callback user payload has no id")
	}
	return &user, nil
}
