package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KshitijGomber/arrow3-sub001/internal/domain"
	"github.com/KshitijGomber/arrow3-sub001/internal/tokenstore"
	"github.com/KshitijGomber/arrow3-sub001/internal/transport"
	apperrors "github.com/KshitijGomber/arrow3-sub001/pkg/errors"
	"github.com/KshitijGomber/arrow3-sub001/pkg/logger"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

const (
	testUserJSON = `{"id":"u-1","email":"ada@arrow3.dev","firstName":"Ada","lastName":"Lovelace","role":"customer"}`
)

func writeEnvelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func authSuccessBody(token, refresh string) string {
	return fmt.Sprintf(`{"success":true,"data":{"token":%q,"refreshToken":%q,"user":%s}}`,
		token, refresh, testUserJSON)
}

// testManager wires a Manager against the given server URL with a fresh
// in-memory token store.
func testManager(t *testing.T, baseURL string, cfg Config) (*Manager, *tokenstore.MemoryStore) {
	t.Helper()

	store := tokenstore.NewMemoryStore()
	log := logger.NewWithWriter("session", "error", discard{})

	var m *Manager
	api := transport.New(transport.Config{
		BaseURL:      baseURL,
		Timeout:      5 * time.Second,
		MaxRetries:   0,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	}, log, transport.WithTokenProvider(func(ctx context.Context) string {
		return m.Token(ctx)
	}))
	m = New(api, store, cfg, log)
	return m, store
}

func TestLogin_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "ada@arrow3.dev", creds.Email)
		writeEnvelope(w, http.StatusOK, authSuccessBody("at-1", "rt-1"))
	}))
	defer srv.Close()

	m, store := testManager(t, srv.URL, Config{})
	res := m.Login(context.Background(), Credentials{Email: "ada@arrow3.dev", Password: "correcthorse"})

	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.User)
	assert.Equal(t, "u-1", res.User.ID)

	state := m.State()
	assert.Equal(t, StatusAuthenticated, state.Status())
	assert.Equal(t, "u-1", state.User().ID)

	// Both credentials are persisted after a successful login.
	token, err := store.Get(context.Background(), tokenstore.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "at-1", token)
	refresh, err := store.Get(context.Background(), tokenstore.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", refresh)
}

func TestLogin_ServerRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, `{"success":false,"message":"invalid credentials"}`)
	}))
	defer srv.Close()

	m, store := testManager(t, srv.URL, Config{})
	res := m.Login(context.Background(), Credentials{Email: "ada@arrow3.dev", Password: "wrongpassword"})

	assert.False(t, res.Success)
	assert.Equal(t, "invalid credentials", res.Error)
	assert.Equal(t, StatusError, m.State().Status())
	assert.Equal(t, "invalid credentials", m.State().Message())

	_, err := store.Get(context.Background(), tokenstore.KeyAccessToken)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestLogin_ValidationFailsBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	m, _ := testManager(t, srv.URL, Config{})
	res := m.Login(context.Background(), Credentials{Email: "not-an-email", Password: "short"})

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, int32(0), calls.Load())
	// Client-side rejection does not transition the session.
	assert.Equal(t, StatusAnonymous, m.State().Status())
}

func TestRegister_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/register", r.URL.Path)
		writeEnvelope(w, http.StatusCreated, authSuccessBody("at-1", "rt-1"))
	}))
	defer srv.Close()

	m, _ := testManager(t, srv.URL, Config{})
	res := m.Register(context.Background(), Registration{
		FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@arrow3.dev", Password: "correcthorse",
	})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, StatusAuthenticated, m.State().Status())
}

func TestRefresh_NoTokenStored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("refresh must not hit the network without a stored token")
	}))
	defer srv.Close()

	m, _ := testManager(t, srv.URL, Config{})
	_, err := m.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestRefresh_SuccessRotatesPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "rt-old", body["refreshToken"])
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"token":"at-new","refreshToken":"rt-new"}}`)
	}))
	defer srv.Close()

	m, store := testManager(t, srv.URL, Config{})
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyAccessToken, "at-old"))
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyRefreshToken, "rt-old"))

	token, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-new", token)

	stored, err := store.Get(context.Background(), tokenstore.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "rt-new", stored)
}

func TestRefresh_FailureForcesLogout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, `{"success":false,"message":"refresh token expired"}`)
	}))
	defer srv.Close()

	m, store := testManager(t, srv.URL, Config{})
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyAccessToken, "at-old"))
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyRefreshToken, "rt-old"))

	_, err := m.Refresh(context.Background())
	require.Error(t, err)

	// The sole unilateral logout path: both keys cleared, anonymous.
	_, err = store.Get(context.Background(), tokenstore.KeyAccessToken)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
	_, err = store.Get(context.Background(), tokenstore.KeyRefreshToken)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
	assert.Equal(t, StatusAnonymous, m.State().Status())
}

func TestRefresh_ConcurrentCallsCoalesce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"token":"at-new","refreshToken":"rt-new"}}`)
	}))
	defer srv.Close()

	m, store := testManager(t, srv.URL, Config{})
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyRefreshToken, "rt-old"))

	const workers = 5
	var wg sync.WaitGroup
	tokens := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = m.Refresh(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "overlapping refreshes must share one request")
	for i := 0; i < workers; i++ {
		assert.Equal(t, "at-new", tokens[i])
	}
}

func TestLogout_ClearsSessionEvenWhenServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close() // unreachable on purpose

	m, store := testManager(t, srv.URL, Config{})
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyAccessToken, "at-1"))
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyRefreshToken, "rt-1"))

	m.Logout(context.Background())

	assert.Equal(t, StatusAnonymous, m.State().Status())
	_, err := store.Get(context.Background(), tokenstore.KeyAccessToken)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
	_, err = store.Get(context.Background(), tokenstore.KeyRefreshToken)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestBootstrap_NoStoredTokenSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	m, _ := testManager(t, srv.URL, Config{})
	require.True(t, m.State().Loading())

	state := m.Bootstrap(context.Background())

	assert.Equal(t, StatusAnonymous, state.Status())
	assert.False(t, state.Loading())
	assert.Equal(t, int32(0), calls.Load(), "anonymous start makes no network calls")
}

func TestBootstrap_ValidToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/verify", r.URL.Path)
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		writeEnvelope(w, http.StatusOK, fmt.Sprintf(`{"success":true,"data":{"user":%s}}`, testUserJSON))
	}))
	defer srv.Close()

	m, store := testManager(t, srv.URL, Config{})
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyAccessToken, "at-1"))

	state := m.Bootstrap(context.Background())
	assert.Equal(t, StatusAuthenticated, state.Status())
	assert.Equal(t, "u-1", state.User().ID)
	assert.False(t, state.Loading())
}

func TestBootstrap_ExpiredTokenRefreshesExactlyOnce(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/verify":
			if r.Header.Get("Authorization") == "Bearer at-new" {
				writeEnvelope(w, http.StatusOK, fmt.Sprintf(`{"success":true,"data":{"user":%s}}`, testUserJSON))
				return
			}
			writeEnvelope(w, http.StatusUnauthorized, `{"success":false,"message":"token expired"}`)
		case "/auth/refresh":
			refreshCalls.Add(1)
			writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"token":"at-new","refreshToken":"rt-new"}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	m, store := testManager(t, srv.URL, Config{})
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyAccessToken, "at-expired"))
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyRefreshToken, "rt-old"))

	state := m.Bootstrap(context.Background())

	assert.Equal(t, StatusAuthenticated, state.Status())
	assert.Equal(t, int32(1), refreshCalls.Load(), "expired token triggers exactly one refresh")
}

func TestBootstrap_ExpiredTokenAndFailedRefreshGoesAnonymous(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/verify":
			writeEnvelope(w, http.StatusUnauthorized, `{"success":false,"message":"token expired"}`)
		case "/auth/refresh":
			refreshCalls.Add(1)
			writeEnvelope(w, http.StatusUnauthorized, `{"success":false,"message":"refresh token expired"}`)
		}
	}))
	defer srv.Close()

	m, store := testManager(t, srv.URL, Config{})
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyAccessToken, "at-expired"))
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyRefreshToken, "rt-expired"))

	state := m.Bootstrap(context.Background())

	assert.Equal(t, StatusAnonymous, state.Status())
	assert.Equal(t, int32(1), refreshCalls.Load())
	_, err := store.Get(context.Background(), tokenstore.KeyAccessToken)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestToken_ProactiveRefreshNearExpiry(t *testing.T) {
	expiring, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-1",
		"exp": time.Now().Add(5 * time.Second).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"token":"at-new","refreshToken":"rt-new"}}`)
	}))
	defer srv.Close()

	m, store := testManager(t, srv.URL, Config{RefreshWindow: 30 * time.Second})
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyAccessToken, expiring))
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyRefreshToken, "rt-old"))

	token := m.Token(context.Background())
	assert.Equal(t, "at-new", token)
}

func TestToken_NoRefreshWhenFarFromExpiry(t *testing.T) {
	longLived, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	m, store := testManager(t, srv.URL, Config{RefreshWindow: 30 * time.Second})
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyAccessToken, longLived))

	assert.Equal(t, longLived, m.Token(context.Background()))
}

func TestUpdateUser_ShallowMerge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, authSuccessBody("at-1", "rt-1"))
	}))
	defer srv.Close()

	m, _ := testManager(t, srv.URL, Config{})
	res := m.Login(context.Background(), Credentials{Email: "ada@arrow3.dev", Password: "correcthorse"})
	require.True(t, res.Success)

	newName := "Augusta"
	m.UpdateUser(domain.UserPatch{FirstName: &newName})

	user := m.State().User()
	assert.Equal(t, "Augusta", user.FirstName)
	assert.Equal(t, "Lovelace", user.LastName)
	assert.Equal(t, "ada@arrow3.dev", user.Email)
}

func TestClearError_ReturnsToAnonymous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, `{"success":false,"message":"invalid credentials"}`)
	}))
	defer srv.Close()

	m, _ := testManager(t, srv.URL, Config{})
	m.Login(context.Background(), Credentials{Email: "ada@arrow3.dev", Password: "wrongpassword"})
	require.Equal(t, StatusError, m.State().Status())

	m.ClearError()
	assert.Equal(t, StatusAnonymous, m.State().Status())
}

func TestSubscribe_ReceivesTransitions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, authSuccessBody("at-1", "rt-1"))
	}))
	defer srv.Close()

	m, _ := testManager(t, srv.URL, Config{})

	var mu sync.Mutex
	var seen []Status
	m.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s.Status())
		mu.Unlock()
	})

	m.Login(context.Background(), Credentials{Email: "ada@arrow3.dev", Password: "correcthorse"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusAnonymous, StatusAuthenticating, StatusAuthenticated}, seen)
}

func TestLoginWithGoogle_MissingClientID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("configuration errors must be raised before any network call")
	}))
	defer srv.Close()

	m, _ := testManager(t, srv.URL, Config{})
	before := m.State()

	_, err := m.LoginWithGoogle(context.Background(), "/drones")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.Equal(t, before.Status(), m.State().Status())
}

func TestLoginWithGoogle_BuildsAuthorizeURLAndSavesRedirect(t *testing.T) {
	m, store := testManager(t, "http://api.invalid", Config{
		GoogleClientID:    "client-123",
		OAuthCallbackPort: 8765,
		AuthorizeBaseURL:  "http://api.invalid/api",
	})

	raw, err := m.LoginWithGoogle(context.Background(), "/drones/dx-40")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u.Path, "/auth/google"))
	assert.Equal(t, "client-123", u.Query().Get("client_id"))
	assert.Equal(t, "http://127.0.0.1:8765/auth/google/callback", u.Query().Get("redirect_uri"))
	assert.NotEmpty(t, u.Query().Get("state"))

	saved, err := store.Get(context.Background(), tokenstore.KeyRedirectAfterLogin)
	require.NoError(t, err)
	assert.Equal(t, "/drones/dx-40", saved)
}

func TestLoginWithGoogle_DoesNotSaveAuthPathRedirect(t *testing.T) {
	m, store := testManager(t, "http://api.invalid", Config{
		GoogleClientID:    "client-123",
		OAuthCallbackPort: 8765,
		AuthorizeBaseURL:  "http://api.invalid/api",
	})

	_, err := m.LoginWithGoogle(context.Background(), "/auth/login")
	require.NoError(t, err)

	_, err = store.Get(context.Background(), tokenstore.KeyRedirectAfterLogin)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestHandleOAuthCallback_MissingParameters(t *testing.T) {
	m, store := testManager(t, "http://api.invalid", Config{})

	res := m.HandleOAuthCallback(context.Background(), "at-1", "", testUserJSON)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)

	_, err := store.Get(context.Background(), tokenstore.KeyAccessToken)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestHandleOAuthCallback_PayloadFormsAreEquivalent(t *testing.T) {
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(testUserJSON), &parsed))

	payloads := map[string]any{
		"json string": testUserJSON,
		"raw bytes":   []byte(testUserJSON),
		"parsed map":  parsed,
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			m, store := testManager(t, "http://api.invalid", Config{})

			res := m.HandleOAuthCallback(context.Background(), "at-1", "rt-1", payload)
			require.True(t, res.Success, res.Error)
			assert.Equal(t, "u-1", res.User.ID)
			assert.Equal(t, "ada@arrow3.dev", res.User.Email)
			assert.Equal(t, StatusAuthenticated, m.State().Status())

			token, err := store.Get(context.Background(), tokenstore.KeyAccessToken)
			require.NoError(t, err)
			assert.Equal(t, "at-1", token)
		})
	}
}

func TestHandleOAuthCallback_ConsumesSavedRedirect(t *testing.T) {
	m, store := testManager(t, "http://api.invalid", Config{})
	require.NoError(t, store.Set(context.Background(), tokenstore.KeyRedirectAfterLogin, "/orders"))

	res := m.HandleOAuthCallback(context.Background(), "at-1", "rt-1", testUserJSON)
	require.True(t, res.Success)
	assert.Equal(t, "/orders", res.RedirectTo)

	_, err := store.Get(context.Background(), tokenstore.KeyRedirectAfterLogin)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestHandleOAuthCallback_MalformedUserPayload(t *testing.T) {
	m, _ := testManager(t, "http://api.invalid", Config{})

	res := m.HandleOAuthCallback(context.Background(), "at-1", "rt-1", "{not json")
	assert.False(t, res.Success)
	assert.Equal(t, StatusError, m.State().Status())
}

func callbackRequest(t *testing.T, s *CallbackServer, rawQuery string) (AuthResult, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+rawQuery, nil)
	return s.handleRedirect(req)
}

func TestCallback_ValidTriple(t *testing.T) {
	m, _ := testManager(t, "http://api.invalid", Config{})
	s := NewCallbackServer(m, 0, logger.NewWithWriter("session", "error", discard{}))

	q := url.Values{}
	q.Set("token", "at-1")
	q.Set("refresh", "rt-1")
	q.Set("user", testUserJSON)

	res, ok := callbackRequest(t, s, q.Encode())
	require.True(t, ok)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, StatusAuthenticated, m.State().Status())
}

func TestCallback_KnownProviderError(t *testing.T) {
	m, _ := testManager(t, "http://api.invalid", Config{})
	s := NewCallbackServer(m, 0, logger.NewWithWriter("session", "error", discard{}))

	res, ok := callbackRequest(t, s, "error="+domain.OAuthErrAccessDenied)
	require.True(t, ok)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, domain.OAuthErrAccessDenied)
	// A declined sign-in leaves the session untouched.
	assert.Equal(t, StatusAnonymous, m.State().Status())
}

func TestCallback_UnknownErrorCodeFailsClosed(t *testing.T) {
	m, _ := testManager(t, "http://api.invalid", Config{})
	s := NewCallbackServer(m, 0, logger.NewWithWriter("session", "error", discard{}))

	_, ok := callbackRequest(t, s, "error=weird_new_code")
	assert.False(t, ok)
	assert.Equal(t, StatusAnonymous, m.State().Status())
}

func TestCallback_PartialParametersFailClosed(t *testing.T) {
	m, _ := testManager(t, "http://api.invalid", Config{})
	s := NewCallbackServer(m, 0, logger.NewWithWriter("session", "error", discard{}))

	_, ok := callbackRequest(t, s, "token=at-1&user="+url.QueryEscape(testUserJSON))
	assert.False(t, ok)
	assert.Equal(t, StatusAnonymous, m.State().Status())
}

func TestCallbackServer_ListenServesOneCallback(t *testing.T) {
	m, _ := testManager(t, "http://api.invalid", Config{})
	s := NewCallbackServer(m, freePort(t), logger.NewWithWriter("session", "error", discard{}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type outcome struct {
		res AuthResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.Listen(ctx)
		done <- outcome{res, err}
	}()

	// Wait for the listener to come up, then deliver the redirect.
	q := url.Values{}
	q.Set("token", "at-1")
	q.Set("refresh", "rt-1")
	q.Set("user", testUserJSON)
	target := fmt.Sprintf("http://127.0.0.1:%d/auth/google/callback?%s", s.port, q.Encode())

	require.Eventually(t, func() bool {
		resp, err := http.Get(target)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	out := <-done
	require.NoError(t, out.err)
	require.True(t, out.res.Success, out.res.Error)
	assert.Equal(t, StatusAuthenticated, m.State().Status())
}

func TestCallbackServer_ListenCanceled(t *testing.T) {
	m, _ := testManager(t, "http://api.invalid", Config{})
	s := NewCallbackServer(m, freePort(t), logger.NewWithWriter("session", "error", discard{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Listen(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}
