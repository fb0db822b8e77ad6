package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/KshitijGomber/arrow3-sub001/internal/domain"
	apperrors "github.com/KshitijGomber/arrow3-sub001/pkg/errors"
)

// callbackShutdownTimeout bounds the drain after a callback is received.
const callbackShutdownTimeout = 3 * time.Second

// CallbackServer is the loopback HTTP server that receives the OAuth
// redirect. It serves exactly one callback and then shuts down.
type CallbackServer struct {
	manager *Manager
	port    int
	logger  *slog.Logger
}

// NewCallbackServer creates a callback server bound to 127.0.0.1:port.
func NewCallbackServer(m *Manager, port int, log *slog.Logger) *CallbackServer {
	return &CallbackServer{manager: m, port: port, logger: log}
}

// Listen serves until one OAuth callback arrives or ctx is canceled, and
// returns the outcome of handling it.
//
// The redirect must carry either the token/refresh/user triple or a known
// provider error code; any other shape is a malformed callback and fails
// closed without touching the session.
func (s *CallbackServer) Listen(ctx context.Context) (AuthResult, error) {
	results := make(chan AuthResult, 1)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/auth/google/callback", func(w http.ResponseWriter, req *http.Request) {
		res, ok := s.handleRedirect(req)
		if !ok {
			http.Error(w, "malformed oauth callback", http.StatusBadRequest)
			return
		}

		if res.Success {
			fmt.Fprintln(w, "Signed in. You can close this window and return to the terminal.")
		} else {
			fmt.Fprintf(w, "Sign-in failed: %s\n", res.Error)
		}
		results <- res
	})

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return AuthResult{}, apperrors.Wrap(err, "bind oauth callback port")
	}

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	s.logger.Info("waiting for oauth callback", slog.String("addr", ln.Addr().String()))

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), callbackShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("callback server shutdown", slog.String("error", err.Error()))
		}
	}()

	select {
	case res := <-results:
		return res, nil
	case err := <-serveErr:
		return AuthResult{}, apperrors.Wrap(err, "oauth callback server")
	case <-ctx.Done():
		return AuthResult{}, ctx.Err()
	}
}

// handleRedirect validates the redirect's query parameters. The second
// return is false for malformed callbacks, which are dropped without a
// session transition.
func (s *CallbackServer) handleRedirect(req *http.Request) (AuthResult, bool) {
	q := req.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		if !domain.IsKnownOAuthError(errCode) {
			s.logger.Warn("oauth callback with unknown error code", slog.String("code", errCode))
			return AuthResult{}, false
		}
		s.logger.Info("oauth sign-in declined by provider", slog.String("code", errCode))
		return AuthResult{Error: "google sign-in failed: " + errCode}, true
	}

	token := q.Get("token")
	refresh := q.Get("refresh")
	user := q.Get("user")
	if token == "" || refresh == "" || user == "" {
		s.logger.Warn("oauth callback missing parameters")
		return AuthResult{}, false
	}

	return s.manager.HandleOAuthCallback(req.Context(), token, refresh, user), true
}
