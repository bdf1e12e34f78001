package server

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/campusfind/internal/item"
	"github.com/zombor/campusfind/internal/session"
	"github.com/zombor/campusfind/internal/submission"
)

const (
	// SessionCookie carries the session token for the browser UI
	SessionCookie = "campusfind_session"
	// SessionHeader carries the session token for API clients
	SessionHeader = "X-Session-Token"

	shutdownTimeout = 10 * time.Second
)

// Server handles HTTP requests for the lost-and-found board
type Server struct {
	items     *item.Service
	workflow  *submission.Workflow
	sessions  *session.Issuer
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds optional site-wide basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(items *item.Service, workflow *submission.Workflow, sessions *session.Issuer, basicAuth BasicAuth) *Server {
	return NewServerWithMux(items, workflow, sessions, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(items *item.Service, workflow *submission.Workflow, sessions *session.Issuer, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		items:     items,
		workflow:  workflow,
		sessions:  sessions,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth enforces the site-wide basic auth, if configured
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="CampusFind"`)
			writeError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// sessionHandler is a handler that needs a signed-in user
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// requireSession resolves the session token from the cookie or header
func (s *Server) requireSession(next sessionHandler) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(SessionHeader)
		if token == "" {
			if c, err := r.Cookie(SessionCookie); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			writeError(w, "Sign in required", http.StatusUnauthorized)
			return
		}

		sess, err := s.sessions.Validate(token)
		if err != nil {
			slog.Debug("Rejected session token", "error", err)
			writeError(w, "Session expired, please sign in again", http.StatusUnauthorized)
			return
		}
		next(w, r, sess)
	})
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /static/app.css", s.requireAuth(s.handleStaticCSS))
	s.mux.HandleFunc("GET /static/app.js", s.requireAuth(s.handleStaticJS))

	s.mux.HandleFunc("POST /api/session", s.requireAuth(s.handleLogin))
	s.mux.HandleFunc("GET /api/session", s.requireSession(s.handleGetSession))
	s.mux.HandleFunc("DELETE /api/session", s.requireSession(s.handleLogout))

	s.mux.HandleFunc("GET /api/items/{id}/original", s.requireSession(s.handleGetOriginal))
	s.mux.HandleFunc("POST /api/items/{id}/claim", s.requireSession(s.handleClaim))
	s.mux.HandleFunc("POST /api/items/{id}/confirm", s.requireSession(s.handleConfirmClaim))
	s.mux.HandleFunc("GET /api/items/{id}", s.requireSession(s.handleGetItem))
	s.mux.HandleFunc("GET /api/items", s.requireSession(s.handleListItems))

	s.mux.HandleFunc("GET /api/me/found", s.requireSession(s.handleFound))
	s.mux.HandleFunc("GET /api/me/claimed", s.requireSession(s.handleClaimed))

	s.mux.HandleFunc("GET /api/draft", s.requireSession(s.handleGetDraft))
	s.mux.HandleFunc("PATCH /api/draft", s.requireSession(s.handleEditDraft))
	s.mux.HandleFunc("POST /api/draft/image", s.requireSession(s.handleSelectImage))
	s.mux.HandleFunc("DELETE /api/draft/image", s.requireSession(s.handleClearDraft))
	s.mux.HandleFunc("POST /api/draft/publish", s.requireSession(s.handlePublish))

	// catch-all, registered last
	s.mux.HandleFunc("GET /index.html", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("GET /{$}", s.requireAuth(s.handleIndex))
}

// Handler returns the mux wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}
