// Package fakeapi is an in-process stand-in for the bookstore API, serving
// the REST auth and catalog endpoints and an OAuth2/OIDC provider over the
// same accounts. It backs the integration tests and cmd/fakeapi.
package fakeapi

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/bookstore-session/catalog"
)

// Defaults
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultSecret     = "fakeapi-development-secret"
	refreshTokenBytes = 32
)

type Option func(*Server)

func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) { s.accessTTL = d }
}

func WithRefreshTTL(d time.Duration) Option {
	return func(s *Server) { s.refreshTTL = d }
}

func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

// WithEnv enables route and request logging when env is "DEV".
func WithEnv(env string) Option {
	return func(s *Server) { s.env = env }
}

type Server struct {
	env        string
	mux        *http.ServeMux
	routes     []string
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	revoked    RevokedTokenCache

	mu            sync.Mutex
	accounts      map[string]*account // by email
	refreshTokens map[string]*storedRefreshToken
	issued        map[string]time.Time // access token jti to expiry
	books         map[string]catalog.Book
	bookOrder     []string
	categories    []catalog.Category
	wishlists     map[string][]catalog.WishlistItem // by user id

	refreshFailStatus int
	refreshDelay      time.Duration
	refreshCalls      int
	logoutCalls       int
}

func New(opts ...Option) *Server {
	s := &Server{
		mux:           http.NewServeMux(),
		secret:        []byte(DefaultSecret),
		accessTTL:     DefaultAccessTTL,
		refreshTTL:    DefaultRefreshTTL,
		revoked:       NewInMemoryRevokedTokenCache(),
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]*storedRefreshToken),
		issued:        make(map[string]time.Time),
		books:         make(map[string]catalog.Book),
		wishlists:     make(map[string][]catalog.WishlistItem),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Info().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}

// issuerURL is the externally visible base URL of the server for r.
func issuerURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host
}

// ExpireAccessTokens makes every access token issued so far be rejected, as
// if they had all reached their exp.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jti, exp := range s.issued {
		_ = s.revoked.Add(jti, exp)
	}
}

// RevokeRefreshTokens drops every refresh token so the next refresh is
// rejected.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens = make(map[string]*storedRefreshToken)
}

// FailRefresh makes refresh requests answer with status. Zero restores normal
// behaviour.
func (s *Server) FailRefresh(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshFailStatus = status
}

// SetRefreshDelay holds each refresh request for d before answering.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// RefreshCalls counts refresh requests on both the REST and OAuth2 endpoints.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// LogoutCalls counts accepted logout requests.
func (s *Server) LogoutCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutCalls
}
