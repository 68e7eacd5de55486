package fakeapi

import (
	"net/http"

	"github.com/jrsteele09/bookstore-session/token"
)

const (
	grantPassword     = "password"
	grantRefreshToken = "refresh_token"
)

// tokenResponse is the RFC 6749 token endpoint response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// WellKnownOpenIDConfig serves the OIDC discovery document
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		baseURL := issuerURL(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"issuer":              baseURL,
			"token_endpoint":      baseURL + RouteOAuth2Token,
			"userinfo_endpoint":   baseURL + RouteUserInfo,
			"jwks_uri":            baseURL + RouteWellKnownJWKS,
			"revocation_endpoint": baseURL + RouteOAuth2Revoke,

			"response_types_supported":              []string{"token"},
			"subject_types_supported":               []string{"public"},
			"id_token_signing_alg_values_supported": []string{"HS256"},
			"scopes_supported":                      []string{"openid", "profile", "email", "offline_access"},
			"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post", "none"},
			"grant_types_supported":                 []string{grantPassword, grantRefreshToken},
			"claims_supported":                      []string{"sub", "email", "name", "role"},
		})
	}
}

// JWKS is empty: access tokens are signed with a shared secret and are only
// verified by this server.
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"keys": []any{}})
	}
}

// Token handles the password and refresh_token grants.
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")

		var (
			pair token.Pair
			err  error
		)
		switch r.FormValue("grant_type") {
		case grantPassword:
			s.mu.Lock()
			var acct *account
			acct, err = s.authenticateLocked(r.FormValue("username"), r.FormValue("password"))
			if err == nil {
				pair, err = s.issuePairLocked(acct.profile)
			}
			s.mu.Unlock()
		case grantRefreshToken:
			if status, ok := s.refreshGate(r); !ok {
				writeOAuthError(w, "server_error", http.StatusText(status), status)
				return
			}
			s.mu.Lock()
			pair, err = s.rotateLocked(r.FormValue("refresh_token"))
			s.mu.Unlock()
		default:
			writeOAuthError(w, "unsupported_grant_type", "Only password and refresh_token grants are supported", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeOAuthError(w, "invalid_grant", err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken:  pair.AccessToken,
			TokenType:    "Bearer",
			ExpiresIn:    int(s.accessTTL.Seconds()),
			RefreshToken: pair.RefreshToken,
			Scope:        r.FormValue("scope"),
		})
	}
}

type userInfoBody struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    string `json:"role"`
}

// UserInfo returns the claims of the signed-in user
func (s *Server) UserInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r)

		s.mu.Lock()
		acct := s.accountByIDLocked(claims.Subject)
		s.mu.Unlock()
		if acct == nil {
			writeOAuthError(w, "invalid_token", "Unknown subject", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, userInfoBody{
			Subject: acct.profile.ID,
			Email:   acct.profile.Email,
			Name:    acct.profile.DisplayName,
			Role:    string(acct.profile.Role),
		})
	}
}

// Revoke handles RFC 7009 revocation of refresh tokens. Unknown tokens are
// not an error.
func (s *Server) Revoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}
		tok := r.FormValue("token")
		if tok == "" {
			writeOAuthError(w, "invalid_request", "token parameter is required", http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.logoutCalls++
		if stored, ok := s.refreshTokens[tok]; ok {
			s.revokeUserLocked(stored.UserID, "")
		}
		w.WriteHeader(http.StatusOK)
	}
}
