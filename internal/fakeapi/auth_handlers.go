package fakeapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/bookstore-session/token"
	"github.com/jrsteele09/bookstore-session/users"
)

type roleBody struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// userBody is the users-service user shape, with the role as an object.
type userBody struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	RoleID   string   `json:"role_id"`
	Role     roleBody `json:"role"`
}

func toUserBody(p users.Profile) userBody {
	role := roleBody{ID: "role-" + string(p.Role), Name: string(p.Role), Permissions: []string{"books:read", "wishlist:write"}}
	if p.Role == users.RoleAdmin {
		role.Permissions = append(role.Permissions, "books:write")
	}
	return userBody{ID: p.ID, Email: p.Email, FullName: p.DisplayName, RoleID: role.ID, Role: role}
}

type authBody struct {
	User         userBody `json:"user"`
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
}

func newAuthBody(p users.Profile, pair token.Pair) authBody {
	return authBody{User: toUserBody(p), Token: pair.AccessToken, RefreshToken: pair.RefreshToken}
}

// Login handles POST /api/v1/auth/login
func (s *Server) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		acct, err := s.authenticateLocked(req.Email, req.Password)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		pair, err := s.issuePairLocked(acct.profile)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to login")
			return
		}
		writeJSON(w, http.StatusOK, newAuthBody(acct.profile, pair))
	}
}

// Register handles POST /api/v1/auth/register
func (s *Server) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			FullName string `json:"full_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" || req.FullName == "" {
			writeError(w, http.StatusBadRequest, "All fields are required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		profile, err := s.createAccountLocked(req.Email, req.Password, req.FullName, users.RoleCustomer)
		if err == errUserExists {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to register user")
			return
		}
		pair, err := s.issuePairLocked(profile)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to register user")
			return
		}
		writeJSON(w, http.StatusCreated, newAuthBody(profile, pair))
	}
}

// refreshGate applies the refresh knobs. It reports false when the request
// has been answered with the configured failure.
func (s *Server) refreshGate(r *http.Request) (status int, ok bool) {
	s.mu.Lock()
	s.refreshCalls++
	delay, status := s.refreshDelay, s.refreshFailStatus
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
		}
	}
	return status, status == 0
}

// Refresh handles POST /api/v1/auth/refresh
func (s *Server) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status, ok := s.refreshGate(r); !ok {
			writeError(w, status, http.StatusText(status))
			return
		}

		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeError(w, http.StatusUnauthorized, "No token provided")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		pair, err := s.rotateLocked(req.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, errInvalidToken.Error())
			return
		}
		writeJSON(w, http.StatusOK, pair)
	}
}

// Logout handles POST /api/v1/auth/logout
func (s *Server) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.logoutCalls++
		s.revokeUserLocked(claims.Subject, claims.ID)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
	}
}

// Me handles GET /api/v1/users/me
func (s *Server) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r)

		s.mu.Lock()
		acct := s.accountByIDLocked(claims.Subject)
		s.mu.Unlock()
		if acct == nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": toUserBody(acct.profile)})
	}
}
