package fakeapi

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/jrsteele09/bookstore-session/token"
	"github.com/jrsteele09/bookstore-session/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var (
	errInvalidCredentials = errors.New("Invalid email or password")
	errInvalidToken       = errors.New("Invalid or expired token")
	errUserExists         = errors.New("User with this email already exists")
)

type account struct {
	profile      users.Profile
	passwordHash []byte
}

// storedRefreshToken is the server side record of an opaque refresh token.
type storedRefreshToken struct {
	Token  string
	UserID string
	Iat    time.Time
}

type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwtlib.RegisteredClaims
}

// SeedUser creates an account. It fails if the email is already registered.
func (s *Server) SeedUser(email, password, fullName string, role users.RoleType) (users.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createAccountLocked(email, password, fullName, role)
}

func (s *Server) createAccountLocked(email, password, fullName string, role users.RoleType) (users.Profile, error) {
	if _, exists := s.accounts[email]; exists {
		return users.Profile{}, errUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return users.Profile{}, errors.Wrap(err, "hash password")
	}
	profile := users.Profile{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: fullName,
		Role:        role,
	}
	s.accounts[email] = &account{profile: profile, passwordHash: hash}
	return profile, nil
}

func (s *Server) authenticateLocked(email, password string) (*account, error) {
	acct, ok := s.accounts[email]
	if !ok {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	return acct, nil
}

func (s *Server) accountByIDLocked(id string) *account {
	for _, acct := range s.accounts {
		if acct.profile.ID == id {
			return acct
		}
	}
	return nil
}

// issuePairLocked creates a signed access token and a new refresh token for
// profile.
func (s *Server) issuePairLocked(profile users.Profile) (token.Pair, error) {
	s.revoked.Cleanup()
	now := NowTimeFunc()
	for jti, exp := range s.issued {
		if now.After(exp) {
			delete(s.issued, jti)
		}
	}

	exp := now.Add(s.accessTTL)
	jti := uuid.NewString()
	claims := accessClaims{
		Email: profile.Email,
		Role:  string(profile.Role),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   profile.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
			ID:        jti,
		},
	}
	access, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return token.Pair{}, errors.Wrap(err, "failed to sign access token")
	}
	s.issued[jti] = exp

	refreshToken, err := s.createRefreshTokenLocked(profile.ID)
	if err != nil {
		return token.Pair{}, err
	}
	return token.Pair{AccessToken: access, RefreshToken: refreshToken}, nil
}

func (s *Server) createRefreshTokenLocked(userID string) (string, error) {
	tokenBytes := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	tokenStr := hex.EncodeToString(tokenBytes)
	s.refreshTokens[tokenStr] = &storedRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    NowTimeFunc(),
	}
	return tokenStr, nil
}

// rotateLocked consumes refreshToken and issues a new pair. Each refresh
// token is accepted once.
func (s *Server) rotateLocked(refreshToken string) (token.Pair, error) {
	stored, ok := s.refreshTokens[refreshToken]
	if !ok {
		return token.Pair{}, errInvalidToken
	}
	delete(s.refreshTokens, refreshToken)
	if NowTimeFunc().Sub(stored.Iat) > s.refreshTTL {
		return token.Pair{}, errInvalidToken
	}
	acct := s.accountByIDLocked(stored.UserID)
	if acct == nil {
		return token.Pair{}, errInvalidToken
	}
	return s.issuePairLocked(acct.profile)
}

// revokeUserLocked ends every session of userID.
func (s *Server) revokeUserLocked(userID, jti string) {
	for tok, stored := range s.refreshTokens {
		if stored.UserID == userID {
			delete(s.refreshTokens, tok)
		}
	}
	if exp, ok := s.issued[jti]; ok {
		_ = s.revoked.Add(jti, exp)
	}
}

// verify checks an access token's signature, expiry and revocation.
func (s *Server) verify(raw string) (*accessClaims, error) {
	claims := &accessClaims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(NowTimeFunc),
	)
	if err != nil {
		return nil, errInvalidToken
	}
	if s.revoked.IsRevoked(claims.ID) {
		return nil, errInvalidToken
	}
	return claims, nil
}
