package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	envVar            = "BOOKSTORE_ENV"
	logLevelVar       = "BOOKSTORE_LOG_LEVEL"
	apiURLVar         = "BOOKSTORE_API_URL"
	authURLVar        = "BOOKSTORE_AUTH_URL"
	requestTimeoutVar = "BOOKSTORE_REQUEST_TIMEOUT"
	refreshSkewVar    = "BOOKSTORE_REFRESH_SKEW"
	gatewayVar        = "BOOKSTORE_GATEWAY"
	tokenStoreVar     = "BOOKSTORE_TOKEN_STORE"
	tokenDBVar        = "BOOKSTORE_TOKEN_DB"
	redisAddrVar      = "BOOKSTORE_REDIS_ADDR"
	redisPrefixVar    = "BOOKSTORE_REDIS_PREFIX"
	oidcIssuerVar     = "BOOKSTORE_OIDC_ISSUER"
	oidcClientIDVar   = "BOOKSTORE_OIDC_CLIENT_ID"
	oidcSecretVar     = "BOOKSTORE_OIDC_CLIENT_SECRET"
	oidcScopesVar     = "BOOKSTORE_OIDC_SCOPES"
)

// applyEnv overrides any settings that have an environment variable set.
func (s *Settings) applyEnv() {
	s.Env = GetEnv(envVar, s.Env)
	s.LogLevel = GetEnv(logLevelVar, s.LogLevel)
	s.APIURL = GetEnv(apiURLVar, s.APIURL)
	s.AuthURL = GetEnv(authURLVar, s.AuthURL)
	s.RequestTimeout = getDuration(requestTimeoutVar, s.RequestTimeout)
	s.RefreshSkew = getDuration(refreshSkewVar, s.RefreshSkew)
	s.Gateway = GetEnv(gatewayVar, s.Gateway)
	s.TokenStore = GetEnv(tokenStoreVar, s.TokenStore)
	s.TokenDB = GetEnv(tokenDBVar, s.TokenDB)
	s.RedisAddr = GetEnv(redisAddrVar, s.RedisAddr)
	s.RedisPrefix = GetEnv(redisPrefixVar, s.RedisPrefix)
	s.OIDC.Issuer = GetEnv(oidcIssuerVar, s.OIDC.Issuer)
	s.OIDC.ClientID = GetEnv(oidcClientIDVar, s.OIDC.ClientID)
	s.OIDC.ClientSecret = GetEnv(oidcSecretVar, s.OIDC.ClientSecret)
	if scopes := os.Getenv(oidcScopesVar); scopes != "" {
		s.OIDC.Scopes = strings.Fields(strings.ReplaceAll(scopes, ",", " "))
	}
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", value).Msg("ignoring unparsable duration")
		return defaultValue
	}
	return d
}

func defaultTokenDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "session.db")
	}
	return filepath.Join(home, ".config", "bookstore", "session.db")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
