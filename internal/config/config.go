package config

import (
	"fmt"
	"net/url"
	"time"
)

type Config interface {
	EnvConfig
	APIConfig
	StoreConfig
	OIDCConfig
}

type EnvConfig interface {
	GetEnv() string
	GetLogLevel() string
}

type APIConfig interface {
	GetAPIURL() string
	GetAuthURL() string
	GetRequestTimeout() time.Duration
	GetRefreshSkew() time.Duration
	GetGateway() string
}

type StoreConfig interface {
	GetTokenStore() string
	GetTokenDB() string
	GetRedisAddr() string
	GetRedisPrefix() string
}

type OIDCConfig interface {
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetOIDCScopes() []string
}

const (
	GatewayREST = "rest"
	GatewayOIDC = "oidc"

	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Settings is the file/env backed implementation of Config.
type Settings struct {
	Env            string        `yaml:"env"`
	LogLevel       string        `yaml:"log_level"`
	APIURL         string        `yaml:"api_url"`
	AuthURL        string        `yaml:"auth_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RefreshSkew    time.Duration `yaml:"refresh_skew"`
	Gateway        string        `yaml:"gateway"`
	TokenStore     string        `yaml:"token_store"`
	TokenDB        string        `yaml:"token_db"`
	RedisAddr      string        `yaml:"redis_addr"`
	RedisPrefix    string        `yaml:"redis_prefix"`
	OIDC           OIDCSettings  `yaml:"oidc"`
}

type OIDCSettings struct {
	Issuer       string   `yaml:"issuer"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
}

var _ Config = (*Settings)(nil)

// Default returns the settings used when neither a file nor the environment
// says otherwise. The auth host matches the users-service port.
func Default() *Settings {
	return &Settings{
		Env:            "DEV",
		LogLevel:       "warn",
		APIURL:         "http://localhost",
		AuthURL:        "http://localhost:8082",
		RequestTimeout: 10 * time.Second,
		RefreshSkew:    5 * time.Second,
		Gateway:        GatewayREST,
		TokenStore:     StoreSQLite,
		TokenDB:        defaultTokenDB(),
		RedisAddr:      "localhost:6379",
		RedisPrefix:    "bookstore:session",
		OIDC: OIDCSettings{
			Scopes: []string{"openid", "profile", "email", "offline_access"},
		},
	}
}

// Validate checks the settings are usable
func (s *Settings) Validate() error {
	if err := validURL("api_url", s.APIURL); err != nil {
		return err
	}
	if err := validURL("auth_url", s.AuthURL); err != nil {
		return err
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", s.RequestTimeout)
	}
	if s.RefreshSkew < 0 {
		return fmt.Errorf("refresh_skew must not be negative, got %s", s.RefreshSkew)
	}
	switch s.Gateway {
	case GatewayREST:
	case GatewayOIDC:
		if err := validURL("oidc.issuer", s.OIDC.Issuer); err != nil {
			return err
		}
		if s.OIDC.ClientID == "" {
			return fmt.Errorf("oidc.client_id is required for the oidc gateway")
		}
	default:
		return fmt.Errorf("unknown gateway %q: must be %q or %q", s.Gateway, GatewayREST, GatewayOIDC)
	}
	switch s.TokenStore {
	case StoreSQLite:
		if s.TokenDB == "" {
			return fmt.Errorf("token_db is required for the sqlite token store")
		}
	case StoreRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis token store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown token_store %q", s.TokenStore)
	}
	return nil
}

func validURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s %q is not an absolute URL", key, raw)
	}
	return nil
}

func (s *Settings) GetEnv() string                   { return s.Env }
func (s *Settings) GetLogLevel() string              { return s.LogLevel }
func (s *Settings) GetAPIURL() string                { return s.APIURL }
func (s *Settings) GetAuthURL() string               { return s.AuthURL }
func (s *Settings) GetRequestTimeout() time.Duration { return s.RequestTimeout }
func (s *Settings) GetRefreshSkew() time.Duration    { return s.RefreshSkew }
func (s *Settings) GetGateway() string               { return s.Gateway }
func (s *Settings) GetTokenStore() string            { return s.TokenStore }
func (s *Settings) GetTokenDB() string               { return s.TokenDB }
func (s *Settings) GetRedisAddr() string             { return s.RedisAddr }
func (s *Settings) GetRedisPrefix() string           { return s.RedisPrefix }
func (s *Settings) GetOIDCIssuer() string            { return s.OIDC.Issuer }
func (s *Settings) GetOIDCClientID() string          { return s.OIDC.ClientID }
func (s *Settings) GetOIDCClientSecret() string      { return s.OIDC.ClientSecret }
func (s *Settings) GetOIDCScopes() []string          { return s.OIDC.Scopes }
