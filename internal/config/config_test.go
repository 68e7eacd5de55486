package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/bookstore-session/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: http://api.example.com
request_timeout: 3s
token_store: memory
`), 0o600))
	t.Setenv("BOOKSTORE_API_URL", "http://override.example.com")
	t.Setenv("BOOKSTORE_REFRESH_SKEW", "2s")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "http://override.example.com", cfg.GetAPIURL())
	require.Equal(t, "http://localhost:8082", cfg.GetAuthURL(), "keys missing from the file keep defaults")
	require.Equal(t, 3*time.Second, cfg.GetRequestTimeout())
	require.Equal(t, 2*time.Second, cfg.GetRefreshSkew())
	require.Equal(t, config.StoreMemory, cfg.GetTokenStore())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_BadDurationKeepsDefault(t *testing.T) {
	t.Setenv("BOOKSTORE_REQUEST_TIMEOUT", "soon")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.GetRequestTimeout())
}

func TestLoad_OIDCScopesFromEnv(t *testing.T) {
	t.Setenv("BOOKSTORE_GATEWAY", "oidc")
	t.Setenv("BOOKSTORE_OIDC_ISSUER", "http://issuer.example.com")
	t.Setenv("BOOKSTORE_OIDC_CLIENT_ID", "bookstore-cli")
	t.Setenv("BOOKSTORE_OIDC_SCOPES", "openid, email")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, []string{"openid", "email"}, cfg.GetOIDCScopes())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Settings)
		errMsg string
	}{
		{"relative api url", func(s *config.Settings) { s.APIURL = "/api" }, "api_url"},
		{"zero timeout", func(s *config.Settings) { s.RequestTimeout = 0 }, "request_timeout"},
		{"negative skew", func(s *config.Settings) { s.RefreshSkew = -time.Second }, "refresh_skew"},
		{"unknown gateway", func(s *config.Settings) { s.Gateway = "soap" }, "unknown gateway"},
		{"oidc without client", func(s *config.Settings) {
			s.Gateway = config.GatewayOIDC
			s.OIDC.Issuer = "http://issuer.example.com"
		}, "client_id"},
		{"unknown store", func(s *config.Settings) { s.TokenStore = "cookie" }, "unknown token_store"},
		{"sqlite without path", func(s *config.Settings) { s.TokenDB = "" }, "token_db"},
		{"redis without addr", func(s *config.Settings) {
			s.TokenStore = config.StoreRedis
			s.RedisAddr = ""
		}, "redis_addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.Default()
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
