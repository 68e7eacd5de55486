package apiclient_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/bookstore-session/internal/apiclient"
	apperrors "github.com/jrsteele09/bookstore-session/internal/errors"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/items", r.URL.Path)
		require.Equal(t, "5", r.URL.Query().Get("limit"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in item
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.ID = "id-1"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiclient.Envelope[item]{Data: in})
	}))
	defer srv.Close()

	c := apiclient.New(srv.URL+"/", srv.Client())
	var out apiclient.Envelope[item]
	err := c.Do(context.Background(), http.MethodPost, "/api/v1/items", url.Values{"limit": {"5"}}, item{Name: "dune"}, &out)
	require.NoError(t, err)
	require.Equal(t, item{ID: "id-1", Name: "dune"}, out.Data)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    error
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"Invalid or expired token"}`, apperrors.ErrUnauthorized, "Invalid or expired token"},
		{"conflict", http.StatusConflict, `{"error":"User with this email already exists"}`, apperrors.ErrValidation, "User with this email already exists"},
		{"message field", http.StatusBadRequest, `{"message":"bad"}`, apperrors.ErrValidation, "bad"},
		{"not found", http.StatusNotFound, `not json`, apperrors.ErrNotFound, ""},
		{"server", http.StatusBadGateway, ``, apperrors.ErrServer, ""},
		{"forbidden", http.StatusForbidden, `{"error":"admin only"}`, apperrors.ErrForbidden, "admin only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := apiclient.New(srv.URL, srv.Client()).Do(context.Background(), http.MethodGet, "/x", nil, nil, nil)
			require.ErrorIs(t, err, tt.kind)

			var apiErr *apperrors.APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.status, apiErr.Status)
			require.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	err := apiclient.New(addr, nil).Do(context.Background(), http.MethodGet, "/x", nil, nil, nil)
	require.ErrorIs(t, err, apperrors.ErrNetwork)
}

func TestClient_CallerCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := apiclient.New(srv.URL, srv.Client()).Do(ctx, http.MethodGet, "/x", nil, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, apperrors.ErrNetwork)
}

func TestClient_NewRequestIsReplayable(t *testing.T) {
	c := apiclient.New("http://api.test", nil)
	req, err := c.NewRequest(context.Background(), http.MethodPost, "/a", nil, item{Name: "x"})
	require.NoError(t, err)
	require.NotNil(t, req.GetBody)

	body, err := req.GetBody()
	require.NoError(t, err)
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"","name":"x"}`, string(raw))
}
