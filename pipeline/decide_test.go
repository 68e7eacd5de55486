package pipeline

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		status        int
		attempted     bool
		authenticated bool
		want          action
	}{
		{http.StatusOK, false, true, passThrough},
		{http.StatusForbidden, false, true, passThrough},
		{http.StatusInternalServerError, false, true, passThrough},
		{http.StatusUnauthorized, false, true, refreshAndRetry},
		{http.StatusUnauthorized, true, true, passThrough},
		{http.StatusUnauthorized, false, false, passThrough},
		{http.StatusUnauthorized, true, false, passThrough},
	}
	for _, tt := range tests {
		got := decide(tt.status, tt.attempted, tt.authenticated)
		require.Equal(t, tt.want, got, "decide(%d, attempted=%v, authenticated=%v) = %s", tt.status, tt.attempted, tt.authenticated, got)
	}
}
