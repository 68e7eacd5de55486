package users_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/bookstore-session/users"
	"github.com/stretchr/testify/require"
)

func TestProfile_UnmarshalRoleShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want users.RoleType
	}{
		{"role object", `{"id":"1","email":"a@x.com","full_name":"A","role":{"name":"admin"}}`, users.RoleAdmin},
		{"role string", `{"id":"1","email":"a@x.com","full_name":"A","role":"customer"}`, users.RoleCustomer},
		{"roles list with admin last", `{"id":"1","roles":[{"name":"customer"},{"name":"admin"}]}`, users.RoleAdmin},
		{"no role", `{"id":"1","email":"a@x.com"}`, users.RoleCustomer},
		{"unknown role", `{"id":"1","role":{"name":"super_admin"}}`, users.RoleCustomer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p users.Profile
			require.NoError(t, json.Unmarshal([]byte(tt.body), &p))
			require.Equal(t, tt.want, p.Role)
		})
	}
}

func TestProfile_DisplayNameFallback(t *testing.T) {
	var p users.Profile
	require.NoError(t, json.Unmarshal([]byte(`{"id":"7","email":"b@x.com","name":"Bea"}`), &p))
	require.Equal(t, "Bea", p.DisplayName)
	require.Equal(t, "7", p.ID)
}

func TestProfile_IsAdmin(t *testing.T) {
	var nilProfile *users.Profile
	require.False(t, nilProfile.IsAdmin())
	require.True(t, (&users.Profile{Role: users.RoleAdmin}).IsAdmin())
	require.False(t, (&users.Profile{Role: users.RoleCustomer}).IsAdmin())
}
