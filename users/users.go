package users

import (
	"encoding/json"
	"strings"
)

// RoleType is the closed set of roles the route guard understands.
type RoleType string

const (
	RoleCustomer RoleType = "customer" // Browses, purchases and keeps a wishlist
	RoleAdmin    RoleType = "admin"    // Manages catalog entries
)

// ParseRole maps a server-reported role name onto the closed set. Anything
// unrecognised is treated as a customer so it never grants admin access.
func ParseRole(name string) RoleType {
	switch RoleType(strings.ToLower(strings.TrimSpace(name))) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleCustomer
	}
}

// Profile is the server-reported identity of the signed-in user. It is
// read-only to the client and replaced wholesale on every user fetch.
type Profile struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"full_name"`
	Role        RoleType `json:"role"`
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

type roleRef struct {
	Name string `json:"name"`
}

// wireProfile accepts the shapes the users-service emits: a single role object,
// a list of roles, or a bare role name.
type wireProfile struct {
	ID       string          `json:"id"`
	Email    string          `json:"email"`
	FullName string          `json:"full_name"`
	Name     string          `json:"name"`
	Role     json.RawMessage `json:"role"`
	Roles    []roleRef       `json:"roles"`
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	var w wireProfile
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	p.ID = w.ID
	p.Email = w.Email
	p.DisplayName = w.FullName
	if p.DisplayName == "" {
		p.DisplayName = w.Name
	}
	p.Role = ParseRole(roleName(w))
	return nil
}

func roleName(w wireProfile) string {
	if len(w.Role) > 0 {
		var ref roleRef
		if err := json.Unmarshal(w.Role, &ref); err == nil && ref.Name != "" {
			return ref.Name
		}
		var name string
		if err := json.Unmarshal(w.Role, &name); err == nil {
			return name
		}
	}
	// Any admin membership wins over list order
	for _, r := range w.Roles {
		if ParseRole(r.Name) == RoleAdmin {
			return r.Name
		}
	}
	if len(w.Roles) > 0 {
		return w.Roles[0].Name
	}
	return ""
}
