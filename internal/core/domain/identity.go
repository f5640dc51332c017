// Package domain defines the core domain models for glovectl.
package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

// Role labels issued by the service.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// RoleSet is an unordered set of role labels. The wire form is a JSON array;
// order carries no meaning and duplicates collapse.
type RoleSet map[string]struct{}

// NewRoleSet creates a RoleSet from labels.
func NewRoleSet(labels ...string) RoleSet {
	rs := make(RoleSet, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		rs[l] = struct{}{}
	}
	return rs
}

// Has reports whether label is in the set. A nil set holds nothing.
func (rs RoleSet) Has(label string) bool {
	_, ok := rs[label]
	return ok
}

// HasAny reports whether at least one of labels is in the set.
func (rs RoleSet) HasAny(labels ...string) bool {
	for _, l := range labels {
		if rs.Has(l) {
			return true
		}
	}
	return false
}

// Equal reports whether both sets hold exactly the same labels.
func (rs RoleSet) Equal(other RoleSet) bool {
	if len(rs) != len(other) {
		return false
	}
	for l := range rs {
		if !other.Has(l) {
			return false
		}
	}
	return true
}

// Sorted returns the labels in lexical order, for display.
func (rs RoleSet) Sorted() []string {
	out := make([]string, 0, len(rs))
	for l := range rs {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// String joins the sorted labels with commas.
func (rs RoleSet) String() string {
	return strings.Join(rs.Sorted(), ",")
}

// Clone returns an independent copy of the set.
func (rs RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(rs))
	for l := range rs {
		out[l] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a sorted JSON array.
func (rs RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.Sorted())
}

// UnmarshalJSON decodes a JSON array (or null) into the set.
func (rs *RoleSet) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return err
	}
	*rs = NewRoleSet(labels...)
	return nil
}

// MarshalYAML encodes the set as a sorted sequence.
func (rs RoleSet) MarshalYAML() (any, error) {
	return rs.Sorted(), nil
}

// Identity is the signed-in user's profile as returned by the service.
type Identity struct {
	ID          int64   `json:"id" yaml:"id"`
	Username    string  `json:"username" yaml:"username"`
	Email       string  `json:"email,omitempty" yaml:"email,omitempty"`
	Phone       string  `json:"phone,omitempty" yaml:"phone,omitempty"`
	RealName    string  `json:"realName,omitempty" yaml:"real_name,omitempty"`
	AvatarURL   string  `json:"avatarUrl,omitempty" yaml:"avatar_url,omitempty"`
	Status      string  `json:"status,omitempty" yaml:"status,omitempty"`
	Roles       RoleSet `json:"roles" yaml:"roles"`
	CreatedAt   string  `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
	LastLoginAt string  `json:"lastLoginAt,omitempty" yaml:"last_login_at,omitempty"`
}

// IsAdmin reports whether the identity holds the administrator role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Roles.Has(RoleAdmin)
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.Roles = i.Roles.Clone()
	return &c
}

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /v1/auth/register.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Phone           string `json:"phone,omitempty"`
	RealName        string `json:"realName,omitempty"`
}

// PasswordChangeRequest is the body of POST /v1/users/{id}/change-password.
type PasswordChangeRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// AuthResponse is the payload of login, register and refresh.
type AuthResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	UserInfo     *Identity `json:"userInfo"`
}

// Credential extracts the credential part of the response.
func (r *AuthResponse) Credential() Credential {
	return Credential{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
	}
}
