package api

import (
	"context"
	"net/url"

	"github.com/dataglove/glovectl/internal/client/pipeline"
	"github.com/dataglove/glovectl/internal/core/domain"
)

// Auth wraps /v1/auth.
type Auth struct {
	r Requester
}

// Login exchanges username and password for a credential.
func (a *Auth) Login(ctx context.Context, req domain.LoginRequest, opts ...pipeline.RequestOption) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := a.r.Post(ctx, "/v1/auth/login", req, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and signs it in.
func (a *Auth) Register(ctx context.Context, req domain.RegisterRequest, opts ...pipeline.RequestOption) (*domain.AuthResponse, error) {
	var out domain.AuthResponse
	if err := a.r.Post(ctx, "/v1/auth/register", req, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a refresh token for a new credential.
func (a *Auth) Refresh(ctx context.Context, refreshToken string, opts ...pipeline.RequestOption) (*domain.AuthResponse, error) {
	opts = append(opts, pipeline.WithQuery(url.Values{"refreshToken": {refreshToken}}))
	var out domain.AuthResponse
	if err := a.r.Post(ctx, "/v1/auth/refresh", nil, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the identity bound to the current credential.
func (a *Auth) Me(ctx context.Context, opts ...pipeline.RequestOption) (*domain.Identity, error) {
	var out domain.Identity
	if err := a.r.Get(ctx, "/v1/auth/me", &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the credential on the service side.
func (a *Auth) Logout(ctx context.Context, opts ...pipeline.RequestOption) error {
	return a.r.Post(ctx, "/v1/auth/logout", nil, nil, opts...)
}
