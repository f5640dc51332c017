package api

import (
	"context"
	"fmt"

	"github.com/dataglove/glovectl/internal/client/pipeline"
	"github.com/dataglove/glovectl/internal/core/domain"
)

// Users wraps /v1/users.
type Users struct {
	r Requester
}

// List returns one page of accounts (administrators).
func (u *Users) List(ctx context.Context, q ListQuery, opts ...pipeline.RequestOption) (*Page[domain.Identity], error) {
	var out Page[domain.Identity]
	opts = append(opts, pipeline.WithQuery(q.Values()))
	if err := u.r.Get(ctx, "/v1/users", &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// Roles returns every role the service knows.
func (u *Users) Roles(ctx context.Context, opts ...pipeline.RequestOption) ([]Record, error) {
	var out []Record
	if err := u.r.Get(ctx, "/v1/users/roles", &out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ChangePassword changes the password of account id.
func (u *Users) ChangePassword(ctx context.Context, id int64, req domain.PasswordChangeRequest, opts ...pipeline.RequestOption) error {
	return u.r.Post(ctx, fmt.Sprintf("/v1/users/%d/change-password", id), req, nil, opts...)
}
