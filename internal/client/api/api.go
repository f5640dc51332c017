// Package api holds thin typed wrappers over the service endpoints.
//
// Wrappers pick a verb, a path and a payload and return the decoded data.
// They do no error handling of their own: classification, notices and
// session expiry all happen in the pipeline.
package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dataglove/glovectl/internal/client/pipeline"
)

// Requester is the subset of *pipeline.Pipeline the wrappers need.
type Requester interface {
	Get(ctx context.Context, path string, out any, opts ...pipeline.RequestOption) error
	Post(ctx context.Context, path string, body, out any, opts ...pipeline.RequestOption) error
	Put(ctx context.Context, path string, body, out any, opts ...pipeline.RequestOption) error
	Delete(ctx context.Context, path string, out any, opts ...pipeline.RequestOption) error
}

// Record is one business row. Row shapes belong to the service and are
// printed as received.
type Record map[string]any

// Page is the service's pagination wrapper.
type Page[T any] struct {
	Content    []T   `json:"content"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	First      bool  `json:"first"`
	Last       bool  `json:"last"`
}

// ListQuery holds the common list parameters.
type ListQuery struct {
	Page    int
	Size    int
	Keyword string
	Status  string
	SortBy  string
	SortDir string
	// Extra carries endpoint-specific filters (deviceId, sensorType, ...).
	Extra url.Values
}

// Values encodes the query, omitting zero fields.
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	for key, val := range map[string]string{
		"keyword": q.Keyword,
		"status":  q.Status,
		"sortBy":  q.SortBy,
		"sortDir": q.SortDir,
	} {
		if val != "" {
			v.Set(key, val)
		}
	}
	for key, vals := range q.Extra {
		for _, val := range vals {
			v.Add(key, val)
		}
	}
	return v
}

// Client groups every endpoint family.
type Client struct {
	Auth    *Auth
	Devices *Devices
	Data    *Data
	Users   *Users
}

// New wraps r.
func New(r Requester) *Client {
	return &Client{
		Auth:    &Auth{r: r},
		Devices: &Devices{r: r},
		Data:    &Data{r: r},
		Users:   &Users{r: r},
	}
}
