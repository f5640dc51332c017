package api

import (
	"context"
	"fmt"

	"github.com/dataglove/glovectl/internal/client/pipeline"
)

// Devices wraps /v1/devices.
type Devices struct {
	r Requester
}

// List returns one page of all devices (administrators).
func (d *Devices) List(ctx context.Context, q ListQuery, opts ...pipeline.RequestOption) (*Page[Record], error) {
	var out Page[Record]
	opts = append(opts, pipeline.WithQuery(q.Values()))
	if err := d.r.Get(ctx, "/v1/devices", &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// Mine returns the devices bound to the signed-in user.
func (d *Devices) Mine(ctx context.Context, opts ...pipeline.RequestOption) ([]Record, error) {
	var out []Record
	if err := d.r.Get(ctx, "/v1/devices/my-devices", &out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one device by numeric id.
func (d *Devices) Get(ctx context.Context, id int64, opts ...pipeline.RequestOption) (Record, error) {
	var out Record
	if err := d.r.Get(ctx, fmt.Sprintf("/v1/devices/%d", id), &out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a device.
func (d *Devices) Delete(ctx context.Context, id int64, opts ...pipeline.RequestOption) error {
	return d.r.Delete(ctx, fmt.Sprintf("/v1/devices/%d", id), nil, opts...)
}
