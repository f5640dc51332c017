package api

import (
	"context"

	"github.com/dataglove/glovectl/internal/client/pipeline"
)

// Data wraps /v1/data.
type Data struct {
	r Requester
}

// SensorData returns one page of sensor frames.
func (d *Data) SensorData(ctx context.Context, q ListQuery, opts ...pipeline.RequestOption) (*Page[Record], error) {
	return d.page(ctx, "/v1/data/sensor-data", q, opts)
}

// GestureResults returns one page of gesture recognition results.
func (d *Data) GestureResults(ctx context.Context, q ListQuery, opts ...pipeline.RequestOption) (*Page[Record], error) {
	return d.page(ctx, "/v1/data/gesture-results", q, opts)
}

// LearningRecords returns one page of learning records.
func (d *Data) LearningRecords(ctx context.Context, q ListQuery, opts ...pipeline.RequestOption) (*Page[Record], error) {
	return d.page(ctx, "/v1/data/learning-records", q, opts)
}

// Overview returns the dashboard statistics.
func (d *Data) Overview(ctx context.Context, opts ...pipeline.RequestOption) (Record, error) {
	var out Record
	if err := d.r.Get(ctx, "/v1/data/statistics/overview", &out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Data) page(ctx context.Context, path string, q ListQuery, opts []pipeline.RequestOption) (*Page[Record], error) {
	var out Page[Record]
	opts = append(opts, pipeline.WithQuery(q.Values()))
	if err := d.r.Get(ctx, path, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}
