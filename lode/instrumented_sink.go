package lode

import (
	"context"

	"github.com/pithecene-io/mural/metrics"
)

// InstrumentedClient wraps a Client and counts every write as a
// lode_write_success or lode_write_failure.
type InstrumentedClient struct {
	inner     Client
	collector *metrics.Collector
}

// NewInstrumentedClient wraps inner. A nil collector records nothing.
func NewInstrumentedClient(inner Client, collector *metrics.Collector) *InstrumentedClient {
	return &InstrumentedClient{inner: inner, collector: collector}
}

// WriteFrames implements Client.
func (c *InstrumentedClient) WriteFrames(ctx context.Context, frames []FrameRecord) error {
	err := c.inner.WriteFrames(ctx, frames)
	if err != nil {
		c.collector.IncLodeWriteFailure()
	} else {
		c.collector.IncLodeWriteSuccess()
	}
	return err
}

// Close implements Client.
func (c *InstrumentedClient) Close() error {
	return c.inner.Close()
}

var _ Client = (*InstrumentedClient)(nil)
