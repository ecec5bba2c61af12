// Package lode archives session telemetry in a Lode dataset.
//
// Records are Hive-partitioned by session/role/day/record_kind. A session
// writes batches of frame records while it runs and one metrics record when
// it ends. Storage is the local filesystem or S3. When frame records are
// written is up to the policy package.
package lode

import (
	"context"
	"sync"
	"time"
)

// DefaultDataset is the dataset ID used by the CLI.
const DefaultDataset = "mural"

// hiveKeys is the partition layout shared by the write and read paths.
var hiveKeys = []string{"session", "role", "day", "record_kind"}

// DeriveDay computes the partition day from the session start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds the partition values of one process's telemetry.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// SessionID identifies the session.
	SessionID string
	// Role is the process role.
	Role string
	// Day is derived from the session start (YYYY-MM-DD UTC).
	Day string
}

// Client abstracts the telemetry store.
type Client interface {
	// WriteFrames writes a batch of frame records in order.
	WriteFrames(ctx context.Context, frames []FrameRecord) error
	// Close releases client resources.
	Close() error
}

// StubClient records writes without persisting. For tests.
type StubClient struct {
	mu      sync.Mutex
	Batches [][]FrameRecord
	Closed  bool
	Err     error
}

// NewStubClient creates a stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteFrames implements Client.
func (c *StubClient) WriteFrames(_ context.Context, frames []FrameRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Batches = append(c.Batches, frames)
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

var _ Client = (*StubClient)(nil)
