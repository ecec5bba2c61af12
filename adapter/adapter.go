// Package adapter publishes session lifecycle notifications to downstream
// systems.
//
// A render process publishes one SessionCompletedEvent when its session
// ends. Backends live in subpackages; callers own their lifecycle.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/mural/metrics"
	"github.com/pithecene-io/mural/types"
)

// EventTypeSessionCompleted is the only event type published today.
const EventTypeSessionCompleted = "session_completed"

// Session outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeTransport  = "transport_error"
	OutcomeCollective = "collective_error"
	OutcomeConfig     = "config_error"
	OutcomeCanceled   = "canceled"
)

// SessionCompletedEvent is the payload published when a session ends.
type SessionCompletedEvent struct {
	ContractVersion  string  `json:"contract_version"`
	EventType        string  `json:"event_type"`
	SessionID        string  `json:"session_id"`
	Role             string  `json:"role"`
	Rank             int     `json:"rank"`
	Topology         string  `json:"topology"`
	Codec            string  `json:"codec"`
	Outcome          string  `json:"outcome"`
	Error            string  `json:"error,omitempty"`
	FramesSent       int64   `json:"frames_sent"`
	FramesReceived   int64   `json:"frames_received"`
	FramesDegraded   int64   `json:"frames_degraded"`
	Composites       int64   `json:"composites"`
	CompressionRatio float64 `json:"compression_ratio"`
	StoragePath      string  `json:"storage_path,omitempty"`
	Timestamp        string  `json:"timestamp"` // RFC 3339
	DurationMs       int64   `json:"duration_ms"`
}

// NewSessionCompletedEvent summarizes a finished session. runErr, when
// set, is recorded with the outcome the caller classified it as.
func NewSessionCompletedEvent(meta types.ProcessMeta, snap metrics.Snapshot, outcome string, runErr error, started, ended time.Time) *SessionCompletedEvent {
	ev := &SessionCompletedEvent{
		ContractVersion:  types.ContractVersion,
		EventType:        EventTypeSessionCompleted,
		SessionID:        meta.SessionID,
		Role:             string(meta.Role),
		Rank:             meta.Rank,
		Topology:         snap.Topology,
		Codec:            snap.Codec,
		Outcome:          outcome,
		FramesSent:       snap.FramesSent,
		FramesReceived:   snap.FramesReceived,
		FramesDegraded:   snap.FramesDegraded,
		Composites:       snap.Composites,
		CompressionRatio: snap.CompressionRatio(),
		Timestamp:        ended.UTC().Format(time.RFC3339),
		DurationMs:       ended.Sub(started).Milliseconds(),
	}
	if runErr != nil {
		ev.Error = runErr.Error()
	}
	return ev
}

// Adapter publishes session events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation and
	// deadlines.
	Publish(ctx context.Context, event *SessionCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// BaseBackoff is the delay before the first retry. Each further retry
// doubles it.
const BaseBackoff = 500 * time.Millisecond

// Retry calls attempt up to 1+retries times, sleeping with exponential
// backoff between calls. It stops early when the context ends or when
// permanent reports the error cannot succeed on retry.
func Retry(ctx context.Context, name string, retries int, attempt func(context.Context) error, permanent func(error) bool) error {
	attempts := 1 + retries
	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(BaseBackoff << (i - 1)):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
