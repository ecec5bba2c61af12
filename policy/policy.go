// Package policy decides when frame telemetry reaches storage.
//
// A session records one FrameRecord per rendered or received frame. The
// strict policy writes each record as it arrives; the buffered policy
// batches them and writes on a count or age limit. Neither ever blocks
// the render loop on a failed write: the record or batch is dropped and
// counted, and the error is returned for logging.
package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pithecene-io/mural/lode"
)

// Policy names accepted by New.
const (
	NameStrict   = "strict"
	NameBuffered = "buffered"
)

// ErrUnknownPolicy is returned by New for an unrecognized name.
var ErrUnknownPolicy = errors.New("unknown telemetry policy")

// Sink is the storage a policy writes to. lode.Client satisfies it.
type Sink interface {
	// WriteFrames writes a batch of frame records in order.
	WriteFrames(ctx context.Context, frames []lode.FrameRecord) error
	// Close releases sink resources.
	Close() error
}

// Policy controls buffering and persistence of frame records.
type Policy interface {
	// Record accepts one frame record. An error means records were
	// dropped; the session goes on.
	Record(ctx context.Context, f lode.FrameRecord) error

	// Flush writes anything buffered.
	Flush(ctx context.Context) error

	// Close flushes and closes the sink.
	Close() error

	// Stats returns a consistent snapshot of the policy counters.
	Stats() Stats
}

// Stats are the observability counters of a policy.
type Stats struct {
	// TotalFrames is the number of records received.
	TotalFrames int64
	// FramesPersisted is the number of records written.
	FramesPersisted int64
	// FramesDropped is the number of records lost to write failures.
	FramesDropped int64
	// Buffered is the number of records waiting for a flush.
	Buffered int64
	// FlushCount is the number of write attempts.
	FlushCount int64
	// Errors is the number of failed writes.
	Errors int64
}

// New builds the policy called name. An empty name selects buffered.
func New(name string, sink Sink, cfg BufferedConfig) (Policy, error) {
	switch name {
	case NameStrict:
		return NewStrictPolicy(sink), nil
	case NameBuffered, "":
		p, err := NewBufferedPolicy(sink, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %s (must be %s or %s)", ErrUnknownPolicy, name, NameStrict, NameBuffered)
	}
}

// statsRecorder guards Stats. Callers hold mu across a write's
// before/after updates so snapshots stay consistent.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

// writeResultLocked records one write attempt of n records. Caller holds mu.
func (r *statsRecorder) writeResultLocked(n int, err error) {
	r.stats.FlushCount++
	if err != nil {
		r.stats.Errors++
		r.stats.FramesDropped += int64(n)
		return
	}
	r.stats.FramesPersisted += int64(n)
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
