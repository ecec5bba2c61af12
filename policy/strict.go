package policy

import (
	"context"

	"github.com/pithecene-io/mural/lode"
)

// StrictPolicy writes every record as it arrives: no buffering, one
// storage round trip per frame.
type StrictPolicy struct {
	sink  Sink
	stats statsRecorder
}

// NewStrictPolicy creates a strict policy writing to sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{sink: sink}
}

// Record writes f immediately (batch of 1).
func (p *StrictPolicy) Record(ctx context.Context, f lode.FrameRecord) error {
	p.stats.mu.Lock()
	p.stats.stats.TotalFrames++
	p.stats.mu.Unlock()

	err := p.sink.WriteFrames(ctx, []lode.FrameRecord{f})

	p.stats.mu.Lock()
	p.stats.writeResultLocked(1, err)
	p.stats.mu.Unlock()
	return err
}

// Flush is a no-op: nothing is buffered.
func (p *StrictPolicy) Flush(context.Context) error { return nil }

// Close closes the sink.
func (p *StrictPolicy) Close() error { return p.sink.Close() }

// Stats returns the policy counters.
func (p *StrictPolicy) Stats() Stats { return p.stats.snapshot() }

var _ Policy = (*StrictPolicy)(nil)
