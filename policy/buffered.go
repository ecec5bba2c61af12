package policy

import (
	"context"
	"errors"
	"time"

	"github.com/pithecene-io/mural/lode"
	"github.com/pithecene-io/mural/log"
)

// DefaultMaxBufferFrames is the batch size when none is configured.
const DefaultMaxBufferFrames = 64

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferFrames flushes once this many records are buffered.
	// Zero uses DefaultMaxBufferFrames.
	MaxBufferFrames int

	// FlushInterval also flushes when the oldest buffered record is at
	// least this old. Checked on Record; zero disables.
	FlushInterval time.Duration

	// Logger reports dropped batches. Optional.
	Logger *log.Logger

	// Now replaces time.Now in tests.
	Now func() time.Time
}

// ErrInvalidConfig is returned for negative limits.
var ErrInvalidConfig = errors.New("invalid buffered policy config: limits must be >= 0")

// BufferedPolicy batches records and writes them together. Records are
// written in arrival order. A failed batch is dropped, not retried, so a
// storage outage costs telemetry, never frames.
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	// stats.mu also guards the buffer.
	stats  statsRecorder
	buffer []lode.FrameRecord
	oldest time.Time
}

// NewBufferedPolicy creates a buffered policy writing to sink.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferFrames < 0 || config.FlushInterval < 0 {
		return nil, ErrInvalidConfig
	}
	if config.MaxBufferFrames == 0 {
		config.MaxBufferFrames = DefaultMaxBufferFrames
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &BufferedPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]lode.FrameRecord, 0, config.MaxBufferFrames),
	}, nil
}

// Record buffers f and writes the batch when a limit is reached.
func (p *BufferedPolicy) Record(ctx context.Context, f lode.FrameRecord) error {
	now := p.config.Now()

	p.stats.mu.Lock()
	p.stats.stats.TotalFrames++
	if len(p.buffer) == 0 {
		p.oldest = now
	}
	p.buffer = append(p.buffer, f)
	full := len(p.buffer) >= p.config.MaxBufferFrames
	stale := p.config.FlushInterval > 0 && now.Sub(p.oldest) >= p.config.FlushInterval
	var batch []lode.FrameRecord
	if full || stale {
		batch = p.takeLocked()
	}
	p.stats.stats.Buffered = int64(len(p.buffer))
	p.stats.mu.Unlock()

	return p.write(ctx, batch)
}

// Flush writes any buffered records.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	p.stats.mu.Lock()
	batch := p.takeLocked()
	p.stats.stats.Buffered = 0
	p.stats.mu.Unlock()
	return p.write(ctx, batch)
}

// Close flushes with a background context and closes the sink. Sessions
// call Flush with their own deadline first.
func (p *BufferedPolicy) Close() error {
	flushErr := p.Flush(context.Background())
	closeErr := p.sink.Close()
	return errors.Join(flushErr, closeErr)
}

// Stats returns the policy counters.
func (p *BufferedPolicy) Stats() Stats { return p.stats.snapshot() }

// takeLocked detaches the buffer. Caller holds stats.mu.
func (p *BufferedPolicy) takeLocked() []lode.FrameRecord {
	if len(p.buffer) == 0 {
		return nil
	}
	batch := p.buffer
	p.buffer = make([]lode.FrameRecord, 0, p.config.MaxBufferFrames)
	return batch
}

// write sends batch outside the lock and records the outcome.
func (p *BufferedPolicy) write(ctx context.Context, batch []lode.FrameRecord) error {
	if len(batch) == 0 {
		return nil
	}
	err := p.sink.WriteFrames(ctx, batch)

	p.stats.mu.Lock()
	p.stats.writeResultLocked(len(batch), err)
	p.stats.mu.Unlock()

	if err != nil && p.logger != nil {
		p.logger.Warn("frame telemetry batch dropped", map[string]any{
			"frames":    len(batch),
			"first_seq": batch[0].Seq,
			"error":     err.Error(),
		})
	}
	return err
}

var _ Policy = (*BufferedPolicy)(nil)
