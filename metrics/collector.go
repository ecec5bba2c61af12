// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters while a process relays and composites
// frames. It is a leaf package with no internal dependencies; the lode
// package persists snapshots and the CLI renders them.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Relay
	FramesSent     int64
	FramesReceived int64
	FramesEmpty    int64
	FramesDegraded int64
	RawBytes       int64
	WireBytes      int64

	// Codec
	CompressFailures   int64
	DecompressFailures int64
	CodecFallbacks     int64
	CodecRejected      int64
	FallbacksByCodec   map[string]int64

	// Compositor
	Composites         int64
	CollectiveFailures int64

	// Lode / Storage
	LodeWriteSuccess int64
	LodeWriteFailure int64

	// Dimensions (informational, set at construction)
	Role      string
	Codec     string
	Topology  string
	SessionID string
}

// CompressionRatio returns raw bytes over wire bytes, or 0 before any
// payload has been relayed.
func (s Snapshot) CompressionRatio() float64 {
	if s.WireBytes == 0 {
		return 0
	}
	return float64(s.RawBytes) / float64(s.WireBytes)
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	framesSent     int64
	framesReceived int64
	framesEmpty    int64
	framesDegraded int64
	rawBytes       int64
	wireBytes      int64

	compressFailures   int64
	decompressFailures int64
	codecFallbacks     int64
	codecRejected      int64
	fallbacksByCodec   map[string]int64

	composites         int64
	collectiveFailures int64

	lodeWriteSuccess int64
	lodeWriteFailure int64

	role      string
	codec     string
	topology  string
	sessionID string
}

// NewCollector creates a Collector with dimension labels.
// codec is the configuration string in effect when the session started.
func NewCollector(role, codec, topology, sessionID string) *Collector {
	return &Collector{
		fallbacksByCodec: make(map[string]int64),
		role:             role,
		codec:            codec,
		topology:         topology,
		sessionID:        sessionID,
	}
}

// --- Relay ---

// AddFrameSent records one relayed frame. raw is the uncompressed payload
// size, wire the bytes actually sent (both 0 for an empty frame).
func (c *Collector) AddFrameSent(raw, wire int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesSent++
	if raw == 0 && wire == 0 {
		c.framesEmpty++
	}
	c.rawBytes += int64(raw)
	c.wireBytes += int64(wire)
	c.mu.Unlock()
}

// AddFrameReceived records one received frame.
func (c *Collector) AddFrameReceived(raw, wire int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesReceived++
	if raw == 0 && wire == 0 {
		c.framesEmpty++
	}
	c.rawBytes += int64(raw)
	c.wireBytes += int64(wire)
	c.mu.Unlock()
}

// IncFrameDegraded records a frame presented after a decompression failure.
func (c *Collector) IncFrameDegraded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesDegraded++
	c.mu.Unlock()
}

// --- Codec ---

// IncCompressFailure records a compression failure (raw bytes were sent).
func (c *Collector) IncCompressFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.compressFailures++
	c.mu.Unlock()
}

// IncDecompressFailure records a decompression failure.
func (c *Collector) IncDecompressFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decompressFailures++
	c.mu.Unlock()
}

// IncCodecFallback records an unavailable codec replaced by the fallback.
func (c *Collector) IncCodecFallback() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.codecFallbacks++
	c.mu.Unlock()
}

// IncCodecRejected records a configuration string that was not applied.
func (c *Collector) IncCodecRejected() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.codecRejected++
	c.mu.Unlock()
}

// IncRawFallback records a frame sent uncompressed by codec name, either
// because compression failed or because it did not shrink the payload.
func (c *Collector) IncRawFallback(codec string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.fallbacksByCodec[codec]++
	c.mu.Unlock()
}

// --- Compositor ---

// IncComposite records a completed composite.
func (c *Collector) IncComposite() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.composites++
	c.mu.Unlock()
}

// IncCollectiveFailure records a failed collective step.
func (c *Collector) IncCollectiveFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.collectiveFailures++
	c.mu.Unlock()
}

// --- Lode / Storage ---
// Lode counters are per-call, not per-record. A single WriteFrames call
// with N records counts as 1 success.

// IncLodeWriteSuccess records a successful Lode write operation (per-call).
func (c *Collector) IncLodeWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lodeWriteSuccess++
	c.mu.Unlock()
}

// IncLodeWriteFailure records a failed Lode write operation (per-call).
func (c *Collector) IncLodeWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lodeWriteFailure++
	c.mu.Unlock()
}

// SetCodec updates the codec dimension after a handshake reconfigures it.
func (c *Collector) SetCodec(codec string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.codec = codec
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	fallbacks := make(map[string]int64, len(c.fallbacksByCodec))
	for k, v := range c.fallbacksByCodec {
		fallbacks[k] = v
	}

	return Snapshot{
		FramesSent:     c.framesSent,
		FramesReceived: c.framesReceived,
		FramesEmpty:    c.framesEmpty,
		FramesDegraded: c.framesDegraded,
		RawBytes:       c.rawBytes,
		WireBytes:      c.wireBytes,

		CompressFailures:   c.compressFailures,
		DecompressFailures: c.decompressFailures,
		CodecFallbacks:     c.codecFallbacks,
		CodecRejected:      c.codecRejected,
		FallbacksByCodec:   fallbacks,

		Composites:         c.composites,
		CollectiveFailures: c.collectiveFailures,

		LodeWriteSuccess: c.lodeWriteSuccess,
		LodeWriteFailure: c.lodeWriteFailure,

		Role:      c.role,
		Codec:     c.codec,
		Topology:  c.topology,
		SessionID: c.sessionID,
	}
}
