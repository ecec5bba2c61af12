// Package reader turns telemetry records read back from lode into the
// typed payloads the CLI renders.
//
// Records arrive as map[string]any. Numbers may be int64 (in-memory
// writes) or float64 (JSONL round-trips); both are accepted.
package reader

// MetricsSnapshot is the session-end metrics record of one process.
type MetricsSnapshot struct {
	Ts string `json:"ts"`

	// Relay
	FramesSent       int64   `json:"frames_sent"`
	FramesReceived   int64   `json:"frames_received"`
	FramesEmpty      int64   `json:"frames_empty"`
	FramesDegraded   int64   `json:"frames_degraded"`
	RawBytes         int64   `json:"raw_bytes"`
	WireBytes        int64   `json:"wire_bytes"`
	CompressionRatio float64 `json:"compression_ratio"`

	// Codec
	CompressFailures   int64            `json:"compress_failures"`
	DecompressFailures int64            `json:"decompress_failures"`
	CodecFallbacks     int64            `json:"codec_fallbacks"`
	CodecRejected      int64            `json:"codec_rejected"`
	RawFallbacks       map[string]int64 `json:"raw_fallbacks_by_codec,omitempty"`

	// Compositor
	Composites         int64 `json:"composites"`
	CollectiveFailures int64 `json:"collective_failures"`

	// Lode / Storage
	LodeWriteSuccess int64 `json:"lode_write_success"`
	LodeWriteFailure int64 `json:"lode_write_failure"`

	// Dimensions
	Session  string `json:"session"`
	Role     string `json:"role"`
	Codec    string `json:"codec"`
	Topology string `json:"topology"`
}

// FrameSummary is one archived frame record.
type FrameSummary struct {
	Seq        int64   `json:"seq"`
	Ts         string  `json:"ts"`
	Rank       int64   `json:"rank"`
	HasImage   bool    `json:"has_image"`
	Width      int64   `json:"width"`
	Height     int64   `json:"height"`
	RawBytes   int64   `json:"raw_bytes"`
	WireBytes  int64   `json:"wire_bytes"`
	Codec      string  `json:"codec"`
	Degraded   bool    `json:"degraded"`
	DurationMs float64 `json:"duration_ms"`
}
