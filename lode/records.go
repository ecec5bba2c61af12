package lode

import (
	"time"

	"github.com/pithecene-io/mural/metrics"
	"github.com/pithecene-io/mural/types"
)

// RecordKind discriminator values. record_kind is also the last Hive
// partition key, so frames and metrics land in separate partitions.
const (
	RecordKindFrame   = "frame"
	RecordKindMetrics = "metrics"
)

// FrameRecord is one relayed or composited frame.
type FrameRecord struct {
	Seq        int64     `json:"seq"`
	Ts         time.Time `json:"ts"`
	Rank       int       `json:"rank"`
	HasImage   bool      `json:"has_image"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Components int       `json:"components"`
	RawBytes   int64     `json:"raw_bytes"`
	WireBytes  int64     `json:"wire_bytes"`
	Codec      string    `json:"codec"`
	Degraded   bool      `json:"degraded"`
	// DurationMs is the wall time the frame spent in compositing and relay.
	DurationMs float64 `json:"duration_ms"`
}

// NewFrameRecord describes img as frame seq.
func NewFrameRecord(seq int64, rank int, img types.RawImage, ts time.Time) FrameRecord {
	return NewFrameRecordFromHeader(seq, rank, img.Header(), ts)
}

// NewFrameRecordFromHeader describes the image announced by h as frame seq.
func NewFrameRecordFromHeader(seq int64, rank int, h types.ImageHeader, ts time.Time) FrameRecord {
	return FrameRecord{
		Seq:        seq,
		Ts:         ts,
		Rank:       rank,
		HasImage:   h.HasImage,
		Width:      int(h.Width),
		Height:     int(h.Height),
		Components: int(h.Components),
		RawBytes:   int64(h.PayloadSize()),
	}
}

// toFrameRecordMap converts a FrameRecord for storage.
// Lode HiveLayout requires records as map[string]any.
func toFrameRecordMap(f FrameRecord, cfg Config) map[string]any {
	return map[string]any{
		"record_kind":      RecordKindFrame,
		"contract_version": types.ContractVersion,
		"seq":              f.Seq,
		"ts":               f.Ts.UTC().Format(time.RFC3339Nano),
		"rank":             f.Rank,
		"has_image":        f.HasImage,
		"width":            f.Width,
		"height":           f.Height,
		"components":       f.Components,
		"raw_bytes":        f.RawBytes,
		"wire_bytes":       f.WireBytes,
		"codec":            f.Codec,
		"degraded":         f.Degraded,
		"duration_ms":      f.DurationMs,
		"session":          cfg.SessionID,
		"role":             cfg.Role,
		"day":              cfg.Day,
	}
}

// toMetricsRecordMap converts a metrics snapshot for storage.
func toMetricsRecordMap(s metrics.Snapshot, cfg Config, completedAt time.Time) map[string]any {
	m := map[string]any{
		"record_kind":      RecordKindMetrics,
		"contract_version": types.ContractVersion,
		"ts":               completedAt.UTC().Format(time.RFC3339),

		"frames_sent_total":         s.FramesSent,
		"frames_received_total":     s.FramesReceived,
		"frames_empty_total":        s.FramesEmpty,
		"frames_degraded_total":     s.FramesDegraded,
		"raw_bytes_total":           s.RawBytes,
		"wire_bytes_total":          s.WireBytes,
		"compression_ratio":         s.CompressionRatio(),
		"compress_failures_total":   s.CompressFailures,
		"decompress_failures_total": s.DecompressFailures,
		"codec_fallbacks_total":     s.CodecFallbacks,
		"codec_rejected_total":      s.CodecRejected,
		"composites_total":          s.Composites,
		"collective_failures_total": s.CollectiveFailures,
		"lode_write_success_total":  s.LodeWriteSuccess,
		"lode_write_failure_total":  s.LodeWriteFailure,

		"codec":    s.Codec,
		"topology": s.Topology,
		"session":  cfg.SessionID,
		"role":     cfg.Role,
		"day":      cfg.Day,
	}
	if len(s.FallbacksByCodec) > 0 {
		m["raw_fallbacks_by_codec"] = s.FallbacksByCodec
	}
	return m
}
