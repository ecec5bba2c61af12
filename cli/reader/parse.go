package reader

import (
	"errors"
	"fmt"
)

// ParseMetricsRecord converts a Lode record (map[string]any) to a MetricsSnapshot.
func ParseMetricsRecord(record map[string]any) (*MetricsSnapshot, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}

	snap := &MetricsSnapshot{
		Ts: toString(record["ts"]),

		// Relay
		FramesSent:       toInt64(record["frames_sent_total"]),
		FramesReceived:   toInt64(record["frames_received_total"]),
		FramesEmpty:      toInt64(record["frames_empty_total"]),
		FramesDegraded:   toInt64(record["frames_degraded_total"]),
		RawBytes:         toInt64(record["raw_bytes_total"]),
		WireBytes:        toInt64(record["wire_bytes_total"]),
		CompressionRatio: toFloat64(record["compression_ratio"]),

		// Codec
		CompressFailures:   toInt64(record["compress_failures_total"]),
		DecompressFailures: toInt64(record["decompress_failures_total"]),
		CodecFallbacks:     toInt64(record["codec_fallbacks_total"]),
		CodecRejected:      toInt64(record["codec_rejected_total"]),

		// Compositor
		Composites:         toInt64(record["composites_total"]),
		CollectiveFailures: toInt64(record["collective_failures_total"]),

		// Lode / Storage
		LodeWriteSuccess: toInt64(record["lode_write_success_total"]),
		LodeWriteFailure: toInt64(record["lode_write_failure_total"]),

		// Dimensions
		Session:  toString(record["session"]),
		Role:     toString(record["role"]),
		Codec:    toString(record["codec"]),
		Topology: toString(record["topology"]),
	}

	if rf, ok := record["raw_fallbacks_by_codec"]; ok && rf != nil {
		snap.RawFallbacks = parseCounts(rf)
	}

	// The write path always populates these; missing values mean a
	// malformed record.
	for _, f := range []struct{ name, value string }{
		{"ts", snap.Ts},
		{"session", snap.Session},
		{"role", snap.Role},
	} {
		if f.value == "" {
			return nil, fmt.Errorf("metrics record missing required field: %s", f.name)
		}
	}

	return snap, nil
}

// ParseFrameRecord converts a Lode frame record to a FrameSummary.
func ParseFrameRecord(record map[string]any) (*FrameSummary, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}
	if _, ok := record["seq"]; !ok {
		return nil, errors.New("frame record missing required field: seq")
	}
	return &FrameSummary{
		Seq:        toInt64(record["seq"]),
		Ts:         toString(record["ts"]),
		Rank:       toInt64(record["rank"]),
		HasImage:   toBool(record["has_image"]),
		Width:      toInt64(record["width"]),
		Height:     toInt64(record["height"]),
		RawBytes:   toInt64(record["raw_bytes"]),
		WireBytes:  toInt64(record["wire_bytes"]),
		Codec:      toString(record["codec"]),
		Degraded:   toBool(record["degraded"]),
		DurationMs: toFloat64(record["duration_ms"]),
	}, nil
}

// toInt64 converts a value to int64, handling float64 from JSON and int64 from direct writes.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// parseCounts handles both map[string]int64 (direct) and map[string]any
// (JSON round-trip).
func parseCounts(v any) map[string]int64 {
	switch m := v.(type) {
	case map[string]int64:
		return m
	case map[string]any:
		result := make(map[string]int64, len(m))
		for k, val := range m {
			result[k] = toInt64(val)
		}
		return result
	default:
		return nil
	}
}
