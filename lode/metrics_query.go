package lode

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/justapithecus/lode/lode"
)

// ErrNoMetricsFound is returned when no metrics record matches.
var ErrNoMetricsFound = errors.New("no metrics records found")

// QueryLatestMetrics returns the most recent metrics record, filtered by
// session and role when non-empty.
func QueryLatestMetrics(ctx context.Context, ds lode.Dataset, session, role string) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, fmt.Sprintf("%s/snapshots", ds.ID()))
	}

	// Snapshots are ordered by creation time.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatches(snap, "record_kind", RecordKindMetrics) ||
			!snapshotMatches(snap, "session", session) ||
			!snapshotMatches(snap, "role", role) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		// Path filtering is coarse; record fields decide.
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != RecordKindMetrics {
				continue
			}
			if session != "" && toString(record["session"]) != session {
				continue
			}
			if role != "" && toString(record["role"]) != role {
				continue
			}
			return record, nil
		}
	}
	return nil, ErrNoMetricsFound
}

// toString returns v as a string, or "" when it is not one.
func toString(v any) string {
	s, _ := v.(string)
	return s
}

// QueryFrames returns up to limit of the most recent frame records of a
// session and role, oldest first. A limit <= 0 returns every record.
func QueryFrames(ctx context.Context, ds lode.Dataset, session, role string, limit int) ([]map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, fmt.Sprintf("%s/snapshots", ds.ID()))
	}

	var out []map[string]any
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatches(snap, "record_kind", RecordKindFrame) ||
			!snapshotMatches(snap, "session", session) ||
			!snapshotMatches(snap, "role", role) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		// Walk each batch backwards so the newest records are kept.
		for j := len(data) - 1; j >= 0; j-- {
			record, ok := data[j].(map[string]any)
			if !ok || record["record_kind"] != RecordKindFrame {
				continue
			}
			if session != "" && toString(record["session"]) != session {
				continue
			}
			if role != "" && toString(record["role"]) != role {
				continue
			}
			out = append(out, record)
			if limit > 0 && len(out) == limit {
				slices.Reverse(out)
				return out, nil
			}
		}
	}
	slices.Reverse(out)
	return out, nil
}
