package types

// ProcessMeta identifies a process within a session.
// Attached to every log entry and telemetry record.
type ProcessMeta struct {
	SessionID string
	Role      ProcessRole
	Rank      int
	// Node is an optional host label for multi-node deployments.
	Node *string
}
