// Package events announces completed operations to interested listeners.
package events

import (
	"context"
	"time"
)

// Event topics.
const (
	TopicTransferApplied  = "vtscp.transfer.applied"
	TopicProfileApplied   = "vtscp.profile.applied"
	TopicArchiveBuilt     = "vtscp.archive.built"
	TopicArchiveRestored  = "vtscp.archive.restored"
	TopicBackupRestored   = "vtscp.backup.restored"
	TopicModelRenamed     = "vtscp.model.renamed"
	TopicHousekeepingDone = "vtscp.housekeeping.done"
)

// Publisher publishes events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// OperationEvent is the payload of every topic.
type OperationEvent struct {
	OperationID string         `json:"operation_id"`
	Kind        string         `json:"kind"`
	Target      string         `json:"target"`
	Success     bool           `json:"success"`
	Summary     string         `json:"summary"`
	BackupPath  string         `json:"backup_path,omitempty"`
	At          time.Time      `json:"at"`
	Details     map[string]any `json:"details,omitempty"`
}
