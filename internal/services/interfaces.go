// filepath: internal/services/interfaces.go
package services

import (
	"context"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

// Auditor defines the interface for recording security-relevant events.
type Auditor interface {
	// Log records an event.
	// ctx: context to trace request IDs (if available)
	// action: what happened (e.g., "transfer.apply", "archive.restore")
	// actor: who did it (OS user name)
	// resource: what was affected (e.g., a document path or archive name)
	// details: structured metadata about the event
	Log(ctx context.Context, action string, actor string, resource string, details map[string]interface{})
}

// Recorder stores the history of mutating operations.
type Recorder interface {
	Record(op models.Operation) (models.Operation, error)
	Get(id string) (*models.Operation, error)
	List(filter models.OperationFilter) ([]models.Operation, error)
}

// HousekeepingService defines the interface for the housekeeping service.
type HousekeepingService interface {
	Start()
	Stop()
	TriggerHousekeeping() (*models.HousekeepingReport, error)
	Watch(ctx context.Context) error
}
