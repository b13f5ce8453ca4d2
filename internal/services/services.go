// filepath: internal/services/services.go
// Package services wires the engines together for the command line and adds
// what the engines leave out: the operation journal, event publishing and
// audit logging around every mutating operation.
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/archive"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/backup"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/config"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/document"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/events"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/lock"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/profile"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/transfer"
)

// Service is the facade over the engines. Journal may be nil when the
// history is disabled; Events and Auditor are never nil after New.
type Service struct {
	Config *config.Config
	Tree   archive.Tree

	Loader    *document.Loader
	Locks     *lock.Manager
	Backups   *backup.Manager
	Transfers *transfer.Engine
	Profiles  *profile.Store
	Archives  *archive.Manager

	Journal Recorder
	Events  events.Publisher
	Auditor Auditor
	// Upload is the archive destination; nil means S3 from the configuration.
	Upload archive.Destination
	// Actor names who runs the operations in the journal and audit log.
	Actor string

	now func() time.Time
}

// Dependencies are the outer integrations handed to New.
type Dependencies struct {
	Journal Recorder
	Events  events.Publisher
	Auditor Auditor
	Actor   string
}

// New builds the engines from a validated configuration.
func New(cfg *config.Config, deps Dependencies) *Service {
	locks := lock.NewManager(cfg.LockDir())
	locks.Timeout = cfg.LockTimeout
	backups := backup.NewManager(cfg.Backup.Keep, cfg.Algorithm)
	loader := document.NewLoader(document.DefaultCacheTTL)

	s := &Service{
		Config:    cfg,
		Tree:      archive.NewTree(cfg.Paths.VTSRoot),
		Loader:    loader,
		Locks:     locks,
		Backups:   backups,
		Transfers: transfer.NewEngine(backups, locks, loader),
		Profiles:  profile.NewStore(cfg.Paths.ProfilesDir, backups, locks),
		Archives:  archive.NewManager(backups, locks, cfg.Algorithm),
		Journal:   deps.Journal,
		Events:    deps.Events,
		Auditor:   deps.Auditor,
		Actor:     deps.Actor,
		now:       time.Now,
	}
	if s.Events == nil {
		s.Events = &events.NoopPublisher{}
	}
	if s.Auditor == nil {
		s.Auditor = nopAuditor{}
	}
	return s
}

type nopAuditor struct{}

func (nopAuditor) Log(context.Context, string, string, string, map[string]interface{}) {}

// operation describes one finished mutating operation.
type operation struct {
	Kind       string
	Topic      string
	Target     string
	Started    time.Time
	Success    bool
	Summary    string
	BackupPath string
	Details    map[string]any
}

// finish records op in the journal, publishes its event and writes the
// audit entry. None of these can fail the operation itself; problems are
// logged. The journal id is returned when one was recorded.
func (s *Service) finish(ctx context.Context, op operation) string {
	row := models.Operation{
		Kind:       op.Kind,
		Target:     op.Target,
		Actor:      s.Actor,
		StartedAt:  op.Started,
		FinishedAt: s.now(),
		Success:    op.Success,
		Summary:    op.Summary,
		BackupPath: op.BackupPath,
	}
	if len(op.Details) > 0 {
		if b, err := json.Marshal(op.Details); err == nil {
			row.Details = string(b)
		}
	}

	if s.Journal != nil {
		recorded, err := s.Journal.Record(row)
		if err != nil {
			logging.Log.Warnf("Could not record %s in the journal: %v", op.Kind, err)
		} else {
			row = recorded
		}
	}

	if op.Topic != "" {
		ev := events.OperationEvent{
			OperationID: row.ID,
			Kind:        op.Kind,
			Target:      op.Target,
			Success:     op.Success,
			Summary:     op.Summary,
			BackupPath:  op.BackupPath,
			At:          row.FinishedAt,
			Details:     op.Details,
		}
		// Interrupted operations are still announced with their outcome.
		if err := s.Events.Publish(context.WithoutCancel(ctx), op.Topic, ev); err != nil {
			logging.Log.Warnf("Could not publish %s event: %v", op.Topic, err)
		}
	}

	details := map[string]interface{}{"success": op.Success, "summary": op.Summary}
	if op.BackupPath != "" {
		details["backup_path"] = op.BackupPath
	}
	if row.ID != "" {
		details["operation_id"] = row.ID
	}
	s.Auditor.Log(ctx, op.Kind, s.Actor, op.Target, details)
	return row.ID
}

// lockMode returns the configured lock mode.
func (s *Service) lockMode() models.LockMode {
	return models.LockMode(s.Config.Lock.Mode)
}

// Close releases the outer integrations.
func (s *Service) Close() error {
	var err error
	if c, ok := s.Journal.(interface{ Close() error }); ok && c != nil {
		err = c.Close()
	}
	if perr := s.Events.Close(); err == nil {
		err = perr
	}
	return err
}

func errSummary(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
