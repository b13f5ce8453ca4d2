// filepath: internal/services/transfer_service.go
package services

import (
	"context"
	"fmt"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/events"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/task"
)

// ValidateTransfer reports what a transfer would do without taking a lock.
func (s *Service) ValidateTransfer(ctx context.Context, srcPath, dstPath string, spec models.TransferSpec) (models.Report, error) {
	rep, err := s.Transfers.ValidateTransfer(ctx, srcPath, dstPath, spec)
	return rep, wrap(err)
}

// Transfer copies the selected hotkeys and mappings from the source model
// document into the target. Every attempt that was not a dry run is
// recorded, failed ones included.
func (s *Service) Transfer(ctx context.Context, srcPath, dstPath string, spec models.TransferSpec, r task.Reporter) (*models.TransferResult, error) {
	started := s.now()
	if spec.LockMode == "" {
		spec.LockMode = s.lockMode()
	}

	res, err := s.Transfers.ApplyTransfer(ctx, srcPath, dstPath, spec, r)
	if spec.DryRun {
		return res, wrap(err)
	}

	summary := fmt.Sprintf("%d hotkeys, %d mappings, %d files from %s", res.HotkeysAdded, res.MappingsAdded, res.FilesCopied, srcPath)
	s.finish(ctx, operation{
		Kind:       "transfer.apply",
		Topic:      events.TopicTransferApplied,
		Target:     dstPath,
		Started:    started,
		Success:    res.Success,
		Summary:    summary + failureSuffix(err),
		BackupPath: res.BackupPath,
		Details: map[string]any{
			"source":      srcPath,
			"hotkey_ids":  spec.HotkeyIDs,
			"mapping_ids": spec.MappingIDs,
			"warnings":    len(res.Warnings),
			"errors":      len(res.Errors),
			"rolled_back": res.RolledBack,
		},
	})
	return res, wrap(err)
}
