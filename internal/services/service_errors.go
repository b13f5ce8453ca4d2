// filepath: internal/services/service_errors.go
package services

import (
	"errors"
	"fmt"
	"os"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/backup"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/journal"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/lock"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/profile"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/shared"
)

// Standard errors returned by the service layer.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrLocked     = errors.New("locked")
	ErrIntegrity  = errors.New("integrity check failed")
	ErrIO         = errors.New("i/o failure")
	ErrCancelled  = errors.New("cancelled")
	ErrConfig     = errors.New("not configured")
)

// classify returns the service sentinel matching err, or nil.
func classify(err error) error {
	var ee *models.EngineError
	if errors.As(err, &ee) {
		switch ee.Kind {
		case models.KindStructural, models.KindValidation, models.KindReferential:
			return ErrValidation
		case models.KindConflict:
			return ErrConflict
		case models.KindIntegrity:
			return ErrIntegrity
		case models.KindCancelled:
			return ErrCancelled
		case models.KindLocked:
			return ErrLocked
		default:
			return ErrIO
		}
	}
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, shared.ErrInvalidName), errors.Is(err, shared.ErrPathTraversal):
		return ErrValidation
	case errors.Is(err, profile.ErrNotFound), errors.Is(err, journal.ErrNotFound),
		errors.Is(err, backup.ErrNoBackup), errors.Is(err, os.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, profile.ErrExists):
		return ErrConflict
	case errors.Is(err, lock.ErrLocked):
		return ErrLocked
	}
	return nil
}

// wrap tags err with its service sentinel so callers can use errors.Is
// without knowing the engine packages. The original error stays reachable.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	sentinel := classify(err)
	if sentinel == nil || errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
