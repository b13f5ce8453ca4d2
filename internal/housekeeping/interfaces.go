// filepath: internal/housekeeping/interfaces.go
package housekeeping

import (
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

// DocumentSource lists the documents whose backups are kept in check.
type DocumentSource interface {
	Documents() ([]string, error)
}

// BackupPruner removes old snapshots of one document.
type BackupPruner interface {
	Prune(path string, keep int) ([]string, error)
}

// ArchiveStore is the storage the archive retention rules act on.
// This decouples the housekeeping logic from where archives live.
type ArchiveStore interface {
	ListArchives() ([]models.ArchiveInfo, error)
	DeleteArchive(path string) error
}
