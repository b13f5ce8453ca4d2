// filepath: internal/housekeeping/tasks.go
package housekeeping

import (
	"fmt"
	"sort"
	"time"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

// Policy holds the retention rules. Zero values disable a rule.
type Policy struct {
	Interval     time.Duration
	KeepBackups  int
	MaxAge       time.Duration
	MaxCount     int
	MaxDiskSpace uint64
}

// Dependencies defines the required services for the housekeeping tasks.
type Dependencies struct {
	Documents DocumentSource
	Backups   BackupPruner
	Archives  ArchiveStore
	Policy    Policy
}

// Run executes every housekeeping task once.
func Run(deps Dependencies) (*models.HousekeepingReport, error) {
	report := &models.HousekeepingReport{}

	// 1. Document backups
	if deps.Documents != nil && deps.Backups != nil && deps.Policy.KeepBackups > 0 {
		if err := pruneBackups(deps, report); err != nil {
			logging.Log.Errorf("Housekeeping backup pruning failed: %v", err)
		}
	}

	// 2. Archives: age, then count, then disk space, oldest first.
	if deps.Archives != nil {
		archives, err := deps.Archives.ListArchives()
		if err != nil {
			return nil, fmt.Errorf("could not list archives: %w", err)
		}
		sort.Slice(archives, func(i, j int) bool { return archives[i].CreatedAt.Before(archives[j].CreatedAt) })

		archives = cleanupByAge(deps, archives, report)
		archives = cleanupByCount(deps, archives, report)
		cleanupByDiskSpace(deps, archives, report)
	}

	report.Message = fmt.Sprintf("Housekeeping complete. %d backups pruned across %d documents, %d archives deleted, freeing %s.",
		report.BackupsPruned, report.DocumentsChecked, report.ArchivesDeleted, formatBytes(report.SpaceFreedBytes))
	return report, nil
}

func pruneBackups(deps Dependencies, report *models.HousekeepingReport) error {
	docs, err := deps.Documents.Documents()
	if err != nil {
		return fmt.Errorf("could not list documents: %w", err)
	}
	for _, doc := range docs {
		report.DocumentsChecked++
		removed, err := deps.Backups.Prune(doc, deps.Policy.KeepBackups)
		if err != nil {
			logging.Log.Warnf("Housekeeping could not prune backups of %s: %v", doc, err)
			continue
		}
		report.BackupsPruned += len(removed)
	}
	return nil
}

// cleanupByAge deletes archives older than the max age rule and returns the survivors.
func cleanupByAge(deps Dependencies, archives []models.ArchiveInfo, report *models.HousekeepingReport) []models.ArchiveInfo {
	if deps.Policy.MaxAge == 0 {
		logging.Log.Debug("Housekeeping cleanup by age is disabled (max_age is 0).")
		return archives
	}
	cutoff := time.Now().Add(-deps.Policy.MaxAge)
	var kept []models.ArchiveInfo
	for _, a := range archives {
		if a.CreatedAt.Before(cutoff) {
			deleteArchive(deps, a, report)
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

// cleanupByCount deletes the oldest archives beyond the max count rule.
func cleanupByCount(deps Dependencies, archives []models.ArchiveInfo, report *models.HousekeepingReport) []models.ArchiveInfo {
	if deps.Policy.MaxCount <= 0 || len(archives) <= deps.Policy.MaxCount {
		return archives
	}
	excess := len(archives) - deps.Policy.MaxCount
	logging.Log.Infof("Found %d archives over the limit of %d. Deleting the oldest...", excess, deps.Policy.MaxCount)
	for _, a := range archives[:excess] {
		deleteArchive(deps, a, report)
	}
	return archives[excess:]
}

// cleanupByDiskSpace deletes the oldest archives while their total size exceeds the limit.
func cleanupByDiskSpace(deps Dependencies, archives []models.ArchiveInfo, report *models.HousekeepingReport) {
	if deps.Policy.MaxDiskSpace == 0 {
		logging.Log.Debug("Housekeeping cleanup by disk space is disabled (disk_space is 0).")
		return
	}
	var total int64
	for _, a := range archives {
		total += a.Size
	}
	bytesToFree := total - int64(deps.Policy.MaxDiskSpace)
	if bytesToFree <= 0 {
		logging.Log.Debug("Archive disk space is within limits. No cleanup needed.")
		return
	}

	logging.Log.Infof("Archives are over disk space limit by %s. Deleting the oldest...", formatBytes(bytesToFree))
	var freed int64
	for _, a := range archives {
		if freed >= bytesToFree {
			break
		}
		if deleteArchive(deps, a, report) {
			freed += a.Size
		}
	}
}

func deleteArchive(deps Dependencies, a models.ArchiveInfo, report *models.HousekeepingReport) bool {
	if err := deps.Archives.DeleteArchive(a.Path); err != nil {
		logging.Log.Errorf("Failed to delete archive %s: %v", a.Name, err)
		return false
	}
	logging.Log.Infof("Housekeeping deleted archive %s", a.Name)
	report.ArchivesDeleted++
	report.SpaceFreedBytes += a.Size
	return true
}

// formatBytes converts bytes to a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
