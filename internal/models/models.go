// filepath: internal/models/models.go
// Package models contains the result and record types shared by the engine packages.
package models

import (
	"encoding/json"
	"time"
)

// LockMode selects how a mutating operation waits for the document lock.
type LockMode string

const (
	LockBlock    LockMode = "block"
	LockFailFast LockMode = "fail"
)

// TransferSpec is the caller's selection for one transfer operation.
type TransferSpec struct {
	HotkeyIDs  []string `json:"hotkey_ids" validate:"dive,required"`
	MappingIDs []string `json:"mapping_ids" validate:"dive,required"`

	RegenerateIDs       bool `json:"regenerate_ids"`
	CopyAssets          bool `json:"copy_assets"`
	RequireBackup       bool `json:"require_backup"`
	DryRun              bool `json:"dry_run"`
	Strict              bool `json:"strict"`
	Atomic              bool `json:"atomic"`
	RequireKnownOutputs bool `json:"require_known_outputs"`

	LockMode LockMode `json:"lock_mode" validate:"omitempty,oneof=block fail"`
}

// DefaultTransferSpec returns a spec with the safe defaults: backup required, atomic.
func DefaultTransferSpec() TransferSpec {
	return TransferSpec{
		RequireBackup: true,
		Atomic:        true,
		LockMode:      LockBlock,
	}
}

// TransferResult is the immutable outcome of one transfer.
type TransferResult struct {
	Success bool `json:"success"`
	Applied bool `json:"applied"`

	HotkeysAdded  int `json:"hotkeys_added"`
	MappingsAdded int `json:"mappings_added"`
	FilesCopied   int `json:"files_copied"`
	FilesSkipped  int `json:"files_skipped"`

	Warnings []Issue `json:"warnings"`
	Errors   []Issue `json:"errors"`

	BackupPath string            `json:"backup_path,omitempty"`
	RolledBack bool              `json:"rolled_back"`
	IDMap      map[string]string `json:"id_map,omitempty"`
	Changelog  []string          `json:"changelog"`
}

// BackupRecord describes one read-only snapshot of a document's bytes.
type BackupRecord struct {
	ID           string    `json:"id"`
	DocumentPath string    `json:"document_path"`
	Path         string    `json:"path"`
	CreatedAt    time.Time `json:"created_at"`
	First        bool      `json:"first"`
	Size         int64     `json:"size"`
	Fingerprint  string    `json:"fingerprint"`
}

// ProfileCategory selects which global settings a profile captures.
type ProfileCategory string

const (
	CategoryComplete ProfileCategory = "complete"
	CategoryTracking ProfileCategory = "tracking"
	CategoryAPI      ProfileCategory = "api"
	CategoryUI       ProfileCategory = "ui"
	CategoryCustom   ProfileCategory = "custom"
)

// IsValid reports whether c is one of the known categories.
func (c ProfileCategory) IsValid() bool {
	switch c {
	case CategoryComplete, CategoryTracking, CategoryAPI, CategoryUI, CategoryCustom:
		return true
	}
	return false
}

// Setting is one typed key/value pair of the global document.
type Setting struct {
	Key   string          `json:"Key"`
	Value json.RawMessage `json:"Value"`
}

// SettingsSet holds captured settings grouped by their value list.
type SettingsSet struct {
	StringData []Setting `json:"StringData"`
	IntData    []Setting `json:"IntData"`
	FloatData  []Setting `json:"FloatData"`
	BoolData   []Setting `json:"BoolData"`
}

// Setting list names of the global document, in document order.
const (
	ListString = "StringData"
	ListInt    = "IntData"
	ListFloat  = "FloatData"
	ListBool   = "BoolData"
)

// SettingLists enumerates the typed lists.
var SettingLists = []string{ListString, ListInt, ListFloat, ListBool}

// List returns a pointer to the named list, or nil for an unknown name.
func (s *SettingsSet) List(name string) *[]Setting {
	switch name {
	case ListString:
		return &s.StringData
	case ListInt:
		return &s.IntData
	case ListFloat:
		return &s.FloatData
	case ListBool:
		return &s.BoolData
	}
	return nil
}

// Len returns the total number of settings in the set.
func (s SettingsSet) Len() int {
	return len(s.StringData) + len(s.IntData) + len(s.FloatData) + len(s.BoolData)
}

// Profile is a named snapshot of global settings.
type Profile struct {
	Version     int             `json:"profile_version"`
	Name        string          `json:"name"`
	Category    ProfileCategory `json:"category"`
	CreatedAt   time.Time       `json:"created_date"`
	AppVersion  string          `json:"vts_version"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags"`
	CustomKeys  []string        `json:"custom_keys,omitempty"`
	Settings    SettingsSet     `json:"settings"`
}

// ProfileInfo is the listing view of a profile.
type ProfileInfo struct {
	Name         string          `json:"name"`
	Category     ProfileCategory `json:"category"`
	CreatedAt    time.Time       `json:"created_date"`
	Description  string          `json:"description"`
	Tags         []string        `json:"tags"`
	SettingCount int             `json:"setting_count"`
	Path         string          `json:"path"`
}

// KeyChange is one entry of a profile diff.
type KeyChange struct {
	Type string          `json:"type"`
	Key  string          `json:"key"`
	A    json.RawMessage `json:"a,omitempty"`
	B    json.RawMessage `json:"b,omitempty"`
}

// ProfileDiff lists the keys that differ between two profiles.
type ProfileDiff struct {
	OnlyInA   []KeyChange `json:"only_in_a"`
	OnlyInB   []KeyChange `json:"only_in_b"`
	Different []KeyChange `json:"different_values"`
}

// Keys flattens the diff into the list of changed keys.
func (d *ProfileDiff) Keys() []string {
	keys := make([]string, 0, len(d.OnlyInA)+len(d.OnlyInB)+len(d.Different))
	for _, group := range [][]KeyChange{d.OnlyInA, d.OnlyInB, d.Different} {
		for _, c := range group {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// ProfileApplyResult is the outcome of merging a profile into the live global document.
type ProfileApplyResult struct {
	Applied    bool     `json:"applied"`
	Updated    int      `json:"updated"`
	Added      int      `json:"added"`
	Unchanged  int      `json:"unchanged"`
	BackupPath string   `json:"backup_path,omitempty"`
	RolledBack bool     `json:"rolled_back"`
	Changelog  []string `json:"changelog"`
}

// Archive areas.
const (
	AreaGlobalConfig     = "global_config"
	AreaCustomParameters = "custom_parameters"
	AreaCalibration      = "calibration"
	AreaVisualEffects    = "visual_effects"
	AreaModelConfigs     = "model_configs"
	AreaModelAssets      = "model_assets"
	AreaItemConfigs      = "item_configs"
	AreaPluginAuth       = "plugin_auth"
)

// ArchiveOptions selects the areas of the tree that go into an archive.
type ArchiveOptions struct {
	IncludeGlobalConfig     bool `json:"include_global_config"`
	IncludeCustomParameters bool `json:"include_custom_parameters"`
	IncludeCalibration      bool `json:"include_calibration"`
	IncludeVisualEffects    bool `json:"include_visual_effects"`
	IncludeModelConfigs     bool `json:"include_model_configs"`
	IncludeModelAssets      bool `json:"include_model_assets"`
	IncludeItemConfigs      bool `json:"include_item_configs"`
	IncludePluginAuth       bool `json:"include_plugin_auth"`

	Notes      string `json:"-"`
	Reason     string `json:"-"`
	AppVersion string `json:"-"`
	Algorithm  string `json:"-" validate:"omitempty,oneof=sha256 blake2b"`
}

// DefaultArchiveOptions includes everything except plugin authentication tokens.
func DefaultArchiveOptions() ArchiveOptions {
	return ArchiveOptions{
		IncludeGlobalConfig:     true,
		IncludeCustomParameters: true,
		IncludeCalibration:      true,
		IncludeVisualEffects:    true,
		IncludeModelConfigs:     true,
		IncludeModelAssets:      true,
		IncludeItemConfigs:      true,
		Reason:                  "manual",
	}
}

// Includes reports whether the area is selected.
func (o ArchiveOptions) Includes(area string) bool {
	switch area {
	case AreaGlobalConfig:
		return o.IncludeGlobalConfig
	case AreaCustomParameters:
		return o.IncludeCustomParameters
	case AreaCalibration:
		return o.IncludeCalibration
	case AreaVisualEffects:
		return o.IncludeVisualEffects
	case AreaModelConfigs:
		return o.IncludeModelConfigs
	case AreaModelAssets:
		return o.IncludeModelAssets
	case AreaItemConfigs:
		return o.IncludeItemConfigs
	case AreaPluginAuth:
		return o.IncludePluginAuth
	}
	return false
}

// ManifestEntry is one file of an archive.
type ManifestEntry struct {
	Path        string `json:"path"`
	Area        string `json:"area"`
	Size        int64  `json:"size"`
	Fingerprint string `json:"fingerprint"`
}

// ArchiveCounts summarises an archive's content.
type ArchiveCounts struct {
	Models int `json:"models"`
	Items  int `json:"items"`
	Files  int `json:"files"`
}

// ArchiveManifest is the index written as the first entry of every archive.
type ArchiveManifest struct {
	FormatVersion int             `json:"format_version"`
	CreatedAt     time.Time       `json:"created_at"`
	AppVersion    string          `json:"vts_version"`
	Notes         string          `json:"user_notes"`
	Reason        string          `json:"backup_reason"`
	Algorithm     string          `json:"algorithm"`
	Options       ArchiveOptions  `json:"options"`
	Counts        ArchiveCounts   `json:"counts"`
	Files         []ManifestEntry `json:"files"`
}

// RestoreOptions selects what an archive restore writes back.
type RestoreOptions struct {
	ArchiveOptions
	PreRestoreBackup bool     `json:"pre_restore_backup"`
	CreateMissing    bool     `json:"create_missing"`
	LockMode         LockMode `json:"lock_mode" validate:"omitempty,oneof=block fail"`
}

// DefaultRestoreOptions restores everything but plugin auth, with a pre-restore backup.
func DefaultRestoreOptions() RestoreOptions {
	return RestoreOptions{
		ArchiveOptions:   DefaultArchiveOptions(),
		PreRestoreBackup: true,
		LockMode:         LockBlock,
	}
}

// File outcome statuses of a restore.
const (
	FileRestored = "restored"
	FileFailed   = "failed"
	FileSkipped  = "skipped"
)

// FileOutcome is the per-file line of a RestoreReport.
type FileOutcome struct {
	Path       string `json:"path"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	BackupPath string `json:"backup_path,omitempty"`
}

// RestoreReport accumulates the result of an archive restore.
type RestoreReport struct {
	Success        bool `json:"success"`
	PartialSuccess bool `json:"partial_success"`

	Restored int `json:"files_restored"`
	Failed   int `json:"files_failed"`
	Skipped  int `json:"files_skipped"`

	Files             []FileOutcome `json:"files"`
	PreRestoreBackups []string      `json:"pre_restore_backups"`
	Errors            []Issue       `json:"errors"`
	Warnings          []Issue       `json:"warnings"`
}

// ArchiveInfo describes an archive file in the archive directory.
type ArchiveInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// HousekeepingReport summarises one housekeeping run.
type HousekeepingReport struct {
	DocumentsChecked int    `json:"documents_checked"`
	BackupsPruned    int    `json:"backups_pruned"`
	ArchivesDeleted  int    `json:"archives_deleted"`
	SpaceFreedBytes  int64  `json:"space_freed_bytes"`
	Message          string `json:"message"`
}

// Operation is one row of the operation journal.
type Operation struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Target     string    `json:"target"`
	Actor      string    `json:"actor"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Success    bool      `json:"success"`
	Summary    string    `json:"summary"`
	BackupPath string    `json:"backup_path,omitempty"`
	Details    string    `json:"details,omitempty"`
}

// OperationFilter narrows a journal listing.
type OperationFilter struct {
	Kind   string
	Target string
	Since  time.Time
	Limit  int
}

// RenameResult is the outcome of renaming a model document.
type RenameResult struct {
	Success    bool     `json:"success"`
	Applied    bool     `json:"applied"`
	Document   string   `json:"document"`
	OldName    string   `json:"old_name"`
	NewName    string   `json:"new_name"`
	OldModelID string   `json:"old_model_id"`
	NewModelID string   `json:"new_model_id"`
	BackupPath string   `json:"backup_path,omitempty"`
	RolledBack bool     `json:"rolled_back"`
	Changelog  []string `json:"changelog"`
}

// RecoveryItem is one invalid document found by a recovery scan.
type RecoveryItem struct {
	Document string `json:"document"`
	Problem  string `json:"problem"`
	BackupID string `json:"backup_id,omitempty"`
	Restored bool   `json:"restored"`
	Error    string `json:"error,omitempty"`
}

// RecoveryReport is the outcome of a recovery scan.
type RecoveryReport struct {
	DryRun   bool           `json:"dry_run"`
	Checked  int            `json:"documents_checked"`
	Restored int            `json:"documents_restored"`
	Invalid  []RecoveryItem `json:"invalid"`
}

// Info describes the installation the tool is pointed at.
type Info struct {
	ServiceName    string `json:"service_name"`
	Version        string `json:"version"`
	VTSRoot        string `json:"vts_root"`
	TreeFound      bool   `json:"tree_found"`
	StateDir       string `json:"state_dir"`
	Models         int    `json:"models"`
	Profiles       int    `json:"profiles"`
	Archives       int    `json:"archives"`
	LockMode       string `json:"lock_mode"`
	JournalEnabled bool   `json:"journal_enabled"`
	EventsEnabled  bool   `json:"events_enabled"`
	UploadBucket   string `json:"upload_bucket,omitempty"`
}
