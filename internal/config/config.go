// filepath: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/checksum"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/shared"
)

// Config holds the application's configuration.
type Config struct {
	Paths        PathsConfig        `toml:"paths"`
	Logging      LoggingConfig      `toml:"logging"`
	Backup       BackupConfig       `toml:"backup"`
	Transfer     TransferConfig     `toml:"transfer"`
	Lock         LockConfig         `toml:"lock"`
	Archive      ArchiveConfig      `toml:"archive"`
	Housekeeping HousekeepingConfig `toml:"housekeeping"`
	Journal      JournalConfig      `toml:"journal"`
	Events       EventsConfig       `toml:"events"`
	S3           S3Config           `toml:"s3"`

	// Runtime values computed by ParseAndValidate.
	LockTimeout          time.Duration      `toml:"-"`
	ArchiveMaxAge        time.Duration      `toml:"-"`
	ArchiveMaxDiskSpace  uint64             `toml:"-"`
	HousekeepingInterval time.Duration      `toml:"-"`
	Algorithm            checksum.Algorithm `toml:"-"`
}

// PathsConfig locates the configuration tree and the tool's own state.
type PathsConfig struct {
	VTSRoot     string `toml:"vts_root"`
	StateDir    string `toml:"state_dir"`
	ProfilesDir string `toml:"profiles_dir"`
	ArchiveDir  string `toml:"archive_dir"`
}

// LoggingConfig holds the logging configuration.
type LoggingConfig struct {
	Level        string `toml:"level"`
	AuditEnabled bool   `toml:"audit_enabled"`
}

// BackupConfig holds the document backup retention.
type BackupConfig struct {
	Keep int `toml:"keep"`
}

// TransferConfig holds the defaults of the transfer flags.
type TransferConfig struct {
	RegenerateIDs       bool `toml:"regenerate_ids"`
	CopyAssets          bool `toml:"copy_assets"`
	RequireBackup       bool `toml:"require_backup"`
	Strict              bool `toml:"strict"`
	Atomic              bool `toml:"atomic"`
	RequireKnownOutputs bool `toml:"require_known_outputs"`
}

// LockConfig selects how writers wait for a busy document.
type LockConfig struct {
	Mode    string `toml:"mode"`    // "block" or "fail"
	Timeout string `toml:"timeout"` // e.g. "30s"; "0" waits forever
}

// ArchiveConfig holds archive building and retention settings.
type ArchiveConfig struct {
	Algorithm         string `toml:"algorithm"`
	AppVersion        string `toml:"app_version"`
	IncludePluginAuth bool   `toml:"include_plugin_auth"`
	MaxAge            string `toml:"max_age"`        // e.g. "90d"
	MaxCount          int    `toml:"max_count"`      // 0 disables
	MaxDiskSpace      string `toml:"max_disk_space"` // e.g. "2GB"
}

// HousekeepingConfig holds the background cleanup schedule.
type HousekeepingConfig struct {
	Interval string `toml:"interval"` // e.g. "24h"
}

// JournalConfig holds the operation history store.
type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// EventsConfig holds the operation event publisher.
type EventsConfig struct {
	NATSURL string `toml:"nats_url"`
}

// S3Config holds the archive upload destination.
type S3Config struct {
	Bucket   string `toml:"bucket"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
	Prefix   string `toml:"prefix"`
}

// Default returns a configuration with every default filled in. Paths that
// depend on the state directory are resolved by ParseAndValidate.
func Default() *Config {
	return &Config{
		Logging:  LoggingConfig{Level: "info"},
		Backup:   BackupConfig{Keep: 10},
		Transfer: TransferConfig{RequireBackup: true, Atomic: true},
		Lock:     LockConfig{Mode: string(models.LockBlock), Timeout: "30s"},
		Archive: ArchiveConfig{
			Algorithm: string(checksum.Default),
			MaxAge:    "0",
		},
		Housekeeping: HousekeepingConfig{Interval: "24h"},
		Journal:      JournalConfig{Enabled: true},
		S3:           S3Config{Region: "us-east-1", Prefix: "vtscp"},
	}
}

// LoadConfig loads the configuration from a TOML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the configuration to a TOML file.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("trying to save the config: %w", shared.ErrorCreateFile)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trying to save the config: %w", shared.ErrorCreateFile)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("trying to save the config: %w", shared.ErrorEncodeFile)
	}
	return nil
}

// ParseAndValidate processes configuration strings into runtime values and
// fills in the paths derived from the state directory.
func (c *Config) ParseAndValidate() error {
	var err error

	switch models.LockMode(c.Lock.Mode) {
	case "":
		c.Lock.Mode = string(models.LockBlock)
	case models.LockBlock, models.LockFailFast:
	default:
		return fmt.Errorf("invalid lock mode %q (want block or fail)", c.Lock.Mode)
	}
	if c.LockTimeout, err = shared.ParseDuration(c.Lock.Timeout); err != nil {
		return fmt.Errorf("invalid lock timeout: %w", err)
	}
	if c.Algorithm, err = checksum.ParseAlgorithm(c.Archive.Algorithm); err != nil {
		return fmt.Errorf("invalid archive algorithm: %w", err)
	}
	if c.ArchiveMaxAge, err = shared.ParseDuration(c.Archive.MaxAge); err != nil {
		return fmt.Errorf("invalid archive max_age: %w", err)
	}
	if c.ArchiveMaxDiskSpace, err = shared.ParseSize(c.Archive.MaxDiskSpace); err != nil {
		return fmt.Errorf("invalid archive max_disk_space: %w", err)
	}
	if c.Archive.MaxCount < 0 {
		return fmt.Errorf("invalid archive max_count: %d", c.Archive.MaxCount)
	}
	if c.HousekeepingInterval, err = shared.ParseDuration(c.Housekeeping.Interval); err != nil {
		return fmt.Errorf("invalid housekeeping interval: %w", err)
	}
	if c.Backup.Keep < 0 {
		return fmt.Errorf("invalid backup keep: %d", c.Backup.Keep)
	}

	if c.Paths.StateDir == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.ProfilesDir == "" {
		c.Paths.ProfilesDir = filepath.Join(c.Paths.StateDir, "profiles")
	}
	if c.Paths.ArchiveDir == "" {
		c.Paths.ArchiveDir = filepath.Join(c.Paths.StateDir, "archives")
	}
	if c.Journal.Path == "" {
		c.Journal.Path = filepath.Join(c.Paths.StateDir, "journal.db")
	}
	return nil
}

// LockDir is where document lock files are kept.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

// TransferDefaults returns the transfer spec implied by the configuration.
func (c *Config) TransferDefaults() models.TransferSpec {
	return models.TransferSpec{
		RegenerateIDs:       c.Transfer.RegenerateIDs,
		CopyAssets:          c.Transfer.CopyAssets,
		RequireBackup:       c.Transfer.RequireBackup,
		Strict:              c.Transfer.Strict,
		Atomic:              c.Transfer.Atomic,
		RequireKnownOutputs: c.Transfer.RequireKnownOutputs,
		LockMode:            models.LockMode(c.Lock.Mode),
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "vtscp")
	}
	return ".vtscp"
}
