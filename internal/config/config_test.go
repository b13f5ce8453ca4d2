// filepath: internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/checksum"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

func TestConfig_ParseAndValidate(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg := Default()
		cfg.Paths.StateDir = "/state"
		require.NoError(t, cfg.ParseAndValidate())

		assert.Equal(t, 30*time.Second, cfg.LockTimeout)
		assert.Equal(t, 24*time.Hour, cfg.HousekeepingInterval)
		assert.Equal(t, checksum.SHA256, cfg.Algorithm)
		assert.Zero(t, cfg.ArchiveMaxAge)
		assert.Zero(t, cfg.ArchiveMaxDiskSpace)
		assert.Equal(t, filepath.Join("/state", "profiles"), cfg.Paths.ProfilesDir)
		assert.Equal(t, filepath.Join("/state", "archives"), cfg.Paths.ArchiveDir)
		assert.Equal(t, filepath.Join("/state", "journal.db"), cfg.Journal.Path)
		assert.Equal(t, filepath.Join("/state", "locks"), cfg.LockDir())
	})

	t.Run("Human Readable Values", func(t *testing.T) {
		cfg := Default()
		cfg.Archive.MaxAge = "90d"
		cfg.Archive.MaxDiskSpace = "2GB"
		cfg.Archive.Algorithm = "BLAKE2B"
		cfg.Lock.Timeout = "0"
		require.NoError(t, cfg.ParseAndValidate())

		assert.Equal(t, 90*24*time.Hour, cfg.ArchiveMaxAge)
		assert.Equal(t, uint64(2<<30), cfg.ArchiveMaxDiskSpace)
		assert.Equal(t, checksum.Blake2b, cfg.Algorithm)
		assert.Zero(t, cfg.LockTimeout)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"Bad Lock Mode", func(c *Config) { c.Lock.Mode = "wait" }, "invalid lock mode"},
		{"Bad Lock Timeout", func(c *Config) { c.Lock.Timeout = "soon" }, "invalid lock timeout"},
		{"Bad Algorithm", func(c *Config) { c.Archive.Algorithm = "md5" }, "invalid archive algorithm"},
		{"Bad Max Age", func(c *Config) { c.Archive.MaxAge = "3 weeks" }, "invalid archive max_age"},
		{"Bad Disk Space", func(c *Config) { c.Archive.MaxDiskSpace = "lots" }, "invalid archive max_disk_space"},
		{"Negative Count", func(c *Config) { c.Archive.MaxCount = -1 }, "invalid archive max_count"},
		{"Bad Interval", func(c *Config) { c.Housekeeping.Interval = "daily" }, "invalid housekeeping interval"},
		{"Negative Keep", func(c *Config) { c.Backup.Keep = -3 }, "invalid backup keep"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.ParseAndValidate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestLoadConfig_KeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := []byte(`
[paths]
vts_root = "/games/VTube Studio"

[transfer]
copy_assets = true

[archive]
max_count = 5
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/games/VTube Studio", cfg.Paths.VTSRoot)
	assert.True(t, cfg.Transfer.CopyAssets)
	assert.True(t, cfg.Transfer.RequireBackup, "unset keys keep their default")
	assert.True(t, cfg.Transfer.Atomic)
	assert.Equal(t, 5, cfg.Archive.MaxCount)
	assert.Equal(t, 10, cfg.Backup.Keep)

	spec := cfg.TransferDefaults()
	assert.True(t, spec.CopyAssets)
	assert.Equal(t, models.LockBlock, spec.LockMode)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Paths.VTSRoot = "/vts"
	cfg.S3.Bucket = "backups"

	require.NoError(t, SaveConfig(path, cfg))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/vts", loaded.Paths.VTSRoot)
	assert.Equal(t, "backups", loaded.S3.Bucket)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[paths\nvts_root = 1"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
