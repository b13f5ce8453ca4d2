// filepath: internal/cli/config_loader.go
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/config"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
)

const (
	envPrefix         = "VTSCP"
	defaultConfigPath = "config.toml"
)

// envKeys are the configuration keys that can be set from VTSCP_* variables;
// "paths.vts_root" is read from VTSCP_PATHS_VTS_ROOT.
var envKeys = []string{
	"paths.vts_root",
	"paths.state_dir",
	"paths.profiles_dir",
	"paths.archive_dir",
	"logging.level",
	"logging.audit_enabled",
	"backup.keep",
	"lock.mode",
	"lock.timeout",
	"archive.algorithm",
	"archive.max_age",
	"archive.max_count",
	"archive.max_disk_space",
	"housekeeping.interval",
	"journal.enabled",
	"journal.path",
	"events.nats_url",
	"s3.bucket",
	"s3.region",
	"s3.endpoint",
	"s3.prefix",
}

// newEnv returns a viper instance that reads only the environment.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.BindEnv("config_path")
	for _, k := range envKeys {
		v.BindEnv(k)
	}
	return v
}

// initializeConfig loads and overrides configuration values.
func (options *GlobalOptions) initializeConfig(cmd *cobra.Command) error {
	env := newEnv()

	// 1. Check environment variable for config path first
	if !cmd.Flags().Changed("config_path") && env.IsSet("config_path") {
		options.CfgFilePath = env.GetString("config_path")
	}

	cfg, err := config.LoadConfig(options.CfgFilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg = config.Default()
		} else {
			return fmt.Errorf("%w: failed to load configuration from %s: %w", services.ErrConfig, options.CfgFilePath, err)
		}
	}

	// 2. Apply Overrides (Env Vars and CLI Flags)
	if err := applyEnv(cfg, env); err != nil {
		return fmt.Errorf("%w: %w", services.ErrConfig, err)
	}
	options.applyFlags(cfg, cmd.Flags())

	// 3. Validate
	if err := cfg.ParseAndValidate(); err != nil {
		return fmt.Errorf("%w: configuration error: %w", services.ErrConfig, err)
	}

	// 4. Initialize Logging. Results go to stdout, so logs go to stderr.
	logging.InitTo(os.Stderr, cfg.Logging.Level)

	options.Conf = cfg
	return nil
}

func applyEnv(c *config.Config, env *viper.Viper) error {
	str := func(key string, dst *string) {
		if env.IsSet(key) {
			*dst = env.GetString(key)
		}
	}
	boolean := func(key string, dst *bool) error {
		if !env.IsSet(key) {
			return nil
		}
		b, err := parseBool(env.GetString(key))
		if err != nil {
			return fmt.Errorf("%s_%s: %w", envPrefix, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), err)
		}
		*dst = b
		return nil
	}
	integer := func(key string, dst *int) error {
		if !env.IsSet(key) {
			return nil
		}
		var n int
		if _, err := fmt.Sscanf(env.GetString(key), "%d", &n); err != nil {
			return fmt.Errorf("%s_%s: not a number", envPrefix, strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
		}
		*dst = n
		return nil
	}

	// --- Environment Variables ---
	str("paths.vts_root", &c.Paths.VTSRoot)
	str("paths.state_dir", &c.Paths.StateDir)
	str("paths.profiles_dir", &c.Paths.ProfilesDir)
	str("paths.archive_dir", &c.Paths.ArchiveDir)
	str("logging.level", &c.Logging.Level)
	str("lock.mode", &c.Lock.Mode)
	str("lock.timeout", &c.Lock.Timeout)
	str("archive.algorithm", &c.Archive.Algorithm)
	str("archive.max_age", &c.Archive.MaxAge)
	str("archive.max_disk_space", &c.Archive.MaxDiskSpace)
	str("housekeeping.interval", &c.Housekeeping.Interval)
	str("journal.path", &c.Journal.Path)
	str("events.nats_url", &c.Events.NATSURL)
	str("s3.bucket", &c.S3.Bucket)
	str("s3.region", &c.S3.Region)
	str("s3.endpoint", &c.S3.Endpoint)
	str("s3.prefix", &c.S3.Prefix)

	return errors.Join(
		boolean("logging.audit_enabled", &c.Logging.AuditEnabled),
		boolean("journal.enabled", &c.Journal.Enabled),
		integer("backup.keep", &c.Backup.Keep),
		integer("archive.max_count", &c.Archive.MaxCount),
	)
}

func (options *GlobalOptions) applyFlags(c *config.Config, flags *pflag.FlagSet) {
	// --- CLI Flags ---
	if flags.Changed("log-level") {
		c.Logging.Level = options.LogLevel
	}
	if flags.Changed("vts-root") {
		c.Paths.VTSRoot = options.VTSRoot
	}
	if flags.Changed("state-dir") {
		c.Paths.StateDir = options.StateDir
	}
	if flags.Changed("lock-mode") {
		c.Lock.Mode = options.LockMode
	}
	if flags.Changed("audit") {
		c.Logging.AuditEnabled = options.Audit
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "on":
		return true, nil
	case "0", "f", "false", "no", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
