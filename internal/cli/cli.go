package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/audit"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/config"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/events"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/journal"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/services"
)

// Version is set at build time.
var Version = "dev"

// Exit codes returned by Execute.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitValidation = 2
	ExitConflict   = 3
	ExitLocked     = 4
	ExitIntegrity  = 5
	ExitNotFound   = 6
	ExitConfig     = 7
	ExitCancelled  = 130
)

type GlobalOptions struct {
	CfgFilePath string
	LogLevel    string
	VTSRoot     string
	StateDir    string
	LockMode    string
	Audit       bool

	Conf *config.Config

	// NewService builds the facade from the loaded configuration. Tests
	// replace it to run commands without a journal or publisher.
	NewService func(*config.Config) (*services.Service, error)

	svc *services.Service
}

func NewRootCMD() *cobra.Command {
	return newRootCommand(&GlobalOptions{NewService: buildService})
}

func newRootCommand(globalOptions *GlobalOptions) *cobra.Command {

	rootCMD := &cobra.Command{
		Use:           "vtscp",
		Short:         "VTube Studio parameter control panel",
		Long:          "Edits, validates, backs up and archives VTube Studio configuration documents.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return globalOptions.initializeConfig(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return globalOptions.close()
		},
	}

	// register global flags
	globalOptions.registerFlags(rootCMD)

	// add subcommands
	rootCMD.AddCommand(NewValidateCommand(globalOptions))
	rootCMD.AddCommand(NewTransferCommand(globalOptions))
	rootCMD.AddCommand(NewRenameCommand(globalOptions))
	rootCMD.AddCommand(NewBackupCommand(globalOptions))
	rootCMD.AddCommand(NewProfileCommand(globalOptions))
	rootCMD.AddCommand(NewArchiveCommand(globalOptions))
	rootCMD.AddCommand(NewHistoryCommand(globalOptions))
	rootCMD.AddCommand(NewHousekeepingCommand(globalOptions))
	rootCMD.AddCommand(NewRecoveryCommand(globalOptions))
	rootCMD.AddCommand(NewJournalCommand(globalOptions))
	rootCMD.AddCommand(NewConfigCommand(globalOptions))
	rootCMD.AddCommand(NewInfoCommand(globalOptions))

	return rootCMD
}

func (options *GlobalOptions) registerFlags(cmd *cobra.Command) {
	// flags that can be used for each command
	cmd.PersistentFlags().StringVar(&options.CfgFilePath, "config_path", defaultConfigPath, "Path to the base configuration file. (Env: VTSCP_CONFIG_PATH)")
	cmd.PersistentFlags().StringVar(&options.LogLevel, "log-level", "", "Logging level (debug, info, warn, error). (Env: VTSCP_LOGGING_LEVEL)")
	cmd.PersistentFlags().StringVar(&options.VTSRoot, "vts-root", "", "Path to the VTube Studio StreamingAssets folder. (Env: VTSCP_PATHS_VTS_ROOT)")
	cmd.PersistentFlags().StringVar(&options.StateDir, "state-dir", "", "Directory for locks, profiles, archives and the journal. (Env: VTSCP_PATHS_STATE_DIR)")
	cmd.PersistentFlags().StringVar(&options.LockMode, "lock-mode", "", "Wait for a busy document (block) or give up at once (fail). (Env: VTSCP_LOCK_MODE)")
	cmd.PersistentFlags().BoolVar(&options.Audit, "audit", false, "Enable audit logging. (Env: VTSCP_LOGGING_AUDIT_ENABLED=true)")
}

// Service returns the facade, building it on first use.
func (options *GlobalOptions) Service() (*services.Service, error) {
	if options.svc != nil {
		return options.svc, nil
	}
	if options.Conf == nil {
		return nil, fmt.Errorf("%w: configuration not loaded", services.ErrConfig)
	}
	svc, err := options.NewService(options.Conf)
	if err != nil {
		return nil, err
	}
	options.svc = svc
	return svc, nil
}

func (options *GlobalOptions) close() error {
	if options.svc == nil {
		return nil
	}
	err := options.svc.Close()
	options.svc = nil
	return err
}

// buildService opens the outer integrations named by cfg and wires them
// into a Service.
func buildService(cfg *config.Config) (*services.Service, error) {
	deps := services.Dependencies{
		Auditor: audit.NewLoggerAuditor(cfg.Logging.AuditEnabled),
		Actor:   audit.CurrentActor(),
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", services.ErrConfig, err)
		}
		deps.Journal = j
	}

	pub, err := events.New(cfg.Events.NATSURL)
	if err != nil {
		// Events are optional; the operation still runs without them.
		logging.Log.Warnf("Event publishing disabled: %v", err)
		pub = &events.NoopPublisher{}
	}
	deps.Events = pub

	return services.New(cfg, deps), nil
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, services.ErrCancelled), errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.Is(err, services.ErrValidation):
		return ExitValidation
	case errors.Is(err, services.ErrConflict):
		return ExitConflict
	case errors.Is(err, services.ErrLocked):
		return ExitLocked
	case errors.Is(err, services.ErrIntegrity):
		return ExitIntegrity
	case errors.Is(err, services.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, services.ErrConfig):
		return ExitConfig
	default:
		return ExitFailure
	}
}

func Execute() {

	globalOptions := &GlobalOptions{NewService: buildService}
	rootCmd := newRootCommand(globalOptions)

	// Interrupts cancel the running operation, which then rolls back.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run the command based on os.Args
	err := rootCmd.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	if cerr := globalOptions.close(); cerr != nil {
		logging.Log.Warnf("Could not close cleanly: %v", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(ExitCode(err))
	}
}
