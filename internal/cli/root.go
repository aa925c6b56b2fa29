package cli

import (
	"context"
	"fmt"

	"github.com/harun/cortex/internal/config"
	"github.com/harun/cortex/internal/logger"
	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/internal/tracing"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
	auditLog string
	traceOn  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cortex",
	Short: "Cortex - multi-region memory engine",
	Long: `Cortex routes memory operations to five region stores: working,
declarative, procedural, associative and emotional. Each region has its own
persistence, retry and caching policy, configured in one file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cortex/cortex.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&auditLog, "audit-log", "", "append destructive operations to this file")
	rootCmd.PersistentFlags().BoolVar(&traceOn, "trace", false, "log a line per finished span at debug level")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// loadConfig loads the configuration selected by --config and applies
// --log-level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		if err := config.NewValidator().ValidateLogLevel(logLevel); err != nil {
			return nil, err
		}
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// setup loads configuration, starts logging, opens the audit log and
// installs span logging when requested. The returned cleanup flushes spans
// and closes the log.
func setup() (*config.Config, *logger.Logger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := logger.New(logger.FromConfig(cfg.Logging))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if auditLog != "" {
		if err := observability.InitAuditLogger(auditLog); err != nil {
			log.Close()
			return nil, nil, nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	shutdown := func(context.Context) error { return nil }
	if traceOn {
		shutdown, err = tracing.Setup("cortex", version, tracing.NewLogExporter(log.GetZerolog()))
		if err != nil {
			log.Close()
			return nil, nil, nil, err
		}
	}

	cleanup := func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to flush spans")
		}
		log.Close()
	}
	return cfg, log, cleanup, nil
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
