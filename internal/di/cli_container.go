package di

import (
	"flag"
	"io"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/decoy-alerts/internal/config"
	"github.com/mikey/decoy-alerts/internal/factory"
	"github.com/mikey/decoy-alerts/internal/logging"
	"github.com/mikey/decoy-alerts/internal/ports"
)

// CLIFlags contains the global command line flags of the operator CLI
type CLIFlags struct {
	// Database flags
	DatabaseType string
	SQLitePath   string
	MySQLDSN     string

	// Output flags
	Verbose    bool
	JSONLog    bool
	ConfigFile string

	// Remaining arguments: the subcommand and its flags
	Args []string
}

// ParseFlags parses the global flags from args (without the program name)
func ParseFlags(name string, args []string, output io.Writer) (*CLIFlags, error) {
	flags := &CLIFlags{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	// Database flags
	fs.StringVar(&flags.DatabaseType, "db-type", "", "Store type (sqlite, mysql, memory); overrides the configuration")
	fs.StringVar(&flags.SQLitePath, "sqlite-path", "", "SQLite database path; overrides the configuration")
	fs.StringVar(&flags.MySQLDSN, "mysql-dsn", "", "MySQL DSN; overrides the configuration")

	// Output flags
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	flags.Args = fs.Args()
	return flags, nil
}

// BuildCLIContainer creates and configures a dependency injection container for the operator CLI
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		var (
			cfg *config.Config
			err error
		)
		if flags.ConfigFile != "" {
			cfg, err = config.NewFromFile(flags.ConfigFile)
		} else {
			cfg, err = config.New()
		}
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Debug("Loaded configuration from file", zap.String("file", used))
		}
		applyFlagOverrides(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register store
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StoreFactory) (ports.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// applyFlagOverrides copies explicitly set database flags into the configuration
func applyFlagOverrides(cfg *config.Config, flags *CLIFlags) {
	if flags.DatabaseType != "" {
		cfg.Set("database.type", flags.DatabaseType)
	}
	if flags.SQLitePath != "" {
		cfg.Set("database.sqlite_path", flags.SQLitePath)
	}
	if flags.MySQLDSN != "" {
		cfg.Set("database.mysql_dsn", flags.MySQLDSN)
	}
}
