// Package cli implements the xmlshred command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/xmlshred/internal/logging"
	"github.com/mesh-intelligence/xmlshred/internal/paths"
	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

// Exit codes.
const (
	exitSuccess       = 0
	exitUserError     = 1
	exitSysError      = 2
	exitNoConstraints = 3
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

var flags rootFlags

// app is the resolved state every subcommand runs with. It is filled in by
// the root command before a subcommand runs.
var app struct {
	cfg       types.Config
	log       *zap.Logger
	configDir string
	dataDir   string
}

// NewRootCmd creates the top-level "xmlshred" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	flags = rootFlags{}

	root := &cobra.Command{
		Use:   "xmlshred",
		Short: "Shred XML documents into SQLite tables",
		Long: "xmlshred imports arbitrary XML into SQLite without a schema. Every element\n" +
			"that carries attributes or children becomes a row in a table named after it,\n" +
			"linked to its parent row; leaf elements become columns of their parent.",
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "database directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().String("log-file", "", "append JSON logs to this file instead of stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newTablesCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newCleanCmd())
	root.AddCommand(newGenerateCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "xmlshred:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, types.ErrFinalize):
		return exitNoConstraints
	case errors.Is(err, types.ErrParse),
		errors.Is(err, types.ErrNoInput),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, errDatabaseMissing):
		return exitUserError
	default:
		return exitSysError
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(configDir, cmd)
	if err != nil {
		return err
	}
	dataDir, err := paths.ResolveDataDir(flags.dataDir, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}

	app.cfg = cfg
	app.log = logger
	app.configDir = configDir
	app.dataDir = dataDir
	logger.Debug("configuration loaded",
		zap.String("config_dir", configDir), zap.String("data_dir", dataDir))
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if app.log != nil {
		// stderr cannot always be synced; nothing useful to report.
		_ = app.log.Sync()
	}
	return nil
}
