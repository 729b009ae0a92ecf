package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/xmlshred/internal/dbfiles"
	"github.com/mesh-intelligence/xmlshred/internal/shred"
	"github.com/mesh-intelligence/xmlshred/internal/sqlite"
	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

type importFlags struct {
	db         string
	force      bool
	noProgress bool
}

// importReport is what the import command prints.
type importReport struct {
	Database string `json:"database"`
	Skipped  bool   `json:"skipped,omitempty"`
	types.ImportResult
}

func newImportCmd() *cobra.Command {
	var f importFlags
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import XML documents into one SQLite database",
		Long: "Import XML documents into one SQLite database. Unless --db is given the\n" +
			"database is named after a fingerprint of the input files, so importing the\n" +
			"same files again finds the existing database. Interrupting stops the run\n" +
			"after the current file.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args, f)
		},
	}
	cmd.Flags().StringVar(&f.db, "db", "", "database file (default: <data-dir>/xmlshred_<fingerprint>.sqlite)")
	cmd.Flags().BoolVar(&f.force, "force", false, "replace the database if it already exists")
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "do not draw a progress bar")
	cmd.Flags().Int("batch-size", 0, "finalized nodes per transaction")
	cmd.Flags().Bool("fold-diacritics", false, "strip accents from names before turning them into identifiers")
	cmd.Flags().String("journal-mode", "", "SQLite journal mode used while importing")
	cmd.Flags().String("synchronous", "", "SQLite synchronous mode used while importing")
	return cmd
}

func runImport(cmd *cobra.Command, files []string, f importFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := app.log

	dbPath := f.db
	if dbPath == "" {
		fp, err := dbfiles.Fingerprint(ctx, files)
		if err != nil {
			return err
		}
		dbPath = filepath.Join(app.dataDir, dbfiles.DatabaseName(fp))
	}

	if _, err := os.Stat(dbPath); err == nil {
		if !f.force {
			log.Info("database already exists", zap.String("database", dbPath))
			return printImport(cmd.OutOrStdout(), importReport{Database: dbPath, Skipped: true})
		}
		if err := dbfiles.Remove(dbPath); err != nil {
			return fmt.Errorf("replace %s: %w", dbPath, err)
		}
	}

	showProgress := !f.noProgress && !flags.jsonMode
	res, err := importInto(ctx, dbPath, files, showProgress, log)
	return finishImport(cmd.OutOrStdout(), dbPath, res, err, log)
}

// finishImport reports a run. A failed run's database is removed; a run
// without constraints keeps its database, is reported, and still returns
// its error.
func finishImport(w io.Writer, dbPath string, res types.ImportResult, err error, log *zap.Logger) error {
	if err != nil && res.Status == types.StatusFailed {
		if rmErr := dbfiles.Remove(dbPath); rmErr != nil {
			log.Warn("could not remove incomplete database", zap.String("database", dbPath), zap.Error(rmErr))
		} else {
			log.Info("removed incomplete database", zap.String("database", dbPath))
		}
		return err
	}

	if pErr := printImport(w, importReport{Database: dbPath, ImportResult: res}); pErr != nil {
		return pErr
	}
	return err
}

func importInto(ctx context.Context, dbPath string, files []string, progress bool, log *zap.Logger) (types.ImportResult, error) {
	failed := types.ImportResult{Status: types.StatusFailed}

	store, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return failed, err
	}
	defer store.Close()

	im, err := shred.New(ctx, store, app.cfg, log)
	if err != nil {
		return failed, err
	}
	defer im.Close()

	var onDone func(string)
	if progress {
		uiprogress.Start()
		defer uiprogress.Stop()
		bar := uiprogress.AddBar(len(files)).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return fmt.Sprintf("%d/%d files ", b.Current(), len(files))
		})
		onDone = func(string) { bar.Incr() }
	}

	return im.ImportFiles(ctx, files, onDone)
}

func printImport(w io.Writer, r importReport) error {
	if flags.jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	if r.Skipped {
		_, err := fmt.Fprintf(w, "%s already exists; use --force to rebuild it\n", r.Database)
		return err
	}
	_, err := fmt.Fprintf(w, "%s\n  status:      %s\n  files:       %d\n  tables:      %d\n  rows:        %d\n  constraints: %d\n  elapsed:     %s\n",
		r.Database, r.Status, len(r.Files), r.Tables, r.Rows, r.Constraints, r.Elapsed.Round(time.Millisecond))
	return err
}
