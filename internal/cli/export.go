package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/xmlshred/internal/sqlite"
)

type exportedTable struct {
	Table string `json:"table"`
	File  string `json:"file"`
	Rows  int64  `json:"rows"`
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export DATABASE",
		Short: "Write each table of an imported database as JSONL",
		Long:  "Write every table (or the ones named with --table) to <dir>/<table>.jsonl, one row per line.",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	cmd.Flags().String("dir", ".", "output directory")
	cmd.Flags().StringSlice("table", nil, "tables to export (default all)")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, errDatabaseMissing)
		}
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")
	only, _ := cmd.Flags().GetStringSlice("table")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()
	db := store.DB()

	names := only
	if len(names) == 0 {
		if names, err = sqlite.Tables(ctx, db); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	written := make([]exportedTable, 0, len(names))
	for _, name := range names {
		file := filepath.Join(dir, name+".jsonl")
		n, err := sqlite.ExportJSONL(ctx, db, name, file)
		if err != nil {
			return err
		}
		app.log.Debug("exported table", zap.String("table", name), zap.Int64("rows", n))
		written = append(written, exportedTable{Table: name, File: file, Rows: n})
	}

	if flags.jsonMode {
		return json.NewEncoder(out).Encode(written)
	}
	for _, e := range written {
		fmt.Fprintf(out, "%s: %d row(s) -> %s\n", e.Table, e.Rows, e.File)
	}
	return nil
}
