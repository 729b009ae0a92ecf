package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/xmlshred/internal/sqlite"
)

var errDatabaseMissing = errors.New("database does not exist")

// tableSummary describes one imported table.
type tableSummary struct {
	Name    string   `json:"name"`
	Rows    int64    `json:"rows"`
	Columns []string `json:"columns"`
	Parents []string `json:"parents,omitempty"`
}

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables DATABASE",
		Short: "List the tables of an imported database",
		Long:  "List every table of an imported database with its row count, columns and the parent tables its foreign keys reference.",
		Args:  cobra.ExactArgs(1),
		RunE:  runTables,
	}
}

func runTables(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, errDatabaseMissing)
		}
		return err
	}

	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()
	db := store.DB()

	names, err := sqlite.Tables(ctx, db)
	if err != nil {
		return err
	}
	summaries := make([]tableSummary, 0, len(names))
	for _, name := range names {
		s := tableSummary{Name: name}
		if s.Rows, err = sqlite.RowCount(ctx, db, name); err != nil {
			return err
		}
		cols, err := sqlite.TableInfo(ctx, db, name)
		if err != nil {
			return err
		}
		for _, c := range cols {
			s.Columns = append(s.Columns, c.Name)
		}
		fks, err := sqlite.ForeignKeys(ctx, db, name)
		if err != nil {
			return err
		}
		for _, fk := range fks {
			s.Parents = append(s.Parents, fk.RefTable)
		}
		summaries = append(summaries, s)
	}
	return printTables(cmd.OutOrStdout(), summaries)
}

func printTables(w io.Writer, tables []tableSummary) error {
	if flags.jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tables)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tROWS\tCOLUMNS\tPARENTS")
	for _, t := range tables {
		parents := strings.Join(t.Parents, ",")
		if parents == "" {
			parents = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", t.Name, t.Rows, len(t.Columns), parents)
	}
	return tw.Flush()
}
