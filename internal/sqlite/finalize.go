package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

// AddForeignKeys retrofits foreign keys onto every child table in rels.
// SQLite cannot add a constraint to an existing table, so each table is
// rebuilt: a sibling is created with the same columns plus the constraints,
// rows are copied, the original is dropped, the sibling renamed into place
// and the parent index recreated.
//
// All tables are rebuilt in one transaction with enforcement off; on any
// error the whole pass is rolled back. Enforcement is switched back on
// before returning. It returns the number of tables rebuilt.
func AddForeignKeys(ctx context.Context, s *Session, rels map[string][]types.Relationship, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	children := make([]string, 0, len(rels))
	for child, list := range rels {
		if len(list) > 0 {
			children = append(children, child)
		}
	}
	if len(children) == 0 {
		return 0, nil
	}
	sort.Strings(children)

	if err := s.SetForeignKeys(ctx, false); err != nil {
		return 0, fmt.Errorf("%w: %w", types.ErrFinalize, err)
	}
	if err := s.Begin(ctx); err != nil {
		_ = s.SetForeignKeys(ctx, true)
		return 0, fmt.Errorf("%w: %w", types.ErrFinalize, err)
	}

	rebuilt := 0
	for _, child := range children {
		exists, err := TableExists(ctx, s, child)
		if err != nil {
			_ = s.Rollback()
			_ = s.SetForeignKeys(ctx, true)
			return 0, fmt.Errorf("%w: %w", types.ErrFinalize, err)
		}
		if !exists {
			// Created by a document that was later rolled back.
			logger.Warn("skipping missing table", zap.String("table", child))
			continue
		}
		if err := rebuildWithForeignKeys(ctx, s, child, rels[child]); err != nil {
			_ = s.Rollback()
			_ = s.SetForeignKeys(ctx, true)
			return 0, fmt.Errorf("%w: table %s: %w", types.ErrFinalize, child, err)
		}
		logger.Debug("rebuilt table with foreign keys",
			zap.String("table", child), zap.Int("constraints", len(rels[child])))
		rebuilt++
	}

	if err := s.Commit(); err != nil {
		_ = s.SetForeignKeys(ctx, true)
		return 0, fmt.Errorf("%w: %w", types.ErrFinalize, err)
	}
	if err := s.SetForeignKeys(ctx, true); err != nil {
		return rebuilt, fmt.Errorf("%w: %w", types.ErrFinalize, err)
	}
	return rebuilt, nil
}

func rebuildWithForeignKeys(ctx context.Context, s *Session, table string, rels []types.Relationship) error {
	info, err := TableInfo(ctx, s, table)
	if err != nil {
		return err
	}
	if len(info) == 0 {
		return fmt.Errorf("table %s has no columns", table)
	}

	defs := make([]string, 0, len(info)+len(rels))
	names := make([]string, 0, len(info))
	for _, c := range info {
		def := quote(c.Name) + " " + c.Type
		if c.NotNull {
			def += " NOT NULL"
		}
		if c.Default.Valid && c.Default.String != "" {
			def += " DEFAULT " + c.Default.String
		}
		if c.PrimaryKey {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
		names = append(names, quote(c.Name))
	}
	for _, rel := range rels {
		defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE CASCADE",
			quote(rel.Column), quote(rel.ParentTable), quote(types.ColID)))
	}

	sibling, err := freeRebuildName(ctx, s, table)
	if err != nil {
		return err
	}
	columns := strings.Join(names, ", ")
	stmts := []string{
		fmt.Sprintf("CREATE TABLE %s (%s)", quote(sibling), strings.Join(defs, ", ")),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", quote(sibling), columns, columns, quote(table)),
		fmt.Sprintf("DROP TABLE %s", quote(table)),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quote(sibling), quote(table)),
		createParentIndexSQL(table),
	}
	for _, stmt := range stmts {
		if _, err := s.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", firstWords(stmt), err)
		}
	}
	return nil
}

// freeRebuildName returns a sibling name for table that no table, view,
// index or trigger uses yet.
func freeRebuildName(ctx context.Context, s *Session, table string) (string, error) {
	for n := 0; ; n++ {
		name := rebuildTableName(table, n)
		rows, err := s.QueryContext(ctx, objectExistsSQL, name)
		if err != nil {
			return "", fmt.Errorf("probe %s: %w", name, err)
		}
		taken := rows.Next()
		err = rows.Err()
		rows.Close()
		if err != nil {
			return "", fmt.Errorf("probe %s: %w", name, err)
		}
		if !taken {
			return name, nil
		}
	}
}

// firstWords names a statement in an error without dumping its full text.
func firstWords(stmt string) string {
	f := strings.Fields(stmt)
	if len(f) > 3 {
		f = f[:3]
	}
	return strings.ToLower(strings.Join(f, " "))
}
