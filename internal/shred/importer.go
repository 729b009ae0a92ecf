// Package shred imports arbitrary XML into SQLite by shredding each document
// into one table per element name, linked through _ParentId.
//
// An Importer owns one reserved connection for the whole run. The schema and
// relationship caches it keeps are cumulative across documents, so importing
// several files builds one combined schema. Foreign keys are retrofitted
// once, by Finalize, after the last document.
package shred

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/xmlshred/internal/ident"
	"github.com/mesh-intelligence/xmlshred/internal/sqlite"
	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

// Importer is a single import run against one database. It is not safe for
// concurrent use.
type Importer struct {
	cfg   types.Config
	log   *zap.Logger
	runID string

	session   *sqlite.Session
	registry  *sqlite.Registry
	rows      *sqlite.Rows
	relations *relationTracker
	names     ident.Normalizer

	documents int
}

// New starts a run against store. A nil logger discards output.
func New(ctx context.Context, store *sqlite.Store, cfg types.Config, logger *zap.Logger) (*Importer, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	session, err := store.Session(ctx)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := logger.With(zap.String("run", runID))
	return &Importer{
		cfg:       cfg,
		log:       log,
		runID:     runID,
		session:   session,
		registry:  sqlite.NewRegistry(session, log),
		rows:      sqlite.NewRows(session),
		relations: newRelationTracker(),
		names:     ident.New(cfg.FoldDiacritics),
	}, nil
}

// RunID identifies this run in logs and results.
func (im *Importer) RunID() string { return im.runID }

// Relationships returns every parent/child pair observed so far.
func (im *Importer) Relationships() []types.Relationship { return im.relations.All() }

// Close releases the run's connection. An open transaction is rolled back.
func (im *Importer) Close() error { return im.session.Close() }

// ImportDocument shreds one XML document from r. name is used in logs and
// errors only.
func (im *Importer) ImportDocument(ctx context.Context, r io.Reader, name string) error {
	return im.ImportSource(ctx, NewXMLSource(r), name)
}

// ImportSource shreds one document from an event source.
//
// The document runs inside transactions committed every BatchSize finalized
// nodes, with foreign-key enforcement off. On failure the open transaction
// is rolled back; batches already committed stay. Cancellation of ctx is not
// observed once the document has started.
func (im *Importer) ImportSource(ctx context.Context, src Source, name string) error {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	log := im.log.With(zap.String("document", name))

	if err := im.session.ApplyPragmas(ctx, im.cfg.JournalMode, im.cfg.Synchronous); err != nil {
		return fmt.Errorf("import %s: %w", name, err)
	}
	if err := im.session.SetForeignKeys(ctx, false); err != nil {
		return fmt.Errorf("import %s: %w", name, err)
	}
	if err := im.session.Begin(ctx); err != nil {
		im.restoreForeignKeys(ctx, log)
		return fmt.Errorf("import %s: %w", name, err)
	}

	w := &walker{
		ctx:       ctx,
		session:   im.session,
		registry:  im.registry,
		rows:      im.rows,
		relations: im.relations,
		names:     im.names,
		batchSize: im.cfg.BatchSize,
		log:       log,
	}
	rowsBefore := im.rows.Inserted()

	err := w.run(src)
	if err == nil {
		err = im.session.Commit()
	}
	if err != nil {
		if rbErr := im.session.Rollback(); rbErr != nil {
			log.Warn("rollback failed", zap.Error(rbErr))
		}
		im.registry.Forget()
		im.restoreForeignKeys(ctx, log)
		log.Error("import failed", zap.Int64("nodes", w.nodes), zap.Error(err))
		return fmt.Errorf("import %s: %w", name, err)
	}

	if err := im.session.SetForeignKeys(ctx, true); err != nil {
		return fmt.Errorf("import %s: %w", name, err)
	}

	im.documents++
	log.Info("imported document",
		zap.Int64("nodes", w.nodes),
		zap.Int64("rows", im.rows.Inserted()-rowsBefore),
		zap.Int("batches", w.commits+1),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (im *Importer) restoreForeignKeys(ctx context.Context, log *zap.Logger) {
	if err := im.session.SetForeignKeys(ctx, true); err != nil {
		log.Warn("restore foreign_keys failed", zap.Error(err))
	}
}

// Finalize retrofits a foreign key for every recorded relationship. It
// returns the number of tables rebuilt. On error the database keeps its
// rows without constraints and the error wraps types.ErrFinalize.
func (im *Importer) Finalize(ctx context.Context) (int, error) {
	ctx = context.WithoutCancel(ctx)
	n, err := sqlite.AddForeignKeys(ctx, im.session, im.relations.ByChild(), im.log)
	if err != nil {
		im.log.Error("finalize failed", zap.Error(err))
		return 0, err
	}
	im.log.Info("added foreign keys",
		zap.Int("tables", n), zap.Int("constraints", im.relations.Len()))
	return n, nil
}

// Import shreds one document and finalizes the run.
func (im *Importer) Import(ctx context.Context, r io.Reader, name string) error {
	if err := im.ImportDocument(ctx, r, name); err != nil {
		return err
	}
	_, err := im.Finalize(ctx)
	return err
}

// ImportFiles imports each path in order and finalizes once after the last.
// ctx is checked between files. onDone, when non-nil, is called after each
// file is committed.
//
// The returned result is filled in on every path: Status is StatusFailed
// when a document failed, StatusWithoutConstraints when only Finalize did,
// and StatusComplete otherwise.
func (im *Importer) ImportFiles(ctx context.Context, paths []string, onDone func(path string)) (types.ImportResult, error) {
	start := time.Now()
	res := types.ImportResult{RunID: im.runID, Status: types.StatusFailed}
	fill := func() {
		res.Rows = im.rows.Inserted()
		res.Tables = im.registry.Known()
		res.Elapsed = time.Since(start)
	}

	if len(paths) == 0 {
		return res, types.ErrNoInput
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			fill()
			return res, fmt.Errorf("import canceled before %s: %w", p, err)
		}
		if err := im.importFile(ctx, p); err != nil {
			fill()
			return res, err
		}
		res.Files = append(res.Files, p)
		if onDone != nil {
			onDone(p)
		}
	}

	_, err := im.Finalize(ctx)
	fill()
	if err != nil {
		res.Status = types.StatusWithoutConstraints
		return res, err
	}
	res.Constraints = im.relations.Len()
	res.Status = types.StatusComplete
	return res, nil
}

func (im *Importer) importFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	defer f.Close()
	return im.ImportDocument(ctx, f, path)
}
