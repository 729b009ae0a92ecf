package shred

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/xmlshred/internal/ident"
	"github.com/mesh-intelligence/xmlshred/internal/sqlite"
	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

// frame is one open element. Frames live by value on the walker's stack and
// reach their parent by index; a popped frame is never referenced again.
type frame struct {
	local string
	space string
	path  string
	table string

	// rowID is empty while the element is deferred.
	rowID       string
	hadChildren bool
	hadAttrs    bool
	text        []byte
}

// walker drives one document through the registry and materializer.
//
// An element with attributes is written as soon as it starts. An element
// without attributes is deferred: it is written when its first child starts
// or when it ends as a container. A deferred element that ends with neither
// children nor attributes is a leaf scalar; its text becomes a column on the
// parent row and it never gets a table or row of its own.
type walker struct {
	ctx       context.Context
	session   *sqlite.Session
	registry  *sqlite.Registry
	rows      *sqlite.Rows
	relations *relationTracker
	names     ident.Normalizer
	batchSize int
	log       *zap.Logger

	stack   []frame
	pending int
	nodes   int64
	commits int
}

func (w *walker) run(src Source) error {
	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		switch ev.Kind {
		case StartElement:
			err = w.start(ev)
		case Text:
			w.text(ev.Data)
		case EndElement:
			err = w.end()
		}
		if err != nil {
			return err
		}
	}

	if len(w.stack) > 0 {
		return fmt.Errorf("%w: document ended with %d open elements", types.ErrParse, len(w.stack))
	}
	return nil
}

func (w *walker) start(ev Event) error {
	if n := len(w.stack); n > 0 {
		w.stack[n-1].hadChildren = true
		// A parent row must exist before any child can reference it.
		if w.stack[n-1].rowID == "" {
			if err := w.materialize(n-1, nil, nil); err != nil {
				return err
			}
		}
	}

	var (
		attrs map[string]any
		cols  []string
	)
	for _, a := range ev.Attrs {
		if isNamespaceDecl(a) {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]any, len(ev.Attrs))
		}
		col := w.names.Column(a.Local)
		if _, dup := attrs[col]; !dup {
			cols = append(cols, col)
		}
		attrs[col] = a.Value
	}

	path := ev.Local
	if n := len(w.stack); n > 0 {
		path = w.stack[n-1].path + "/" + ev.Local
	}
	w.stack = append(w.stack, frame{
		local:    ev.Local,
		space:    ev.Space,
		path:     path,
		table:    w.names.Table(ev.Local),
		hadAttrs: len(attrs) > 0,
	})

	if len(attrs) > 0 {
		if err := w.materialize(len(w.stack)-1, attrs, cols); err != nil {
			return err
		}
	}

	if ev.SelfClosing {
		return w.end()
	}
	return nil
}

func (w *walker) text(data string) {
	if n := len(w.stack); n > 0 {
		w.stack[n-1].text = append(w.stack[n-1].text, data...)
	}
}

func (w *walker) end() error {
	i := len(w.stack) - 1
	if i < 0 {
		return fmt.Errorf("%w: end element without matching start", types.ErrParse)
	}
	cur := &w.stack[i]
	text := string(cur.text)

	if !cur.hadChildren && !cur.hadAttrs {
		if text != "" && i > 0 {
			parent := &w.stack[i-1]
			col := w.names.Column(cur.local)
			if err := w.registry.EnsureColumns(w.ctx, parent.table, []string{col}); err != nil {
				return err
			}
			if err := w.rows.Update(w.ctx, parent.table, parent.rowID, map[string]any{col: text}); err != nil {
				return err
			}
		}
	} else {
		if cur.rowID == "" {
			if err := w.materialize(i, nil, nil); err != nil {
				return err
			}
		}
		if text != "" {
			if err := w.rows.Update(w.ctx, cur.table, cur.rowID, map[string]any{types.ColValue: text}); err != nil {
				return err
			}
		}
	}

	w.stack = w.stack[:i]
	w.nodes++
	return w.tick()
}

// materialize writes the frame at index i as a row linked to its parent's
// row, ensuring the table and any attribute columns first.
func (w *walker) materialize(i int, attrs map[string]any, cols []string) error {
	f := &w.stack[i]

	if err := w.registry.EnsureTable(w.ctx, f.table); err != nil {
		return err
	}
	if len(cols) > 0 {
		if err := w.registry.EnsureColumns(w.ctx, f.table, cols); err != nil {
			return err
		}
	}

	data := make(map[string]any, len(attrs)+3)
	for k, v := range attrs {
		data[k] = v
	}
	data[types.ColParentID] = nil
	data[types.ColPath] = f.path
	data[types.ColNS] = nullIfEmpty(f.space)
	if i > 0 {
		if parent := w.stack[i-1]; parent.rowID != "" {
			data[types.ColParentID] = parent.rowID
			w.relations.Track(f.table, parent.table, types.ColParentID)
		}
	}

	id, err := w.rows.Insert(w.ctx, f.table, data)
	if err != nil {
		return err
	}
	f.rowID = id
	return nil
}

// tick counts a finalized node and restarts the transaction every batchSize nodes.
func (w *walker) tick() error {
	w.pending++
	if w.pending < w.batchSize {
		return nil
	}
	if err := w.session.Commit(); err != nil {
		return err
	}
	if err := w.session.Begin(w.ctx); err != nil {
		return err
	}
	w.pending = 0
	w.commits++
	w.log.Debug("committed batch", zap.Int("batch", w.commits), zap.Int64("nodes", w.nodes))
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
