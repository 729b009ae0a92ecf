// Package dbfiles names the databases xmlshred creates and removes stale ones.
//
// A database is named after a fingerprint of its input files, so importing
// the same set of files again resolves to the same database name.
package dbfiles

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/xmlshred/pkg/types"
)

// Managed database file names are Prefix + fingerprint + Ext.
const (
	Prefix = "xmlshred_"
	Ext    = ".sqlite"
)

// siblings are the files SQLite keeps next to a database.
var siblings = []string{"-wal", "-shm", "-journal"}

// Fingerprint hashes the contents of paths and combines the per-file digests
// independently of their order. Files are hashed concurrently.
func Fingerprint(ctx context.Context, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", types.ErrNoInput
	}

	sums := make([]uint64, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range paths {
		g.Go(func() error {
			sum, err := hashFile(ctx, p)
			if err != nil {
				return err
			}
			sums[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	slices.Sort(sums)
	buf := make([]byte, 8*len(sums))
	for i, s := range sums {
		binary.BigEndian.PutUint64(buf[8*i:], s)
	}
	return fmt.Sprintf("%016x", xxh3.Hash(buf)), nil
}

func hashFile(ctx context.Context, path string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return h.Sum64(), nil
}

// DatabaseName returns the managed file name for a fingerprint.
func DatabaseName(fingerprint string) string {
	return Prefix + fingerprint + Ext
}

// IsManaged reports whether name looks like a database this package named.
func IsManaged(name string) bool {
	return strings.HasPrefix(name, Prefix) && strings.HasSuffix(name, Ext) && len(name) > len(Prefix)+len(Ext)
}

// Remove deletes the database at path together with its journal files.
// Files that do not exist are ignored.
func Remove(path string) error {
	var firstErr error
	for _, p := range append([]string{path}, siblingPaths(path)...) {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func siblingPaths(path string) []string {
	out := make([]string, len(siblings))
	for i, s := range siblings {
		out[i] = path + s
	}
	return out
}

// CleanOld removes managed databases in dir whose last activity is older
// than retentionDays before now. Last activity is the newest modification
// time of the database and its journal files. A negative retention is
// treated as one day. It returns the removed database paths. A missing
// directory is not an error; per-file failures are logged and skipped.
func CleanOld(dir string, retentionDays int, now time.Time, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(dir) == "" {
		logger.Warn("no database directory to clean")
		return nil, nil
	}
	if retentionDays < 0 {
		logger.Warn("negative retention coerced to 1 day", zap.Int("retention_days", retentionDays))
		retentionDays = 1
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("database directory does not exist", zap.String("dir", dir))
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	threshold := now.AddDate(0, 0, -retentionDays)
	var removed []string
	for _, e := range entries {
		if e.IsDir() || !IsManaged(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())

		last, err := lastActivity(path)
		if err != nil {
			logger.Debug("skipping unreadable database", zap.String("path", path), zap.Error(err))
			continue
		}
		if !last.Before(threshold) {
			continue
		}

		if err := Remove(path); err != nil {
			logger.Warn("could not remove stale database", zap.String("path", path), zap.Error(err))
			continue
		}
		removed = append(removed, path)
		logger.Info("removed stale database", zap.String("path", path), zap.Time("last_activity", last))
	}
	return removed, nil
}

func lastActivity(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	last := info.ModTime()
	for _, p := range siblingPaths(path) {
		if si, err := os.Stat(p); err == nil && si.ModTime().After(last) {
			last = si.ModTime()
		}
	}
	return last, nil
}
