// Package safewrite implements the Safe-Write Harness (spec §4.E): a
// file-level snapshot/restore wrapper around every mutating database
// client call. Grounded on the teacher's backup-before-overwrite copier
// (SharedCode/sop fs/storerepository.copier.go's copyFile, which streams
// bytes via os.Open/os.Create/io.Copy) generalized here from "copy to a
// passive replication folder" to "copy to a sibling backup path, restore
// on failure".
package safewrite

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Mikedan37/BlazeDB"
)

// Reloader is implemented by the collection layer: after a restore, the
// harness asks it to re-read layout/state from the freshly restored
// files.
type Reloader interface {
	Reload() error
}

// Harness wraps mutating calls on dataPath/layoutPath with a snapshot and
// restore-on-failure. A nested call (one already running inside Run) is a
// short-circuit: it just runs the body, since the outer call already
// holds a snapshot.
type Harness struct {
	mu         sync.Mutex
	dataPath   string
	layoutPath string
	depth      int
}

// New returns a Harness guarding dataPath and layoutPath.
func New(dataPath, layoutPath string) *Harness {
	return &Harness{dataPath: dataPath, layoutPath: layoutPath}
}

func backupPath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "_backup" + ext
}

// Run snapshots dataPath/layoutPath (unless already nested inside another
// Run), executes body, and on failure restores both files from the
// snapshot and asks reloader to re-read state before re-raising body's
// error. On success the backups are removed.
func (h *Harness) Run(ctx context.Context, reloader Reloader, body func() error) error {
	h.mu.Lock()
	nested := h.depth > 0
	h.depth++
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.depth--
		h.mu.Unlock()
	}()

	if nested {
		return body()
	}

	dataBackup := backupPath(h.dataPath)
	layoutBackup := backupPath(h.layoutPath)

	if err := snapshot(ctx, h.dataPath, dataBackup); err != nil {
		return err
	}
	if err := snapshot(ctx, h.layoutPath, layoutBackup); err != nil {
		return err
	}

	err := body()
	if err == nil {
		os.Remove(dataBackup)
		os.Remove(layoutBackup)
		return nil
	}

	if restoreErr := restore(ctx, dataBackup, h.dataPath); restoreErr != nil {
		return blazedb.NewError(blazedb.Unknown, restoreErr, "restoring "+h.dataPath)
	}
	if restoreErr := restore(ctx, layoutBackup, h.layoutPath); restoreErr != nil {
		return blazedb.NewError(blazedb.Unknown, restoreErr, "restoring "+h.layoutPath)
	}
	if reloader != nil {
		if reloadErr := reloader.Reload(); reloadErr != nil {
			return blazedb.NewError(blazedb.Unknown, reloadErr, "reloading after restore")
		}
	}
	return err
}

// snapshot copies src over dst's backup slot, retrying transient
// filesystem failures, overwriting any prior backup. A missing src (e.g.
// a layout file that hasn't been created yet) is not an error.
func snapshot(ctx context.Context, src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	return blazedb.Retry(ctx, func(ctx context.Context) error {
		return copyFile(src, dst)
	}, nil)
}

// restore copies backup back over original. A missing backup (nothing
// was snapshotted, e.g. because src never existed) is not an error.
func restore(ctx context.Context, backup, original string) error {
	if _, err := os.Stat(backup); os.IsNotExist(err) {
		return nil
	}
	return blazedb.Retry(ctx, func(ctx context.Context) error {
		return copyFile(backup, original)
	}, nil)
}

// copyFile streams bytes from src to dst, fsyncing dst before close so
// the backup (or restore) is durable.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
