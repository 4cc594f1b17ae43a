// Package database implements the Database Client (spec §4.F): it stitches
// the page store, layout, journal, collection, and safe-write harness
// together behind one open/CRUD/transaction surface. Grounded on the
// teacher's top-level store wiring (SharedCode/sop fs package's
// NewStoreRepository-style construction, which opens a registry plus a
// replication tracker behind one handle) generalized from "object store
// over a replicated backend" to "one encrypted page file plus its
// sidecars".
package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Mikedan37/BlazeDB"
	"github.com/Mikedan37/BlazeDB/collection"
	"github.com/Mikedan37/BlazeDB/dbcrypto"
	"github.com/Mikedan37/BlazeDB/journal"
	"github.com/Mikedan37/BlazeDB/layout"
	"github.com/Mikedan37/BlazeDB/page"
	"github.com/Mikedan37/BlazeDB/safewrite"
)

// Options configures Open.
type Options struct {
	// PageSize overrides page.DefaultSize when nonzero.
	PageSize int
	// Encrypt enables AES-256-GCM payload encryption under the password-
	// derived key (spec §9 "Encryption path"). Default false: plaintext
	// framed pages, matching the most recent teacher source's behavior.
	Encrypt bool
}

// Database is one opened document store: one page file, its layout and
// journal sidecars, and the collection/safe-write machinery layered over
// them.
type Database struct {
	mu sync.RWMutex

	path        string
	layoutPath  string
	indexesPath string
	journalPath string
	keytagPath  string
	project     string
	encKey      []byte

	ps      *page.Store
	jrn     *journal.Journal
	col     *collection.Collection
	harness *safewrite.Harness

	keyMismatch bool

	inTxn  bool
	txnOps []TxnOp
}

func derivedPaths(path string) (layoutPath, indexesPath, journalPath, keytagPath string) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + ".layout", base + ".indexes", base + ".journal", base + ".keytag"
}

func txnInProgressPath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "_txn_in_progress" + ext
}

// Open derives the page-encryption key from password, opens (or creates)
// the page file, replays its journal, restores any crash-left-behind
// file-level transaction snapshot, and opens the collection over the
// result.
func Open(path, password, project string, opts Options) (*Database, error) {
	key, err := dbcrypto.DeriveKey(password)
	if err != nil {
		return nil, err
	}

	layoutPath, indexesPath, journalPath, keytagPath := derivedPaths(path)

	keyMismatch := false
	if err := dbcrypto.EnsureKeyTag(keytagPath, key); err != nil {
		if blazedb.CodeOf(err) != blazedb.KeyMismatch {
			return nil, err
		}
		// Per spec §6: a key-tag mismatch does not fail Open outright, it
		// puts the returned handle into a key-mismatch state in which every
		// subsequent read and write fails until reopened with the right
		// password (see checkKey).
		keyMismatch = true
	}

	// A crash between a file-level transaction's snapshot and its
	// completion leaves txn_in_progress.* behind; restore it before doing
	// anything else (spec §5 "Crash semantics").
	if err := restoreLeftoverTxn(path, layoutPath); err != nil {
		return nil, err
	}

	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = page.DefaultSize
	}
	ps, err := page.Open(path, pageSize)
	if err != nil {
		return nil, err
	}

	jrn, err := journal.Open(journalPath)
	if err != nil {
		ps.Close()
		return nil, err
	}
	if _, err := journal.Recover(journalPath, ps); err != nil {
		ps.Close()
		jrn.Close()
		return nil, err
	}

	var encKey []byte
	if opts.Encrypt {
		encKey = key
	}

	col, err := collection.Open(ps, layoutPath, indexesPath, encKey)
	if err != nil {
		ps.Close()
		jrn.Close()
		return nil, err
	}
	if err := runSchemaMigration(col); err != nil {
		ps.Close()
		jrn.Close()
		return nil, err
	}

	db := &Database{
		path:        path,
		layoutPath:  layoutPath,
		indexesPath: indexesPath,
		journalPath: journalPath,
		keytagPath:  keytagPath,
		project:     project,
		encKey:      encKey,
		ps:          ps,
		jrn:         jrn,
		col:         col,
		harness:     safewrite.New(path, layoutPath),
		keyMismatch: keyMismatch,
	}
	return db, nil
}

// runSchemaMigration stamps metaData.schemaVersion on first open of a
// layout that predates it, per spec §4.F's "run migration if needed".
// Structural layout-format migration itself already happens inside
// layout.Load; this covers the collection-level schema-version bookkeeping
// the migration subsystem (an external collaborator) relies on.
func runSchemaMigration(col *collection.Collection) error {
	lo := col.Layout()
	if _, ok := lo.MetaData["schemaVersion"]; ok {
		return nil
	}
	lo.MetaData["schemaVersion"] = layout.CurrentVersion
	return col.Flush()
}

func restoreLeftoverTxn(path, layoutPath string) error {
	dataSnap := txnInProgressPath(path)
	layoutSnap := txnInProgressPath(layoutPath)

	dataExists := fileExists(dataSnap)
	layoutExists := fileExists(layoutSnap)
	if !dataExists && !layoutExists {
		return nil
	}
	if dataExists {
		if err := copyOver(dataSnap, path); err != nil {
			return err
		}
		os.Remove(dataSnap)
	}
	if layoutExists {
		if err := copyOver(layoutSnap, layoutPath); err != nil {
			return err
		}
		os.Remove(layoutSnap)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyOver(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return blazedb.NewError(blazedb.Unknown, err, src)
	}
	return os.WriteFile(dst, data, 0644)
}

func (db *Database) checkKey() error {
	if db.keyMismatch {
		return blazedb.NewError(blazedb.KeyMismatch, nil, db.path)
	}
	return nil
}

// Close releases the underlying journal and page file handles.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	var firstErr error
	if err := db.jrn.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := db.ps.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Project returns the project tag this client stamps on new records.
func (db *Database) Project() string { return db.project }

func (db *Database) withSafeWrite(body func() error) error {
	return db.harness.Run(context.Background(), db.col, body)
}

// CreateIndex delegates to the collection, wrapped in the safe-write
// harness since it mutates the layout (and, on backfill, reads every page).
func (db *Database) CreateIndex(fields []string) error {
	if err := db.checkKey(); err != nil {
		return err
	}
	return db.withSafeWrite(func() error {
		return db.col.CreateIndex(fields)
	})
}

// Insert delegates to the collection, wrapped in the safe-write harness,
// and records a transaction-log entry if a file-level transaction is open.
func (db *Database) Insert(doc blazedb.Document) (blazedb.ID, error) {
	if err := db.checkKey(); err != nil {
		return blazedb.NilID, err
	}
	if doc["project"] == nil {
		doc["project"] = db.project
	}
	var id blazedb.ID
	err := db.withSafeWrite(func() error {
		var insertErr error
		id, insertErr = db.col.Insert(doc)
		return insertErr
	})
	if err == nil {
		db.recordTxnOp("insert", id)
	}
	return id, err
}

// Fetch bypasses the safe-write harness and journal, per spec §2 ("Reads
// bypass E and C").
func (db *Database) Fetch(id blazedb.ID) (blazedb.Document, error) {
	if err := db.checkKey(); err != nil {
		return nil, err
	}
	return db.col.Fetch(id)
}

// FetchAll returns every live document.
func (db *Database) FetchAll() ([]blazedb.Document, error) {
	if err := db.checkKey(); err != nil {
		return nil, err
	}
	return db.col.FetchAll()
}

// FetchAllByProject filters FetchAll by project.
func (db *Database) FetchAllByProject(project string) ([]blazedb.Document, error) {
	if err := db.checkKey(); err != nil {
		return nil, err
	}
	return db.col.FetchAllByProject(project)
}

// FetchByIndexedField looks up documents via a single-field index.
func (db *Database) FetchByIndexedField(field string, value any) ([]blazedb.Document, error) {
	if err := db.checkKey(); err != nil {
		return nil, err
	}
	return db.col.FetchByIndexedField(field, value)
}

// FetchByIndexedFields looks up documents via a compound index.
func (db *Database) FetchByIndexedFields(fields []string, values []any) ([]blazedb.Document, error) {
	if err := db.checkKey(); err != nil {
		return nil, err
	}
	return db.col.FetchByIndexedFields(fields, values)
}

// RunQuery applies an ad hoc linear-scan query (see package collection).
func (db *Database) RunQuery(q collection.Query) ([]blazedb.Document, error) {
	if err := db.checkKey(); err != nil {
		return nil, err
	}
	return db.col.RunQuery(q)
}

// Update delegates to the collection, wrapped in the safe-write harness.
func (db *Database) Update(id blazedb.ID, doc blazedb.Document) error {
	if err := db.checkKey(); err != nil {
		return err
	}
	err := db.withSafeWrite(func() error {
		return db.col.Update(id, doc)
	})
	if err == nil {
		db.recordTxnOp("update", id)
	}
	return err
}

// Delete hard-deletes id, wrapped in the safe-write harness.
func (db *Database) Delete(id blazedb.ID) error {
	if err := db.checkKey(); err != nil {
		return err
	}
	err := db.withSafeWrite(func() error {
		return db.col.Delete(id)
	})
	if err == nil {
		db.recordTxnOp("delete", id)
	}
	return err
}

// SoftDelete marks id deleted without removing it, wrapped in the
// safe-write harness.
func (db *Database) SoftDelete(id blazedb.ID) error {
	if err := db.checkKey(); err != nil {
		return err
	}
	err := db.withSafeWrite(func() error {
		return db.col.SoftDelete(id)
	})
	if err == nil {
		db.recordTxnOp("softDelete", id)
	}
	return err
}

// Purge hard-deletes every soft-deleted document, wrapped in the
// safe-write harness.
func (db *Database) Purge() error {
	if err := db.checkKey(); err != nil {
		return err
	}
	return db.withSafeWrite(func() error {
		return db.col.Purge()
	})
}

// Destroy removes the database's page, layout, and indexes files and
// resets in-memory state. The caller must Close the Database afterward;
// the handle is no longer usable for I/O once its backing file is gone.
func (db *Database) Destroy() error {
	if err := db.checkKey(); err != nil {
		return err
	}
	return db.col.Destroy(db.path)
}

// Flush re-persists layout state explicitly, for the mount manager's
// FlushAll.
func (db *Database) Flush() error {
	if err := db.checkKey(); err != nil {
		return err
	}
	return db.col.Flush()
}

// RawDump returns every live page's raw (possibly still-encrypted) bytes,
// keyed by page index, per spec §4.F.
func (db *Database) RawDump() (map[int64][]byte, error) {
	if err := db.checkKey(); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()

	lo := db.col.Layout()
	out := make(map[int64][]byte, len(lo.IndexMap))
	for _, pageIdx := range lo.IndexMap {
		payload, err := db.ps.Read(pageIdx)
		if err != nil || payload == nil {
			continue
		}
		out[pageIdx] = payload
	}
	return out, nil
}
