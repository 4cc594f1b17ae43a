// Package layout implements the persistent storage layout: the id->page
// map, next free page, secondary index catalog and materialization, and
// free-form schema metadata. It is saved and loaded independently of the
// page file (package page), which remains the source of truth for record
// contents.
//
// Persistence follows the teacher's atomic-save idiom seen throughout the
// SharedCode/sop retrieval (write full contents, then swap in): marshal
// the whole layout, write it to a temp file in the same directory, fsync,
// then os.Rename over the real path.
package layout

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Mikedan37/BlazeDB"
	"github.com/Mikedan37/BlazeDB/page"
)

// CurrentVersion is the layout format version this package writes.
const CurrentVersion = 1

// IDSet is a set of document identifiers, represented as a map for O(1)
// membership and deterministic JSON shape (object keys, boolean values).
type IDSet map[blazedb.ID]bool

// Layout is the in-memory mirror of the persisted metadata described in
// spec §3.
type Layout struct {
	IndexMap                  map[blazedb.ID]int64         `json:"indexMap"`
	NextPageIndex             int64                         `json:"nextPageIndex"`
	SecondaryIndexDefinitions map[string][]string           `json:"secondaryIndexDefinitions"`
	SecondaryIndexes          map[string]map[string]IDSet   `json:"secondaryIndexes"`
	MetaData                  map[string]any                `json:"metaData"`
	Version                   int                            `json:"version"`
	FieldTypes                map[string]string              `json:"fieldTypes,omitempty"`
}

// New returns an empty layout at the current version.
func New() *Layout {
	return &Layout{
		IndexMap:                  make(map[blazedb.ID]int64),
		SecondaryIndexDefinitions: make(map[string][]string),
		SecondaryIndexes:          make(map[string]map[string]IDSet),
		MetaData:                  make(map[string]any),
		Version:                   CurrentVersion,
	}
}

// Load reads the layout file at path. A missing file yields an empty
// layout (not an error). A present-but-unparseable file is treated per
// spec §4.B and §7 (LayoutCorrupt): logged, deleted, and the layout is
// reconstructed from ps by scanning the page file directly, since the
// page file remains authoritative for records. encKey must match the
// collection's current encryption key (nil if unencrypted) so the
// reconstruction scan can decrypt payloads before decoding them.
func Load(path string, ps *page.Store, encKey []byte) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, blazedb.NewError(blazedb.Unknown, err, path)
	}

	l := New()
	if err := blazedb.DefaultMarshaler.Unmarshal(data, l); err != nil {
		slog.Warn("blazedb: layout file unparseable, rebuilding from page file", "path", path, "error", err)
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("blazedb: failed removing corrupt layout file", "path", path, "error", rmErr)
		}
		return Rebuild(ps, encKey)
	}
	if l.IndexMap == nil {
		l.IndexMap = make(map[blazedb.ID]int64)
	}
	if l.SecondaryIndexDefinitions == nil {
		l.SecondaryIndexDefinitions = make(map[string][]string)
	}
	if l.SecondaryIndexes == nil {
		l.SecondaryIndexes = make(map[string]map[string]IDSet)
	}
	if l.MetaData == nil {
		l.MetaData = make(map[string]any)
	}
	migrate(l)
	return l, nil
}

// migrate structurally upgrades a layout loaded at an older version to
// CurrentVersion. There is currently only one version; this is the seam
// spec §4.B calls for ("lift legacy single-component index keys into
// compound keys of length one") should a future version need it.
func migrate(l *Layout) {
	if l.Version >= CurrentVersion {
		return
	}
	l.Version = CurrentVersion
}

// Save atomically persists the layout to path: marshal, write to a temp
// file beside path, fsync, then rename over path.
func (l *Layout) Save(path string) error {
	data, err := blazedb.DefaultMarshaler.Marshal(l)
	if err != nil {
		return blazedb.NewError(blazedb.Unknown, err, path)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return blazedb.NewError(blazedb.Unknown, err, path)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return blazedb.NewError(blazedb.Unknown, err, path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return blazedb.NewError(blazedb.Unknown, err, path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return blazedb.NewError(blazedb.Unknown, err, path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return blazedb.NewError(blazedb.Unknown, err, path)
	}
	return nil
}

// LoadIndexesSidecar loads the optional indexes materialization file at
// path (the database names it "<base>.indexes") and, if present, overwrites l.SecondaryIndexes with its contents
// per spec: the sidecar supersedes any materialization embedded in the
// main layout file.
func LoadIndexesSidecar(l *Layout, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return blazedb.NewError(blazedb.Unknown, err, path)
	}
	var sidecar map[string]map[string]IDSet
	if err := blazedb.DefaultMarshaler.Unmarshal(data, &sidecar); err != nil {
		slog.Warn("blazedb: indexes sidecar unparseable, ignoring", "path", path, "error", err)
		return nil
	}
	l.SecondaryIndexes = sidecar
	return nil
}

// SaveIndexesSidecar writes the full secondary-index materialization as a
// redundant copy, independent of the main layout save.
func SaveIndexesSidecar(l *Layout, path string) error {
	data, err := blazedb.DefaultMarshaler.Marshal(l.SecondaryIndexes)
	if err != nil {
		return blazedb.NewError(blazedb.Unknown, err, path)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return blazedb.NewError(blazedb.Unknown, err, path)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return blazedb.NewError(blazedb.Unknown, err, path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return blazedb.NewError(blazedb.Unknown, err, path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return blazedb.NewError(blazedb.Unknown, err, path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return blazedb.NewError(blazedb.Unknown, err, path)
	}
	return nil
}
