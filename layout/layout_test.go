package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Mikedan37/BlazeDB"
	"github.com/Mikedan37/BlazeDB/dbcrypto"
	"github.com/Mikedan37/BlazeDB/page"
)

func openEmptyStore(t *testing.T) *page.Store {
	t.Helper()
	ps, err := page.Open(filepath.Join(t.TempDir(), "data.bz"), page.DefaultSize)
	if err != nil {
		t.Fatalf("page.Open: %v", err)
	}
	t.Cleanup(func() { ps.Close() })
	return ps
}

func TestLoadMissingFileYieldsEmptyLayout(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), "missing.layout"), openEmptyStore(t), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(l.IndexMap) != 0 || l.NextPageIndex != 0 || l.Version != CurrentVersion {
		t.Fatalf("unexpected fresh layout: %+v", l)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.layout")
	l := New()
	id := blazedb.NewID()
	l.IndexMap[id] = 7
	l.NextPageIndex = 8
	l.SecondaryIndexDefinitions["status"] = []string{"status"}

	if err := l.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path, openEmptyStore(t), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.IndexMap[id] != 7 {
		t.Fatalf("expected indexMap round trip, got %+v", loaded.IndexMap)
	}
	if loaded.NextPageIndex != 8 {
		t.Fatalf("expected nextPageIndex round trip, got %d", loaded.NextPageIndex)
	}
}

func TestLoadCorruptFileRebuildsFromPageFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.layout")
	if err := os.WriteFile(path, []byte("{not valid json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ps, err := page.Open(filepath.Join(dir, "data.bz"), page.DefaultSize)
	if err != nil {
		t.Fatalf("page.Open: %v", err)
	}
	defer ps.Close()
	id := blazedb.NewID()
	payload := []byte(`{"id":"` + id.String() + `"}`)
	idx, err := ps.Append(payload)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	l, err := Load(path, ps, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, ok := l.IndexMap[id]; !ok || got != idx {
		t.Fatalf("expected layout rebuilt from page file, got %+v", l.IndexMap)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("expected corrupt file to be removed, stat err = %v", statErr)
	}
}

func TestIndexesSidecarSupersedesEmbeddedMaterialization(t *testing.T) {
	dir := t.TempDir()
	layoutPath := filepath.Join(dir, "data.layout")
	indexesPath := filepath.Join(dir, "data.indexes")

	l := New()
	id := blazedb.NewID()
	l.SecondaryIndexes["status"] = map[string]IDSet{"s:open": {id: true}}
	if err := SaveIndexesSidecar(l, indexesPath); err != nil {
		t.Fatalf("SaveIndexesSidecar: %v", err)
	}

	fresh := New()
	fresh.SecondaryIndexes["status"] = map[string]IDSet{"s:closed": {id: true}}
	if err := LoadIndexesSidecar(fresh, indexesPath); err != nil {
		t.Fatalf("LoadIndexesSidecar: %v", err)
	}
	if !fresh.SecondaryIndexes["status"]["s:open"][id] {
		t.Fatalf("expected sidecar contents loaded, got %+v", fresh.SecondaryIndexes)
	}
	if _, ok := fresh.SecondaryIndexes["status"]["s:closed"]; ok {
		t.Fatalf("expected embedded materialization replaced by sidecar, got %+v", fresh.SecondaryIndexes)
	}
	_ = layoutPath
}

func TestRebuildReconstructsIndexMapFromPages(t *testing.T) {
	dir := t.TempDir()
	ps, err := page.Open(filepath.Join(dir, "data.bz"), page.DefaultSize)
	if err != nil {
		t.Fatalf("page.Open: %v", err)
	}
	defer ps.Close()

	id := blazedb.NewID()
	payload := []byte(`{"id":"` + id.String() + `"}`)
	idx, err := ps.Append(payload)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	l, err := Rebuild(ps, nil)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if got, ok := l.IndexMap[id]; !ok || got != idx {
		t.Fatalf("expected rebuilt indexMap[%s] == %d, got %d", id, idx, l.IndexMap[id])
	}
	if l.NextPageIndex <= idx {
		t.Fatalf("expected nextPageIndex > %d, got %d", idx, l.NextPageIndex)
	}
}

func TestRebuildDecryptsEncryptedPages(t *testing.T) {
	dir := t.TempDir()
	ps, err := page.Open(filepath.Join(dir, "data.bz"), page.DefaultSize)
	if err != nil {
		t.Fatalf("page.Open: %v", err)
	}
	defer ps.Close()

	key, err := dbcrypto.DeriveKey("correct-password")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	id := blazedb.NewID()
	plain := []byte(`{"id":"` + id.String() + `"}`)
	sealed, err := dbcrypto.Seal(key, plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	idx, err := ps.Append(sealed)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Without the key, the page is undecodable ciphertext and is skipped.
	blind, err := Rebuild(ps, nil)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if len(blind.IndexMap) != 0 {
		t.Fatalf("expected no entries rebuilt without the key, got %+v", blind.IndexMap)
	}

	l, err := Rebuild(ps, key)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if got, ok := l.IndexMap[id]; !ok || got != idx {
		t.Fatalf("expected rebuilt indexMap[%s] == %d, got %+v", id, idx, l.IndexMap)
	}
}
