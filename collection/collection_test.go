package collection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Mikedan37/BlazeDB"
	"github.com/Mikedan37/BlazeDB/layout"
	"github.com/Mikedan37/BlazeDB/page"
)

func newTestCollection(t *testing.T) *Collection {
	t.Helper()
	dir := t.TempDir()
	ps, err := page.Open(filepath.Join(dir, "data.bz"), page.DefaultSize)
	if err != nil {
		t.Fatalf("page.Open: %v", err)
	}
	t.Cleanup(func() { ps.Close() })
	c, err := Open(ps, filepath.Join(dir, "data.layout"), filepath.Join(dir, "data.indexes"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return c
}

func TestInsertFetch(t *testing.T) {
	c := newTestCollection(t)
	id, err := c.Insert(blazedb.Document{"title": "Fix crash", "status": "open", "severity": "high"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	doc, err := c.Fetch(id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc == nil {
		t.Fatal("Fetch returned nil")
	}
	if doc["title"] != "Fix crash" || doc["status"] != "open" {
		t.Fatalf("unexpected doc: %+v", doc)
	}
	if _, ok := doc["createdAt"].(interface{ IsZero() bool }); !ok {
		// createdAt should normalize to time.Time; just sanity check presence.
		if doc["createdAt"] == nil {
			t.Fatal("createdAt missing")
		}
	}
}

func TestCompoundIndexLookup(t *testing.T) {
	c := newTestCollection(t)
	if err := c.CreateIndex([]string{"status", "priority"}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	statuses := []string{"done", "inProgress", "notStarted"}
	priorities := []string{"low", "medium", "high"}
	for i := 0; i < 100; i++ {
		_, err := c.Insert(blazedb.Document{
			"status":   statuses[i%len(statuses)],
			"priority": priorities[i%len(priorities)],
		})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if _, err := c.Insert(blazedb.Document{"status": "inProgress", "priority": "high"}); err != nil {
		t.Fatalf("Insert marker: %v", err)
	}

	results, err := c.FetchByIndexedFields([]string{"status", "priority"}, []any{"inProgress", "high"})
	if err != nil {
		t.Fatalf("FetchByIndexedFields: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	for _, doc := range results {
		if doc["status"] != "inProgress" || doc["priority"] != "high" {
			t.Fatalf("unexpected result: %+v", doc)
		}
	}
}

func TestIndexMaintenanceOnUpdateAndDelete(t *testing.T) {
	c := newTestCollection(t)
	if err := c.CreateIndex([]string{"status", "priority"}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	id, err := c.Insert(blazedb.Document{"status": "inProgress", "priority": 1})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	before, err := c.FetchByIndexedFields([]string{"status", "priority"}, []any{"inProgress", 1})
	if err != nil || len(before) != 1 {
		t.Fatalf("expected 1 match before update, got %d (err %v)", len(before), err)
	}

	if err := c.Update(id, blazedb.Document{"status": "done", "priority": 1}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	stillOld, err := c.FetchByIndexedFields([]string{"status", "priority"}, []any{"inProgress", 1})
	if err != nil || len(stillOld) != 0 {
		t.Fatalf("expected 0 matches for old key, got %d (err %v)", len(stillOld), err)
	}
	nowNew, err := c.FetchByIndexedFields([]string{"status", "priority"}, []any{"done", 1})
	if err != nil || len(nowNew) != 1 {
		t.Fatalf("expected 1 match for new key, got %d (err %v)", len(nowNew), err)
	}

	if err := c.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	afterDelete, err := c.FetchByIndexedFields([]string{"status", "priority"}, []any{"done", 1})
	if err != nil || len(afterDelete) != 0 {
		t.Fatalf("expected 0 matches after delete, got %d (err %v)", len(afterDelete), err)
	}
}

func TestCrashBeforeUpdate(t *testing.T) {
	c := newTestCollection(t)
	id, err := c.Insert(blazedb.Document{"title": "Before crash"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	os.Setenv("BLAZEDB_CRASH_BEFORE_UPDATE", "1")
	err = c.Update(id, blazedb.Document{"title": "Crash incoming"})
	os.Unsetenv("BLAZEDB_CRASH_BEFORE_UPDATE")
	if err == nil {
		t.Fatal("expected Update to fail while crash knob is set")
	}

	all, err := c.FetchAll()
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(all) != 1 || all[0]["title"] != "Before crash" {
		t.Fatalf("expected one untouched record, got %+v", all)
	}
}

func TestSoftDeleteThenPurge(t *testing.T) {
	c := newTestCollection(t)
	id, err := c.Insert(blazedb.Document{"title": "temp"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := c.SoftDelete(id); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if err := c.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	doc, err := c.Fetch(id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected purged record to be unfetchable, got %+v", doc)
	}
}

func TestCreateIndexIdempotent(t *testing.T) {
	c := newTestCollection(t)
	if err := c.CreateIndex([]string{"a", "b"}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := c.CreateIndex([]string{"a", "b"}); err != nil {
		t.Fatalf("CreateIndex (second): %v", err)
	}
	if len(c.lo.SecondaryIndexDefinitions) != 1 {
		t.Fatalf("expected exactly one index definition, got %d", len(c.lo.SecondaryIndexDefinitions))
	}
}

func TestCreateIndexReconfirmBackfillsIfEmpty(t *testing.T) {
	c := newTestCollection(t)
	if err := c.CreateIndex([]string{"status"}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if _, err := c.Insert(blazedb.Document{"status": "open"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Simulate a definition that exists but whose materialization never got
	// populated (e.g. an earlier persist failure).
	c.lo.SecondaryIndexes[indexName([]string{"status"})] = map[string]layout.IDSet{}

	if err := c.CreateIndex([]string{"status"}); err != nil {
		t.Fatalf("CreateIndex (reconfirm): %v", err)
	}
	results, err := c.FetchByIndexedField("status", "open")
	if err != nil {
		t.Fatalf("FetchByIndexedField: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected reconfirm to backfill the empty index, got %d results", len(results))
	}
}

func TestRunQueryCELFilter(t *testing.T) {
	c := newTestCollection(t)
	if _, err := c.Insert(blazedb.Document{"title": "a", "severity": "high"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := c.Insert(blazedb.Document{"title": "b", "severity": "low"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := c.RunQuery(Query{Filter: `doc.severity == "high"`})
	if err != nil {
		t.Fatalf("RunQuery: %v", err)
	}
	if len(results) != 1 || results[0]["title"] != "a" {
		t.Fatalf("unexpected results: %+v", results)
	}
}
