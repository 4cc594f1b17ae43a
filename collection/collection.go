// Package collection implements the Document Collection (spec §4.D): CRUD
// over schemaless records, single and compound secondary indexes, and the
// rebuild/backfill policies that keep those indexes consistent with the
// page store. Grounded on the teacher's jsondb store (SharedCode/sop
// jsondb/store.go) for the shape of a document-id -> page mapping guarded
// by one reader-writer lock, generalized here to also own the compound
// secondary index catalog spec §3 calls for.
package collection

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Mikedan37/BlazeDB"
	"github.com/Mikedan37/BlazeDB/dbcrypto"
	"github.com/Mikedan37/BlazeDB/layout"
	"github.com/Mikedan37/BlazeDB/page"
)

// Collection owns one page file's worth of documents plus the layout that
// indexes them. One logical writer at a time (mu), multiple concurrent
// readers.
type Collection struct {
	mu          sync.RWMutex
	ps          *page.Store
	lo          *layout.Layout
	layoutPath  string
	indexesPath string
	encKey      []byte // nil disables payload encryption
}

// Open loads (or initializes) the layout for ps, applying the rebuild
// policy from spec §4.D: prefer the indexes sidecar, else an in-memory
// materialization already present in the layout file, else scan and
// rebuild from documents, persisting the result. encKey may be nil to
// disable payload encryption.
func Open(ps *page.Store, layoutPath, indexesPath string, encKey []byte) (*Collection, error) {
	lo, err := layout.Load(layoutPath, ps, encKey)
	if err != nil {
		return nil, err
	}
	if err := layout.LoadIndexesSidecar(lo, indexesPath); err != nil {
		return nil, err
	}

	c := &Collection{ps: ps, lo: lo, layoutPath: layoutPath, indexesPath: indexesPath, encKey: encKey}

	needsRebuild := false
	for name := range lo.SecondaryIndexDefinitions {
		mat, ok := lo.SecondaryIndexes[name]
		if !ok || len(mat) == 0 {
			needsRebuild = true
			break
		}
	}
	if needsRebuild && len(lo.IndexMap) > 0 {
		if err := c.rebuildIndexes(); err != nil {
			return nil, err
		}
		if err := c.persist(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Reload discards in-memory layout state and reloads it from disk,
// rebuilding from the page store if the layout file is itself corrupt
// (used by the safe-write harness's restore path).
func (c *Collection) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	lo, err := layout.Load(c.layoutPath, c.ps, c.encKey)
	if err != nil {
		rebuilt, rerr := layout.Rebuild(c.ps, c.encKey)
		if rerr != nil {
			return rerr
		}
		c.lo = rebuilt
		return nil
	}
	if err := layout.LoadIndexesSidecar(lo, c.indexesPath); err != nil {
		return err
	}
	c.lo = lo
	return nil
}

func (c *Collection) persist() error {
	if err := c.lo.Save(c.layoutPath); err != nil {
		return err
	}
	return layout.SaveIndexesSidecar(c.lo, c.indexesPath)
}

func indexName(fields []string) string {
	return strings.Join(fields, "+")
}

// CreateIndex defines (or re-confirms) a compound index over fields,
// idempotently. If documents already exist, the new index is backfilled
// immediately.
func (c *Collection) CreateIndex(fields []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := indexName(fields)
	if _, exists := c.lo.SecondaryIndexDefinitions[name]; exists {
		if mat, ok := c.lo.SecondaryIndexes[name]; ok && len(mat) > 0 {
			return nil
		}
		c.lo.SecondaryIndexes[name] = make(map[string]layout.IDSet)
	} else {
		c.lo.SecondaryIndexDefinitions[name] = fields
		c.lo.SecondaryIndexes[name] = make(map[string]layout.IDSet)
	}

	for id, pageIdx := range c.lo.IndexMap {
		doc, err := c.readPage(pageIdx)
		if err != nil || doc == nil {
			continue
		}
		if isDeleted(doc) {
			continue
		}
		c.indexDoc(name, fields, id, doc)
	}
	return c.persist()
}

// hasAllFields reports whether doc carries every field in fields.
func hasAllFields(doc blazedb.Document, fields []string) bool {
	for _, f := range fields {
		if _, ok := doc[f]; !ok {
			return false
		}
	}
	return true
}

func (c *Collection) indexDoc(name string, fields []string, id blazedb.ID, doc blazedb.Document) {
	if !hasAllFields(doc, fields) {
		return
	}
	key := compoundKey(doc, fields)
	bucket := c.lo.SecondaryIndexes[name]
	if bucket == nil {
		bucket = make(map[string]layout.IDSet)
		c.lo.SecondaryIndexes[name] = bucket
	}
	set, ok := bucket[key]
	if !ok {
		set = make(layout.IDSet)
		bucket[key] = set
	}
	set[id] = true
}

func (c *Collection) unindexDoc(name string, fields []string, id blazedb.ID, doc blazedb.Document) {
	if !hasAllFields(doc, fields) {
		return
	}
	key := compoundKey(doc, fields)
	bucket := c.lo.SecondaryIndexes[name]
	if bucket == nil {
		return
	}
	set, ok := bucket[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(bucket, key)
	}
}

func (c *Collection) rebuildIndexes() error {
	for name, fields := range c.lo.SecondaryIndexDefinitions {
		c.lo.SecondaryIndexes[name] = make(map[string]layout.IDSet)
		for id, pageIdx := range c.lo.IndexMap {
			doc, err := c.readPage(pageIdx)
			if err != nil || doc == nil {
				continue
			}
			if isDeleted(doc) {
				continue
			}
			c.indexDoc(name, fields, id, doc)
		}
	}
	return nil
}

// compoundKey builds the ordered-normalized-value digest used as a bucket
// key within a compound index's materialization.
func compoundKey(doc blazedb.Document, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = blazedb.NormalizeValue(doc[f]).HashKey()
	}
	return strings.Join(parts, "\x1f")
}

func isDeleted(doc blazedb.Document) bool {
	b, _ := doc["isDeleted"].(bool)
	return b
}

// Insert assigns (or adopts a caller-supplied) id, stamps createdAt and
// project, writes the serialized document to a freshly appended page,
// updates every secondary index whose fields are satisfied, and persists
// the layout.
func (c *Collection) Insert(doc blazedb.Document) (blazedb.ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := resolveID(doc)
	if err != nil {
		return blazedb.NilID, err
	}
	if _, exists := c.lo.IndexMap[id]; exists {
		return blazedb.NilID, blazedb.NewError(blazedb.AlreadyExists, nil, id)
	}

	doc["id"] = id
	if _, ok := doc["createdAt"]; !ok {
		doc["createdAt"] = time.Now().UTC()
	}
	if _, ok := doc["project"]; !ok {
		doc["project"] = ""
	}

	payload, err := c.encode(doc)
	if err != nil {
		return blazedb.NilID, err
	}
	pageIdx, err := c.ps.Append(payload)
	if err != nil {
		return blazedb.NilID, err
	}

	c.lo.IndexMap[id] = pageIdx
	if pageIdx+1 > c.lo.NextPageIndex {
		c.lo.NextPageIndex = pageIdx + 1
	}
	for name, fields := range c.lo.SecondaryIndexDefinitions {
		c.indexDoc(name, fields, id, doc)
	}

	if err := c.persist(); err != nil {
		return blazedb.NilID, err
	}
	return id, nil
}

func resolveID(doc blazedb.Document) (blazedb.ID, error) {
	raw, ok := doc["id"]
	if !ok || raw == nil {
		return blazedb.NewID(), nil
	}
	switch v := raw.(type) {
	case blazedb.ID:
		return v, nil
	case string:
		return blazedb.ParseID(v)
	default:
		return blazedb.NewID(), nil
	}
}

func (c *Collection) encode(doc blazedb.Document) ([]byte, error) {
	data, err := blazedb.DefaultMarshaler.Marshal(doc)
	if err != nil {
		return nil, blazedb.NewError(blazedb.Unknown, err, nil)
	}
	if c.encKey == nil {
		return data, nil
	}
	return dbcrypto.Seal(c.encKey, data)
}

func (c *Collection) decode(data []byte) (blazedb.Document, error) {
	if c.encKey != nil {
		plain, err := dbcrypto.Open(c.encKey, data)
		if err != nil {
			return nil, err
		}
		data = plain
	}
	var raw map[string]any
	if err := blazedb.DefaultMarshaler.Unmarshal(data, &raw); err != nil {
		return nil, blazedb.NewError(blazedb.Unknown, err, nil)
	}
	doc := blazedb.Document(raw)
	normalizeWellKnownFields(doc)
	return doc, nil
}

func normalizeWellKnownFields(doc blazedb.Document) {
	if s, ok := doc["id"].(string); ok {
		if id, err := blazedb.ParseID(s); err == nil {
			doc["id"] = id
		}
	}
	for _, k := range []string{"createdAt", "updatedAt"} {
		if s, ok := doc[k].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				doc[k] = t
			}
		}
	}
}

// readPage reads and decodes the document at pageIdx, returning nil (not
// an error) for a header-only/all-zero page, matching page.Store.Read's
// "not found" contract.
func (c *Collection) readPage(pageIdx int64) (blazedb.Document, error) {
	payload, err := c.ps.Read(pageIdx)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}
	return c.decode(payload)
}

// Fetch returns the document bound to id, or nil if id is unknown or its
// page is a hole.
func (c *Collection) Fetch(id blazedb.ID) (blazedb.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pageIdx, ok := c.lo.IndexMap[id]
	if !ok {
		return nil, nil
	}
	return c.readPage(pageIdx)
}

// FetchAll returns every live document, in no particular order.
func (c *Collection) FetchAll() ([]blazedb.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]blazedb.Document, 0, len(c.lo.IndexMap))
	for _, pageIdx := range c.lo.IndexMap {
		doc, err := c.readPage(pageIdx)
		if err != nil || doc == nil {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// FetchAllByProject filters FetchAll's result to documents whose project
// field equals project.
func (c *Collection) FetchAllByProject(project string) ([]blazedb.Document, error) {
	all, err := c.FetchAll()
	if err != nil {
		return nil, err
	}
	out := make([]blazedb.Document, 0, len(all))
	for _, doc := range all {
		if p, _ := doc["project"].(string); p == project {
			out = append(out, doc)
		}
	}
	return out, nil
}

// FetchByIndexedField requires a single-field index on field and returns
// every document whose normalized value of that field equals value.
func (c *Collection) FetchByIndexedField(field string, value any) ([]blazedb.Document, error) {
	return c.FetchByIndexedFields([]string{field}, []any{value})
}

// FetchByIndexedFields requires an index keyed on exactly fields (same
// order) and returns every document bucketed under the normalized key
// built from values. Returns an empty slice (not an error) if the index
// is absent, the lengths mismatch, or no key matches.
func (c *Collection) FetchByIndexedFields(fields []string, values []any) ([]blazedb.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(fields) != len(values) {
		return nil, nil
	}
	name := indexName(fields)
	if _, ok := c.lo.SecondaryIndexDefinitions[name]; !ok {
		return nil, nil
	}
	probe := make(blazedb.Document, len(fields))
	for i, f := range fields {
		probe[f] = values[i]
	}
	key := compoundKey(probe, fields)

	bucket := c.lo.SecondaryIndexes[name]
	if bucket == nil {
		return nil, nil
	}
	ids, ok := bucket[key]
	if !ok {
		return nil, nil
	}
	out := make([]blazedb.Document, 0, len(ids))
	for id := range ids {
		pageIdx, ok := c.lo.IndexMap[id]
		if !ok {
			continue
		}
		doc, err := c.readPage(pageIdx)
		if err != nil || doc == nil {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// crashBeforeUpdate reports BLAZEDB_CRASH_BEFORE_UPDATE=1, a test-only
// knob (spec §6, scenario 4 of §8) that makes Update fail immediately so
// the safe-write rollback path is exercisable without a real crash.
func crashBeforeUpdate() bool {
	return os.Getenv("BLAZEDB_CRASH_BEFORE_UPDATE") == "1"
}

// Update replaces the stored document for id at its existing page slot,
// pruning stale compound-index entries before inserting refreshed ones.
// Fails with NotFound if id is unknown.
func (c *Collection) Update(id blazedb.ID, doc blazedb.Document) error {
	if crashBeforeUpdate() {
		return blazedb.NewError(blazedb.Unknown, nil, "BLAZEDB_CRASH_BEFORE_UPDATE")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pageIdx, ok := c.lo.IndexMap[id]
	if !ok {
		return blazedb.NewError(blazedb.NotFound, nil, id)
	}
	oldDoc, err := c.readPage(pageIdx)
	if err != nil {
		return err
	}
	for name, fields := range c.lo.SecondaryIndexDefinitions {
		if oldDoc != nil {
			c.unindexDoc(name, fields, id, oldDoc)
		}
	}

	doc["id"] = id
	doc["updatedAt"] = time.Now().UTC()
	if oldDoc != nil {
		if _, ok := doc["createdAt"]; !ok {
			doc["createdAt"] = oldDoc["createdAt"]
		}
		if _, ok := doc["project"]; !ok {
			doc["project"] = oldDoc["project"]
		}
	}

	payload, err := c.encode(doc)
	if err != nil {
		return err
	}
	if err := c.ps.Write(pageIdx, payload); err != nil {
		return err
	}

	for name, fields := range c.lo.SecondaryIndexDefinitions {
		c.indexDoc(name, fields, id, doc)
	}
	return c.persist()
}

// Delete removes id from the layout and every compound-index bucket that
// references it, then zeros its page.
func (c *Collection) Delete(id blazedb.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteLocked(id)
}

func (c *Collection) deleteLocked(id blazedb.ID) error {
	pageIdx, ok := c.lo.IndexMap[id]
	if !ok {
		return blazedb.NewError(blazedb.NotFound, nil, id)
	}
	doc, err := c.readPage(pageIdx)
	if err != nil {
		return err
	}
	if doc != nil {
		for name, fields := range c.lo.SecondaryIndexDefinitions {
			c.unindexDoc(name, fields, id, doc)
		}
	}
	if err := c.ps.Delete(pageIdx); err != nil {
		return err
	}
	delete(c.lo.IndexMap, id)
	return c.persist()
}

// SoftDelete is an Update that sets isDeleted = true; no other field
// changes except the updatedAt stamp that Update applies.
func (c *Collection) SoftDelete(id blazedb.ID) error {
	doc, err := c.Fetch(id)
	if err != nil {
		return err
	}
	if doc == nil {
		return blazedb.NewError(blazedb.NotFound, nil, id)
	}
	doc["isDeleted"] = true
	return c.Update(id, doc)
}

// Purge hard-deletes every document currently marked isDeleted.
func (c *Collection) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toDelete []blazedb.ID
	for id, pageIdx := range c.lo.IndexMap {
		doc, err := c.readPage(pageIdx)
		if err != nil || doc == nil {
			continue
		}
		if isDeleted(doc) {
			toDelete = append(toDelete, id)
		}
	}
	for _, id := range toDelete {
		if err := c.deleteLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// Destroy removes the page file and layout files and resets in-memory
// state. The caller remains responsible for closing the underlying
// page.Store handle.
func (c *Collection) Destroy(pagePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range []string{pagePath, c.layoutPath, c.indexesPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return blazedb.NewError(blazedb.Unknown, err, p)
		}
	}
	c.lo = layout.New()
	return nil
}

// Layout exposes the underlying layout for components (database,
// safewrite) that need read access to metadata or raw-dump support.
func (c *Collection) Layout() *layout.Layout {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lo
}

// Flush re-persists the current layout and indexes sidecar, for callers
// (the mount manager's FlushAll) that want an explicit durability point
// beyond the per-mutation persistence every write already performs.
func (c *Collection) Flush() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.persist()
}
