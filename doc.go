// Package blazedb implements an embedded, single-file, schemaless document
// store: fixed-size paged storage, a write-ahead journal for crash-safe
// multi-page writes, single/compound secondary indexes, and a file-level
// safe-write harness wrapping every mutating operation.
//
// Subpackages own one subsystem each:
//
//   - page: fixed-size-page I/O on one file (the "A" component).
//   - layout: persistent id->page map, index catalog, schema metadata ("B").
//   - journal: append-only write-ahead log and replay ("C").
//   - collection: document CRUD, indexing, query evaluation ("D").
//   - safewrite: file-level snapshot/restore around mutations ("E").
//   - database: the client stitching A-E together, migrations, integrity ("F").
//   - manager: in-process registry of opened databases ("G").
//   - dbcrypto: password key derivation, key-tag verification, optional
//     payload encryption.
//
// None of this is safe for multi-process or networked access: a BlazeDB
// file is meant to be opened by one process at a time.
package blazedb
