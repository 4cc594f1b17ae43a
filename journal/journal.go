// Package journal implements the write-ahead log: Begin/Write/Delete/
// Commit/Abort entries appended to one file, replayed into a page.Store
// on open. Entries are newline-delimited JSON, one per line, grounded on
// the append-then-truncate idiom in the teacher's transaction log
// (SharedCode/sop fs/transaction_log.go) and the begin/commit bracketing
// described by the retrieval pack's write-ahead-log example
// (NebulousLabs/writeaheadlog, other_examples) — adapted from that
// example's binary fixed-page metadata format to a simpler line-oriented
// text format, since BlazeDB's journal only ever holds one open
// transaction's worth of entries before being truncated.
package journal

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"log/slog"
	"os"
	"sync"

	"github.com/Mikedan37/BlazeDB"
	"github.com/Mikedan37/BlazeDB/page"
)

// EntryKind tags a journal record.
type EntryKind int

const (
	EntryBegin EntryKind = iota
	EntryWrite
	EntryDelete
	EntryCommit
	EntryAbort
)

// Entry is one journal record. Payload is only meaningful for EntryWrite.
type Entry struct {
	Kind      EntryKind   `json:"kind"`
	TxID      blazedb.ID  `json:"txId"`
	PageIndex int64       `json:"pageIndex,omitempty"`
	Payload   []byte      `json:"payload,omitempty"`
}

// Journal is an append-only log file. Appends are serialized by mu;
// commit/abort truncate the file back to empty once their bracketed
// transaction is fully durable or discarded.
type Journal struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// Open opens (creating if absent) the journal file at path for append.
func Open(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, blazedb.NewError(blazedb.Unknown, err, path)
	}
	return &Journal{path: path, f: f}, nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

func (j *Journal) appendLine(e Entry) error {
	data, err := blazedb.DefaultMarshaler.Marshal(e)
	if err != nil {
		return blazedb.NewError(blazedb.Unknown, err, e)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.f.Write(append(data, '\n')); err != nil {
		return blazedb.NewError(blazedb.Unknown, err, e)
	}
	return j.f.Sync()
}

// Begin appends a Begin marker for txID.
func (j *Journal) Begin(txID blazedb.ID) error {
	return j.appendLine(Entry{Kind: EntryBegin, TxID: txID})
}

// AppendWrite appends a Write entry belonging to the open transaction
// txID.
func (j *Journal) AppendWrite(txID blazedb.ID, pageIndex int64, payload []byte) error {
	return j.appendLine(Entry{Kind: EntryWrite, TxID: txID, PageIndex: pageIndex, Payload: payload})
}

// AppendDelete appends a Delete entry belonging to the open transaction
// txID.
func (j *Journal) AppendDelete(txID blazedb.ID, pageIndex int64) error {
	return j.appendLine(Entry{Kind: EntryDelete, TxID: txID, PageIndex: pageIndex})
}

// Commit appends a Commit marker then truncates the log back to empty.
func (j *Journal) Commit(txID blazedb.ID) error {
	if err := j.appendLine(Entry{Kind: EntryCommit, TxID: txID}); err != nil {
		return err
	}
	return j.truncate()
}

// Abort appends an Abort marker then truncates the log back to empty.
func (j *Journal) Abort(txID blazedb.ID) error {
	if err := j.appendLine(Entry{Kind: EntryAbort, TxID: txID}); err != nil {
		return err
	}
	return j.truncate()
}

func (j *Journal) truncate() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.f.Truncate(0); err != nil {
		return blazedb.NewError(blazedb.Unknown, err, j.path)
	}
	if _, err := j.f.Seek(0, 0); err != nil {
		return blazedb.NewError(blazedb.Unknown, err, j.path)
	}
	return nil
}

// Recover replays committed transactions into ps. A transaction is
// replayed only if a matching Commit follows its Begin; transactions that
// run off the end of the log without a Commit are discarded. If the log
// can't be parsed at all, it is treated as empty (JournalCorrupt, logged,
// non-fatal) since the page file remains authoritative. Recover is
// idempotent: replaying an already-applied log is a no-op because the
// replayed writes/deletes are themselves idempotent at the page level.
func Recover(path string, ps *page.Store) (applied int, err error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return 0, nil
		}
		return 0, blazedb.NewError(blazedb.Unknown, readErr, path)
	}
	if len(data) == 0 {
		return 0, nil
	}

	entries, ok := parseEntries(data)
	if !ok {
		slog.Warn("blazedb: journal unparseable, treating as empty", "path", path)
		return 0, nil
	}

	// Group entries by transaction, bracket by Begin..Commit.
	type tx struct {
		writes  []Entry
		commits bool
	}
	byTx := make(map[blazedb.ID]*tx)
	order := make([]blazedb.ID, 0)
	for _, e := range entries {
		t, exists := byTx[e.TxID]
		if !exists {
			t = &tx{}
			byTx[e.TxID] = t
			order = append(order, e.TxID)
		}
		switch e.Kind {
		case EntryWrite, EntryDelete:
			t.writes = append(t.writes, e)
		case EntryCommit:
			t.commits = true
		case EntryAbort:
			t.commits = false
		}
	}

	for _, id := range order {
		t := byTx[id]
		if !t.commits {
			continue
		}
		for _, e := range t.writes {
			switch e.Kind {
			case EntryWrite:
				if err := ps.Write(e.PageIndex, e.Payload); err != nil {
					return applied, err
				}
			case EntryDelete:
				if err := ps.Delete(e.PageIndex); err != nil {
					return applied, err
				}
			}
			applied++
		}
	}
	return applied, nil
}

// parseEntries decodes newline-delimited JSON entries. It returns ok=false
// if any line fails to parse, per the "whole log treated as empty on any
// parse failure" policy.
func parseEntries(data []byte) ([]Entry, bool) {
	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := blazedb.DefaultMarshaler.Unmarshal(line, &e); err != nil {
			return nil, false
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, false
	}
	return entries, true
}

// The blank use of base64 below does nothing at run time; it documents why
// Entry.Payload can round-trip through JSON: encoding/json base64-encodes []byte fields
// automatically, so no manual encoding is needed here.
var _ = base64.StdEncoding
