package journal

import (
	"github.com/Mikedan37/BlazeDB"
	"github.com/Mikedan37/BlazeDB/page"
)

type txState int

const (
	txOpen txState = iota
	txCommitted
	txRolledBack
)

// TxContext is the in-process transaction buffer described in spec §4.C:
// writes and deletes accumulate in memory (and are durably logged as they
// arrive) without touching the page store until Commit. Rollback discards
// the buffer and never reaches the store — resolving the spec's open
// question about rollback leakage in favor of "no leakage, ever".
type TxContext struct {
	id      blazedb.ID
	j       *Journal
	ps      *page.Store
	writes  map[int64][]byte
	order   []int64
	deletes map[int64]bool
	state   txState
}

// Begin opens a new transaction: mints an id, logs a Begin marker, and
// returns a TxContext ready to buffer writes/deletes.
func Begin(j *Journal, ps *page.Store) (*TxContext, error) {
	id := blazedb.NewID()
	if err := j.Begin(id); err != nil {
		return nil, err
	}
	return &TxContext{
		id:      id,
		j:       j,
		ps:      ps,
		writes:  make(map[int64][]byte),
		deletes: make(map[int64]bool),
	}, nil
}

// ID returns the transaction's identifier.
func (tc *TxContext) ID() blazedb.ID { return tc.id }

func (tc *TxContext) checkOpen() error {
	if tc.state != txOpen {
		return blazedb.NewError(blazedb.AlreadyFinalized, nil, tc.id)
	}
	return nil
}

// Write buffers a page write and durably logs it to the journal. The
// write is not visible to the page store until Commit.
func (tc *TxContext) Write(pageIndex int64, payload []byte) error {
	if err := tc.checkOpen(); err != nil {
		return err
	}
	if err := tc.j.AppendWrite(tc.id, pageIndex, payload); err != nil {
		return err
	}
	if _, exists := tc.writes[pageIndex]; !exists {
		tc.order = append(tc.order, pageIndex)
	}
	tc.writes[pageIndex] = payload
	delete(tc.deletes, pageIndex)
	return nil
}

// Delete buffers a page delete and durably logs it to the journal.
func (tc *TxContext) Delete(pageIndex int64) error {
	if err := tc.checkOpen(); err != nil {
		return err
	}
	if err := tc.j.AppendDelete(tc.id, pageIndex); err != nil {
		return err
	}
	delete(tc.writes, pageIndex)
	tc.deletes[pageIndex] = true
	return nil
}

// Read returns the buffered value for pageIndex if this transaction has
// written or deleted it, otherwise delegates to the underlying page
// store.
func (tc *TxContext) Read(pageIndex int64) ([]byte, error) {
	if payload, ok := tc.writes[pageIndex]; ok {
		return payload, nil
	}
	if tc.deletes[pageIndex] {
		return nil, nil
	}
	return tc.ps.Read(pageIndex)
}

// Commit flushes buffered writes into the page store in insertion order,
// applies buffered deletes, then appends the Commit marker (which also
// truncates the journal).
func (tc *TxContext) Commit() error {
	if err := tc.checkOpen(); err != nil {
		return err
	}
	for _, idx := range tc.order {
		if err := tc.ps.Write(idx, tc.writes[idx]); err != nil {
			return err
		}
	}
	for idx := range tc.deletes {
		if err := tc.ps.Delete(idx); err != nil {
			return err
		}
	}
	if err := tc.j.Commit(tc.id); err != nil {
		return err
	}
	tc.state = txCommitted
	return nil
}

// Rollback discards the buffer without ever writing to the page store,
// then appends the Abort marker (which also truncates the journal).
func (tc *TxContext) Rollback() error {
	if err := tc.checkOpen(); err != nil {
		return err
	}
	if err := tc.j.Abort(tc.id); err != nil {
		return err
	}
	tc.state = txRolledBack
	tc.writes = nil
	tc.deletes = nil
	tc.order = nil
	return nil
}
