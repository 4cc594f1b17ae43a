package database

import (
	"os"
	"time"

	"github.com/Mikedan37/BlazeDB"
)

// TxnOp is one record in the file-level transaction side log (spec
// §4.F): an audit trail of what happened while a transaction was open,
// distinct from the lower-level write-ahead journal in package journal.
type TxnOp struct {
	Op        string     `json:"op"`
	ID        blazedb.ID `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
}

func txnLogPath(path string) string {
	return path + ".txn_log.json"
}

// BeginTransaction snapshots the live page and layout files to
// txn_in_progress.* and opens the side log. Fails with
// TransactionInProgress if one is already open.
func (db *Database) BeginTransaction() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.inTxn {
		return blazedb.NewError(blazedb.TransactionInProgress, nil, db.path)
	}
	if err := copyOver(db.path, txnInProgressPath(db.path)); err != nil {
		return err
	}
	if err := copyOver(db.layoutPath, txnInProgressPath(db.layoutPath)); err != nil {
		return err
	}
	db.inTxn = true
	db.txnOps = nil
	return db.saveTxnLog()
}

func (db *Database) saveTxnLog() error {
	data, err := blazedb.DefaultMarshaler.Marshal(db.txnOps)
	if err != nil {
		return blazedb.NewError(blazedb.Unknown, err, nil)
	}
	if err := os.WriteFile(txnLogPath(db.path), data, 0644); err != nil {
		return blazedb.NewError(blazedb.Unknown, err, db.path)
	}
	return nil
}

// recordTxnOp appends op to the side log if a file-level transaction is
// currently open; otherwise it is a no-op, since ordinary mutations
// outside a transaction don't need a side log.
func (db *Database) recordTxnOp(op string, id blazedb.ID) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.inTxn {
		return
	}
	db.txnOps = append(db.txnOps, TxnOp{Op: op, ID: id, Timestamp: time.Now().UTC()})
	db.saveTxnLog()
}

// CommitTransaction discards the snapshot and clears the side log. The
// mutations already landed on the live files as they happened (each
// wrapped individually by the safe-write harness); commit only releases
// the file-level snapshot that rollback would otherwise restore.
func (db *Database) CommitTransaction() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.inTxn {
		return blazedb.NewError(blazedb.NoTransaction, nil, db.path)
	}
	os.Remove(txnInProgressPath(db.path))
	os.Remove(txnInProgressPath(db.layoutPath))
	os.Remove(txnLogPath(db.path))
	db.inTxn = false
	db.txnOps = nil
	return nil
}

// RollbackTransaction restores the live files from the snapshot taken at
// BeginTransaction, discarding every mutation recorded since, then clears
// the side log and reloads the collection.
func (db *Database) RollbackTransaction() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.inTxn {
		return blazedb.NewError(blazedb.NoTransaction, nil, db.path)
	}
	if err := copyOver(txnInProgressPath(db.path), db.path); err != nil {
		return err
	}
	if err := copyOver(txnInProgressPath(db.layoutPath), db.layoutPath); err != nil {
		return err
	}
	os.Remove(txnInProgressPath(db.path))
	os.Remove(txnInProgressPath(db.layoutPath))
	os.Remove(txnLogPath(db.path))
	db.inTxn = false
	db.txnOps = nil

	return db.col.Reload()
}
