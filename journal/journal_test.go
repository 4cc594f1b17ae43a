package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Mikedan37/BlazeDB"
	"github.com/Mikedan37/BlazeDB/page"
)

func TestRecoverReplaysCommittedTransaction(t *testing.T) {
	dir := t.TempDir()
	ps, err := page.Open(filepath.Join(dir, "data.bz"), page.DefaultSize)
	if err != nil {
		t.Fatalf("page.Open: %v", err)
	}
	defer ps.Close()

	journalPath := filepath.Join(dir, "data.journal")
	j, err := Open(journalPath)
	if err != nil {
		t.Fatalf("journal Open: %v", err)
	}

	txID := blazedb.NewID()
	if err := j.Begin(txID); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := j.AppendWrite(txID, 1, []byte("P1")); err != nil {
		t.Fatalf("AppendWrite: %v", err)
	}
	if err := j.AppendWrite(txID, 2, []byte("P2")); err != nil {
		t.Fatalf("AppendWrite: %v", err)
	}
	if err := j.appendLine(Entry{Kind: EntryCommit, TxID: txID}); err != nil {
		t.Fatalf("appendLine commit: %v", err)
	}
	// Deliberately skip truncate to simulate a crash between the commit
	// record landing and the page writes reaching the store file.
	j.Close()

	applied, err := Recover(journalPath, ps)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 applied entries, got %d", applied)
	}

	p1, err := ps.Read(1)
	if err != nil || string(p1) != "P1" {
		t.Fatalf("expected page 1 == P1, got %q err %v", p1, err)
	}
	p2, err := ps.Read(2)
	if err != nil || string(p2) != "P2" {
		t.Fatalf("expected page 2 == P2, got %q err %v", p2, err)
	}

	// Recover must be idempotent.
	applied2, err := Recover(journalPath, ps)
	if err != nil {
		t.Fatalf("second Recover: %v", err)
	}
	if applied2 != applied {
		t.Fatalf("expected idempotent replay, got %d vs %d", applied2, applied)
	}
	p1Again, _ := ps.Read(1)
	if string(p1Again) != "P1" {
		t.Fatalf("expected page 1 unchanged after second recover, got %q", p1Again)
	}
}

func TestRecoverDiscardsUncommittedTransaction(t *testing.T) {
	dir := t.TempDir()
	ps, err := page.Open(filepath.Join(dir, "data.bz"), page.DefaultSize)
	if err != nil {
		t.Fatalf("page.Open: %v", err)
	}
	defer ps.Close()

	journalPath := filepath.Join(dir, "data.journal")
	j, err := Open(journalPath)
	if err != nil {
		t.Fatalf("journal Open: %v", err)
	}

	txID := blazedb.NewID()
	if err := j.Begin(txID); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := j.AppendWrite(txID, 5, []byte("should not apply")); err != nil {
		t.Fatalf("AppendWrite: %v", err)
	}
	j.Close()

	applied, err := Recover(journalPath, ps)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if applied != 0 {
		t.Fatalf("expected 0 applied entries for uncommitted tx, got %d", applied)
	}
	p5, err := ps.Read(5)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if p5 != nil {
		t.Fatalf("expected page 5 untouched, got %q", p5)
	}
}

func TestRecoverTreatsUnparseableLogAsEmpty(t *testing.T) {
	dir := t.TempDir()
	ps, err := page.Open(filepath.Join(dir, "data.bz"), page.DefaultSize)
	if err != nil {
		t.Fatalf("page.Open: %v", err)
	}
	defer ps.Close()

	journalPath := filepath.Join(dir, "data.journal")
	if err := os.WriteFile(journalPath, []byte("not json at all\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	applied, err := Recover(journalPath, ps)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if applied != 0 {
		t.Fatalf("expected 0 applied entries for corrupt log, got %d", applied)
	}
}

func TestTxContextRollbackNeverTouchesStore(t *testing.T) {
	dir := t.TempDir()
	ps, err := page.Open(filepath.Join(dir, "data.bz"), page.DefaultSize)
	if err != nil {
		t.Fatalf("page.Open: %v", err)
	}
	defer ps.Close()

	j, err := Open(filepath.Join(dir, "data.journal"))
	if err != nil {
		t.Fatalf("journal Open: %v", err)
	}
	defer j.Close()

	tc, err := Begin(j, ps)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tc.Write(3, []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tc.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	p3, err := ps.Read(3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if p3 != nil {
		t.Fatalf("expected rollback to never reach the store, got %q", p3)
	}

	if err := tc.Commit(); blazedb.CodeOf(err) != blazedb.AlreadyFinalized {
		t.Fatalf("expected AlreadyFinalized committing after rollback, got %v", err)
	}
}
