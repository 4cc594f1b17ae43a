package page

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/Mikedan37/BlazeDB"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data.bz"), DefaultSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	payload := []byte("hello, page store")
	if err := s.Write(3, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestZeroLengthPayloadRoundTrips(t *testing.T) {
	s := openTestStore(t)
	if err := s.Write(0, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty payload, got %q", got)
	}
}

func TestMaxPayloadBoundary(t *testing.T) {
	s := openTestStore(t)
	max := MaxPayload(s.PageSize())

	ok := bytes.Repeat([]byte{1}, max)
	if err := s.Write(1, ok); err != nil {
		t.Fatalf("Write at max payload: %v", err)
	}
	got, err := s.Read(1)
	if err != nil || !bytes.Equal(got, ok) {
		t.Fatalf("round trip at max payload failed: err=%v", err)
	}

	tooBig := bytes.Repeat([]byte{1}, max+1)
	if err := s.Write(2, tooBig); blazedb.CodeOf(err) != blazedb.TooLarge {
		t.Fatalf("expected TooLarge, got %v", err)
	}
	// The file must not have been mutated by the failed write.
	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalPages > 2 {
		t.Fatalf("expected failed write not to grow the file past slot 1, got %d pages", stats.TotalPages)
	}
}

func TestReadPastEndOfFileReturnsNilNotError(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Read(50)
	if err != nil {
		t.Fatalf("expected no error reading past EOF, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil payload, got %q", got)
	}
}

func TestAppendAllocatesSequentialIndexes(t *testing.T) {
	s := openTestStore(t)
	i0, err := s.Append([]byte("a"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	i1, err := s.Append([]byte("b"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if i1 != i0+1 {
		t.Fatalf("expected sequential indexes, got %d then %d", i0, i1)
	}
}

func TestDeleteZerosPage(t *testing.T) {
	s := openTestStore(t)
	if err := s.Write(1, []byte("gone soon")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := s.Read(1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != nil {
		t.Fatalf("expected deleted page to read as nil, got %q", got)
	}
}

func TestStatsCountsOrphanedPages(t *testing.T) {
	s := openTestStore(t)
	if err := s.Write(0, []byte("valid")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// Hand-craft an orphaned page (bad header) directly on the file.
	junk := bytes.Repeat([]byte{0xFF}, s.PageSize())
	if _, err := s.f.WriteAt(junk, int64(s.PageSize())); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalPages != 2 {
		t.Fatalf("expected 2 total pages, got %d", stats.TotalPages)
	}
	if stats.OrphanedPages != 1 {
		t.Fatalf("expected 1 orphaned page, got %d", stats.OrphanedPages)
	}
}

func TestStatsCountsDeletedPagesAsOrphaned(t *testing.T) {
	s := openTestStore(t)
	if err := s.Write(0, []byte("valid")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(1, []byte("gone soon")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalPages != 2 {
		t.Fatalf("expected 2 total pages, got %d", stats.TotalPages)
	}
	if stats.OrphanedPages != 1 {
		t.Fatalf("expected the zeroed, deleted page to count as orphaned, got %d", stats.OrphanedPages)
	}
}
