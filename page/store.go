package page

import (
	"os"
	"sync"

	"github.com/Mikedan37/BlazeDB"
)

// Store is fixed-size-page I/O on one file. Multiple concurrent readers
// are permitted; writers are serialized by mu. A read concurrent with a
// write observes either the pre-write or the post-write page in full,
// never a torn header/payload, because both sides go through the same
// mutex discipline (readers hold RLock, writers hold Lock).
type Store struct {
	mu       sync.RWMutex
	f        *os.File
	pageSize int
}

// Open opens (creating if absent) the page file at path with the given
// page size. A pageSize <= HeaderSize could never hold a payload and is
// replaced by DefaultSize.
func Open(path string, pageSize int) (*Store, error) {
	if pageSize <= HeaderSize {
		pageSize = DefaultSize
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, blazedb.NewError(blazedb.Unknown, err, path)
	}
	return &Store{f: f, pageSize: pageSize}, nil
}

// PageSize returns the fixed page size this store was opened with.
func (s *Store) PageSize() int {
	return s.pageSize
}

// Close closes the underlying file handle. Every write has already been
// fsynced, so Close does no flushing of its own.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Write frames payload and writes it at the page slot index, then fsyncs
// before returning so the write is durable on acknowledgement. Returns
// TooLarge without touching the file if payload would overflow the page.
func (s *Store) Write(index int64, payload []byte) error {
	if len(payload) > MaxPayload(s.pageSize) {
		return tooLargeErr(s.pageSize, len(payload))
	}
	buf := frame(payload, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	offset := index * int64(s.pageSize)
	if _, err := s.f.WriteAt(buf, offset); err != nil {
		return blazedb.NewError(blazedb.Unknown, err, index)
	}
	if err := s.f.Sync(); err != nil {
		return blazedb.NewError(blazedb.Unknown, err, index)
	}
	return nil
}

// Read returns the payload stored at index, or nil (not an error) if the
// slot is past end-of-file, header-only, or all-zero. A present-but-
// malformed header (doesn't match magic+version) is InvalidHeader.
func (s *Store) Read(index int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offset := index * int64(s.pageSize)
	buf := make([]byte, s.pageSize)
	n, err := s.f.ReadAt(buf, offset)
	if n == 0 {
		// The slot starts at or past end-of-file; it reads as "no page".
		return nil, nil
	}
	buf = buf[:n]
	if isAllZero(buf) {
		return nil, nil
	}
	if !hasValidHeader(buf) {
		return nil, blazedb.NewError(blazedb.InvalidHeader, err, index)
	}
	payload := buf[HeaderSize:]
	payload = trimTrailingZeros(payload)
	if len(payload) == 0 {
		return nil, nil
	}
	return payload, nil
}

// Append allocates the next never-used page slot (derived from current
// file size) and writes payload there, returning the assigned index.
func (s *Store) Append(payload []byte) (int64, error) {
	if len(payload) > MaxPayload(s.pageSize) {
		return 0, tooLargeErr(s.pageSize, len(payload))
	}
	buf := frame(payload, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.f.Stat()
	if err != nil {
		return 0, blazedb.NewError(blazedb.Unknown, err, nil)
	}
	index := info.Size() / int64(s.pageSize)
	offset := index * int64(s.pageSize)
	if _, err := s.f.WriteAt(buf, offset); err != nil {
		return 0, blazedb.NewError(blazedb.Unknown, err, index)
	}
	if err := s.f.Sync(); err != nil {
		return 0, blazedb.NewError(blazedb.Unknown, err, index)
	}
	return index, nil
}

// Delete overwrites the slot at index with zeros, orphaning the page
// until an external compactor reclaims it (no compaction is implemented;
// see spec's open question on page reclamation).
func (s *Store) Delete(index int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := index * int64(s.pageSize)
	zeros := make([]byte, s.pageSize)
	if _, err := s.f.WriteAt(zeros, offset); err != nil {
		return blazedb.NewError(blazedb.Unknown, err, index)
	}
	return s.f.Sync()
}

// Stats reports the total page count implied by file size (a short
// trailing remainder is ignored), plus how many of those pages are
// orphaned (a header that doesn't match magic+version).
type Stats struct {
	TotalPages    int64
	OrphanedPages int64
	FileBytes     int64
}

func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := s.f.Stat()
	if err != nil {
		return Stats{}, blazedb.NewError(blazedb.Unknown, err, nil)
	}
	fileBytes := info.Size()
	total := fileBytes / int64(s.pageSize)

	header := make([]byte, HeaderSize)
	var orphaned int64
	for i := int64(0); i < total; i++ {
		offset := i * int64(s.pageSize)
		n, err := s.f.ReadAt(header, offset)
		if n < HeaderSize || err != nil {
			orphaned++
			continue
		}
		if !hasValidHeader(header) {
			orphaned++
		}
	}
	return Stats{TotalPages: total, OrphanedPages: orphaned, FileBytes: fileBytes}, nil
}
