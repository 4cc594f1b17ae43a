package manager

import (
	"path/filepath"
	"testing"

	"github.com/Mikedan37/BlazeDB"
	"github.com/Mikedan37/BlazeDB/database"
)

func TestMountUseUnmount(t *testing.T) {
	dir := t.TempDir()
	m := New()

	if err := m.Mount("alpha", filepath.Join(dir, "alpha.bz"), "password1", database.Options{}); err != nil {
		t.Fatalf("Mount alpha: %v", err)
	}
	if err := m.Mount("beta", filepath.Join(dir, "beta.bz"), "password2", database.Options{}); err != nil {
		t.Fatalf("Mount beta: %v", err)
	}
	if m.CurrentName() != "beta" {
		t.Fatalf("expected beta current after mount, got %q", m.CurrentName())
	}

	if err := m.Use("alpha"); err != nil {
		t.Fatalf("Use alpha: %v", err)
	}
	if m.CurrentName() != "alpha" {
		t.Fatalf("expected alpha current, got %q", m.CurrentName())
	}

	if _, err := m.Current().Insert(blazedb.Document{"title": "via manager"}); err != nil {
		t.Fatalf("Insert through current: %v", err)
	}

	if err := m.Use("missing"); blazedb.CodeOf(err) != blazedb.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}

	if err := m.Unmount("alpha"); err != nil {
		t.Fatalf("Unmount alpha: %v", err)
	}
	if m.Current() != nil {
		t.Fatal("expected nil current after unmounting the current mount")
	}

	m.UnmountAll()
	if len(m.List()) != 0 {
		t.Fatalf("expected no mounts after UnmountAll, got %v", m.List())
	}
}

func TestFlushAll(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.UnmountAll()

	if err := m.Mount("alpha", filepath.Join(dir, "alpha.bz"), "password1", database.Options{}); err != nil {
		t.Fatalf("Mount alpha: %v", err)
	}
	if err := m.Mount("beta", filepath.Join(dir, "beta.bz"), "password2", database.Options{}); err != nil {
		t.Fatalf("Mount beta: %v", err)
	}
	if err := m.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
}
