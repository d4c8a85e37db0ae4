// manager_test.go - Tests for export storage
package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/solar-control/backend/internal/models"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func sampleEntries() []models.LogEntry {
	base := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	return []models.LogEntry{
		{Seq: 1, Timestamp: base, Text: "status", Tag: models.LogTagOutgoing},
		{Seq: 2, Timestamp: base.Add(time.Second), Text: "TOTAL:5", Tag: models.LogTagIncoming},
		{Seq: 3, Timestamp: base.Add(2 * time.Second), Text: "EOT", Tag: models.LogTagSuccess},
	}
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates export directory", func(t *testing.T) {
		exportDir := filepath.Join(t.TempDir(), "exports")

		if _, err := NewLocalStore(exportDir); err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}

		if _, err := os.Stat(exportDir); os.IsNotExist(err) {
			t.Error("Expected export directory to be created")
		}
	})
}

func TestSave(t *testing.T) {
	t.Run("writes formatted lines in order", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("bench_run", sampleEntries())
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if info.Name != "bench_run.txt" {
			t.Errorf("Name = %q, want bench_run.txt", info.Name)
		}
		if info.Entries != 3 {
			t.Errorf("Entries = %d, want 3", info.Entries)
		}

		data, err := os.ReadFile(info.Path)
		if err != nil {
			t.Fatalf("reading export: %v", err)
		}
		want := "[09:26:53] status\n[09:26:54] TOTAL:5\n[09:26:55] EOT\n"
		if string(data) != want {
			t.Errorf("content = %q, want %q", string(data), want)
		}
		if info.Size != int64(len(want)) {
			t.Errorf("Size = %d, want %d", info.Size, len(want))
		}
	})

	t.Run("defaults the file name", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("", sampleEntries())
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if !strings.HasPrefix(info.Name, "solar_log_") || !strings.HasSuffix(info.Name, ".txt") {
			t.Errorf("default name = %q", info.Name)
		}
	})

	t.Run("strips directory components", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("../../etc/evil", sampleEntries())
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if info.Name != "evil.txt" {
			t.Errorf("Name = %q, want evil.txt", info.Name)
		}
		if filepath.Dir(info.Path) != store.exportDir {
			t.Errorf("Path %q escaped the export dir", info.Path)
		}
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		store := createTestStore(t)

		if _, err := store.Save("dup", sampleEntries()); err != nil {
			t.Fatalf("first Save failed: %v", err)
		}
		if _, err := store.Save("dup", sampleEntries()); !errors.Is(err, ErrExists) {
			t.Errorf("expected ErrExists for a duplicate export name, got %v", err)
		}
	})
}

func TestGetListDelete(t *testing.T) {
	store := createTestStore(t)

	first, err := store.Save("first", sampleEntries())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second, err := store.Save("second", sampleEntries())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Run("get by id", func(t *testing.T) {
		got, err := store.Get(first.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Name != first.Name {
			t.Errorf("Name = %q, want %q", got.Name, first.Name)
		}
	})

	t.Run("get unknown id", func(t *testing.T) {
		if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		list, err := store.List(10)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("len = %d, want 2", len(list))
		}
		if list[0].CreatedAt.Before(list[1].CreatedAt) {
			t.Error("list not sorted newest first")
		}
	})

	t.Run("open streams the file", func(t *testing.T) {
		rc, err := store.Open(second.ID)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if !strings.Contains(string(data), "TOTAL:5") {
			t.Errorf("content = %q", string(data))
		}
	})

	t.Run("delete removes file and metadata", func(t *testing.T) {
		path := first.Path
		if err := store.Delete(first.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("export file still on disk")
		}
		if _, err := store.Get(first.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get after delete = %v, want ErrNotFound", err)
		}
		if err := store.Delete(first.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete = %v, want ErrNotFound", err)
		}
	})
}
