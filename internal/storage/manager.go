// Package storage persists plain-text log exports on the local filesystem.
package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solar-control/backend/internal/models"
)

// ErrNotFound is returned when no export matches the requested ID.
var ErrNotFound = errors.New("export not found")

// ErrExists is returned when saving would overwrite a file already on disk.
var ErrExists = errors.New("export already exists")

// Store defines the interface for export storage.
type Store interface {
	Save(name string, entries []models.LogEntry) (*models.ExportInfo, error)
	Get(id string) (*models.ExportInfo, error)
	List(limit int) ([]*models.ExportInfo, error)
	Open(id string) (io.ReadCloser, error)
	Delete(id string) error
}

// DefaultName returns the conventional export file name for t.
func DefaultName(t time.Time) string {
	return "solar_log_" + t.Format("20060102_150405") + ".txt"
}

// LocalStore implements Store using the local filesystem. Export files keep
// their display name on disk so the directory stays browsable without the
// panel.
type LocalStore struct {
	mu        sync.RWMutex
	exportDir string
	exports   map[string]*models.ExportInfo
}

// NewLocalStore creates a new LocalStore rooted at exportDir.
func NewLocalStore(exportDir string) (*LocalStore, error) {
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	return &LocalStore{
		exportDir: exportDir,
		exports:   make(map[string]*models.ExportInfo),
	}, nil
}

// Save writes entries to a new export file, one formatted line each. An
// empty name selects the timestamped default.
func (s *LocalStore) Save(name string, entries []models.LogEntry) (*models.ExportInfo, error) {
	name = sanitizeName(name)
	path := filepath.Join(s.exportDir, name)

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating export file: %w", err)
	}

	w := bufio.NewWriter(f)
	var size int64
	for _, e := range entries {
		n, err := w.WriteString(e.FormatLine() + "\n")
		if err != nil {
			f.Close()
			os.Remove(path)
			return nil, fmt.Errorf("writing export: %w", err)
		}
		size += int64(n)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing export: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("closing export file: %w", err)
	}

	info := &models.ExportInfo{
		ID:        uuid.New().String(),
		Name:      name,
		Path:      path,
		Size:      size,
		Entries:   len(entries),
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports[info.ID] = info

	return info, nil
}

// Get retrieves export metadata by ID.
func (s *LocalStore) Get(id string) (*models.ExportInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.exports[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return info, nil
}

// List returns the most recent exports. A non-positive limit returns all.
func (s *LocalStore) List(limit int) ([]*models.ExportInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.ExportInfo, 0, len(s.exports))
	for _, info := range s.exports {
		list = append(list, info)
	}

	// Sort by CreatedAt desc
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Open returns the export file contents for download.
func (s *LocalStore) Open(id string) (io.ReadCloser, error) {
	s.mu.RLock()
	info, ok := s.exports[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	f, err := os.Open(info.Path)
	if err != nil {
		return nil, fmt.Errorf("opening export file: %w", err)
	}
	return f, nil
}

// Delete removes an export and its file.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.exports[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := os.Remove(info.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting export file: %w", err)
	}

	delete(s.exports, id)

	return nil
}

// sanitizeName strips directory components and forces the .txt suffix so an
// export can never land outside the export directory.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name != "" {
		name = filepath.Base(name)
	}
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return DefaultName(time.Now())
	}
	if !strings.HasSuffix(name, ".txt") {
		name += ".txt"
	}
	return name
}
