package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// backupStamp is the timestamp layout used in backup file names.
const backupStamp = "20060102-150405"

// Store persists catalog state as a JSON file. All writes go through one
// mutex and land via temp-file-plus-rename, so a crash mid-save never
// leaves a half-written catalog behind.
type Store struct {
	mu          sync.Mutex
	path        string
	keepBackups bool
}

// NewStore returns a store writing to path. When keepBackups is set, each
// save first copies the previous file aside under a timestamped name.
func NewStore(path string, keepBackups bool) *Store {
	return &Store{path: path, keepBackups: keepBackups}
}

// Path returns the catalog file path.
func (s *Store) Path() string {
	return s.path
}

// catalogFile is the on-disk JSON shape.
type catalogFile struct {
	SavedAt time.Time                `json:"savedAt"`
	Global  []TemplateDescriptor     `json:"global,omitempty"`
	Teams   map[string]TeamTemplates `json:"teams"`
}

// Load reads the catalog file. A missing file surfaces as an error
// wrapping os.ErrNotExist so first runs can start from an empty catalog.
func (s *Store) Load() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read catalog: %w", err)
	}

	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Snapshot{}, fmt.Errorf("decode catalog: %w", err)
	}
	if f.Teams == nil {
		f.Teams = make(map[string]TeamTemplates)
	}
	return Snapshot{Teams: f.Teams, Global: f.Global}, nil
}

// Save writes snap to the catalog file, replacing it atomically. The
// returned path names the backup made of the previous file, empty when
// none was made.
func (s *Store) Save(snap Snapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	backupPath := ""
	if s.keepBackups {
		p, err := s.backupCurrent()
		if err != nil {
			return "", err
		}
		backupPath = p
	}

	data, err := json.MarshalIndent(catalogFile{
		SavedAt: time.Now().UTC(),
		Global:  snap.Global,
		Teams:   snap.Teams,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode catalog: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".catalog-*.json")
	if err != nil {
		return "", fmt.Errorf("create catalog temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close catalog temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("replace catalog: %w", err)
	}
	return backupPath, nil
}

// backupCurrent copies the existing catalog file to a timestamped sibling.
// Returns an empty path when there is no previous file to back up.
func (s *Store) backupCurrent() (string, error) {
	src, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open catalog for backup: %w", err)
	}
	defer src.Close()

	// Saves within the same second get numbered suffixes rather than
	// overwriting an earlier backup.
	base := fmt.Sprintf("%s.%s.bak", s.path, time.Now().Format(backupStamp))
	path := base
	for n := 2; ; n++ {
		if _, err := os.Stat(path); err != nil {
			break
		}
		path = fmt.Sprintf("%s.%d", base, n)
	}

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create catalog backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("write catalog backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close catalog backup: %w", err)
	}
	return path, nil
}
