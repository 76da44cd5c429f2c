// Package snapshot persists rendered chart images next to a JSON metadata sidecar.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no sidecar or image exists for an ID.
	ErrNotFound = errors.New("snapshot not found")
	// ErrInvalidID is returned for IDs that are not canonical UUIDs.
	ErrInvalidID = errors.New("invalid snapshot id")
)

// Meta describes one stored chart snapshot.
type Meta struct {
	ID           string    `json:"id"`
	ChipID       string    `json:"chip_id,omitempty"`
	Field        string    `json:"field"`
	Renderer     string    `json:"renderer"`
	Format       string    `json:"format"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	SizeBytes    int       `json:"size_bytes"`
	Query        string    `json:"query"`
	ResponseTime float64   `json:"response_time_ms"`
	CreatedAt    time.Time `json:"created_at"`
	Notes        string    `json:"notes,omitempty"`
}

// Store manages snapshot files on disk.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// NewID returns a fresh snapshot ID.
func NewID() string {
	return uuid.NewString()
}

// Dir returns the directory snapshots are written to.
func (s *Store) Dir() string { return s.dir }

func validateID(id string) error {
	u, err := uuid.Parse(id)
	if err != nil || u.String() != id {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func (s *Store) imagePath(meta Meta) string {
	return filepath.Join(s.dir, meta.ID+"."+meta.Format)
}

func (s *Store) metaPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes the image file and its metadata sidecar. SizeBytes is set from image.
func (s *Store) Save(meta Meta, image []byte) (Meta, error) {
	if err := validateID(meta.ID); err != nil {
		return Meta{}, err
	}
	if meta.Format == "" {
		meta.Format = "png"
	}
	meta.SizeBytes = len(image)

	s.mu.Lock()
	defer s.mu.Unlock()

	imgPath := s.imagePath(meta)
	if err := os.WriteFile(imgPath, image, 0o644); err != nil {
		return Meta{}, fmt.Errorf("snapshot store: write image: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.Remove(imgPath)
		return Meta{}, fmt.Errorf("snapshot store: marshal meta: %w", err)
	}
	if err := os.WriteFile(s.metaPath(meta.ID), data, 0o644); err != nil {
		_ = os.Remove(imgPath)
		return Meta{}, fmt.Errorf("snapshot store: write meta: %w", err)
	}
	return meta, nil
}

// Get reads snapshot metadata by ID.
func (s *Store) Get(id string) (Meta, error) {
	if err := validateID(id); err != nil {
		return Meta{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readMeta(id)
}

func (s *Store) readMeta(id string) (Meta, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Meta{}, fmt.Errorf("snapshot store: read meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("snapshot store: unmarshal meta: %w", err)
	}
	return meta, nil
}

// List returns all snapshots sorted by creation time, newest first. Unreadable
// sidecars are skipped.
func (s *Store) List() ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("snapshot store: glob: %w", err)
	}

	metas := make([]Meta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Debug("snapshot sidecar unreadable", "path", path, "error", err)
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			slog.Debug("snapshot sidecar invalid", "path", path, "error", err)
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// ReadImage returns the image bytes and metadata for id.
func (s *Store) ReadImage(id string) ([]byte, Meta, error) {
	if err := validateID(id); err != nil {
		return nil, Meta{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := s.readMeta(id)
	if err != nil {
		return nil, Meta{}, err
	}
	data, err := os.ReadFile(s.imagePath(meta))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Meta{}, fmt.Errorf("%w: image for %s", ErrNotFound, id)
		}
		return nil, Meta{}, fmt.Errorf("snapshot store: read image: %w", err)
	}
	return data, meta, nil
}

// Delete removes both the image and metadata files. A missing image is logged
// and does not fail the delete.
func (s *Store) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMeta(id)
	if err != nil {
		return err
	}
	if err := os.Remove(s.imagePath(meta)); err != nil {
		slog.Debug("snapshot image cleanup failed", "id", id, "error", err)
	}
	if err := os.Remove(s.metaPath(id)); err != nil {
		return fmt.Errorf("snapshot store: remove meta: %w", err)
	}
	return nil
}
