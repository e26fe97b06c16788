package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/doorman/pkg/domain"
)

// Store implements ports.SessionStore on the local filesystem, one JSON file
// per call. It lets a single-instance deployment keep calls across restarts.
type Store struct {
	BasePath string
	// TTL expires calls whose file has not been written for that long. Zero
	// keeps calls until they are deleted.
	TTL time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets Store.TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.TTL = ttl
	}
}

// NewStore creates a Store under basePath (".doorman/calls" if empty).
func NewStore(basePath string, opts ...Option) *Store {
	if basePath == "" {
		basePath = filepath.Join(".doorman", "calls")
	}
	s := &Store{BasePath: basePath}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// expired reports whether a call file last written at modTime is past the TTL.
func (s *Store) expired(modTime time.Time) bool {
	return s.TTL > 0 && time.Since(modTime) >= s.TTL
}

func (s *Store) path(callID string) (string, error) {
	if callID == "" {
		return "", fmt.Errorf("callID cannot be empty")
	}
	if strings.ContainsAny(callID, `/\`) || callID == "." || callID == ".." {
		return "", fmt.Errorf("invalid callID %q", callID)
	}
	return filepath.Join(s.BasePath, callID+".json"), nil
}

// Save writes the state to a temporary file, fsyncs it and renames it over
// the call's file.
func (s *Store) Save(ctx context.Context, callID string, state *domain.CallState) error {
	destPath, err := s.path(callID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure call directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal call state: %w", err)
	}

	// Same directory as the destination so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+callID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing call file for overwrite: %w", err)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load retrieves the state from the call's JSON file.
func (s *Store) Load(ctx context.Context, callID string) (*domain.CallState, error) {
	filePath, err := s.path(callID)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read call file: %w", err)
	}
	if s.expired(info.ModTime()) {
		_ = os.Remove(filePath)
		return nil, domain.ErrSessionNotFound
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read call file: %w", err)
	}

	var state domain.CallState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal call state: %w", err)
	}
	return &state, nil
}

// Delete removes the call file.
func (s *Store) Delete(ctx context.Context, callID string) error {
	filePath, err := s.path(callID)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete call file: %w", err)
	}
	return nil
}

// List returns the IDs of calls in progress, removing expired call files.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}

	calls := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		if s.TTL > 0 {
			info, err := entry.Info()
			if err != nil {
				continue // removed concurrently
			}
			if s.expired(info.ModTime()) {
				_ = os.Remove(filepath.Join(s.BasePath, name))
				continue
			}
		}
		calls = append(calls, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(calls)
	return calls, nil
}
