// Package store manages the on-disk lifecycle of context handover files:
// payload/checksum naming, write/read with integrity verification, and
// age-based garbage collection. The store never deletes on write; cleanup
// decisions belong to the coordinator.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	batonerrors "baton/internal/errors"
	"baton/internal/logging"
	"baton/pkg/types"
)

// File suffixes inside the store directory.
const (
	ExtBinary   = ".ctx"
	ExtChecksum = ".ctx.checksum"
	ExtJSON     = ".json"
)

// Store persists encoded contexts in a dedicated directory.
type Store struct {
	dir    string
	logger *logging.Logger
}

// New ensures the backing directory exists and returns a Store over it.
// Creation is idempotent.
func New(dir string) (*Store, error) {
	if strings.HasPrefix(dir, "~/") {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, dir[2:])
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure directory %s: %w", dir, err)
	}
	return &Store{
		dir:    dir,
		logger: logging.NewComponentLogger("Store"),
	}, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

// Checksum returns the hex digest used for payload integrity files.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Put writes the encoded payload for contextID and returns its path. Binary
// payloads get a companion checksum file; the pair is written together, and
// a failed checksum write rolls the payload back so no unverifiable payload
// is left behind. The JSON fallback format carries no checksum file.
// Context IDs are unique per handover attempt, so files are created
// exclusively and a collision is an error.
func (s *Store) Put(contextID string, data []byte, format types.EncodingFormat) (string, error) {
	if contextID == "" {
		return "", fmt.Errorf("store: empty context id")
	}

	if format == types.EncodingJSONFallback {
		path := filepath.Join(s.dir, contextID+ExtJSON)
		if err := writeExclusive(path, data); err != nil {
			return "", fmt.Errorf("store: write fallback payload: %w", err)
		}
		s.logger.Debug("persisted %s (%d bytes, json fallback)", path, len(data))
		return path, nil
	}

	path := filepath.Join(s.dir, contextID+ExtBinary)
	if err := writeExclusive(path, data); err != nil {
		return "", fmt.Errorf("store: write payload: %w", err)
	}
	checksumPath := filepath.Join(s.dir, contextID+ExtChecksum)
	if err := writeExclusive(checksumPath, []byte(Checksum(data))); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("store: write checksum: %w", err)
	}
	s.logger.Debug("persisted %s (%d bytes)", path, len(data))
	return path, nil
}

// Get loads a persisted payload. Binary payloads are verified against their
// checksum file; a missing or non-matching digest fails with
// ChecksumMismatch and no partial data is returned.
func (s *Store) Get(path string) ([]byte, types.EncodingFormat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("store: read payload %s: %w", path, err)
	}

	if strings.HasSuffix(path, ExtJSON) {
		return data, types.EncodingJSONFallback, nil
	}

	computed := Checksum(data)
	stored, err := os.ReadFile(checksumPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", &batonerrors.ChecksumMismatch{Path: path, Expected: "(missing)", Actual: computed}
		}
		return nil, "", fmt.Errorf("store: read checksum for %s: %w", path, err)
	}
	expected := strings.TrimSpace(string(stored))
	if expected != computed {
		return nil, "", &batonerrors.ChecksumMismatch{Path: path, Expected: expected, Actual: computed}
	}
	return data, types.EncodingBinary, nil
}

// Remove deletes a payload and, for binary payloads, its checksum file.
// Missing files are not an error; the deletion goal is achieved.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: remove %s: %w", path, err)
	}
	if strings.HasSuffix(path, ExtBinary) {
		if err := os.Remove(checksumPath(path)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: remove checksum for %s: %w", path, err)
		}
	}
	s.logger.Debug("removed %s", path)
	return nil
}

// Sweep removes context/checksum pairs whose modification time is older than
// maxAge and returns the number of payloads reclaimed. It relies purely on
// mtime, so files belonging to an in-flight handover are always younger than
// the threshold and never touched, even under concurrent writes.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("store: scan %s: %w", s.dir, err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		isPayload := strings.HasSuffix(name, ExtBinary) || strings.HasSuffix(name, ExtJSON)
		isOrphanChecksum := strings.HasSuffix(name, ExtChecksum) && !payloadExists(s.dir, name)
		if !isPayload && !isOrphanChecksum {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, name)
		if err := s.Remove(path); err != nil {
			s.logger.Warn("sweep: %v", err)
			continue
		}
		if isPayload {
			removed++
		}
		s.logger.Info("sweep reclaimed %s (mtime %s)", path, info.ModTime().Format(time.RFC3339))
	}
	return removed, nil
}

func checksumPath(payloadPath string) string {
	return strings.TrimSuffix(payloadPath, ExtBinary) + ExtChecksum
}

func payloadExists(dir, checksumName string) bool {
	payload := strings.TrimSuffix(checksumName, ExtChecksum) + ExtBinary
	_, err := os.Stat(filepath.Join(dir, payload))
	return err == nil
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
