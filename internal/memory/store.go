package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Errors for storage operations.
var (
	// ErrStorageCorrupt means the persisted state exists but cannot be read
	// or decoded, or breaks an invariant.
	ErrStorageCorrupt = errors.New("memory storage corrupt")

	// ErrStorageIO means a write failed; changes may exist only in memory.
	ErrStorageIO = errors.New("memory storage write failed")

	// ErrStorageLocked means ctx ended while another process held the store.
	ErrStorageLocked = errors.New("memory storage locked")
)

// Store is the load/save boundary for State.
type Store interface {
	// Load returns the persisted state, or an empty one when nothing has
	// been stored yet.
	Load(ctx context.Context) (*State, error)

	// Save atomically replaces the persisted state.
	Save(ctx context.Context, state *State) error

	// Reset discards all history and persists an empty state.
	Reset(ctx context.Context) (*State, error)
}

// Locker is implemented by stores shared between processes. Holders must
// reload state after Lock returns.
type Locker interface {
	// Lock blocks until the caller holds the store exclusively or ctx ends.
	Lock(ctx context.Context) (unlock func(), err error)
}

// FileStore persists State as an indented JSON file. A sibling ".lock" file
// serializes processes that share it.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore returns a store backed by path. The parent directory is
// created on first save.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("memory path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving memory path: %w", err)
	}
	return &FileStore{path: abs, logger: logger}, nil
}

// Path returns the absolute location of the memory file.
func (f *FileStore) Path() string {
	return f.path
}

// Load implements Store.
func (f *FileStore) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		f.logger.Debug("memory file not found, starting empty", zap.String("path", f.path))
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrStorageCorrupt, f.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		f.logger.Debug("memory file empty, starting empty", zap.String("path", f.path))
		return NewState(), nil
	}

	state, err := Decode(data)
	if err != nil {
		f.logger.Error("memory file corrupt", zap.String("path", f.path), zap.Error(err))
		return nil, err
	}
	return state, nil
}

// Save implements Store.
func (f *FileStore) Save(ctx context.Context, state *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(state)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrStorageIO, dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrStorageIO, err)
	}
	tmpPath := tmp.Name()

	if err := writeAndSync(tmp, data); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing %s: %w", ErrStorageIO, tmpPath, err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: replacing %s: %w", ErrStorageIO, f.path, err)
	}

	f.logger.Debug("memory saved",
		zap.String("path", f.path),
		zap.Int("total_runs", state.TotalRuns),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// LockPath returns the advisory lock file guarding Path.
func (f *FileStore) LockPath() string {
	return f.path + ".lock"
}

// Reset implements Store.
func (f *FileStore) Reset(ctx context.Context) (*State, error) {
	state := NewState()
	if err := f.Save(ctx, state); err != nil {
		return nil, err
	}
	f.logger.Info("memory reset", zap.String("path", f.path))
	return state, nil
}

func writeAndSync(file *os.File, data []byte) error {
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Chmod(0600); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Encode renders state in its persisted layout. The state must satisfy its
// invariants.
func Encode(state *State) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil state", ErrInvariant)
	}
	s := state.Clone()
	s.normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling memory: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a persisted document and checks its invariants.
func Decode(data []byte) (*State, error) {
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
	}
	state.normalize()
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
	}
	return &state, nil
}
