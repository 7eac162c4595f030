package contentstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Memory is an in-process Store for tests and devnets.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, data []byte) (string, error) {
	if len(data) > MaxObjectSize {
		return "", ErrTooLarge
	}
	cid := ComputeCID(data)
	m.mu.Lock()
	m.objects[cid] = append([]byte(nil), data...)
	m.mu.Unlock()
	return cid, nil
}

func (m *Memory) Get(_ context.Context, cid string) ([]byte, error) {
	cid, err := NormalizeCID(cid)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[cid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cid)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Dir is a Store that keeps one file per object in a directory.
type Dir struct {
	root string
}

var _ Store = (*Dir)(nil)

// NewDir opens (creating if needed) a directory store at root.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create content dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Put(_ context.Context, data []byte) (string, error) {
	if len(data) > MaxObjectSize {
		return "", ErrTooLarge
	}
	cid := ComputeCID(data)
	path := filepath.Join(d.root, cid)
	if _, err := os.Stat(path); err == nil {
		return cid, nil
	}
	tmp, err := os.CreateTemp(d.root, cid+".tmp-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return cid, nil
}

func (d *Dir) Get(_ context.Context, cid string) ([]byte, error) {
	cid, err := NormalizeCID(cid)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.root, cid))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cid)
	}
	return data, err
}

func (d *Dir) Ping(context.Context) error {
	_, err := os.Stat(d.root)
	return err
}
