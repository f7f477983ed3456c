package rt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Byte sources
// ---------------------------------------------------------------------------

// ErrNoBytes is returned by a ByteSource that has no entry for a name. Any
// other error is treated as an I/O fault and aborts the lookup.
var ErrNoBytes = errors.New("rt: no bytes for type")

// ByteSource supplies raw descriptor bytes by type name. Sources are attached
// to loaders; the loader consults its sources only after parent delegation
// has failed.
type ByteSource interface {
	Bytes(name string) ([]byte, error)
}

// DescriptorExt is the file extension for descriptor files in a DirSource.
const DescriptorExt = ".ktd"

// MapSource is an in-memory byte source. It is safe for concurrent use.
type MapSource struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMapSource creates an empty in-memory source.
func NewMapSource() *MapSource {
	return &MapSource{entries: make(map[string][]byte)}
}

// Put stores descriptor bytes under a type name, replacing any previous
// entry.
func (s *MapSource) Put(name string, raw []byte) {
	s.mu.Lock()
	s.entries[name] = raw
	s.mu.Unlock()
}

// Bytes implements ByteSource.
func (s *MapSource) Bytes(name string) ([]byte, error) {
	s.mu.RLock()
	raw, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNoBytes
	}
	return raw, nil
}

// DirSource serves descriptor files from a directory tree. The type name
// "demo.util.Box" maps to the file demo/util/Box.ktd under the root.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

// Bytes implements ByteSource.
func (s *DirSource) Bytes(name string) ([]byte, error) {
	rel := strings.ReplaceAll(name, ".", string(os.PathSeparator)) + DescriptorExt
	raw, err := os.ReadFile(filepath.Join(s.root, rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoBytes
		}
		return nil, fmt.Errorf("rt: reading %s: %w", rel, err)
	}
	return raw, nil
}
