// Package manifest handles kiln.toml loader-graph configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/kiln/rt"
)

// FileName is the manifest file a kiln project carries at its root.
const FileName = "kiln.toml"

// Manifest represents a kiln.toml configuration: the loader hierarchy and
// the byte sources each loader consults.
type Manifest struct {
	Project Project  `toml:"project"`
	Loaders []Loader `toml:"loader"`

	// Dir is the directory containing the kiln.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Loader declares one loader below the primordial root. Parent defaults to
// the root loader; parents must be declared before their children. Dirs are
// directory sources consulted in order, Store an optional SQLite descriptor
// store consulted after them.
type Loader struct {
	Name   string   `toml:"name"`
	Parent string   `toml:"parent"`
	Dirs   []string `toml:"dirs"`
	Store  string   `toml:"store"`
}

// Load parses a kiln.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a kiln.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) validate() error {
	declared := map[string]bool{rt.RootLoaderLabel: true}
	for i, l := range m.Loaders {
		if l.Name == "" {
			return fmt.Errorf("loader %d has no name", i)
		}
		if l.Name == rt.RootLoaderLabel {
			return fmt.Errorf("loader name %q is reserved", rt.RootLoaderLabel)
		}
		if declared[l.Name] {
			return fmt.Errorf("duplicate loader name %q", l.Name)
		}
		parent := l.Parent
		if parent == "" {
			parent = rt.RootLoaderLabel
		}
		if !declared[parent] {
			return fmt.Errorf("loader %q: parent %q is not declared above it", l.Name, parent)
		}
		if len(l.Dirs) == 0 && l.Store == "" {
			return fmt.Errorf("loader %q has no sources", l.Name)
		}
		declared[l.Name] = true
	}
	return nil
}

// Build constructs the loader graph the manifest describes. Relative source
// paths resolve against the manifest directory. The returned closer releases
// any SQLite stores that were opened.
func (m *Manifest) Build(opts ...rt.Option) (*rt.Graph, func() error, error) {
	g := rt.NewGraph(opts...)

	var stores []*rt.SQLiteSource
	closeAll := func() error {
		var first error
		for _, s := range stores {
			if err := s.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	for _, l := range m.Loaders {
		parentLabel := l.Parent
		if parentLabel == "" {
			parentLabel = rt.RootLoaderLabel
		}
		parent := g.Loader(parentLabel)

		var sources []rt.ByteSource
		for _, d := range l.Dirs {
			sources = append(sources, rt.NewDirSource(m.abs(d)))
		}
		if l.Store != "" {
			store, err := rt.OpenSQLiteSource(m.abs(l.Store))
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("loader %q: %w", l.Name, err)
			}
			stores = append(stores, store)
			sources = append(sources, store)
		}

		if _, err := g.NewLoader(l.Name, parent, sources...); err != nil {
			closeAll()
			return nil, nil, err
		}
	}
	return g, closeAll, nil
}

func (m *Manifest) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
