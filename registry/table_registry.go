/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/suparena/recordstore/storagemodels"
	"gopkg.in/yaml.v3"
)

// Tables is a set of table descriptors keyed by name.
type Tables struct {
	mu     sync.RWMutex
	tables map[string]storagemodels.TableDescriptor
}

// NewTables returns an empty table registry.
func NewTables() *Tables {
	return &Tables{tables: make(map[string]storagemodels.TableDescriptor)}
}

var defaultTables = NewTables()

// Default returns the process-wide table registry.
func Default() *Tables {
	return defaultTables
}

// RegisterTable adds desc to the process-wide registry and panics if it is
// invalid or already registered.
func RegisterTable(desc storagemodels.TableDescriptor) {
	if err := defaultTables.Register(desc); err != nil {
		panic(fmt.Sprintf("table registry: %v", err))
	}
}

// Register validates desc and adds it. A name can be registered once.
func (r *Tables) Register(desc storagemodels.TableDescriptor) error {
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("table %q: %w", desc.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tables[desc.Name]; exists {
		return fmt.Errorf("table %q already registered", desc.Name)
	}
	r.tables[desc.Name] = desc
	return nil
}

// Get returns the descriptor registered under name.
func (r *Tables) Get(name string) (storagemodels.TableDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.tables[name]
	return desc, ok
}

// All returns every descriptor ordered by name.
func (r *Tables) All() []storagemodels.TableDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]storagemodels.TableDescriptor, 0, len(r.tables))
	for _, desc := range r.tables {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadDir registers every *.yaml and *.yml file in dir. Each file holds one
// descriptor. Files are read in name order and loading stops at the first error.
func (r *Tables) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read table directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if err := r.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile registers the descriptor in a YAML file.
func (r *Tables) LoadFile(path string) error {
	desc, err := ReadDescriptor(path)
	if err != nil {
		return err
	}
	if err := r.Register(desc); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ReadDescriptor decodes a YAML table descriptor file. Unknown fields are rejected.
func ReadDescriptor(path string) (storagemodels.TableDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return storagemodels.TableDescriptor{}, fmt.Errorf("failed to open table descriptor: %w", err)
	}
	defer f.Close()

	var desc storagemodels.TableDescriptor
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&desc); err != nil {
		return storagemodels.TableDescriptor{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return desc, nil
}
