package colldb

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// CollectionDef is the static configuration of one collection. Definitions
// are fixed for the process lifetime; collections are never created or
// destroyed at runtime.
type CollectionDef struct {
	Name     string
	Internal bool
	Indexes  map[string]KeyBuilder
	NewID    IDGenerator // nil means NewULID
}

// RegistryOptions carries cross-cutting wiring for all collections.
type RegistryOptions struct {
	// Logger enables debug operation logging when non-nil.
	Logger *slog.Logger
}

// Registry composes the configured collections over one shared store. It is
// immutable after construction and safe for concurrent use.
type Registry struct {
	collections map[string]*Collection
	public      []string // sorted names of non-internal collections
}

// NewRegistry validates defs and builds the collection engines. The store
// handle is shared by all of them and requires no external synchronization.
func NewRegistry(store Store, defs []CollectionDef, opt RegistryOptions) (*Registry, error) {
	r := &Registry{collections: make(map[string]*Collection, len(defs))}
	for _, def := range defs {
		if err := validateName("collection", def.Name); err != nil {
			return nil, err
		}
		if _, dup := r.collections[def.Name]; dup {
			return nil, fmt.Errorf("colldb: duplicate collection %q", def.Name)
		}
		c := &Collection{
			name:     def.Name,
			internal: def.Internal,
			newID:    def.NewID,
			indexes:  make(map[string]KeyBuilder, len(def.Indexes)),
			store:    store,
			logger:   opt.Logger,
		}
		if c.newID == nil {
			c.newID = NewULID
		}
		for name, kb := range def.Indexes {
			if err := validateName("index", name); err != nil {
				return nil, fmt.Errorf("colldb: collection %q: %w", def.Name, err)
			}
			if kb == nil {
				return nil, fmt.Errorf("colldb: collection %q: index %q has no key builder", def.Name, name)
			}
			c.indexes[name] = kb
			c.indexNames = append(c.indexNames, name)
		}
		sort.Strings(c.indexNames)
		r.collections[def.Name] = c
		if !def.Internal {
			r.public = append(r.public, def.Name)
		}
	}
	sort.Strings(r.public)
	return r, nil
}

// Collection resolves any configured collection, internal ones included.
// Returns nil for unknown names.
func (r *Registry) Collection(name string) *Collection {
	return r.collections[name]
}

// Public resolves a collection for the HTTP boundary: internal collections
// resolve to nil exactly like unknown ones.
func (r *Registry) Public(name string) *Collection {
	c := r.collections[name]
	if c == nil || c.internal {
		return nil
	}
	return c
}

// PublicNames returns the sorted names of the non-internal collections.
func (r *Registry) PublicNames() []string {
	return r.public
}

func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("colldb: empty %s name", kind)
	}
	if strings.IndexByte(name, '/') >= 0 || strings.IndexByte(name, 0x00) >= 0 || strings.IndexByte(name, 0xFF) >= 0 {
		return fmt.Errorf("colldb: invalid %s name %q", kind, name)
	}
	return nil
}
