package schema

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/voilab/acedao"
)

// Registry is a concurrency-safe Resolver backed by a map of descriptors.
type Registry struct {
	mu      sync.RWMutex
	tables  map[string]Descriptor
	journal Journal
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithJournalUser sets the function returning the user recorded by
// auditing tables.
func WithJournalUser(user func() any) RegistryOption {
	return func(r *Registry) {
		r.journal.User = user
	}
}

// WithClock overrides the clock used for audit timestamps.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.journal.Now = now
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{tables: make(map[string]Descriptor)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces descriptors. Static tables receive the
// registry's journal.
func (r *Registry) Register(descriptors ...Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range descriptors {
		if t, ok := d.(*Table); ok {
			t.SetJournal(r.journal)
		}
		r.tables[d.Name()] = d
	}
}

// Resolve returns the descriptor registered for table.
func (r *Registry) Resolve(table string) (Descriptor, error) {
	r.mu.RLock()
	d, ok := r.tables[table]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: no descriptor for table %q", acedao.ErrUnknownDependency, table)
	}
	return d, nil
}

// Names returns the registered table names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// File is the on-disk layout of a schema file.
type File struct {
	Tables map[string]*Table `yaml:"tables"`
}

// Load decodes a YAML schema and registers every table it declares.
func (r *Registry) Load(src io.Reader) error {
	var file File
	dec := yaml.NewDecoder(src)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return fmt.Errorf("failed to decode schema: %w", err)
	}

	tables := make([]Descriptor, 0, len(file.Tables))
	for name, t := range file.Tables {
		if t == nil {
			t = &Table{}
		}
		t.TableName = name
		if err := validate(t); err != nil {
			return err
		}
		tables = append(tables, t)
	}
	r.Register(tables...)
	return nil
}

// LoadFile loads a schema file from fs.
func (r *Registry) LoadFile(fs afero.Fs, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open schema %s: %w", path, err)
	}
	defer f.Close()

	if err := r.Load(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func validate(t *Table) error {
	for target, jf := range t.Join {
		switch jf.Type {
		case "", One, Many:
		default:
			return fmt.Errorf("%w: table %q join %q has unknown type %q",
				acedao.ErrConfiguration, t.TableName, target, jf.Type)
		}
	}
	for kind, filters := range map[FilterKind]map[string]Fragments{Where: t.Where, OrderBy: t.OrderBy} {
		for name, frags := range filters {
			if len(frags) == 0 {
				return fmt.Errorf("%w: table %q %s filter %q has no fragment",
					acedao.ErrConfiguration, t.TableName, kind, name)
			}
		}
	}
	return nil
}
