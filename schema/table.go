package schema

import (
	"time"
)

// AuditTimeLayout formats created_at / updated_at values.
const AuditTimeLayout = "2006-01-02 15:04:05"

// Journal supplies the user and clock recorded by auditing tables.
type Journal struct {
	User func() any
	Now  func() time.Time
}

func (j Journal) user() any {
	if j.User == nil {
		return nil
	}
	return j.User()
}

func (j Journal) now() time.Time {
	if j.Now == nil {
		return time.Now()
	}
	return j.Now()
}

// Table is a static Descriptor, usually loaded from a schema file.
type Table struct {
	TableName string                `yaml:"-"`
	Defaults  []string              `yaml:"default_fields"`
	Allowed   []string              `yaml:"allowed_fields"`
	Escape    bool                  `yaml:"escape"`
	Audit     bool                  `yaml:"audit"`
	Where     map[string]Fragments  `yaml:"where"`
	OrderBy   map[string]Fragments  `yaml:"orderby"`
	Join      map[string]JoinFilter `yaml:"join"`

	journal Journal
}

var _ Descriptor = (*Table)(nil)

// Name returns the table name.
func (t *Table) Name() string { return t.TableName }

// DefaultFields returns the fields selected by default.
func (t *Table) DefaultFields() []string { return t.Defaults }

// AllowedFields returns the fields that may be referenced or written.
func (t *Table) AllowedFields() []string { return t.Allowed }

// EscapeTableName reports whether the table name is quoted.
func (t *Table) EscapeTableName() bool { return t.Escape }

// SupportsAuditing reports whether journal fields are injected on save.
func (t *Table) SupportsAuditing() bool { return t.Audit }

// SetJournal sets the user and clock used by AuditFields.
func (t *Table) SetJournal(j Journal) { t.journal = j }

// Joins returns the join filters keyed by joined table.
func (t *Table) Joins() map[string]JoinFilter { return t.Join }

// Filters returns the fragments registered for kind.
func (t *Table) Filters(kind FilterKind) map[string][]string {
	var src map[string]Fragments
	switch kind {
	case Where:
		src = t.Where
	case OrderBy:
		src = t.OrderBy
	}
	out := make(map[string][]string, len(src))
	for name, frags := range src {
		out[name] = frags
	}
	return out
}

// AuditFields returns the journal columns for an insert or an update. Tables
// without auditing return nil.
func (t *Table) AuditFields(update bool) map[string]any {
	if !t.Audit {
		return nil
	}
	prefix := "created"
	if update {
		prefix = "updated"
	}
	return map[string]any{
		prefix + "_by": t.journal.user(),
		prefix + "_at": t.journal.now().Format(AuditTimeLayout),
	}
}
