package acedao

import (
	"fmt"
	"strings"
)

// Mode controls how unknown order by filters and invalid sort directions
// are handled.
type Mode string

const (
	// Strict turns unknown order by filters and invalid directions into errors.
	Strict Mode = "strict"
	// Lenient skips unknown order by filters and falls back to asc.
	Lenient Mode = "lenient"
)

// DefaultSeparator joins an alias and a field name in select column aliases.
const DefaultSeparator = "__"

// Dialects understood by the SQL generator and the executor.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite3"
)

// Options configures one compiler. It is passed by value at construction and
// never read from global state.
type Options struct {
	Mode      Mode
	Separator string
	Dialect   string
}

// DefaultOptions returns strict mode, the default separator and MySQL.
func DefaultOptions() Options {
	return Options{
		Mode:      Strict,
		Separator: DefaultSeparator,
		Dialect:   MySQL,
	}
}

// Strict reports whether strict mode is on. Anything but Lenient is strict.
func (o Options) Strict() bool {
	return o.Mode != Lenient
}

// Normalize fills empty fields with defaults and validates the rest.
func (o Options) Normalize() (Options, error) {
	if o.Mode == "" {
		o.Mode = Strict
	}
	if o.Mode != Strict && o.Mode != Lenient {
		return o, fmt.Errorf("%w: unknown mode %q", ErrConfiguration, o.Mode)
	}
	if o.Separator == "" {
		o.Separator = DefaultSeparator
	}
	if strings.ContainsAny(o.Separator, " .,:") {
		return o, fmt.Errorf("%w: separator %q cannot be used in column aliases", ErrConfiguration, o.Separator)
	}
	d, err := ParseDialect(o.Dialect)
	if err != nil {
		return o, err
	}
	o.Dialect = d
	return o, nil
}

// ParseDialect maps a provider or driver name onto one of the supported
// dialects. An empty name selects MySQL.
func ParseDialect(name string) (string, error) {
	switch strings.ToLower(name) {
	case "", "mysql", "mariadb":
		return MySQL, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("%w: unsupported dialect %q", ErrConfiguration, name)
	}
}
