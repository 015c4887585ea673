// Package nicks persists the set of canonical nick keys the greeter has already
// welcomed. Three backends share one contract: a JSON file (compatible with the
// legacy nicks.json layout), Postgres and SQLite.
//
// Save never drops keys that are already stored. Each backend merges the
// given set into what is persisted, so several greeter instances can share one
// store without clobbering each other.
package nicks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/onnwee/greeter/db"
)

// ErrUnsupportedSource is returned by Open for sources it cannot map to a backend.
var ErrUnsupportedSource = errors.New("unsupported nick source")

// Set is a set of canonical nick keys.
type Set map[string]struct{}

// NewSet returns a set holding keys.
func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	s.Add(keys...)
	return s
}

// Add inserts keys.
func (s Set) Add(keys ...string) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

// Has reports whether k is in the set.
func (s Set) Has(k string) bool {
	_, ok := s[k]
	return ok
}

// Merge adds every key of o to s.
func (s Set) Merge(o Set) {
	for k := range o {
		s[k] = struct{}{}
	}
}

// Sorted returns the keys in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold the same keys.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if !o.Has(k) {
			return false
		}
	}
	return true
}

// Store loads and saves known nick keys.
type Store interface {
	// Load returns all stored keys. A store that does not exist yet yields an
	// empty set and no error.
	Load(ctx context.Context) (Set, error)
	// Save merges keys into the store.
	Save(ctx context.Context, keys Set) error
	Close() error
}

// Pinger is implemented by stores that can check their backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Open returns the store for source:
//
//	postgres://... or postgresql://...  Postgres (migrations applied)
//	sqlite://path                        SQLite file (schema created)
//	anything else                        JSON file path
func Open(ctx context.Context, source string) (Store, error) {
	switch {
	case source == "":
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedSource)
	case strings.HasPrefix(source, "postgres://"), strings.HasPrefix(source, "postgresql://"):
		dbx, err := db.Connect(source)
		if err != nil {
			return nil, fmt.Errorf("open postgres nick store: %w", err)
		}
		if err := db.MigrateWithFallback(ctx, dbx); err != nil {
			_ = dbx.Close()
			return nil, err
		}
		return NewSQLStore(dbx, DialectPostgres), nil
	case strings.HasPrefix(source, "sqlite://"):
		dbx, err := db.OpenSQLite(source)
		if err != nil {
			return nil, fmt.Errorf("open sqlite nick store: %w", err)
		}
		if err := db.MigrateSQLite(ctx, dbx); err != nil {
			_ = dbx.Close()
			return nil, err
		}
		return NewSQLStore(dbx, DialectSQLite), nil
	case strings.Contains(source, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, source)
	default:
		return NewFileStore(source), nil
	}
}
