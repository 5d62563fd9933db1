// Package storage contains storage-agnostic contracts for the star schema.
//
// Concrete backends live in subpackages and register themselves with the
// factory at init time; callers obtain a Repository via New and stay
// backend-agnostic. The blank-import package storage/all pulls in every
// built-in backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"idaetl/internal/records"
)

// FactRow is one fact ready for insertion: resolved dimension keys plus the
// measure and its provenance.
type FactRow struct {
	TempoKey    int64
	GrupoKey    int64
	ServicoKey  int64
	VariavelKey int64

	// Value is the canonical decimal text of the measure. Backends cast it to
	// their exact-numeric type; it never travels as a float.
	Value string

	// Digest is the content hash over the row's provenance and raw value. The
	// fact table carries a unique constraint on it.
	Digest     string
	SourceFile string
	SourceRow  int
}

// Repository is the storage contract for one star schema instance.
type Repository interface {
	// Ping verifies connectivity and that the target schema with all required
	// tables exists. A failed Ping aborts the run before any fetch happens.
	Ping(ctx context.Context) error

	// Bootstrap applies the schema DDL. It is idempotent.
	Bootstrap(ctx context.Context) error

	// GetOrCreate* return the surrogate key for a dimension member, inserting
	// it first when absent. Concurrent callers for the same member must all
	// receive the same key.
	GetOrCreateTime(ctx context.Context, p records.Period) (int64, error)
	GetOrCreateGroup(ctx context.Context, code, name string) (int64, error)
	GetOrCreateService(ctx context.Context, code string) (int64, error)
	GetOrCreateVariable(ctx context.Context, code string) (int64, error)

	// InsertFacts loads one batch inside a single transaction. Rows already
	// present, by digest or by dimension key, are skipped, never overwritten:
	// the first loaded value wins. loaded+skipped equals len(rows) on success.
	InsertFacts(ctx context.Context, rows []FactRow) (loaded, skipped int64, err error)

	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind   string // registered backend name, e.g. "postgres"
	DSN    string
	Schema string // target schema; backends default it when empty
}

// Factory constructs a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for a backend kind. It is
// called from backend packages' init functions.
func Register(kind string, fn Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = fn
}

// New opens a Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	fn, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return fn(ctx, cfg)
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TransientError marks a storage failure worth retrying (connection drops,
// serialization conflicts). Anything not so marked is treated as final.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// MarkTransient wraps err as transient. nil stays nil.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err (or anything it wraps) is transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
