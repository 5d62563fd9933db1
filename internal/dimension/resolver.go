// Package dimension resolves normalized records to surrogate dimension keys.
//
// The resolver sits between the normalizer and the fact loader: for each
// record it returns the four dimension keys, creating missing members in the
// store on first sight. Keys are cached per process so a member costs at most
// one round trip per run, and the cache is safe for the concurrent resource
// workers.
package dimension

import (
	"context"
	"fmt"
	"sync"

	"idaetl/internal/records"
)

// Store is the slice of the storage contract the resolver needs.
// storage.Repository satisfies it.
type Store interface {
	GetOrCreateTime(ctx context.Context, p records.Period) (int64, error)
	GetOrCreateGroup(ctx context.Context, code, name string) (int64, error)
	GetOrCreateService(ctx context.Context, code string) (int64, error)
	GetOrCreateVariable(ctx context.Context, code string) (int64, error)
}

// Keys are the resolved surrogate keys for one record.
type Keys struct {
	Tempo    int64
	Grupo    int64
	Servico  int64
	Variavel int64
}

// Resolver caches dimension keys in front of a Store.
type Resolver struct {
	store Store

	mu        sync.Mutex
	times     map[records.Period]int64
	groups    map[string]int64
	services  map[string]int64
	variables map[string]int64
}

func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:     store,
		times:     make(map[records.Period]int64),
		groups:    make(map[string]int64),
		services:  make(map[string]int64),
		variables: make(map[string]int64),
	}
}

// Resolve returns the dimension keys for rec, creating members as needed.
// Errors carry the dimension and member that failed; transient store errors
// pass through unwrapped for the caller's retry policy.
func (r *Resolver) Resolve(ctx context.Context, rec records.Record) (Keys, error) {
	var k Keys
	var err error

	k.Tempo, err = cached(ctx, r, r.times, rec.Period, func(ctx context.Context) (int64, error) {
		return r.store.GetOrCreateTime(ctx, rec.Period)
	})
	if err != nil {
		return Keys{}, fmt.Errorf("time %s: %w", rec.Period, err)
	}
	k.Grupo, err = cached(ctx, r, r.groups, rec.GroupCode, func(ctx context.Context) (int64, error) {
		return r.store.GetOrCreateGroup(ctx, rec.GroupCode, rec.GroupName)
	})
	if err != nil {
		return Keys{}, fmt.Errorf("group %q: %w", rec.GroupCode, err)
	}
	k.Servico, err = cached(ctx, r, r.services, rec.ServiceCode, func(ctx context.Context) (int64, error) {
		return r.store.GetOrCreateService(ctx, rec.ServiceCode)
	})
	if err != nil {
		return Keys{}, fmt.Errorf("service %q: %w", rec.ServiceCode, err)
	}
	k.Variavel, err = cached(ctx, r, r.variables, rec.VariableCode, func(ctx context.Context) (int64, error) {
		return r.store.GetOrCreateVariable(ctx, rec.VariableCode)
	})
	if err != nil {
		return Keys{}, fmt.Errorf("variable %q: %w", rec.VariableCode, err)
	}
	return k, nil
}

// cached serializes lookups per resolver. Holding the lock across the store
// call means concurrent workers cannot race two inserts for the same member;
// the store's own conflict handling remains the backstop across processes.
func cached[K comparable](
	ctx context.Context,
	r *Resolver,
	cache map[K]int64,
	key K,
	fetch func(context.Context) (int64, error),
) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := cache[key]; ok {
		return k, nil
	}
	k, err := fetch(ctx)
	if err != nil {
		return 0, err
	}
	cache[key] = k
	return k, nil
}
