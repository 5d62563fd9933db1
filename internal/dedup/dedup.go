// Package dedup gates records on their content digest within a single run.
//
// Source files overlap: the regulator republishes the same months in
// successive yearly files, and a run may fetch several of them. The database
// enforces uniqueness too (on the digest and on the dimension key), but
// filtering repeats before the load keeps batches small and the skip counts
// honest.
package dedup

import "sync"

// Seen is a concurrent set of record digests. The zero value is not usable;
// call New.
type Seen struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func New() *Seen {
	return &Seen{set: make(map[string]struct{})}
}

// Add inserts digest and reports whether it was new. A false return means a
// record with identical provenance and value was already accepted this run.
func (s *Seen) Add(digest string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.set[digest]; dup {
		return false
	}
	s.set[digest] = struct{}{}
	return true
}

// Has reports whether digest is already present, without inserting it.
func (s *Seen) Has(digest string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[digest]
	return ok
}

// AddAll inserts every digest. Used to publish a resource's digests into the
// run-wide set only after the resource loaded successfully; digests from a
// failed attempt must not suppress records on the retry.
func (s *Seen) AddAll(digests []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range digests {
		s.set[d] = struct{}{}
	}
}

// Len returns the number of distinct digests accepted so far.
func (s *Seen) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.set)
}
