package dedup

import (
	"fmt"
	"sync"
	"testing"
)

func TestAdd(t *testing.T) {
	t.Parallel()

	s := New()
	if !s.Add("a") {
		t.Fatal("first Add returned false")
	}
	if s.Add("a") {
		t.Fatal("second Add returned true")
	}
	if !s.Add("b") {
		t.Fatal("distinct digest rejected")
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
}

func TestHasAndAddAll(t *testing.T) {
	t.Parallel()

	s := New()
	if s.Has("x") {
		t.Fatal("Has on empty set")
	}
	s.AddAll([]string{"x", "y"})
	if !s.Has("x") || !s.Has("y") {
		t.Fatal("AddAll digests not visible")
	}
	// Has must not insert.
	s2 := New()
	s2.Has("z")
	if s2.Len() != 0 {
		t.Fatal("Has inserted a digest")
	}
}

func TestConcurrentAdd(t *testing.T) {
	t.Parallel()

	s := New()
	const workers = 8
	var wg sync.WaitGroup
	wins := make([]int, workers)
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if s.Add(fmt.Sprintf("digest-%d", i)) {
					wins[w]++
				}
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, n := range wins {
		total += n
	}
	if total != 100 {
		t.Fatalf("total wins = %d, want 100 (each digest accepted exactly once)", total)
	}
	if s.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", s.Len())
	}
}
