package pipeline

import (
	"time"

	"idaetl/internal/catalog"
)

// State tracks a resource through the run.
type State int

const (
	StatePending State = iota
	StateFetching
	StateParsing
	StateLoading
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetching:
		return "fetching"
	case StateParsing:
		return "parsing"
	case StateLoading:
		return "loading"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ResourceStats is the outcome of one resource. Counters describe the final
// attempt; Attempts counts how many were made.
type ResourceStats struct {
	Resource catalog.Resource
	State    State
	Attempts int
	Duration time.Duration
	Err      error

	RowsRead          int64 // data rows read below the header
	RecordsNormalized int64 // records unpivoted from usable rows
	RowsDropped       int64 // rows with blank identity or unknown variable
	CellsSkipped      int64 // month cells without a usable value
	Deduplicated      int64 // records suppressed by the in-run digest gate
	Loaded            int64 // facts inserted
	Skipped           int64 // facts skipped by the store's uniqueness constraints
}

// resetCounters clears the per-attempt counters so a retry starts clean.
func (rs *ResourceStats) resetCounters() {
	rs.RowsRead = 0
	rs.RecordsNormalized = 0
	rs.RowsDropped = 0
	rs.CellsSkipped = 0
	rs.Deduplicated = 0
	rs.Loaded = 0
	rs.Skipped = 0
}

// RunStats aggregates the whole run.
type RunStats struct {
	Resources []*ResourceStats
	Elapsed   time.Duration
}

// Failed counts resources that ended in StateFailed.
func (s *RunStats) Failed() int {
	n := 0
	for _, rs := range s.Resources {
		if rs != nil && rs.State == StateFailed {
			n++
		}
	}
	return n
}

// Loaded sums facts inserted across all resources.
func (s *RunStats) Loaded() int64 {
	var n int64
	for _, rs := range s.Resources {
		if rs != nil {
			n += rs.Loaded
		}
	}
	return n
}

// Skipped sums facts rejected as duplicates by the store.
func (s *RunStats) Skipped() int64 {
	var n int64
	for _, rs := range s.Resources {
		if rs != nil {
			n += rs.Skipped
		}
	}
	return n
}
