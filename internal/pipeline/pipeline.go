// Package pipeline orchestrates a full ingestion run: discover resources in
// the catalog, then fetch, parse, normalize, deduplicate, and load each one
// into the star schema.
//
// Failure semantics: a failed database health check or catalog listing aborts
// the run before any work starts; everything after that is resource-scoped.
// One malformed or unreachable file marks its resource failed and the rest of
// the run proceeds. Transient storage failures are retried per resource with
// exponential backoff, with counters reset so a retried resource reports only
// its final attempt.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"idaetl/internal/catalog"
	"idaetl/internal/dedup"
	"idaetl/internal/dimension"
	"idaetl/internal/extractor"
	"idaetl/internal/metrics"
	"idaetl/internal/normalizer"
	"idaetl/internal/retry"
	"idaetl/internal/storage"
)

// Catalog is the discovery surface the pipeline consumes. catalog.Client
// satisfies it; tests substitute fixtures.
type Catalog interface {
	List(ctx context.Context) ([]catalog.Resource, error)
	Fetch(ctx context.Context, res catalog.Resource) (io.Reader, error)
}

// Options tune one run.
type Options struct {
	BatchSize   int
	Concurrency int
	Retry       retry.Policy

	// Resource selection; empty/zero keeps everything on that axis.
	Services []string
	YearFrom int
	YearTo   int
}

// Pipeline wires the catalog and the repository together.
type Pipeline struct {
	cat  Catalog
	repo storage.Repository
	opts Options
}

func New(cat Catalog, repo storage.Repository, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Pipeline{cat: cat, repo: repo, opts: opts}
}

// Run executes one full ingestion run. The returned error is non-nil only for
// run-level failures (health check, catalog listing, cancellation); per
// resource outcomes, including failures, are in the stats.
func (p *Pipeline) Run(ctx context.Context) (*RunStats, error) {
	start := time.Now()

	if err := p.repo.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database health check: %w", err)
	}

	resources, err := p.cat.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog listing: %w", err)
	}
	resources = catalog.Filter(resources, p.opts.Services, p.opts.YearFrom, p.opts.YearTo)
	log.Printf("run: resources=%d services=%v years=%d..%d concurrency=%d",
		len(resources), p.opts.Services, p.opts.YearFrom, p.opts.YearTo, p.opts.Concurrency)

	seen := dedup.New()
	resolver := dimension.NewResolver(p.repo)
	stats := &RunStats{Resources: make([]*ResourceStats, len(resources))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, res := range resources {
		i, res := i, res
		g.Go(func() error {
			// Workers isolate their failures in the stats; only cancellation
			// propagates.
			stats.Resources[i] = p.runResource(gctx, res, resolver, seen)
			return nil
		})
	}
	_ = g.Wait()

	stats.Elapsed = time.Since(start)
	logSummary(stats)
	return stats, ctx.Err()
}

// runResource drives one resource through the state machine, retrying the
// whole fetch/parse/load cycle on transient storage failures.
func (p *Pipeline) runResource(
	ctx context.Context,
	res catalog.Resource,
	resolver *dimension.Resolver,
	seen *dedup.Seen,
) *ResourceStats {
	stats := &ResourceStats{Resource: res, State: StatePending}
	start := time.Now()

	err := p.opts.Retry.Do(ctx, "resource "+res.Filename, storage.IsTransient, func(ctx context.Context) error {
		stats.Attempts++
		return p.attempt(ctx, res, resolver, seen, stats)
	})
	stats.Duration = time.Since(start)

	if err != nil {
		stats.State = StateFailed
		stats.Err = err
		log.Printf("resource %s: failed attempts=%d err=%v", res.Filename, stats.Attempts, err)
		return stats
	}
	stats.State = StateDone
	log.Printf("resource %s: done rows=%d normalized=%d dropped=%d cells_skipped=%d dedup=%d loaded=%d skipped=%d elapsed=%s",
		res.Filename, stats.RowsRead, stats.RecordsNormalized, stats.RowsDropped,
		stats.CellsSkipped, stats.Deduplicated, stats.Loaded, stats.Skipped,
		stats.Duration.Truncate(time.Millisecond))
	return stats
}

// attempt is one full pass over a resource. Counters are reset on entry so a
// retry never double-counts.
func (p *Pipeline) attempt(
	ctx context.Context,
	res catalog.Resource,
	resolver *dimension.Resolver,
	seen *dedup.Seen,
	stats *ResourceStats,
) error {
	stats.resetCounters()
	src := extractor.Source{Filename: res.Filename, Service: res.Service}

	stats.State = StateFetching
	fetchStart := time.Now()
	body, err := p.cat.Fetch(ctx, res)
	metrics.RecordStage(res.Filename, "fetch", err, time.Since(fetchStart))
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	stats.State = StateParsing
	ext, err := extractor.ForFormat(res.Format)
	if err != nil {
		return err
	}
	parseStart := time.Now()
	rows, err := ext.Extract(ctx, body, src)
	if err == nil {
		// A header without month columns parses but can produce nothing.
		if normalizer.New(rows.Labels(), src).MonthColumns() == 0 {
			err = fmt.Errorf("%s: %w", res.Filename, extractor.ErrMalformedSource)
		}
	}
	metrics.RecordStage(res.Filename, "parse", err, time.Since(parseStart))
	if err != nil {
		return err
	}
	norm := normalizer.New(rows.Labels(), src)

	stats.State = StateLoading
	loadStart := time.Now()
	facts := make(chan storage.FactRow, p.opts.BatchSize)
	var digests []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(facts)
		for rows.Next() {
			stats.RowsRead++
			out := norm.Apply(rows.Row())
			if out.Dropped {
				stats.RowsDropped++
				continue
			}
			stats.CellsSkipped += int64(out.SkippedCells)
			for _, rec := range out.Records {
				stats.RecordsNormalized++
				digest := rec.Digest()
				if seen.Has(digest) {
					stats.Deduplicated++
					continue
				}
				keys, err := resolver.Resolve(gctx, rec)
				if err != nil {
					return fmt.Errorf("resolve dimensions: %w", err)
				}
				fr := storage.FactRow{
					TempoKey:    keys.Tempo,
					GrupoKey:    keys.Grupo,
					ServicoKey:  keys.Servico,
					VariavelKey: keys.Variavel,
					Value:       rec.Value.String(),
					Digest:      digest,
					SourceFile:  rec.SourceFile,
					SourceRow:   rec.SourceRow,
				}
				select {
				case facts <- fr:
					digests = append(digests, digest)
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
		return nil
	})
	g.Go(func() error {
		loaded, skipped, err := storage.LoadBatches(gctx, res.Filename, facts, p.opts.BatchSize, p.repo.InsertFacts)
		stats.Loaded, stats.Skipped = loaded, skipped
		return err
	})
	err = g.Wait()
	metrics.RecordStage(res.Filename, "load", err, time.Since(loadStart))
	if err != nil {
		return err
	}

	// Publish digests into the run-wide gate only after the load committed.
	seen.AddAll(digests)

	metrics.RecordRows(res.Filename, "extracted", stats.RowsRead)
	metrics.RecordRows(res.Filename, "normalized", stats.RecordsNormalized)
	metrics.RecordRows(res.Filename, "dropped", stats.RowsDropped)
	metrics.RecordRows(res.Filename, "deduplicated", stats.Deduplicated)
	metrics.RecordRows(res.Filename, "loaded", stats.Loaded)
	metrics.RecordRows(res.Filename, "skipped", stats.Skipped)
	return nil
}

func logSummary(stats *RunStats) {
	var rows, normalized, dropped, cells, dedupCount, loaded, skipped int64
	failed := 0
	for _, rs := range stats.Resources {
		if rs == nil {
			continue
		}
		rows += rs.RowsRead
		normalized += rs.RecordsNormalized
		dropped += rs.RowsDropped
		cells += rs.CellsSkipped
		dedupCount += rs.Deduplicated
		loaded += rs.Loaded
		skipped += rs.Skipped
		if rs.State == StateFailed {
			failed++
		}
	}
	log.Printf("run summary: resources=%d failed=%d rows=%d normalized=%d dropped=%d cells_skipped=%d dedup=%d loaded=%d skipped=%d elapsed=%s",
		len(stats.Resources), failed, rows, normalized, dropped, cells,
		dedupCount, loaded, skipped, stats.Elapsed.Truncate(time.Millisecond))
}
