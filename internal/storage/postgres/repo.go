// Package postgres implements the star-schema repository on Postgres using
// pgx v5. Dimension members are created with INSERT .. ON CONFLICT DO NOTHING
// followed by a SELECT, and fact batches run in a single transaction with
// per-row conflict skipping.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"idaetl/internal/records"
	"idaetl/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// DefaultSchema is the schema the DDL creates and queries target by default.
const DefaultSchema = "ida"

// requiredTables are checked by Ping; a missing table fails the run before
// any fetch happens.
var requiredTables = []string{
	"dim_tempo",
	"dim_grupo_economico",
	"dim_servico",
	"dim_variavel",
	"fact_ida",
}

// Config holds Postgres repository configuration.
type Config struct {
	DSN    string // connection string for pgxpool
	Schema string // target schema; DefaultSchema when empty
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool   *pgxpool.Pool
	schema string
}

// NewRepository constructs a Repository. The pool is created lazily by pgx;
// connectivity is only verified by Ping.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	schema := cfg.Schema
	if schema == "" {
		schema = DefaultSchema
	}
	return &Repository{pool: pool, schema: schema}, nil
}

func (r *Repository) Close() { r.pool.Close() }

// Ping verifies connectivity and the presence of the schema and every
// required table.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return classify(fmt.Errorf("ping: %w", err))
	}
	var found bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)",
		r.schema,
	).Scan(&found)
	if err != nil {
		return classify(fmt.Errorf("check schema: %w", err))
	}
	if !found {
		return fmt.Errorf("schema %q does not exist (run with bootstrap enabled)", r.schema)
	}
	for _, table := range requiredTables {
		err := r.pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)",
			r.schema, table,
		).Scan(&found)
		if err != nil {
			return classify(fmt.Errorf("check table %s: %w", table, err))
		}
		if !found {
			return fmt.Errorf("table %s.%s does not exist (run with bootstrap enabled)", r.schema, table)
		}
	}
	return nil
}

// Bootstrap applies the embedded DDL. The DDL is written against
// DefaultSchema; a configured schema substitutes for it.
func (r *Repository) Bootstrap(ctx context.Context) error {
	ddl := schemaSQL
	if r.schema != DefaultSchema {
		ddl = strings.ReplaceAll(ddl, DefaultSchema+".", pgIdent(r.schema)+".")
		ddl = strings.ReplaceAll(ddl, "SCHEMA IF NOT EXISTS "+DefaultSchema, "SCHEMA IF NOT EXISTS "+pgIdent(r.schema))
	}
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return classify(fmt.Errorf("apply schema: %w", err))
	}
	return nil
}

func (r *Repository) GetOrCreateTime(ctx context.Context, p records.Period) (int64, error) {
	insert := fmt.Sprintf(`
		INSERT INTO %s.dim_tempo (ano, mes, data, nome_mes, trimestre, semestre)
		VALUES ($1, $2, $3::date, $4, $5, $6)
		ON CONFLICT (ano, mes) DO NOTHING
		RETURNING tempo_key`, pgIdent(r.schema))
	sel := fmt.Sprintf(
		`SELECT tempo_key FROM %s.dim_tempo WHERE ano = $1 AND mes = $2`, pgIdent(r.schema))
	return r.getOrCreate(ctx,
		insert, []any{p.Year, int(p.Month), p.Date(), p.MonthName(), p.Quarter(), p.Semester()},
		sel, []any{p.Year, int(p.Month)},
	)
}

func (r *Repository) GetOrCreateGroup(ctx context.Context, code, name string) (int64, error) {
	if name == "" {
		name = code
	}
	insert := fmt.Sprintf(`
		INSERT INTO %s.dim_grupo_economico (codigo, nome)
		VALUES ($1, $2)
		ON CONFLICT (codigo) DO NOTHING
		RETURNING grupo_key`, pgIdent(r.schema))
	sel := fmt.Sprintf(
		`SELECT grupo_key FROM %s.dim_grupo_economico WHERE codigo = $1`, pgIdent(r.schema))
	return r.getOrCreate(ctx, insert, []any{code, name}, sel, []any{code})
}

func (r *Repository) GetOrCreateService(ctx context.Context, code string) (int64, error) {
	// Services are seeded by the DDL; the insert only fires for a code the
	// seeds do not know, with the code doubling as the name.
	insert := fmt.Sprintf(`
		INSERT INTO %s.dim_servico (codigo, nome)
		VALUES ($1, $1)
		ON CONFLICT (codigo) DO NOTHING
		RETURNING servico_key`, pgIdent(r.schema))
	sel := fmt.Sprintf(
		`SELECT servico_key FROM %s.dim_servico WHERE codigo = $1`, pgIdent(r.schema))
	return r.getOrCreate(ctx, insert, []any{code}, sel, []any{code})
}

func (r *Repository) GetOrCreateVariable(ctx context.Context, code string) (int64, error) {
	insert := fmt.Sprintf(`
		INSERT INTO %s.dim_variavel (codigo, nome)
		VALUES ($1, $1)
		ON CONFLICT (codigo) DO NOTHING
		RETURNING variavel_key`, pgIdent(r.schema))
	sel := fmt.Sprintf(
		`SELECT variavel_key FROM %s.dim_variavel WHERE codigo = $1`, pgIdent(r.schema))
	return r.getOrCreate(ctx, insert, []any{code}, sel, []any{code})
}

// getOrCreate runs the conditional insert and, when another writer won the
// race (no row returned), falls back to the select.
func (r *Repository) getOrCreate(
	ctx context.Context,
	insert string, insertArgs []any,
	sel string, selArgs []any,
) (int64, error) {
	var key int64
	err := r.pool.QueryRow(ctx, insert, insertArgs...).Scan(&key)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, classify(fmt.Errorf("dimension insert: %w", err))
	}
	if err := r.pool.QueryRow(ctx, sel, selArgs...).Scan(&key); err != nil {
		return 0, classify(fmt.Errorf("dimension select: %w", err))
	}
	return key, nil
}

// InsertFacts loads one batch in a single transaction. The bare ON CONFLICT
// DO NOTHING covers both unique constraints (dimension 4-tuple and content
// hash); either collision skips the row and the first stored value stands.
func (r *Repository) InsertFacts(ctx context.Context, rows []storage.FactRow) (loaded, skipped int64, err error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}
	insert := fmt.Sprintf(`
		INSERT INTO %s.fact_ida
		    (tempo_key, grupo_key, servico_key, variavel_key, valor,
		     hash_registro, arquivo_fonte, linha_fonte)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
		ON CONFLICT DO NOTHING`, pgIdent(r.schema))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, classify(fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(insert,
			row.TempoKey, row.GrupoKey, row.ServicoKey, row.VariavelKey,
			row.Value, row.Digest, row.SourceFile, row.SourceRow)
	}
	br := tx.SendBatch(ctx, batch)
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, 0, classify(fmt.Errorf("insert fact: %w", err))
		}
		if tag.RowsAffected() > 0 {
			loaded++
		} else {
			skipped++
		}
	}
	if err := br.Close(); err != nil {
		return 0, 0, classify(fmt.Errorf("close batch: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, classify(fmt.Errorf("commit: %w", err))
	}
	return loaded, skipped, nil
}

// classify marks connection-level and concurrency-level failures as
// transient so the caller's retry policy can act on them.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return storage.MarkTransient(err)
	}
	if pgconn.SafeToRetry(err) {
		return storage.MarkTransient(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return storage.MarkTransient(err)
		case pgErr.Code == "40001" || pgErr.Code == "40P01": // serialization, deadlock
			return storage.MarkTransient(err)
		case pgErr.Code == "57P03": // cannot connect now
			return storage.MarkTransient(err)
		}
	}
	return err
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
