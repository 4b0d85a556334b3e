// Package archive persists sample stores into a DuckDB database for ad-hoc
// SQL analysis. The line-text codec stays the canonical interchange format;
// the archive is an additional, queryable sink that can also reconstruct a
// store, so archiving is reversible.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb" // registers the duckdb driver
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	xerrors "github.com/parttimenerd/sampler-comparison/internal/errors"
	"github.com/parttimenerd/sampler-comparison/internal/safe"
	"github.com/parttimenerd/sampler-comparison/internal/stackstore"
)

// Archive is a DuckDB-backed store sink. All methods are safe for
// concurrent use; writes are serialized internally.
type Archive struct {
	db     *sql.DB
	logger zerolog.Logger
	mu     sync.Mutex
}

// Info summarizes one archived store.
type Info struct {
	Name      string
	MaxDepth  int
	CreatedAt time.Time
	Samples   int
}

// ErrStoreNotFound reports a LoadStore call for a name the archive does not
// hold.
var ErrStoreNotFound = errors.New("store not archived")

// Open opens (creating if necessary) the archive database at path. An empty
// path opens an in-memory database, useful for tests and one-off queries.
func Open(path string, logger zerolog.Logger) (*Archive, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}

	a := &Archive{
		db:     db,
		logger: logger.With().Str("component", "archive").Logger(),
	}
	if err := a.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing archive schema: %w", err)
	}
	return a, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS stores (
			name       TEXT      PRIMARY KEY,
			max_depth  INTEGER   NOT NULL,
			created_at TIMESTAMP NOT NULL
		);

		-- One row per sample. fp_key is the xxh3 of the fingerprint bytes,
		-- a compact join key for SQL; the full digest stays in fingerprint.
		CREATE TABLE IF NOT EXISTS samples (
			store_name  TEXT   NOT NULL,
			thread_name TEXT   NOT NULL,
			ts_nanos    BIGINT NOT NULL,
			fp_key      BIGINT NOT NULL,
			fingerprint BLOB   NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_samples_store  ON samples (store_name);
		CREATE INDEX IF NOT EXISTS idx_samples_fp_key ON samples (fp_key);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return err
	}
	a.logger.Debug().Msg("Archive schema initialized")
	return nil
}

// Write archives one store, replacing any previously archived store of the
// same name. The store row and every sample row land in one transaction, so
// a failed write leaves the previous contents untouched.
func (a *Archive) Write(ctx context.Context, s *stackstore.Store) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning archive transaction: %w", err)
	}
	defer xerrors.DeferRollback(a.logger, tx)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stores (name, max_depth, created_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			max_depth = EXCLUDED.max_depth,
			created_at = EXCLUDED.created_at
	`, s.Name(), s.MaxDepth(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting store %q: %w", s.Name(), err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM samples WHERE store_name = ?`, s.Name()); err != nil {
		return fmt.Errorf("clearing previous samples of %q: %w", s.Name(), err)
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (store_name, thread_name, ts_nanos, fp_key, fingerprint)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing sample insert: %w", err)
	}
	defer xerrors.DeferClose(a.logger, insert, "failed to close sample insert statement")

	total := 0
	for _, thread := range s.ThreadNames() {
		for _, sample := range s.Samples(thread) {
			ts, _ := safe.Uint64ToInt64(sample.TimeNanos)
			_, err := insert.ExecContext(ctx,
				s.Name(), thread, ts,
				fingerprintKey(sample.Fingerprint), sample.Fingerprint[:])
			if err != nil {
				return fmt.Errorf("archiving sample of thread %q: %w", thread, err)
			}
			total++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing archive transaction: %w", err)
	}

	a.logger.Debug().
		Str("store", s.Name()).
		Int("samples", total).
		Msg("Archived store")
	return nil
}

// LoadStore reconstructs an archived store by name. Max depth round-trips,
// so loaded stores stay safe to compare.
func (a *Archive) LoadStore(ctx context.Context, name string) (*stackstore.Store, error) {
	var maxDepth int
	err := a.db.QueryRowContext(ctx,
		`SELECT max_depth FROM stores WHERE name = ?`, name).Scan(&maxDepth)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", name, ErrStoreNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying store %q: %w", name, err)
	}

	s, err := stackstore.New(name, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("archived store %q is invalid: %w", name, err)
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT thread_name, ts_nanos, fingerprint
		FROM samples WHERE store_name = ?
	`, name)
	if err != nil {
		return nil, fmt.Errorf("querying samples of %q: %w", name, err)
	}
	defer xerrors.DeferClose(a.logger, rows, "failed to close sample rows")

	for rows.Next() {
		var (
			thread string
			ts     int64
			digest []byte
		)
		if err := rows.Scan(&thread, &ts, &digest); err != nil {
			return nil, fmt.Errorf("scanning sample of %q: %w", name, err)
		}
		fp, ok := stackstore.FingerprintFromBytes(digest)
		if !ok {
			return nil, fmt.Errorf("archived sample of %q has a %d-byte fingerprint", name, len(digest))
		}
		tsNanos, _ := safe.Int64ToUint64(ts)
		s.AddFingerprint(thread, tsNanos, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating samples of %q: %w", name, err)
	}
	return s, nil
}

// ListStores returns a summary of every archived store, sorted by name.
func (a *Archive) ListStores(ctx context.Context) ([]Info, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT s.name, s.max_depth, s.created_at, count(p.store_name)
		FROM stores s
		LEFT JOIN samples p ON p.store_name = s.name
		GROUP BY s.name, s.max_depth, s.created_at
		ORDER BY s.name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing archived stores: %w", err)
	}
	defer xerrors.DeferClose(a.logger, rows, "failed to close store rows")

	var infos []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.Name, &info.MaxDepth, &info.CreatedAt, &info.Samples); err != nil {
			return nil, fmt.Errorf("scanning store row: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating store rows: %w", err)
	}
	return infos, nil
}

// fingerprintKey derives the compact SQL join key for a fingerprint. The
// sign flip from uint64 is irrelevant for a key; byte equality is what
// matters.
func fingerprintKey(fp stackstore.Fingerprint) int64 {
	return int64(xxh3.Hash(fp[:]))
}
