package counterstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/HerbHall/mibagent/pkg/countersdb"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Compile-time interface guard.
var _ countersdb.Reader = (*SQLiteStore)(nil)

// Migration is a single schema change applied inside a transaction.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// schema holds the migrations for the hash table that mirrors the counter
// store: one row per (db, key, field).
var schema = []Migration{
	{
		Version:     1,
		Description: "create hashes table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS hashes (
					db    INTEGER NOT NULL,
					key   TEXT    NOT NULL,
					field TEXT    NOT NULL,
					value TEXT    NOT NULL,
					PRIMARY KEY (db, key, field)
				)
			`)
			return err
		},
	},
	{
		Version:     2,
		Description: "index hashes by key for glob scans",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_hashes_db_key ON hashes (db, key)")
			return err
		},
	},
}

// SQLiteStore is a file-backed counter store. It serves the same read
// contract as the Redis store and is used for replaying captured counter
// dumps in the lab and in integration tests.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.Mutex // Serialize migrations
	once sync.Once  // Ensure _migrations table created once
}

// NewSQLite opens (or creates) a SQLite database at the given path, applies
// the recommended pragmas, and migrates the hash schema.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// SQLite performs best with a single write connection. WAL enables concurrent readers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// modernc.org/sqlite requires SQL statements, not DSN params.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-20000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.Migrate(ctx, "counterstore", schema); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB returns the underlying *sql.DB for direct queries.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// GetAll implements countersdb.Reader.
func (s *SQLiteStore) GetAll(ctx context.Context, db countersdb.DB, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT field, value FROM hashes WHERE db = ? AND key = ?",
		int(db), key,
	)
	if err != nil {
		return nil, fmt.Errorf("get %s %q: %w", db, key, err)
	}
	defer rows.Close()

	var fields map[string]string
	for rows.Next() {
		var f, v string
		if err := rows.Scan(&f, &v); err != nil {
			return nil, fmt.Errorf("scan %s %q: %w", db, key, err)
		}
		if fields == nil {
			fields = make(map[string]string)
		}
		fields[f] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s %q: %w", db, key, err)
	}
	return fields, nil
}

// Keys implements countersdb.Reader. SQLite's GLOB operator accepts the same
// wildcard syntax as the Redis KEYS/SCAN MATCH patterns used by the agent.
func (s *SQLiteStore) Keys(ctx context.Context, db countersdb.DB, pattern string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT key FROM hashes WHERE db = ? AND key GLOB ? ORDER BY key",
		int(db), pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("keys %s %q: %w", db, pattern, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// HSet writes fields into the hash at key, replacing existing values.
func (s *SQLiteStore) HSet(ctx context.Context, db countersdb.DB, key string, fields map[string]string) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		return hset(ctx, tx, db, key, fields)
	})
}

// Import loads a dump of the form {db: {key: {field: value}}} in a single
// transaction.
func (s *SQLiteStore) Import(ctx context.Context, dump Dump) (int, error) {
	n := 0
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		for db, hashes := range dump {
			for key, fields := range hashes {
				if err := hset(ctx, tx, db, key, fields); err != nil {
					return err
				}
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func hset(ctx context.Context, tx *sql.Tx, db countersdb.DB, key string, fields map[string]string) error {
	for f, v := range fields {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO hashes (db, key, field, value) VALUES (?, ?, ?, ?)
			 ON CONFLICT (db, key, field) DO UPDATE SET value = excluded.value`,
			int(db), key, f, v,
		)
		if err != nil {
			return fmt.Errorf("hset %s %q %q: %w", db, key, f, err)
		}
	}
	return nil
}

// Tx executes fn within a database transaction. The transaction is
// committed if fn returns nil, rolled back otherwise.
func (s *SQLiteStore) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

// Migrate runs pending migrations for the named component. Already-applied
// migrations (tracked in the shared _migrations table) are skipped.
// Migrations must be provided in ascending Version order.
func (s *SQLiteStore) Migrate(ctx context.Context, component string, migrations []Migration) error {
	if err := s.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range migrations {
		applied, err := s.isMigrationApplied(ctx, component, m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		if err := s.applyMigration(ctx, component, m); err != nil {
			return fmt.Errorf("migration %s/%d (%s): %w", component, m.Version, m.Description, err)
		}
	}

	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ensureMigrationsTable creates the shared _migrations tracking table if it
// doesn't already exist.
func (s *SQLiteStore) ensureMigrationsTable(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		_, err = s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS _migrations (
				component   TEXT    NOT NULL,
				version     INTEGER NOT NULL,
				description TEXT    NOT NULL,
				applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (component, version)
			)
		`)
	})
	return err
}

func (s *SQLiteStore) isMigrationApplied(ctx context.Context, component string, version int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM _migrations WHERE component = ? AND version = ?",
		component, version,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check migration %s/%d: %w", component, version, err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) applyMigration(ctx context.Context, component string, m Migration) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		if err := m.Up(tx); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			"INSERT INTO _migrations (component, version, description) VALUES (?, ?, ?)",
			component, m.Version, m.Description,
		)
		return err
	})
}
