// Package store owns the league's SQLite database. Opening a Store brings the
// live schema in line with the declared one before any query is served:
// missing tables, columns and indexes are added in place, structural
// mismatches are rebuilt table by table, and referential-integrity failures
// escalate to a file-level rebuild with a backup of the original.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/franz/gym-league/internal/report"
	"github.com/franz/gym-league/internal/schema"
	"github.com/franz/gym-league/internal/util"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store represents the application's persistent state
type Store struct {
	db     *sql.DB
	path   string
	schema *schema.Schema
	opts   Options
	events *report.EventLogger
	phase  Phase
}

// Options holds options for opening a database
type Options struct {
	// Schema is the declared target schema. Defaults to schema.League().
	Schema *schema.Schema

	// AutoRecreate rebuilds tables whose live definition structurally
	// differs from the declared one. When off, mismatches are reported and
	// left in place.
	AutoRecreate bool

	// AutoCleanup drops live tables that are not declared
	AutoCleanup bool

	// NoReconcile opens the database without touching its schema
	NoReconcile bool

	// Events receives an audit record of every schema change. May be nil.
	Events *report.EventLogger
}

// dbtx is satisfied by *sql.DB, *sql.Conn and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens or creates the league database at path and reconciles it
// against schema.League() with default options
func Open(ctx context.Context, path string) (*Store, error) {
	return OpenWithOptions(ctx, path, nil)
}

// OpenWithOptions opens or creates a SQLite database with custom options.
//
// Unless opts.NoReconcile is set the live schema is reconciled before
// returning. When automatic recovery is exhausted the returned error is a
// *FatalError naming the backup of the original file.
func OpenWithOptions(ctx context.Context, path string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}
	declared := opts.Schema
	if declared == nil {
		declared = schema.League()
	}
	if err := declared.Validate(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w: %w", util.ErrConnectivity, err)
		}
	}

	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}

	store := &Store{
		db:     db,
		path:   path,
		schema: declared,
		opts:   *opts,
		events: opts.Events,
		phase:  PhaseReconciling,
	}

	if opts.NoReconcile {
		store.phase = PhaseReady
		return store, nil
	}

	if err := store.startup(ctx); err != nil {
		store.Close()
		return nil, err
	}

	return store, nil
}

// openDB opens a single-connection handle with foreign keys enforced
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w: %w", util.ErrConnectivity, err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with a single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w: %w", path, util.ErrConnectivity, err)
	}

	return db, nil
}

// startup runs the reconciliation pass and, on a referential-integrity
// failure, the recovery escalation
func (s *Store) startup(ctx context.Context) error {
	res, err := s.Reconcile(ctx)
	if err == nil {
		s.phase = PhaseReady
		res.log()
		return nil
	}
	if !IsIntegrityError(err) {
		return err
	}

	util.WarnLog("Referential integrity failure during reconciliation: %v", err)
	return s.recover(ctx, err)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying database connection for custom queries
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Schema returns the declared schema the store reconciles against
func (s *Store) Schema() *schema.Schema {
	return s.schema
}

// Phase returns the current lifecycle phase
func (s *Store) Phase() Phase {
	return s.phase
}

// Transaction executes a function within a transaction. The transaction is
// rolled back unless fn returns nil and the commit succeeds.
func (s *Store) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	return inTx(ctx, s.db, fn)
}

// withForeignKeysDisabled pins a connection, turns foreign-key enforcement
// off for the duration of fn and turns it back on before the connection is
// returned to the pool, whatever fn returns.
//
// The pragma is a no-op inside a transaction, so fn must open its own.
func (s *Store) withForeignKeysDisabled(ctx context.Context, fn func(conn *sql.Conn) error) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w: %w", util.ErrConnectivity, err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("failed to disable foreign keys: %w", err)
	}
	defer func() {
		// A cancelled ctx must not leave enforcement off
		if _, rerr := conn.ExecContext(context.Background(), "PRAGMA foreign_keys = ON"); rerr != nil {
			util.ErrorLog("Failed to re-enable foreign keys: %v", rerr)
			if err == nil {
				err = fmt.Errorf("failed to re-enable foreign keys: %w", rerr)
			}
		}
	}()

	return fn(conn)
}

// ForeignKeysEnabled reports whether enforcement is on for the pooled
// connection
func (s *Store) ForeignKeysEnabled(ctx context.Context) (bool, error) {
	var on int
	if err := s.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&on); err != nil {
		return false, fmt.Errorf("failed to read foreign_keys pragma: %w", err)
	}
	return on == 1, nil
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	err = db.QueryRow("SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

// CheckIntegrity runs PRAGMA integrity_check on the database
func (s *Store) CheckIntegrity(ctx context.Context) error {
	var result string
	err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// Violation is one row reported by PRAGMA foreign_key_check
type Violation struct {
	Table    string
	RowID    int64
	Parent   string
	FKeyID   int
	HasRowID bool
}

// ForeignKeyViolations runs PRAGMA foreign_key_check over the whole
// database, or over one table when table is non-empty
func (s *Store) ForeignKeyViolations(ctx context.Context, table string) ([]Violation, error) {
	return foreignKeyCheck(ctx, s.db, table)
}

func foreignKeyCheck(ctx context.Context, q dbtx, table string) ([]Violation, error) {
	query := "PRAGMA foreign_key_check"
	if table != "" {
		query = fmt.Sprintf("PRAGMA foreign_key_check(%s)", table)
	}
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to run foreign key check: %w", err)
	}
	defer rows.Close()

	var violations []Violation
	for rows.Next() {
		var v Violation
		var rowid sql.NullInt64
		if err := rows.Scan(&v.Table, &rowid, &v.Parent, &v.FKeyID); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key violation: %w", err)
		}
		v.RowID = rowid.Int64
		v.HasRowID = rowid.Valid
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// IsIntegrityError reports whether err is a referential-integrity failure,
// either detected after a rebuild or raised by SQLite itself
func IsIntegrityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, util.ErrIntegrity) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

// tableRowCount returns the number of rows in table
func tableRowCount(ctx context.Context, q dbtx, table string) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}
