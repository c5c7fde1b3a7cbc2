package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/franz/gym-league/internal/schema"
	"github.com/franz/gym-league/internal/util"
)

// Result summarizes one reconciliation pass
type Result struct {
	Created        []string // tables
	AddedColumns   []string // table.column
	CreatedIndexes []string // index names
	Rebuilt        []string // tables, in rebuild order
	Dropped        []string // unused tables removed by cleanup
	Unused         []string // unused tables left in place
	Unresolved     []Issue  // mismatches that were reported but not applied
	Cyclic         bool     // rebuild set contained a foreign-key cycle
}

// Changed reports whether the pass modified the database
func (r *Result) Changed() bool {
	return len(r.Created)+len(r.AddedColumns)+len(r.CreatedIndexes)+len(r.Rebuilt)+len(r.Dropped) > 0
}

func (r *Result) log() {
	if !r.Changed() && len(r.Unresolved) == 0 && len(r.Unused) == 0 {
		util.DebugLog("Schema is up to date")
		return
	}
	if r.Changed() {
		util.SuccessLog("Schema reconciled: %d created, %d columns added, %d indexes added, %d rebuilt, %d dropped",
			len(r.Created), len(r.AddedColumns), len(r.CreatedIndexes), len(r.Rebuilt), len(r.Dropped))
	}
	for _, issue := range r.Unresolved {
		util.WarnLog("Could not be applied automatically: %s", issue)
	}
	if len(r.Unused) > 0 {
		util.WarnLog("Unused tables (not dropped): %s", strings.Join(r.Unused, ", "))
	}
}

// Reconcile inspects the live schema, diffs it against the declared schema
// and applies the difference: missing tables, columns and indexes are added
// in place first, then structural mismatches are rebuilt in foreign-key
// order when AutoRecreate is set. Re-running it against an up-to-date
// database changes nothing.
//
// Additive failures are returned immediately; changes already applied to
// other tables stay applied.
func (s *Store) Reconcile(ctx context.Context) (*Result, error) {
	s.phase = PhaseReconciling

	live, err := s.Inspect(ctx)
	if err != nil {
		return nil, err
	}
	delta := Diff(live, s.schema)
	res := &Result{}

	var rebuild []string
	for _, td := range delta.Tables {
		t, _ := s.schema.Table(td.Table)

		switch td.State {
		case StateMissing:
			if err := createTable(ctx, s.db, t); err != nil {
				return nil, err
			}
			s.events.LogCreateTable(t.Name, len(t.Indexes))
			util.InfoLog("Created table %s", t.Name)
			res.Created = append(res.Created, t.Name)

		case StateAdditiveGap:
			if err := s.applyAdditive(ctx, t, td, res); err != nil {
				return nil, err
			}

		case StateStructural:
			if s.opts.AutoRecreate && td.NeedsRebuild() {
				rebuild = append(rebuild, td.Table)
				continue
			}
			// changes that need no rebuild stay as they are; missing
			// columns and indexes can still be added in place
			if !td.NeedsRebuild() {
				if err := s.applyAdditive(ctx, t, td, res); err != nil {
					return nil, err
				}
				td.MissingColumns, td.MissingIndexes = nil, nil
			}
			for _, issue := range tableIssues(td) {
				s.events.LogUnresolved(issue.Table, issue.Column, issue.Message)
				res.Unresolved = append(res.Unresolved, issue)
			}
		}
	}

	if len(rebuild) > 0 {
		order := RebuildOrder(rebuild, s.schema)
		res.Cyclic = order.Cyclic
		if order.Cyclic {
			util.WarnLog("Foreign-key cycle among %s; rebuilding in discovery order", strings.Join(rebuild, ", "))
		}
		for _, name := range order.Tables {
			t, _ := s.schema.Table(name)
			if err := s.rebuildTable(ctx, t); err != nil {
				return nil, fmt.Errorf("failed to rebuild table %s: %w", name, err)
			}
			res.Rebuilt = append(res.Rebuilt, name)
		}
	}

	for _, name := range delta.Unused {
		if !s.opts.AutoCleanup {
			res.Unused = append(res.Unused, name)
			continue
		}
		if err := s.dropTable(ctx, name); err != nil {
			return nil, err
		}
		res.Dropped = append(res.Dropped, name)
	}

	return res, nil
}

// applyAdditive adds missing columns and indexes to a table. Every missing
// column is checked before the first ALTER so an impossible column leaves
// the table untouched.
func (s *Store) applyAdditive(ctx context.Context, t schema.Table, td TableDelta, res *Result) error {
	stmts := make([]string, len(td.MissingColumns))
	for i, c := range td.MissingColumns {
		stmt, err := schema.AddColumnSQL(t.Name, c)
		if err != nil {
			return err
		}
		stmts[i] = stmt
	}

	for i, c := range td.MissingColumns {
		if _, err := s.db.ExecContext(ctx, stmts[i]); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", t.Name, c.Name, err)
		}
		s.events.LogAddColumn(t.Name, c.Name)
		util.InfoLog("Added column %s.%s", t.Name, c.Name)
		res.AddedColumns = append(res.AddedColumns, t.Name+"."+c.Name)
	}

	for _, idx := range td.MissingIndexes {
		if err := createIndexIfMissing(ctx, s.db, t.Name, idx); err != nil {
			return err
		}
		s.events.LogCreateIndex(t.Name, idx.Name)
		util.InfoLog("Created index %s on %s", idx.Name, t.Name)
		res.CreatedIndexes = append(res.CreatedIndexes, idx.Name)
	}
	return nil
}

// txBeginner is satisfied by *sql.DB and *sql.Conn
type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// inTx runs fn in a transaction that is rolled back unless fn succeeds
func inTx(ctx context.Context, b txBeginner, fn func(*sql.Tx) error) error {
	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// createTable creates a declared table with its foreign keys, unique
// constraints and indexes as one unit
func createTable(ctx context.Context, b txBeginner, t schema.Table) error {
	return inTx(ctx, b, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema.CreateTableSQL(t.Name, t)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.Name, err)
		}
		for _, idx := range t.Indexes {
			if err := createIndexIfMissing(ctx, tx, t.Name, idx); err != nil {
				return err
			}
		}
		return nil
	})
}

func createIndexIfMissing(ctx context.Context, q dbtx, table string, idx schema.Index) error {
	if _, err := q.ExecContext(ctx, schema.CreateIndexSQL(table, idx)); err != nil {
		return fmt.Errorf("failed to create index %s on %s: %w", idx.Name, table, err)
	}
	return nil
}

// dropTable removes an undeclared table. Enforcement is suspended so rows in
// other undeclared tables referencing it do not block the drop.
func (s *Store) dropTable(ctx context.Context, name string) error {
	err := s.withForeignKeysDisabled(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to drop unused table %s: %w", name, err)
	}
	s.events.LogDropTable(name)
	util.WarnLog("Dropped unused table %s", name)
	return nil
}
