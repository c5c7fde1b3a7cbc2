package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/franz/gym-league/internal/report"
	"github.com/franz/gym-league/internal/schema"
	"github.com/franz/gym-league/internal/util"
)

// rebuildBatchSize is the number of rows copied per transaction
const rebuildBatchSize = 1000

// copier is satisfied by *sql.DB and *sql.Conn
type copier interface {
	dbtx
	txBeginner
}

// scratchName returns a fresh scratch-table name for rebuilding table
func scratchName(table string) string {
	return fmt.Sprintf("%s__rebuild_%s", table, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// rebuildTable brings a table to its declared definition by copying it into
// a scratch table and swapping the two.
//
// Foreign-key enforcement is off for the duration and restored on every
// path. The scratch table is dropped before any error is returned, so a
// retry always starts from a clean database. After the swap the table is
// checked with PRAGMA foreign_key_check; violations yield util.ErrIntegrity.
func (s *Store) rebuildTable(ctx context.Context, t schema.Table) (err error) {
	start := time.Now()
	var copied int64
	defer func() {
		s.events.LogRebuild(t.Name, copied, time.Since(start), err)
	}()

	util.InfoLog("Rebuilding table %s", t.Name)
	err = s.withForeignKeysDisabled(ctx, func(conn *sql.Conn) error {
		var rerr error
		copied, rerr = rebuildOnConn(ctx, conn, t, s.events)
		return rerr
	})
	if err != nil {
		return err
	}

	util.SuccessLog("Rebuilt table %s (%d rows in %s)", t.Name, copied, time.Since(start).Round(time.Millisecond))
	return nil
}

func rebuildOnConn(ctx context.Context, conn *sql.Conn, t schema.Table, events *report.EventLogger) (int64, error) {
	liveCols, err := tableColumnNames(ctx, conn, t.Name)
	if err != nil {
		return 0, err
	}
	common := commonColumns(t, liveCols)

	total, err := tableRowCount(ctx, conn, t.Name)
	if err != nil {
		return 0, err
	}
	if len(common) == 0 && total > 0 {
		util.WarnLog("Table %s shares no columns with its declared definition: %d rows will be lost", t.Name, total)
		events.LogDataLoss(t.Name, total, "no columns in common with declared definition")
	}

	scratch := scratchName(t.Name)
	if _, err := conn.ExecContext(ctx, schema.CreateTableSQL(scratch, t)); err != nil {
		return 0, fmt.Errorf("failed to create scratch table %s: %w", scratch, err)
	}
	swapped := false
	defer func() {
		if swapped {
			return
		}
		if _, derr := conn.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+scratch); derr != nil {
			util.WarnLog("Failed to drop scratch table %s: %v", scratch, derr)
		}
	}()

	var copied int64
	if len(common) > 0 {
		copied, err = copyRows(ctx, conn, t.Name, scratch, common, total)
		if err != nil {
			return copied, fmt.Errorf("failed to copy rows of %s: %w", t.Name, err)
		}
	}

	err = inTx(ctx, conn, func(tx *sql.Tx) error {
		seq, err := sequenceOf(ctx, tx, "main", t.Name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DROP TABLE "+t.Name); err != nil {
			return fmt.Errorf("failed to drop %s: %w", t.Name, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", scratch, t.Name)); err != nil {
			return fmt.Errorf("failed to rename %s: %w", scratch, err)
		}
		if seq.Valid && hasAutoIncrement(t) {
			if err := raiseSequence(ctx, tx, t.Name, seq.Int64); err != nil {
				return err
			}
		}
		for _, idx := range t.Indexes {
			if err := createIndexIfMissing(ctx, tx, t.Name, idx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("failed to swap rebuilt table %s: %w", t.Name, err)
	}
	swapped = true

	violations, err := foreignKeyCheck(ctx, conn, t.Name)
	if err != nil {
		return copied, err
	}
	if len(violations) > 0 {
		return copied, fmt.Errorf("table %s has %d rows violating foreign keys after rebuild: %w", t.Name, len(violations), util.ErrIntegrity)
	}
	return copied, nil
}

func hasAutoIncrement(t schema.Table) bool {
	for _, c := range t.Columns {
		if c.AutoIncrement {
			return true
		}
	}
	return false
}

// sequenceOf returns the AUTOINCREMENT high-water mark of table in the named
// database, or an invalid value when it has none
func sequenceOf(ctx context.Context, q dbtx, dbName, table string) (sql.NullInt64, error) {
	var seq sql.NullInt64
	var n int
	err := q.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM %s.sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'", dbName)).Scan(&n)
	if err != nil {
		return seq, fmt.Errorf("failed to look up sqlite_sequence: %w", err)
	}
	if n == 0 {
		return seq, nil
	}
	err = q.QueryRowContext(ctx, fmt.Sprintf("SELECT seq FROM %s.sqlite_sequence WHERE name = ?", dbName), table).Scan(&seq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return seq, fmt.Errorf("failed to read sequence of %s: %w", table, err)
	}
	return seq, nil
}

// raiseSequence lifts the AUTOINCREMENT counter of a main-database table to
// at least seq, so ids of rows deleted before a copy are not handed out again
func raiseSequence(ctx context.Context, q dbtx, table string, seq int64) error {
	res, err := q.ExecContext(ctx, "UPDATE main.sqlite_sequence SET seq = MAX(seq, ?) WHERE name = ?", seq, table)
	if err != nil {
		return fmt.Errorf("failed to carry sequence of %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := q.ExecContext(ctx, "INSERT INTO main.sqlite_sequence (name, seq) VALUES (?, ?)", table, seq); err != nil {
		return fmt.Errorf("failed to carry sequence of %s: %w", table, err)
	}
	return nil
}

// copyRows copies cols from src to dst in rowid order, one transaction per
// batch of rebuildBatchSize rows. A failed batch is rolled back; earlier
// batches stay in dst, which callers discard on error.
func copyRows(ctx context.Context, c copier, src, dst string, cols []string, total int64) (int64, error) {
	colList := strings.Join(cols, ", ")
	bounds := fmt.Sprintf(`
		SELECT MAX(rid), COUNT(*) FROM (
			SELECT rowid AS rid FROM %s WHERE ? IS NULL OR rowid > ? ORDER BY rowid LIMIT %d
		)`, src, rebuildBatchSize)
	insert := fmt.Sprintf(`
		INSERT INTO %s (%s)
		SELECT %s FROM %s WHERE (? IS NULL OR rowid > ?) AND rowid <= ? ORDER BY rowid`,
		dst, colList, colList, src)

	bar := util.NewRowProgress(int(total), fmt.Sprintf("Copying %s", src))
	defer func() {
		if bar != nil {
			bar.Finish()
		}
	}()

	var copied int64
	var last sql.NullInt64
	for {
		var upper sql.NullInt64
		var n int64
		if err := c.QueryRowContext(ctx, bounds, last, last).Scan(&upper, &n); err != nil {
			return copied, fmt.Errorf("failed to read batch bounds: %w", err)
		}
		if n == 0 || !upper.Valid {
			break
		}

		err := inTx(ctx, c, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, insert, last, last, upper.Int64)
			return err
		})
		if err != nil {
			return copied, fmt.Errorf("batch after rowid %d: %w", last.Int64, err)
		}

		copied += n
		last = upper
		if bar != nil {
			bar.Add(int(n))
		}
	}
	return copied, nil
}

// ForceRebuildTable rebuilds one declared table regardless of its state, or
// creates it when it does not exist
func (s *Store) ForceRebuildTable(ctx context.Context, name string) error {
	t, ok := s.schema.Table(name)
	if !ok {
		return fmt.Errorf("table %s is not declared: %w", name, util.ErrNotFound)
	}

	live, err := s.Inspect(ctx)
	if err != nil {
		return err
	}
	if !live.Has(name) {
		if err := createTable(ctx, s.db, t); err != nil {
			return err
		}
		s.events.LogCreateTable(t.Name, len(t.Indexes))
		util.InfoLog("Created table %s", t.Name)
		return nil
	}
	return s.rebuildTable(ctx, t)
}

// ForceRebuildAll rebuilds every declared table in foreign-key order and
// returns the order used
func (s *Store) ForceRebuildAll(ctx context.Context) ([]string, error) {
	order := RebuildOrder(s.schema.TableNames(), s.schema)
	if order.Cyclic {
		util.WarnLog("Declared schema has a foreign-key cycle; rebuilding in declaration order")
	}
	for i, name := range order.Tables {
		if err := s.ForceRebuildTable(ctx, name); err != nil {
			return order.Tables[:i], fmt.Errorf("failed to rebuild table %s: %w", name, err)
		}
	}
	return order.Tables, nil
}
