package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/franz/gym-league/internal/schema"
	"github.com/franz/gym-league/internal/util"
)

// Phase is the store's position in the startup recovery sequence. Phases
// only move forward: Reconciling, then QuickFix on a referential-integrity
// failure, then Fatal if QuickFix fails too. No strategy is tried twice.
type Phase int

const (
	PhaseReconciling Phase = iota
	PhaseQuickFix
	PhaseFatal
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseReconciling:
		return "reconciling"
	case PhaseQuickFix:
		return "quick_fix"
	case PhaseFatal:
		return "fatal"
	case PhaseReady:
		return "ready"
	}
	return "unknown"
}

// FatalError is returned when automatic recovery is exhausted. The original
// database file is preserved at Backup.
type FatalError struct {
	Backup string
	Cause  error
}

func (e *FatalError) Error() string {
	backup := e.Backup
	if backup == "" {
		backup = "none taken"
	}
	return fmt.Sprintf("database recovery failed, manual intervention required (backup: %s): %v", backup, e.Cause)
}

// Unwrap exposes both util.ErrManualIntervention and the cause to errors.Is
func (e *FatalError) Unwrap() []error {
	return []error{util.ErrManualIntervention, e.Cause}
}

// IsFatal reports whether err ends automatic recovery
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// QuickFixResult describes a file-level rebuild
type QuickFixResult struct {
	Backup       string           // copy of the original file, kept forever
	NeedsRebuild []string         // tables that were structurally out of date
	Copied       map[string]int64 // rows carried over per table
	Violations   int              // foreign-key violations carried over as-is
}

// recover escalates a referential-integrity failure from reconciliation
func (s *Store) recover(ctx context.Context, cause error) error {
	s.phase = PhaseQuickFix
	s.events.LogRecovery(PhaseQuickFix.String(), cause)

	res, err := s.QuickFix(ctx)
	if err == nil {
		// The rebuilt file carries the declared schema; this pass only
		// confirms it and must not escalate again
		if _, err = s.Reconcile(ctx); err == nil {
			s.phase = PhaseReady
			util.SuccessLog("Database recovered (backup kept at %s)", res.Backup)
			return nil
		}
	}

	s.phase = PhaseFatal
	fe := &FatalError{Backup: res.Backup, Cause: err}
	s.events.LogFatal(fe.Backup, err)
	util.ErrorLog("%v", fe)
	return fe
}

// QuickFix rebuilds the whole database file: a sibling file is created with
// the declared schema, every declared table's rows are copied into it
// (column intersection, batched), the original is backed up and the sibling
// is renamed over it. The store is reopened on the new file.
//
// The returned result is never nil; on error its Backup names the copy of
// the original if one was taken.
func (s *Store) QuickFix(ctx context.Context) (*QuickFixResult, error) {
	res := &QuickFixResult{Copied: map[string]int64{}}

	live, err := s.Inspect(ctx)
	if err != nil {
		return res, err
	}
	res.NeedsRebuild = Diff(live, s.schema).Rebuild()
	if len(res.NeedsRebuild) > 0 {
		util.InfoLog("Tables needing rebuild: %s", strings.Join(res.NeedsRebuild, ", "))
	}

	backup, err := s.backup(ctx)
	res.Backup = backup
	if err != nil {
		return res, err
	}

	sibling := fmt.Sprintf("%s.new.%s-%s", s.path, stamp(), uuid.NewString()[:8])
	util.InfoLog("Building %s", sibling)
	violations, err := buildSibling(ctx, sibling, s.path, s.schema, live, res.Copied)
	if err != nil {
		removeSibling(sibling)
		return res, fmt.Errorf("failed to build new database: %w", err)
	}
	res.Violations = violations
	if violations > 0 {
		util.WarnLog("New database carries %d existing foreign-key violations", violations)
	}

	if err := s.swapIn(ctx, sibling); err != nil {
		removeSibling(sibling)
		return res, err
	}

	s.events.LogRecovery("quick_fix_complete", nil)
	util.SuccessLog("Database file rebuilt")
	return res, nil
}

// buildSibling creates path with the declared schema and copies the rows of
// every declared table from source. It returns the number of foreign-key
// violations found in the copy.
func buildSibling(ctx context.Context, path, source string, declared *schema.Schema, live *LiveSchema, copied map[string]int64) (int, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	order := RebuildOrder(declared.TableNames(), declared)
	for _, name := range order.Tables {
		t, _ := declared.Table(name)
		if err := createTable(ctx, db, t); err != nil {
			return 0, err
		}
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return 0, fmt.Errorf("failed to disable foreign keys: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS source_db", source); err != nil {
		return 0, fmt.Errorf("failed to attach %s: %w", source, err)
	}

	copyErr := func() error {
		for _, name := range order.Tables {
			lt, ok := live.Table(name)
			if !ok {
				continue
			}
			t, _ := declared.Table(name)
			common := commonColumns(t, lt.ColumnNames())
			src := "source_db." + name

			total, err := tableRowCount(ctx, conn, src)
			if err != nil {
				return err
			}
			if len(common) == 0 {
				if total > 0 {
					util.WarnLog("Table %s shares no columns with its declared definition: %d rows will be lost", name, total)
				}
				continue
			}
			n, err := copyRows(ctx, conn, src, "main."+name, common, total)
			if err != nil {
				return fmt.Errorf("failed to copy %s: %w", name, err)
			}
			copied[name] = n
			util.DebugLog("Copied %d rows of %s", n, name)

			if hasAutoIncrement(t) {
				seq, err := sequenceOf(ctx, conn, "source_db", name)
				if err != nil {
					return err
				}
				if seq.Valid {
					if err := raiseSequence(ctx, conn, name, seq.Int64); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}()

	if _, err := conn.ExecContext(context.Background(), "DETACH DATABASE source_db"); err != nil && copyErr == nil {
		return 0, fmt.Errorf("failed to detach %s: %w", source, err)
	}
	if copyErr != nil {
		return 0, copyErr
	}

	violations, err := foreignKeyCheck(ctx, conn, "")
	if err != nil {
		return 0, err
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return 0, fmt.Errorf("failed to re-enable foreign keys: %w", err)
	}
	return len(violations), nil
}

// swapIn closes the store, renames sibling over the database file and
// reopens it. If the rename fails the original file is reopened.
func (s *Store) swapIn(ctx context.Context, sibling string) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.db = nil

	// A stale WAL must not be replayed onto the new file
	removeSidecars(s.path)

	if err := util.RetryableRename(sibling, s.path, util.FileRetryConfig()); err != nil {
		if db, oerr := openDB(ctx, s.path); oerr == nil {
			s.db = db
		}
		return fmt.Errorf("failed to replace database file: %w", err)
	}

	db, err := openDB(ctx, s.path)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// backup checkpoints the WAL and copies the database file next to itself
func (s *Store) backup(ctx context.Context) (string, error) {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return "", fmt.Errorf("failed to checkpoint database: %w", err)
	}

	path := fmt.Sprintf("%s.backup.%s", s.path, stamp())
	n, err := util.RetryableCopy(s.path, path, util.FileRetryConfig())
	if err != nil {
		return "", fmt.Errorf("failed to back up database: %w", err)
	}

	util.InfoLog("Backed up database to %s (%s)", path, humanize.Bytes(uint64(n)))
	s.events.LogBackup(path, n)
	return path, nil
}

// NukeAndRecreate backs up the database file, deletes it and creates an
// empty database with the declared schema. It is never run automatically.
func (s *Store) NukeAndRecreate(ctx context.Context) (string, error) {
	backup, err := s.backup(ctx)
	if err != nil {
		return "", err
	}

	if err := s.db.Close(); err != nil {
		return backup, fmt.Errorf("failed to close database: %w", err)
	}
	s.db = nil

	if err := util.RetryableRemove(s.path, util.FileRetryConfig()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return backup, fmt.Errorf("failed to remove database: %w", err)
	}
	removeSidecars(s.path)

	db, err := openDB(ctx, s.path)
	if err != nil {
		return backup, err
	}
	s.db = db

	if _, err := s.Reconcile(ctx); err != nil {
		return backup, err
	}
	s.phase = PhaseReady
	s.events.LogRecovery("recreated", nil)
	util.SuccessLog("Database recreated from scratch (backup kept at %s)", backup)
	return backup, nil
}

func removeSidecars(path string) {
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			util.WarnLog("Failed to remove %s: %v", path+suffix, err)
		}
	}
}

func removeSibling(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		util.WarnLog("Failed to remove %s: %v", path, err)
	}
	removeSidecars(path)
}

func stamp() string {
	return time.Now().Format("20060102-150405.000")
}
