package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/franz/gym-league/internal/store"
	"github.com/franz/gym-league/internal/util"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the database and configuration",
	Long: `Run diagnostic checks to ensure gymbot can operate correctly.

This command checks:
- SQLite version
- Database file accessibility and size
- Database integrity and foreign-key enforcement
- Differences between the live and declared schema
- Events directory writability (when configured)

The database is opened without reconciling, so doctor never changes it.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	util.InfoLog("=== gymbot doctor ===")

	results := []checkResult{checkSQLite()}
	results = append(results, checkDatabase(ctx, util.GetDBPath())...)
	if dir := util.GetEventsDir(); dir != "" {
		results = append(results, checkEventsDir(dir))
	}

	util.InfoLog("")
	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed.")
		return fmt.Errorf("diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Run `gymbot schema validate` for details.")
	} else {
		util.SuccessLog("✅ All checks passed.")
	}
	return nil
}

// checkSQLite verifies the embedded SQLite reports a version
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{name: "SQLite", error: true, message: "unable to determine version"}
	}
	return checkResult{name: "SQLite", message: fmt.Sprintf("version %s (built-in)", version)}
}

// checkDatabase opens the database read-only with respect to its schema and
// reports accessibility, integrity, foreign-key enforcement and schema drift
func checkDatabase(ctx context.Context, dbPath string) []checkResult {
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []checkResult{{name: "Database", message: fmt.Sprintf("%s (will be created on first run)", dbPath)}}
		}
		return []checkResult{{name: "Database", error: true, message: fmt.Sprintf("cannot access %s: %v", dbPath, err)}}
	}
	if !info.Mode().IsRegular() {
		return []checkResult{{name: "Database", error: true, message: fmt.Sprintf("%s is not a regular file", dbPath)}}
	}

	s, err := store.OpenWithOptions(ctx, dbPath, &store.Options{NoReconcile: true})
	if err != nil {
		return []checkResult{{name: "Database", error: true, message: fmt.Sprintf("cannot open %s: %v", dbPath, err)}}
	}
	defer s.Close()

	results := []checkResult{{
		name:    "Database",
		message: fmt.Sprintf("%s (%s)", dbPath, humanize.Bytes(uint64(info.Size()))),
	}}

	if err := s.CheckIntegrity(ctx); err != nil {
		results = append(results, checkResult{name: "Integrity", error: true, message: err.Error()})
	} else {
		results = append(results, checkResult{name: "Integrity", message: "ok"})
	}

	on, err := s.ForeignKeysEnabled(ctx)
	switch {
	case err != nil:
		results = append(results, checkResult{name: "Foreign keys", error: true, message: err.Error()})
	case !on:
		results = append(results, checkResult{name: "Foreign keys", error: true, message: "not enforced on this connection"})
	default:
		violations, err := s.ForeignKeyViolations(ctx, "")
		if err != nil {
			results = append(results, checkResult{name: "Foreign keys", error: true, message: err.Error()})
		} else if len(violations) > 0 {
			results = append(results, checkResult{name: "Foreign keys", warning: true, message: fmt.Sprintf("%d rows reference missing parents", len(violations))})
		} else {
			results = append(results, checkResult{name: "Foreign keys", message: "enforced, no violations"})
		}
	}

	issues, err := s.ValidateSchema(ctx)
	switch {
	case err != nil:
		results = append(results, checkResult{name: "Schema", error: true, message: err.Error()})
	case len(issues) == 0:
		results = append(results, checkResult{name: "Schema", message: "matches declared schema"})
	default:
		rebuild := 0
		for _, i := range issues {
			if i.Rebuild {
				rebuild++
			}
		}
		msg := fmt.Sprintf("%d differences", len(issues))
		if rebuild > 0 {
			msg += fmt.Sprintf(", %d need a rebuild (--auto-recreate)", rebuild)
		}
		results = append(results, checkResult{name: "Schema", warning: true, message: msg})
	}

	return results
}

// checkEventsDir verifies the events directory is writable
func checkEventsDir(path string) checkResult {
	if err := os.MkdirAll(path, 0755); err != nil {
		return checkResult{name: "Events directory", error: true, message: fmt.Sprintf("cannot create %s: %v", path, err)}
	}

	testFile := filepath.Join(path, ".gymbot_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{name: "Events directory", error: true, message: fmt.Sprintf("cannot write to %s: %v", path, err)}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{name: "Events directory", message: fmt.Sprintf("%s (writable)", strings.TrimSuffix(path, "/"))}
}
