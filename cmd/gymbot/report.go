package main

import (
	"context"
	"fmt"
	"os"

	"github.com/franz/gym-league/internal/report"
	"github.com/franz/gym-league/internal/store"
	"github.com/franz/gym-league/internal/util"
	"github.com/spf13/cobra"
)

var schemaReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize schema event logs as Markdown",
	Long: `Generate a Markdown summary of the schema event logs.

The report includes:
- Tables created, columns and indexes added
- Rebuilds with rows copied and failures
- Mismatches that could not be applied automatically
- Backups, recovery steps and fatal errors
- The current state and row count of every table

Event logs are read from --events (a log file or a directory of them),
which defaults to the configured events directory. Without --out the
report is printed to stdout.`,
	Args: cobra.NoArgs,
	RunE: runSchemaReport,
}

func init() {
	schemaCmd.AddCommand(schemaReportCmd)

	schemaReportCmd.Flags().String("events", "", "event log file or directory (default: configured events directory)")
	schemaReportCmd.Flags().String("out", "", "write the report to this file instead of stdout")
}

func runSchemaReport(cmd *cobra.Command, args []string) error {
	eventsPath, _ := cmd.Flags().GetString("events")
	if eventsPath == "" {
		eventsPath = util.GetEventsDir()
	}

	summary, err := buildSchemaReport(cmd.Context(), util.GetDBPath(), eventsPath)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), report.RenderMarkdown(summary))
		return err
	}
	if err := report.WriteMarkdownReport(summary, out); err != nil {
		return err
	}
	util.SuccessLog("Report written to %s (%d events)", out, summary.Events)
	return nil
}

// buildSchemaReport summarizes the event logs at eventsPath and the tables
// of the database at dbPath. Either may be missing.
func buildSchemaReport(ctx context.Context, dbPath, eventsPath string) (*report.SummaryReport, error) {
	paths, err := eventLogPaths(eventsPath)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		util.WarnLog("No schema event logs found; set --events or GYM_EVENTS_DIR")
	}

	summary, err := report.GenerateSummaryReport(paths)
	if err != nil {
		return nil, fmt.Errorf("failed to generate report: %w", err)
	}
	summary.DatabasePath = dbPath

	if !util.FileExists(dbPath) {
		return summary, nil
	}
	s, err := store.OpenWithOptions(ctx, dbPath, &store.Options{NoReconcile: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	info, err := s.SchemaInfo(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range info.Tables {
		state := string(t.State)
		if !t.Declared {
			state = "unused"
		}
		summary.Tables = append(summary.Tables, report.TableStatus{Name: t.Name, State: state, Rows: t.Rows})
	}
	return summary, nil
}

// eventLogPaths resolves a log file or a directory of logs
func eventLogPaths(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return []string{path}, nil
	}
	return report.EventLogFiles(path)
}
