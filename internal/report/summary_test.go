package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSampleLog(t *testing.T) string {
	t.Helper()
	logger := newTestLogger(t, LevelInfo)

	require.NoError(t, logger.LogCreateTable("guilds", 0))
	require.NoError(t, logger.LogAddColumn("trainers", "total_badges"))
	require.NoError(t, logger.LogCreateIndex("trainers", "idx_trainers_total_badges"))
	require.NoError(t, logger.LogRebuild("gym_leaders", 5, 20*time.Millisecond, nil))
	require.NoError(t, logger.LogRebuild("gym_leaders", 0, 5*time.Millisecond, errors.New("constraint failed")))
	require.NoError(t, logger.LogUnresolved("trainers", "total_badges", "default 1, declared 0"))
	require.NoError(t, logger.LogUnresolved("trainers", "total_badges", "default 1, declared 0"))
	require.NoError(t, logger.LogDataLoss("badges", 3, "no columns in common with declared definition"))
	require.NoError(t, logger.LogBackup("/data/gym.db.backup.20260101-120000", 2048))
	require.NoError(t, logger.LogRecovery("quick_fix", nil))
	require.NoError(t, logger.Close())
	return logger.Path()
}

func TestGenerateSummaryReport(t *testing.T) {
	path := writeSampleLog(t)

	report, err := GenerateSummaryReport([]string{path})
	require.NoError(t, err)

	assert.Equal(t, 10, report.Events)
	assert.Equal(t, []string{path}, report.EventLogPaths)
	assert.False(t, report.First.IsZero())
	assert.False(t, report.GeneratedAt.IsZero())
	assert.Equal(t, []string{"guilds"}, report.TablesCreated)
	assert.Equal(t, []string{"trainers.total_badges"}, report.ColumnsAdded)
	assert.Equal(t, []string{"idx_trainers_total_badges"}, report.IndexesCreated)

	require.Len(t, report.Rebuilds, 1)
	assert.Equal(t, RebuildSummary{
		Table:     "gym_leaders",
		Runs:      2,
		Failures:  1,
		Rows:      5,
		Duration:  25 * time.Millisecond,
		LastError: "constraint failed",
	}, report.Rebuilds[0])

	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, 2, report.Unresolved[0].Count)
	assert.Equal(t, []ErrorSummary{{Error: "constraint failed", Count: 1}}, report.TopErrors)

	require.Len(t, report.DataLoss, 1)
	assert.Equal(t, int64(3), report.DataLoss[0].Rows)
	require.Len(t, report.Backups, 1)
	assert.Equal(t, int64(2048), report.Backups[0].Bytes)
	require.Len(t, report.Recoveries, 1)
	assert.Equal(t, "quick_fix", report.Recoveries[0].State)
	assert.Empty(t, report.Fatal)
}

func TestRenderMarkdown(t *testing.T) {
	report, err := GenerateSummaryReport([]string{writeSampleLog(t)})
	require.NoError(t, err)
	report.DatabasePath = "/data/gym.db"
	report.Tables = []TableStatus{{Name: "trainers", State: "structural-mismatch", Rows: 1200}}

	md := RenderMarkdown(report)
	assert.True(t, strings.HasPrefix(md, "# Gym League Database - Schema Report\n"))
	for _, want := range []string{
		"**Database:** `/data/gym.db`",
		"| Events | 10 |",
		"| trainers | structural-mismatch | 1,200 |",
		"- created table `guilds`",
		"- added column `trainers.total_badges`",
		"| gym_leaders | 2 | 5 | 25ms | 1 |",
		"- `badges`: 3 rows dropped",
		"| trainers | total_badges | default 1, declared 0 | 2 |",
		"(2.0 kB)",
		"quick_fix",
		"| 1 | constraint failed |",
	} {
		assert.Contains(t, md, want)
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(Summarize(nil))
	assert.Contains(t, md, "| Events | 0 |")
	assert.NotContains(t, md, "Rebuilds")
	assert.NotContains(t, md, "Recovery")
	assert.NotContains(t, md, "Period")
}

func TestSummarize_Fatal(t *testing.T) {
	logger := newTestLogger(t, LevelInfo)
	require.NoError(t, logger.LogFatal("/data/gym.db.backup.1", errors.New("quick fix failed")))

	report, err := GenerateSummaryReport([]string{logger.Path()})
	require.NoError(t, err)
	require.Len(t, report.Fatal, 1)
	assert.Equal(t, "/data/gym.db.backup.1", report.Fatal[0].Path)
	assert.Contains(t, RenderMarkdown(report), "**manual intervention required**: quick fix failed (backup `/data/gym.db.backup.1`)")
}

func TestReadEventLog_InvalidLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema-1.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"event\":\"drop_table\"}\n\nnot json\n"), 0644))

	_, err := ReadEventLog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":3: invalid event")

	_, err = GenerateSummaryReport([]string{filepath.Join(t.TempDir(), "missing.jsonl")})
	assert.Error(t, err)
}

func TestEventLogFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"schema-20260102-000000.jsonl", "schema-20260101-000000.jsonl", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	paths, err := EventLogFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "schema-20260101-000000.jsonl"),
		filepath.Join(dir, "schema-20260102-000000.jsonl"),
	}, paths)
}

func TestWriteMarkdownReport(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "reports", "summary.md")
	require.NoError(t, WriteMarkdownReport(Summarize(nil), outputPath))

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "*Generated by gymbot*")
}

func TestTruncatePath(t *testing.T) {
	assert.Equal(t, "/short", truncatePath("/short", 80))
	long := "/data/" + strings.Repeat("x", 100) + "/gym.db"
	got := truncatePath(long, 40)
	assert.Len(t, got, 39)
	assert.True(t, strings.HasPrefix(got, "/data/"))
	assert.True(t, strings.HasSuffix(got, "gym.db"))
}
