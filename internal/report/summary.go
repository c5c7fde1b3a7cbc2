package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// SummaryReport is a digest of one or more schema event logs
type SummaryReport struct {
	GeneratedAt time.Time
	First       time.Time
	Last        time.Time
	Events      int

	// Additive changes
	TablesCreated  []string
	ColumnsAdded   []string // table.column
	IndexesCreated []string

	// Rebuilds and cleanup
	Rebuilds []RebuildSummary
	Dropped  []string
	DataLoss []DataLossInfo

	// Left for an operator
	Unresolved []IssueSummary
	TopErrors  []ErrorSummary

	// Recovery
	Backups    []BackupInfo
	Recoveries []RecoveryStep
	Fatal      []RecoveryStep

	// Current state, filled in by the caller
	Tables []TableStatus

	// Metadata
	DatabasePath  string
	EventLogPaths []string
}

// RebuildSummary aggregates every rebuild of one table
type RebuildSummary struct {
	Table     string
	Runs      int
	Failures  int
	Rows      int64
	Duration  time.Duration
	LastError string
}

// DataLossInfo records rows a rebuild could not carry over
type DataLossInfo struct {
	Table  string
	Rows   int64
	Reason string
}

// IssueSummary is an unresolved mismatch and how often it was reported
type IssueSummary struct {
	Table  string
	Column string
	Reason string
	Count  int
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// BackupInfo is one backup copy of the database file
type BackupInfo struct {
	At    time.Time
	Path  string
	Bytes int64
}

// RecoveryStep is one recovery transition or the fatal end of one
type RecoveryStep struct {
	At    time.Time
	State string
	Path  string
	Error string
}

// TableStatus is the live state of a declared or unused table
type TableStatus struct {
	Name  string
	State string
	Rows  int64
}

// ReadEventLog parses a JSONL event log
func ReadEventLog(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			return nil, fmt.Errorf("%s:%d: invalid event: %w", path, line, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return events, nil
}

// EventLogFiles lists the schema event logs in dir, oldest first
func EventLogFiles(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "schema-*.jsonl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// GenerateSummaryReport reads the given event logs and summarizes them
func GenerateSummaryReport(paths []string) (*SummaryReport, error) {
	var events []Event
	for _, path := range paths {
		evs, err := ReadEventLog(path)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}
	report := Summarize(events)
	report.EventLogPaths = paths
	return report, nil
}

// Summarize folds events into a report. Repeated unresolved mismatches and
// errors are counted rather than listed again.
func Summarize(events []Event) *SummaryReport {
	report := &SummaryReport{GeneratedAt: time.Now(), Events: len(events)}

	rebuilds := map[string]*RebuildSummary{}
	issues := map[IssueSummary]int{}
	errorCounts := map[string]int{}

	for _, e := range events {
		if !e.Timestamp.IsZero() {
			if report.First.IsZero() || e.Timestamp.Before(report.First) {
				report.First = e.Timestamp
			}
			if e.Timestamp.After(report.Last) {
				report.Last = e.Timestamp
			}
		}
		if e.Error != "" {
			errorCounts[e.Error]++
		}

		switch e.Event {
		case EventCreateTable:
			report.TablesCreated = append(report.TablesCreated, e.Table)
		case EventAddColumn:
			report.ColumnsAdded = append(report.ColumnsAdded, e.Table+"."+e.Column)
		case EventCreateIndex:
			report.IndexesCreated = append(report.IndexesCreated, e.Index)
		case EventRebuild:
			r, ok := rebuilds[e.Table]
			if !ok {
				r = &RebuildSummary{Table: e.Table}
				rebuilds[e.Table] = r
			}
			r.Runs++
			r.Rows += e.Rows
			r.Duration += time.Duration(e.Duration) * time.Millisecond
			if e.Error != "" {
				r.Failures++
				r.LastError = e.Error
			}
		case EventDropTable:
			report.Dropped = append(report.Dropped, e.Table)
		case EventDataLoss:
			report.DataLoss = append(report.DataLoss, DataLossInfo{Table: e.Table, Rows: e.Rows, Reason: e.Reason})
		case EventUnresolved:
			issues[IssueSummary{Table: e.Table, Column: e.Column, Reason: e.Reason}]++
		case EventBackup:
			report.Backups = append(report.Backups, BackupInfo{At: e.Timestamp, Path: e.Path, Bytes: e.Bytes})
		case EventRecovery:
			report.Recoveries = append(report.Recoveries, RecoveryStep{At: e.Timestamp, State: e.Reason, Error: e.Error})
		case EventFatal:
			report.Fatal = append(report.Fatal, RecoveryStep{At: e.Timestamp, State: "fatal", Path: e.Path, Error: e.Error})
		}
	}

	for _, r := range rebuilds {
		report.Rebuilds = append(report.Rebuilds, *r)
	}
	sort.Slice(report.Rebuilds, func(i, j int) bool {
		return report.Rebuilds[i].Table < report.Rebuilds[j].Table
	})

	for issue, count := range issues {
		issue.Count = count
		report.Unresolved = append(report.Unresolved, issue)
	}
	sort.Slice(report.Unresolved, func(i, j int) bool {
		a, b := report.Unresolved[i], report.Unresolved[j]
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		return a.Column < b.Column
	})

	report.TopErrors = topErrors(errorCounts, 10)
	return report
}

func topErrors(counts map[string]int, limit int) []ErrorSummary {
	errs := make([]ErrorSummary, 0, len(counts))
	for msg, count := range counts {
		errs = append(errs, ErrorSummary{Error: msg, Count: count})
	}
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Count != errs[j].Count {
			return errs[i].Count > errs[j].Count
		}
		return errs[i].Error < errs[j].Error
	})
	if len(errs) > limit {
		errs = errs[:limit]
	}
	return errs
}

// RenderMarkdown renders the summary report as Markdown
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder

	md.WriteString("# Gym League Database - Schema Report\n\n")
	fmt.Fprintf(&md, "**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	if report.DatabasePath != "" {
		fmt.Fprintf(&md, "**Database:** `%s`\n\n", report.DatabasePath)
	}
	for _, path := range report.EventLogPaths {
		fmt.Fprintf(&md, "**Event Log:** `%s`\n\n", path)
	}
	md.WriteString("---\n\n")

	md.WriteString("## 📊 Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	fmt.Fprintf(&md, "| Events | %s |\n", humanize.Comma(int64(report.Events)))
	if !report.First.IsZero() {
		fmt.Fprintf(&md, "| Period | %s to %s |\n", report.First.Format("2006-01-02 15:04"), report.Last.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&md, "| Tables Created | %d |\n", len(report.TablesCreated))
	fmt.Fprintf(&md, "| Columns Added | %d |\n", len(report.ColumnsAdded))
	fmt.Fprintf(&md, "| Indexes Created | %d |\n", len(report.IndexesCreated))
	fmt.Fprintf(&md, "| Tables Rebuilt | %d |\n", len(report.Rebuilds))
	if len(report.Dropped) > 0 {
		fmt.Fprintf(&md, "| Tables Dropped | %d |\n", len(report.Dropped))
	}
	if len(report.Unresolved) > 0 {
		fmt.Fprintf(&md, "| Unresolved Mismatches | %d |\n", len(report.Unresolved))
	}
	md.WriteString("\n")

	if len(report.Tables) > 0 {
		md.WriteString("## 🗄️ Tables\n\n")
		md.WriteString("| Table | State | Rows |\n")
		md.WriteString("|-------|-------|------|\n")
		for _, t := range report.Tables {
			fmt.Fprintf(&md, "| %s | %s | %s |\n", t.Name, t.State, humanize.Comma(t.Rows))
		}
		md.WriteString("\n")
	}

	if len(report.ColumnsAdded) > 0 || len(report.TablesCreated) > 0 {
		md.WriteString("## ➕ Additive Changes\n\n")
		for _, t := range report.TablesCreated {
			fmt.Fprintf(&md, "- created table `%s`\n", t)
		}
		for _, c := range report.ColumnsAdded {
			fmt.Fprintf(&md, "- added column `%s`\n", c)
		}
		md.WriteString("\n")
	}

	if len(report.Rebuilds) > 0 {
		md.WriteString("## 🔨 Rebuilds\n\n")
		md.WriteString("| Table | Runs | Rows Copied | Time | Failures |\n")
		md.WriteString("|-------|------|-------------|------|----------|\n")
		for _, r := range report.Rebuilds {
			fmt.Fprintf(&md, "| %s | %d | %s | %s | %d |\n",
				r.Table, r.Runs, humanize.Comma(r.Rows), r.Duration.Round(time.Millisecond), r.Failures)
		}
		md.WriteString("\n")
	}

	if len(report.DataLoss) > 0 {
		md.WriteString("## 🚨 Data Loss\n\n")
		for _, d := range report.DataLoss {
			fmt.Fprintf(&md, "- `%s`: %s rows dropped (%s)\n", d.Table, humanize.Comma(d.Rows), d.Reason)
		}
		md.WriteString("\n")
	}

	if len(report.Dropped) > 0 {
		md.WriteString("## 🗑️ Dropped Tables\n\n")
		for _, t := range report.Dropped {
			fmt.Fprintf(&md, "- `%s`\n", t)
		}
		md.WriteString("\n")
	}

	if len(report.Unresolved) > 0 {
		md.WriteString("## ⚠️ Could Not Be Applied Automatically\n\n")
		md.WriteString("| Table | Column | Reason | Seen |\n")
		md.WriteString("|-------|--------|--------|------|\n")
		for _, issue := range report.Unresolved {
			fmt.Fprintf(&md, "| %s | %s | %s | %d |\n", issue.Table, orDash(issue.Column), issue.Reason, issue.Count)
		}
		md.WriteString("\n")
	}

	if len(report.Backups) > 0 || len(report.Recoveries) > 0 || len(report.Fatal) > 0 {
		md.WriteString("## 🛟 Recovery\n\n")
		for _, b := range report.Backups {
			fmt.Fprintf(&md, "- %s backup `%s` (%s)\n", b.At.Format("2006-01-02 15:04:05"), truncatePath(b.Path, 80), humanize.Bytes(uint64(b.Bytes)))
		}
		for _, r := range report.Recoveries {
			fmt.Fprintf(&md, "- %s %s", r.At.Format("2006-01-02 15:04:05"), r.State)
			if r.Error != "" {
				fmt.Fprintf(&md, ": %s", r.Error)
			}
			md.WriteString("\n")
		}
		for _, f := range report.Fatal {
			fmt.Fprintf(&md, "- %s **manual intervention required**: %s", f.At.Format("2006-01-02 15:04:05"), f.Error)
			if f.Path != "" {
				fmt.Fprintf(&md, " (backup `%s`)", truncatePath(f.Path, 80))
			}
			md.WriteString("\n")
		}
		md.WriteString("\n")
	}

	if len(report.TopErrors) > 0 {
		md.WriteString("## ❌ Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, e := range report.TopErrors {
			fmt.Fprintf(&md, "| %d | %s |\n", e.Count, strings.ReplaceAll(e.Error, "|", "\\|"))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by gymbot*\n")
	return md.String()
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// keep both ends
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
