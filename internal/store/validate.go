package store

import (
	"context"
	"fmt"
	"strings"
)

// IssueKind classifies a validation finding
type IssueKind string

const (
	IssueMissingTable      IssueKind = "missing_table"
	IssueMissingColumn     IssueKind = "missing_column"
	IssueMissingIndex      IssueKind = "missing_index"
	IssueMissingUnique     IssueKind = "missing_unique"
	IssueMissingForeignKey IssueKind = "missing_foreign_key"
	IssueConstraint        IssueKind = "constraint_mismatch"
	IssueUnusedTable       IssueKind = "unused_table"
)

// Issue is one difference between the live and the declared schema
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Table   string    `json:"table"`
	Column  string    `json:"column,omitempty"`
	Message string    `json:"message"`
	Rebuild bool      `json:"rebuild"` // fixing it needs a table rebuild
}

func (i Issue) String() string {
	if i.Column != "" {
		return fmt.Sprintf("%s.%s: %s", i.Table, i.Column, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Table, i.Message)
}

// tableIssues lists the findings of one table delta
func tableIssues(td TableDelta) []Issue {
	var issues []Issue
	if td.State == StateMissing {
		return []Issue{{Kind: IssueMissingTable, Table: td.Table, Message: "table does not exist"}}
	}
	for _, c := range td.MissingColumns {
		issues = append(issues, Issue{Kind: IssueMissingColumn, Table: td.Table, Column: c.Name, Message: "column does not exist"})
	}
	for _, c := range td.Changed {
		issues = append(issues, Issue{
			Kind:    IssueConstraint,
			Table:   td.Table,
			Column:  c.Name,
			Message: strings.Join(c.Reasons, "; "),
			Rebuild: c.NeedsRebuild,
		})
	}
	for _, u := range td.MissingUniques {
		issues = append(issues, Issue{
			Kind:    IssueMissingUnique,
			Table:   td.Table,
			Message: fmt.Sprintf("unique constraint %s (%s) does not exist", u.Name, strings.Join(u.Columns, ", ")),
			Rebuild: true,
		})
	}
	for _, fk := range td.MissingForeignKeys {
		issues = append(issues, Issue{
			Kind:    IssueMissingForeignKey,
			Table:   td.Table,
			Column:  fk.Column,
			Message: fmt.Sprintf("foreign key to %s does not exist", fk.References()),
			Rebuild: true,
		})
	}
	for _, idx := range td.MissingIndexes {
		issues = append(issues, Issue{Kind: IssueMissingIndex, Table: td.Table, Message: fmt.Sprintf("index %s does not exist", idx.Name)})
	}
	return issues
}

// Issues lists every finding in the delta, declared tables first
func (d *Delta) Issues() []Issue {
	var issues []Issue
	for _, td := range d.Tables {
		issues = append(issues, tableIssues(td)...)
	}
	for _, name := range d.Unused {
		issues = append(issues, Issue{Kind: IssueUnusedTable, Table: name, Message: "table is not declared"})
	}
	return issues
}

// ValidateSchema reports how the live schema differs from the declared one
// without changing anything. Mismatches are findings, not errors; an error
// means the database could not be read.
func (s *Store) ValidateSchema(ctx context.Context) ([]Issue, error) {
	live, err := s.Inspect(ctx)
	if err != nil {
		return nil, err
	}
	return Diff(live, s.schema).Issues(), nil
}

// TableInfo describes one table for SchemaInfo
type TableInfo struct {
	Name     string     `json:"name"`
	Declared bool       `json:"declared"`
	Live     bool       `json:"live"`
	State    TableState `json:"state,omitempty"`
	Columns  int        `json:"columns"`
	Rows     int64      `json:"rows"`
}

// Info is a summary of the live database against the declared schema
type Info struct {
	Path         string      `json:"path"`
	Tables       []TableInfo `json:"tables"`
	Expected     []string    `json:"expected"`
	NeedsRebuild []string    `json:"needs_rebuild"`
	Unused       []string    `json:"unused"`
}

// SchemaInfo summarizes declared and live tables with their row counts
func (s *Store) SchemaInfo(ctx context.Context) (*Info, error) {
	live, err := s.Inspect(ctx)
	if err != nil {
		return nil, err
	}
	delta := Diff(live, s.schema)

	info := &Info{
		Path:         s.path,
		Expected:     s.schema.TableNames(),
		NeedsRebuild: delta.Rebuild(),
		Unused:       delta.Unused,
	}

	for _, td := range delta.Tables {
		ti := TableInfo{Name: td.Table, Declared: true, State: td.State}
		if lt, ok := live.Table(td.Table); ok {
			ti.Live = true
			ti.Columns = len(lt.Columns)
			if ti.Rows, err = tableRowCount(ctx, s.db, quoteIdent(td.Table)); err != nil {
				return nil, err
			}
		}
		info.Tables = append(info.Tables, ti)
	}
	for _, name := range delta.Unused {
		lt, _ := live.Table(name)
		ti := TableInfo{Name: name, Live: true, Columns: len(lt.Columns)}
		if ti.Rows, err = tableRowCount(ctx, s.db, quoteIdent(name)); err != nil {
			return nil, err
		}
		info.Tables = append(info.Tables, ti)
	}
	return info, nil
}
