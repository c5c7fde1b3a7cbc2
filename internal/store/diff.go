package store

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/franz/gym-league/internal/schema"
)

// TableState classifies how a live table relates to its declaration
type TableState string

const (
	StateMissing     TableState = "missing"
	StateCompatible  TableState = "compatible"
	StateAdditiveGap TableState = "additive-gap"
	StateStructural  TableState = "structural-mismatch"
)

// ColumnChange is a declared column whose live definition differs
type ColumnChange struct {
	Name         string
	Live         schema.Column
	Declared     schema.Column
	Reasons      []string
	NeedsRebuild bool
}

// TableDelta is the difference between one declared table and the live one
type TableDelta struct {
	Table              string
	State              TableState
	MissingColumns     []schema.Column
	MissingIndexes     []schema.Index
	MissingUniques     []schema.Unique
	MissingForeignKeys []schema.ForeignKey
	Changed            []ColumnChange
}

// NeedsRebuild reports whether the table can only be brought in line by a
// rebuild
func (d TableDelta) NeedsRebuild() bool {
	if len(d.MissingUniques) > 0 || len(d.MissingForeignKeys) > 0 {
		return true
	}
	for _, c := range d.Changed {
		if c.NeedsRebuild {
			return true
		}
	}
	return false
}

// Delta is the full difference between a live and a declared schema
type Delta struct {
	Tables []TableDelta // declaration order
	Unused []string     // live tables that are not declared
}

// Table returns the delta for one declared table
func (d *Delta) Table(name string) (TableDelta, bool) {
	for _, td := range d.Tables {
		if td.Table == name {
			return td, true
		}
	}
	return TableDelta{}, false
}

// Rebuild returns the tables that need a structural rebuild, in declaration
// order
func (d *Delta) Rebuild() []string {
	var names []string
	for _, td := range d.Tables {
		if td.State == StateStructural && td.NeedsRebuild() {
			names = append(names, td.Table)
		}
	}
	return names
}

// InSync reports whether every declared table is compatible and nothing
// unused is left
func (d *Delta) InSync() bool {
	for _, td := range d.Tables {
		if td.State != StateCompatible {
			return false
		}
	}
	return len(d.Unused) == 0
}

// Diff compares a live snapshot with the declared schema
func Diff(live *LiveSchema, declared *schema.Schema) *Delta {
	delta := &Delta{}

	for _, t := range declared.Tables() {
		td := TableDelta{Table: t.Name}
		lt, ok := live.Table(t.Name)
		if !ok {
			td.State = StateMissing
			delta.Tables = append(delta.Tables, td)
			continue
		}

		for _, c := range t.Columns {
			lc, ok := lt.Column(c.Name)
			if !ok {
				td.MissingColumns = append(td.MissingColumns, c)
				continue
			}
			if reasons := compareColumn(lc, c); len(reasons) > 0 {
				td.Changed = append(td.Changed, ColumnChange{
					Name:         c.Name,
					Live:         lc,
					Declared:     c,
					Reasons:      reasons,
					NeedsRebuild: RequiresRebuild(lc, c),
				})
			}
		}
		for _, u := range t.Uniques {
			if !hasUnique(lt.Table, u.Columns) {
				td.MissingUniques = append(td.MissingUniques, u)
			}
		}
		for _, fk := range t.ForeignKeys {
			if !hasForeignKey(lt.Table, fk) {
				td.MissingForeignKeys = append(td.MissingForeignKeys, fk)
			}
		}
		for _, idx := range t.Indexes {
			if !hasIndex(lt.Table, idx.Name) {
				td.MissingIndexes = append(td.MissingIndexes, idx)
			}
		}

		switch {
		case len(td.Changed) > 0 || len(td.MissingUniques) > 0 || len(td.MissingForeignKeys) > 0:
			td.State = StateStructural
		case len(td.MissingColumns) > 0 || len(td.MissingIndexes) > 0:
			td.State = StateAdditiveGap
		default:
			td.State = StateCompatible
		}
		delta.Tables = append(delta.Tables, td)
	}

	for _, name := range live.Names() {
		if !declared.Has(name) {
			delta.Unused = append(delta.Unused, name)
		}
	}
	sort.Strings(delta.Unused)

	return delta
}

// RequiresRebuild reports whether moving a column from its live to its
// declared definition needs a table rebuild: primary-key membership
// differs, NOT NULL is newly imposed, the normalized type differs, or a
// check constraint is added or changed.
func RequiresRebuild(live, declared schema.Column) bool {
	if live.PrimaryKey != declared.PrimaryKey {
		return true
	}
	if notNullImposed(live, declared) {
		return true
	}
	if schema.NormalizeType(live.Type) != schema.NormalizeType(declared.Type) {
		return true
	}
	if declared.Check != "" && normalizeExpr(live.Check) != normalizeExpr(declared.Check) {
		return true
	}
	return false
}

// compareColumn lists every difference between the live and declared
// column; an empty result means they match
func compareColumn(live, declared schema.Column) []string {
	var reasons []string

	if lt, dt := schema.NormalizeType(live.Type), schema.NormalizeType(declared.Type); lt != dt {
		reasons = append(reasons, fmt.Sprintf("type %s, declared %s", orNone(lt), dt))
	}
	if live.PrimaryKey != declared.PrimaryKey {
		if declared.PrimaryKey {
			reasons = append(reasons, "not a primary key, declared primary key")
		} else {
			reasons = append(reasons, "primary key, declared not a primary key")
		}
	}
	switch {
	case notNullImposed(live, declared):
		reasons = append(reasons, "nullable, declared NOT NULL")
	case live.NotNull && !declared.NotNull && !(live.PrimaryKey && declared.PrimaryKey):
		reasons = append(reasons, "NOT NULL, declared nullable")
	}
	if !sameDefault(live.Default, declared.Default) {
		reasons = append(reasons, fmt.Sprintf("default %s, declared %s", orNone(live.Default), orNone(declared.Default)))
	}
	if normalizeExpr(live.Check) != normalizeExpr(declared.Check) {
		switch {
		case live.Check == "":
			reasons = append(reasons, fmt.Sprintf("no check, declared CHECK (%s)", declared.Check))
		case declared.Check == "":
			reasons = append(reasons, fmt.Sprintf("CHECK (%s), declared no check", live.Check))
		default:
			reasons = append(reasons, fmt.Sprintf("CHECK (%s), declared CHECK (%s)", live.Check, declared.Check))
		}
	}
	return reasons
}

// notNullImposed reports a nullable live column declared NOT NULL. A live
// primary key is accepted as satisfying NOT NULL.
func notNullImposed(live, declared schema.Column) bool {
	if !declared.NotNull || live.NotNull {
		return false
	}
	return !(live.PrimaryKey && declared.PrimaryKey)
}

func sameDefault(live, declared string) bool {
	l, d := strings.TrimSpace(live), strings.TrimSpace(declared)
	if strings.EqualFold(l, "NULL") {
		l = ""
	}
	if strings.EqualFold(d, "NULL") {
		d = ""
	}
	if strings.HasPrefix(l, "'") || strings.HasPrefix(d, "'") {
		return l == d
	}
	return strings.EqualFold(l, d)
}

// normalizeExpr collapses whitespace and case for comparing check
// expressions
func normalizeExpr(expr string) string {
	return strings.ToUpper(strings.Join(strings.Fields(expr), " "))
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func hasUnique(t schema.Table, cols []string) bool {
	want := slices.Sorted(slices.Values(cols))
	for _, u := range t.Uniques {
		if slices.Equal(slices.Sorted(slices.Values(u.Columns)), want) {
			return true
		}
	}
	return false
}

func hasForeignKey(t schema.Table, fk schema.ForeignKey) bool {
	for _, l := range t.ForeignKeys {
		if l.Column == fk.Column && l.RefTable == fk.RefTable && (l.RefColumn == "" || l.RefColumn == fk.RefColumn) {
			return true
		}
	}
	return false
}

func hasIndex(t schema.Table, name string) bool {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return true
		}
	}
	return false
}

// commonColumns returns the declared column names also present live, in
// declaration order
func commonColumns(t schema.Table, live []string) []string {
	present := make(map[string]bool, len(live))
	for _, c := range live {
		present[c] = true
	}
	var common []string
	for _, c := range t.Columns {
		if present[c.Name] {
			common = append(common, c.Name)
		}
	}
	return common
}
