// Package schema describes the declared (target) database shape that the
// store reconciles the live SQLite database towards.
//
// A Schema is an immutable value: the extension helpers (WithTable,
// WithColumn) return a new Schema and never modify the receiver, so every
// reconciliation pass sees exactly the schema it was handed.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/franz/gym-league/internal/util"
)

// Column describes a single declared column
type Column struct {
	Name          string
	Type          string // Storage type as written in DDL (TEXT, INTEGER, ...)
	NotNull       bool
	PrimaryKey    bool
	AutoIncrement bool
	Default       string // Default expression as written in DDL, "" for none
	Check         string // Check-constraint expression, "" for none
}

// ForeignKey describes a column reference to another table
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// References returns the reference in table(column) form
func (fk ForeignKey) References() string {
	return fmt.Sprintf("%s(%s)", fk.RefTable, fk.RefColumn)
}

// Unique describes a table-level unique constraint
type Unique struct {
	Name    string
	Columns []string
}

// Index describes a named secondary index
type Index struct {
	Name    string
	Columns []string
}

// Table is the declared definition of one table. Column order is preserved
// and used for DDL generation.
type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
	Uniques     []Unique
	Indexes     []Index
}

// Column returns the named column, if declared
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns declared column names in declaration order
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Dependencies returns the distinct tables this table references, in
// foreign-key declaration order. Self references are omitted.
func (t Table) Dependencies() []string {
	var deps []string
	seen := map[string]bool{}
	for _, fk := range t.ForeignKeys {
		if fk.RefTable == t.Name || seen[fk.RefTable] {
			continue
		}
		seen[fk.RefTable] = true
		deps = append(deps, fk.RefTable)
	}
	return deps
}

func (t Table) clone() Table {
	c := Table{Name: t.Name}
	c.Columns = append([]Column(nil), t.Columns...)
	c.ForeignKeys = append([]ForeignKey(nil), t.ForeignKeys...)
	for _, u := range t.Uniques {
		c.Uniques = append(c.Uniques, Unique{Name: u.Name, Columns: append([]string(nil), u.Columns...)})
	}
	for _, idx := range t.Indexes {
		c.Indexes = append(c.Indexes, Index{Name: idx.Name, Columns: append([]string(nil), idx.Columns...)})
	}
	return c
}

// Schema is an ordered, immutable set of declared tables
type Schema struct {
	tables []Table
}

// New builds a schema from table definitions. The definitions are copied.
func New(tables ...Table) *Schema {
	s := &Schema{}
	for _, t := range tables {
		s.tables = append(s.tables, t.clone())
	}
	return s
}

// Tables returns a copy of the declared tables in declaration order
func (s *Schema) Tables() []Table {
	out := make([]Table, len(s.tables))
	for i, t := range s.tables {
		out[i] = t.clone()
	}
	return out
}

// TableNames returns the declared table names in declaration order
func (s *Schema) TableNames() []string {
	names := make([]string, len(s.tables))
	for i, t := range s.tables {
		names[i] = t.Name
	}
	return names
}

// Table returns the named table definition
func (s *Schema) Table(name string) (Table, bool) {
	for _, t := range s.tables {
		if t.Name == name {
			return t.clone(), true
		}
	}
	return Table{}, false
}

// Has reports whether the table is declared
func (s *Schema) Has(name string) bool {
	_, ok := s.Table(name)
	return ok
}

// Len returns the number of declared tables
func (s *Schema) Len() int {
	return len(s.tables)
}

// WithTable returns a new schema with the table added, or replaced when a
// table of the same name is already declared.
func (s *Schema) WithTable(t Table) (*Schema, error) {
	next := &Schema{}
	replaced := false
	for _, existing := range s.tables {
		if existing.Name == t.Name {
			next.tables = append(next.tables, t.clone())
			replaced = true
			continue
		}
		next.tables = append(next.tables, existing.clone())
	}
	if !replaced {
		next.tables = append(next.tables, t.clone())
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

// WithColumn returns a new schema with the column appended to the table
func (s *Schema) WithColumn(table string, col Column) (*Schema, error) {
	t, ok := s.Table(table)
	if !ok {
		return nil, fmt.Errorf("table %s not found in declared schema: %w", table, util.ErrInvalidSchema)
	}
	if _, exists := t.Column(col.Name); exists {
		return nil, fmt.Errorf("column %s.%s already declared: %w", table, col.Name, util.ErrInvalidSchema)
	}
	t.Columns = append(t.Columns, col)
	return s.WithTable(t)
}

// Validate checks the schema is internally consistent: names are unique and
// the foreign-key graph is closed over declared tables and columns.
func (s *Schema) Validate() error {
	var problems []string
	tables := map[string]Table{}
	for _, t := range s.tables {
		if t.Name == "" {
			problems = append(problems, "table with empty name")
			continue
		}
		if !IsIdentifier(t.Name) {
			problems = append(problems, fmt.Sprintf("invalid table name %q", t.Name))
		}
		if _, dup := tables[t.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate table %s", t.Name))
		}
		tables[t.Name] = t
	}

	for _, t := range s.tables {
		cols := map[string]bool{}
		pkCount := 0
		for _, c := range t.Columns {
			if cols[c.Name] {
				problems = append(problems, fmt.Sprintf("duplicate column %s.%s", t.Name, c.Name))
			}
			cols[c.Name] = true
			if !IsIdentifier(c.Name) {
				problems = append(problems, fmt.Sprintf("invalid column name %s.%q", t.Name, c.Name))
			}
			if c.Type == "" {
				problems = append(problems, fmt.Sprintf("column %s.%s has no type", t.Name, c.Name))
			}
			if c.PrimaryKey {
				pkCount++
			}
			if c.AutoIncrement && (!c.PrimaryKey || NormalizeType(c.Type) != "INTEGER") {
				problems = append(problems, fmt.Sprintf("column %s.%s: AUTOINCREMENT requires INTEGER PRIMARY KEY", t.Name, c.Name))
			}
		}
		if pkCount > 1 {
			problems = append(problems, fmt.Sprintf("table %s declares %d inline primary keys", t.Name, pkCount))
		}
		for _, fk := range t.ForeignKeys {
			if !cols[fk.Column] {
				problems = append(problems, fmt.Sprintf("foreign key %s.%s: column not declared", t.Name, fk.Column))
			}
			target, ok := tables[fk.RefTable]
			if !ok {
				problems = append(problems, fmt.Sprintf("foreign key %s.%s references undeclared table %s", t.Name, fk.Column, fk.RefTable))
				continue
			}
			if _, ok := target.Column(fk.RefColumn); !ok {
				problems = append(problems, fmt.Sprintf("foreign key %s.%s references undeclared column %s", t.Name, fk.Column, fk.References()))
			}
		}
		for _, u := range t.Uniques {
			for _, c := range u.Columns {
				if !cols[c] {
					problems = append(problems, fmt.Sprintf("unique %s on %s: column %s not declared", u.Name, t.Name, c))
				}
			}
		}
		for _, idx := range t.Indexes {
			if !IsIdentifier(idx.Name) {
				problems = append(problems, fmt.Sprintf("invalid index name %q on %s", idx.Name, t.Name))
			}
			if len(idx.Columns) == 0 {
				problems = append(problems, fmt.Sprintf("index %s on %s has no columns", idx.Name, t.Name))
			}
			for _, c := range idx.Columns {
				if !cols[c] {
					problems = append(problems, fmt.Sprintf("index %s on %s: column %s not declared", idx.Name, t.Name, c))
				}
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(problems, "; "), util.ErrInvalidSchema)
	}
	return nil
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsIdentifier reports whether name can be used unquoted in generated DDL
func IsIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// NormalizeType upper-cases a type name and collapses internal whitespace
func NormalizeType(t string) string {
	return strings.Join(strings.Fields(strings.ToUpper(t)), " ")
}
