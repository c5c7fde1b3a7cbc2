package schema

import (
	"fmt"
	"strings"

	"github.com/franz/gym-league/internal/util"
)

// ColumnDefinition renders the inline definition of a column as used in
// CREATE TABLE
func ColumnDefinition(c Column) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString(" ")
	b.WriteString(c.Type)

	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
		if c.AutoIncrement {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	// NOT NULL is emitted for primary keys too. SQLite only implies it for
	// INTEGER PRIMARY KEY, and the inspector must read back what we declared.
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	if c.Check != "" {
		b.WriteString(" CHECK (")
		b.WriteString(c.Check)
		b.WriteString(")")
	}
	return b.String()
}

// CreateTableSQL renders a single CREATE TABLE statement for the definition,
// created under the given name (which may differ from t.Name for scratch
// tables). Foreign keys and unique constraints are emitted inline.
func CreateTableSQL(name string, t Table) string {
	var defs []string
	for _, c := range t.Columns {
		defs = append(defs, "  "+ColumnDefinition(c))
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, fmt.Sprintf("  FOREIGN KEY (%s) REFERENCES %s", fk.Column, fk.References()))
	}
	for _, u := range t.Uniques {
		defs = append(defs, fmt.Sprintf("  UNIQUE (%s)", strings.Join(u.Columns, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", name, strings.Join(defs, ",\n"))
}

// CreateIndexSQL renders an idempotent CREATE INDEX statement
func CreateIndexSQL(table string, idx Index) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idx.Name, table, strings.Join(idx.Columns, ", "))
}

// AddColumnSQL renders an ALTER TABLE ... ADD COLUMN statement.
//
// SQLite cannot add a primary-key column, and a NOT NULL column needs a
// default so existing rows have a value; both are rejected with
// util.ErrInvalidColumn.
func AddColumnSQL(table string, c Column) (string, error) {
	if c.PrimaryKey {
		return "", fmt.Errorf("cannot add primary key column %s.%s: %w", table, c.Name, util.ErrInvalidColumn)
	}
	if c.NotNull && c.Default == "" {
		return "", fmt.Errorf("cannot add NOT NULL column %s.%s without a default: %w", table, c.Name, util.ErrInvalidColumn)
	}

	sql := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, c.Name, c.Type)
	if c.NotNull {
		sql += " NOT NULL DEFAULT " + c.Default
	} else if c.Default != "" {
		sql += " DEFAULT " + c.Default
	}
	if c.Check != "" {
		sql += " CHECK (" + c.Check + ")"
	}
	return sql, nil
}
