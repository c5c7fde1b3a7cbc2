package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/franz/gym-league/internal/schema"
	"github.com/franz/gym-league/internal/util"
)

// LiveTable is a table as found in the database. It reuses the declared
// shape so the two can be compared field by field.
type LiveTable struct {
	schema.Table
	SQL string // CREATE TABLE text from sqlite_master
}

// LiveSchema is a point-in-time snapshot of the database schema. It is
// rebuilt on every pass and never persisted.
type LiveSchema struct {
	tables []LiveTable
}

// Tables returns the live tables ordered by name
func (l *LiveSchema) Tables() []LiveTable {
	return append([]LiveTable(nil), l.tables...)
}

// Names returns the live table names ordered by name
func (l *LiveSchema) Names() []string {
	names := make([]string, len(l.tables))
	for i, t := range l.tables {
		names[i] = t.Name
	}
	return names
}

// Table returns the named live table
func (l *LiveSchema) Table(name string) (LiveTable, bool) {
	for _, t := range l.tables {
		if t.Name == name {
			return t, true
		}
	}
	return LiveTable{}, false
}

// Has reports whether the table exists
func (l *LiveSchema) Has(name string) bool {
	_, ok := l.Table(name)
	return ok
}

// Inspect reads the live schema. It never modifies the database.
func (s *Store) Inspect(ctx context.Context) (*LiveSchema, error) {
	return inspect(ctx, s.db)
}

func inspect(ctx context.Context, q dbtx) (*LiveSchema, error) {
	type master struct{ name, sql string }

	rows, err := q.QueryContext(ctx, `
		SELECT name, COALESCE(sql, '') FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w: %w", util.ErrConnectivity, err)
	}
	var found []master
	for rows.Next() {
		var m master
		if err := rows.Scan(&m.name, &m.sql); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table: %w: %w", util.ErrConnectivity, err)
		}
		found = append(found, m)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w: %w", util.ErrConnectivity, err)
	}

	live := &LiveSchema{}
	for _, m := range found {
		t, err := inspectTable(ctx, q, m.name, m.sql)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect table %s: %w: %w", m.name, util.ErrConnectivity, err)
		}
		live.tables = append(live.tables, t)
	}
	return live, nil
}

// inspectTable reads one table. Every result set is drained and closed
// before the next query: the pool holds a single connection.
func inspectTable(ctx context.Context, q dbtx, name, createSQL string) (LiveTable, error) {
	t := LiveTable{SQL: createSQL}
	t.Name = name

	cols, err := tableColumns(ctx, q, name)
	if err != nil {
		return t, err
	}
	extras := parseColumnExtras(createSQL)
	for i := range cols {
		if ex, ok := extras[strings.ToLower(cols[i].Name)]; ok {
			cols[i].Check = ex.check
			cols[i].AutoIncrement = ex.autoIncrement && cols[i].PrimaryKey
		}
	}
	t.Columns = cols

	if t.ForeignKeys, err = tableForeignKeys(ctx, q, name); err != nil {
		return t, err
	}
	if t.Uniques, t.Indexes, err = tableIndexes(ctx, q, name); err != nil {
		return t, err
	}
	return t, nil
}

// tableColumns reads PRAGMA table_info
func tableColumns(ctx context.Context, q dbtx, table string) ([]schema.Column, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			cid     int
			c       schema.Column
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &c.Name, &c.Type, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		c.NotNull = notNull != 0
		c.PrimaryKey = pk > 0
		c.Default = dflt.String
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// tableColumnNames returns live column names in table order
func tableColumnNames(ctx context.Context, q dbtx, table string) ([]string, error) {
	cols, err := tableColumns(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// tableForeignKeys reads PRAGMA foreign_key_list
func tableForeignKeys(ctx context.Context, q dbtx, table string) ([]schema.ForeignKey, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []schema.ForeignKey
	for rows.Next() {
		var (
			id, seq                   int
			fk                        schema.ForeignKey
			to                        sql.NullString
			onUpdate, onDelete, match string
		)
		if err := rows.Scan(&id, &seq, &fk.RefTable, &fk.Column, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		fk.RefColumn = to.String
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// tableIndexes reads PRAGMA index_list and index_info. Constraint indexes
// (origin "u") become uniques; created indexes (origin "c") become indexes,
// and also count as uniques when declared UNIQUE.
func tableIndexes(ctx context.Context, q dbtx, table string) ([]schema.Unique, []schema.Index, error) {
	type entry struct {
		name   string
		unique bool
		origin string
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, nil, err
	}
	var entries []entry
	for rows.Next() {
		var (
			seq     int
			e       entry
			unique  int
			partial int
		)
		if err := rows.Scan(&seq, &e.name, &unique, &e.origin, &partial); err != nil {
			rows.Close()
			return nil, nil, err
		}
		e.unique = unique != 0
		entries = append(entries, e)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, nil, err
	}
	// index_list is most-recent first
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	var uniques []schema.Unique
	var indexes []schema.Index
	for _, e := range entries {
		if e.origin == "pk" {
			continue
		}
		cols, err := indexColumns(ctx, q, e.name)
		if err != nil {
			return nil, nil, err
		}
		if e.unique {
			uniques = append(uniques, schema.Unique{Name: e.name, Columns: cols})
		}
		if e.origin == "c" {
			indexes = append(indexes, schema.Index{Name: e.name, Columns: cols})
		}
	}
	return uniques, indexes, nil
}

func indexColumns(ctx context.Context, q dbtx, index string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteIdent(index)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno, cid int
			name       sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}

type columnExtras struct {
	check         string
	autoIncrement bool
}

var (
	checkPattern         = regexp.MustCompile(`(?i)\bCHECK\s*\(`)
	autoIncrementPattern = regexp.MustCompile(`(?i)\bAUTOINCREMENT\b`)
	constraintKeywords   = map[string]bool{
		"CONSTRAINT": true, "PRIMARY": true, "FOREIGN": true, "UNIQUE": true, "CHECK": true,
	}
)

// parseColumnExtras extracts per-column CHECK expressions and AUTOINCREMENT
// from a CREATE TABLE statement, keyed by lower-cased column name. PRAGMA
// table_info reports neither.
func parseColumnExtras(createSQL string) map[string]columnExtras {
	out := map[string]columnExtras{}
	masked := maskQuoted(createSQL)
	open := strings.Index(masked, "(")
	end := strings.LastIndex(masked, ")")
	if open < 0 || end <= open {
		return out
	}

	for _, span := range splitTopLevel(masked, open+1, end) {
		def := createSQL[span[0]:span[1]]
		mdef := masked[span[0]:span[1]]
		name, rest := leadingIdent(def)
		if name == "" || constraintKeywords[strings.ToUpper(name)] {
			continue
		}
		mrest := mdef[len(def)-len(rest):]

		var ex columnExtras
		if loc := checkPattern.FindStringIndex(mrest); loc != nil {
			if close := matchParen(mrest, loc[1]-1); close > 0 {
				ex.check = strings.TrimSpace(rest[loc[1]:close])
			}
		}
		ex.autoIncrement = autoIncrementPattern.MatchString(mrest)
		out[strings.ToLower(name)] = ex
	}
	return out
}

// maskQuoted blanks the contents of quoted strings and identifiers so that
// keyword and parenthesis scans only see SQL structure. The result has the
// same length as s.
func maskQuoted(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		var closer byte
		switch b[i] {
		case '\'', '"', '`':
			closer = b[i]
		case '[':
			closer = ']'
		default:
			continue
		}
		j := i + 1
		for j < len(b) {
			if b[j] == closer {
				// doubled quote is an escaped quote
				if closer != ']' && j+1 < len(b) && b[j+1] == closer {
					b[j], b[j+1] = ' ', ' '
					j += 2
					continue
				}
				break
			}
			b[j] = ' '
			j++
		}
		i = j
	}
	return string(b)
}

// splitTopLevel returns the [start,end) spans of comma-separated items in
// masked[from:to] at parenthesis depth zero
func splitTopLevel(masked string, from, to int) [][2]int {
	var spans [][2]int
	depth := 0
	start := from
	for i := from; i < to; i++ {
		switch masked[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				spans = append(spans, [2]int{start, i})
				start = i + 1
			}
		}
	}
	return append(spans, [2]int{start, to})
}

// matchParen returns the index of the parenthesis closing the one at open,
// or -1
func matchParen(masked string, open int) int {
	depth := 0
	for i := open; i < len(masked); i++ {
		switch masked[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// leadingIdent splits a column definition into its (unquoted) name and the
// remainder
func leadingIdent(def string) (string, string) {
	def = strings.TrimLeft(def, " \t\r\n")
	if def == "" {
		return "", ""
	}
	var closer byte
	switch def[0] {
	case '"', '`', '\'':
		closer = def[0]
	case '[':
		closer = ']'
	}
	if closer != 0 {
		end := strings.IndexByte(def[1:], closer)
		if end < 0 {
			return "", def
		}
		return def[1 : end+1], def[end+2:]
	}
	end := strings.IndexAny(def, " \t\r\n(")
	if end < 0 {
		return def, ""
	}
	return def[:end], def[end:]
}

// quoteIdent quotes an identifier read from the database
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
