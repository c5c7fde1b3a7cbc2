package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Kind tags the dynamic type held by a Value
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindReal
	KindText
	KindBlob
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	case KindBoolean:
		return "boolean"
	}
	return "unknown"
}

// Value is a single column value read from a row
type Value struct {
	Kind Kind
	Int  int64
	Real float64
	Text string
	Blob []byte
	Bool bool
}

// Null is the NULL value
var Null = Value{Kind: KindNull}

// Int returns an integer value
func Int(v int64) Value { return Value{Kind: KindInteger, Int: v} }

// Real returns a floating-point value
func Real(v float64) Value { return Value{Kind: KindReal, Real: v} }

// Text returns a text value
func Text(v string) Value { return Value{Kind: KindText, Text: v} }

// Blob returns a blob value
func Blob(v []byte) Value { return Value{Kind: KindBlob, Blob: append([]byte(nil), v...)} }

// Bool returns a boolean value
func Bool(v bool) Value { return Value{Kind: KindBoolean, Bool: v} }

// IsNull reports whether the value is NULL
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// Equal reports whether two values have the same kind and content
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInteger:
		return v.Int == o.Int
	case KindReal:
		return v.Real == o.Real
	case KindText:
		return v.Text == o.Text
	case KindBlob:
		return bytes.Equal(v.Blob, o.Blob)
	case KindBoolean:
		return v.Bool == o.Bool
	}
	return false
}

// Any converts the value to a driver argument
func (v Value) Any() any {
	switch v.Kind {
	case KindInteger:
		return v.Int
	case KindReal:
		return v.Real
	case KindText:
		return v.Text
	case KindBlob:
		return v.Blob
	case KindBoolean:
		return v.Bool
	}
	return nil
}

// MarshalJSON encodes the value as its plain JSON scalar
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindReal:
		return strconv.FormatFloat(v.Real, 'g', -1, 64)
	case KindText:
		return v.Text
	case KindBlob:
		return fmt.Sprintf("x'%X'", v.Blob)
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	}
	return "?"
}

// valueOf converts a scanned driver value
func valueOf(src any) (Value, error) {
	switch x := src.(type) {
	case nil:
		return Null, nil
	case int64:
		return Int(x), nil
	case float64:
		return Real(x), nil
	case string:
		return Text(x), nil
	case []byte:
		return Blob(x), nil
	case bool:
		return Bool(x), nil
	case time.Time:
		// The driver parses DATE/DATETIME columns; render them back in
		// SQLite's CURRENT_TIMESTAMP layout
		return Text(x.UTC().Format("2006-01-02 15:04:05")), nil
	}
	return Null, fmt.Errorf("unsupported column value of type %T", src)
}

// Row is one record keyed by column name
type Row map[string]Value

// Columns returns the row's column names in sorted order
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Project returns a row restricted to the given columns. Columns absent from
// r are omitted.
func (r Row) Project(cols []string) Row {
	out := make(Row, len(cols))
	for _, c := range cols {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

// Equal reports whether both rows hold equal values for the same columns
func (r Row) Equal(o Row) bool {
	if len(r) != len(o) {
		return false
	}
	for c, v := range r {
		ov, ok := o[c]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Rows reads up to limit rows of a declared or live table ordered by rowid.
// A limit <= 0 reads every row.
func (s *Store) Rows(ctx context.Context, table string, limit int) ([]Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY rowid", quoteIdent(table))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return readRows(ctx, s.db, query)
}

func readRows(ctx context.Context, q dbtx, query string, args ...any) ([]Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			v, err := valueOf(raw[i])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c, err)
			}
			row[c] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
