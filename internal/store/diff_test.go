package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/gym-league/internal/schema"
)

func liveOf(tables ...schema.Table) *LiveSchema {
	l := &LiveSchema{}
	for _, t := range tables {
		l.tables = append(l.tables, LiveTable{Table: t})
	}
	return l
}

func TestRequiresRebuild(t *testing.T) {
	tests := []struct {
		name     string
		live     schema.Column
		declared schema.Column
		want     bool
	}{
		{
			name:     "identical",
			live:     schema.Column{Name: "a", Type: "TEXT", NotNull: true},
			declared: schema.Column{Name: "a", Type: "TEXT", NotNull: true},
			want:     false,
		},
		{
			name:     "type case and spacing ignored",
			live:     schema.Column{Name: "a", Type: "varchar( 10 )"},
			declared: schema.Column{Name: "a", Type: "VARCHAR( 10 )"},
			want:     false,
		},
		{
			name:     "type changed",
			live:     schema.Column{Name: "a", Type: "INTEGER"},
			declared: schema.Column{Name: "a", Type: "TEXT"},
			want:     true,
		},
		{
			name:     "not null imposed",
			live:     schema.Column{Name: "a", Type: "TEXT"},
			declared: schema.Column{Name: "a", Type: "TEXT", NotNull: true},
			want:     true,
		},
		{
			name:     "not null relaxed",
			live:     schema.Column{Name: "a", Type: "TEXT", NotNull: true},
			declared: schema.Column{Name: "a", Type: "TEXT"},
			want:     false,
		},
		{
			name:     "primary key satisfies not null",
			live:     schema.Column{Name: "id", Type: "TEXT", PrimaryKey: true},
			declared: schema.Column{Name: "id", Type: "TEXT", PrimaryKey: true, NotNull: true},
			want:     false,
		},
		{
			name:     "primary key added",
			live:     schema.Column{Name: "id", Type: "TEXT"},
			declared: schema.Column{Name: "id", Type: "TEXT", PrimaryKey: true},
			want:     true,
		},
		{
			name:     "check added",
			live:     schema.Column{Name: "r", Type: "TEXT"},
			declared: schema.Column{Name: "r", Type: "TEXT", Check: "r IN ('a', 'b')"},
			want:     true,
		},
		{
			name:     "check whitespace ignored",
			live:     schema.Column{Name: "r", Type: "TEXT", Check: "r  in ('a',  'b')"},
			declared: schema.Column{Name: "r", Type: "TEXT", Check: "r IN ('a', 'b')"},
			want:     false,
		},
		{
			name:     "default changed",
			live:     schema.Column{Name: "n", Type: "INTEGER", Default: "1"},
			declared: schema.Column{Name: "n", Type: "INTEGER", Default: "0"},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequiresRebuild(tt.live, tt.declared))
		})
	}
}

func TestCompareColumn_ReportsDefaultDifference(t *testing.T) {
	reasons := compareColumn(
		schema.Column{Name: "n", Type: "INTEGER", Default: "1"},
		schema.Column{Name: "n", Type: "INTEGER", Default: "0"},
	)
	require.Len(t, reasons, 1)
	assert.Equal(t, "default 1, declared 0", reasons[0])

	assert.Empty(t, compareColumn(
		schema.Column{Name: "b", Type: "BOOLEAN", Default: "false"},
		schema.Column{Name: "b", Type: "BOOLEAN", Default: "FALSE"},
	))
	assert.NotEmpty(t, compareColumn(
		schema.Column{Name: "s", Type: "TEXT", Default: "'a'"},
		schema.Column{Name: "s", Type: "TEXT", Default: "'A'"},
	))
}

func TestDiff_States(t *testing.T) {
	parent := schema.Table{
		Name:    "parents",
		Columns: []schema.Column{{Name: "id", Type: "INTEGER", PrimaryKey: true}},
	}
	child := schema.Table{
		Name: "children",
		Columns: []schema.Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "parent_id", Type: "INTEGER", NotNull: true},
			{Name: "note", Type: "TEXT"},
		},
		ForeignKeys: []schema.ForeignKey{{Column: "parent_id", RefTable: "parents", RefColumn: "id"}},
		Indexes:     []schema.Index{{Name: "idx_children_parent", Columns: []string{"parent_id"}}},
	}
	extra := schema.Table{Name: "extras", Columns: []schema.Column{{Name: "id", Type: "INTEGER"}}}
	declared := schema.New(parent, child, extra)

	t.Run("compatible", func(t *testing.T) {
		liveChild := child
		liveChild.Indexes = append([]schema.Index(nil), child.Indexes...)
		delta := Diff(liveOf(parent, liveChild, extra), declared)
		assert.True(t, delta.InSync())
		assert.Empty(t, delta.Issues())
	})

	t.Run("missing and unused", func(t *testing.T) {
		legacy := schema.Table{Name: "legacy", Columns: []schema.Column{{Name: "x", Type: "TEXT"}}}
		delta := Diff(liveOf(parent, legacy), declared)

		td, ok := delta.Table("children")
		require.True(t, ok)
		assert.Equal(t, StateMissing, td.State)
		assert.Equal(t, []string{"legacy"}, delta.Unused)
		assert.False(t, delta.InSync())
	})

	t.Run("additive gap", func(t *testing.T) {
		liveChild := schema.Table{
			Name:        "children",
			Columns:     child.Columns[:2],
			ForeignKeys: child.ForeignKeys,
		}
		delta := Diff(liveOf(parent, liveChild, extra), declared)
		td, _ := delta.Table("children")
		assert.Equal(t, StateAdditiveGap, td.State)
		require.Len(t, td.MissingColumns, 1)
		assert.Equal(t, "note", td.MissingColumns[0].Name)
		require.Len(t, td.MissingIndexes, 1)
		assert.False(t, td.NeedsRebuild())
		assert.Empty(t, delta.Rebuild())
	})

	t.Run("missing foreign key is structural", func(t *testing.T) {
		liveChild := schema.Table{Name: "children", Columns: child.Columns, Indexes: child.Indexes}
		delta := Diff(liveOf(parent, liveChild, extra), declared)
		td, _ := delta.Table("children")
		assert.Equal(t, StateStructural, td.State)
		assert.True(t, td.NeedsRebuild())
		assert.Equal(t, []string{"children"}, delta.Rebuild())
	})

	t.Run("default only is structural without rebuild", func(t *testing.T) {
		liveExtra := schema.Table{Name: "extras", Columns: []schema.Column{{Name: "id", Type: "INTEGER", Default: "7"}}}
		delta := Diff(liveOf(parent, child, liveExtra), declared)
		td, _ := delta.Table("extras")
		assert.Equal(t, StateStructural, td.State)
		assert.False(t, td.NeedsRebuild())
		assert.Empty(t, delta.Rebuild())

		issues := tableIssues(td)
		require.Len(t, issues, 1)
		assert.Equal(t, IssueConstraint, issues[0].Kind)
		assert.False(t, issues[0].Rebuild)
	})
}

func TestDiff_UniqueColumnOrderIgnored(t *testing.T) {
	declared := schema.New(schema.Table{
		Name:    "pairs",
		Columns: []schema.Column{{Name: "a", Type: "TEXT"}, {Name: "b", Type: "TEXT"}},
		Uniques: []schema.Unique{{Name: "unique_ab", Columns: []string{"a", "b"}}},
	})
	live := schema.Table{
		Name:    "pairs",
		Columns: []schema.Column{{Name: "a", Type: "TEXT"}, {Name: "b", Type: "TEXT"}},
		Uniques: []schema.Unique{{Name: "sqlite_autoindex_pairs_1", Columns: []string{"b", "a"}}},
	}
	assert.True(t, Diff(liveOf(live), declared).InSync())
}

func TestRebuildOrder(t *testing.T) {
	declared := chainSchema()

	t.Run("dependencies first", func(t *testing.T) {
		order := RebuildOrder([]string{"c_items", "b_items", "a_items"}, declared)
		assert.Equal(t, []string{"a_items", "b_items", "c_items"}, order.Tables)
		assert.False(t, order.Cyclic)
	})

	t.Run("out of set dependencies ignored", func(t *testing.T) {
		order := RebuildOrder([]string{"c_items", "a_items"}, declared)
		assert.Equal(t, []string{"c_items", "a_items"}, order.Tables)
	})

	t.Run("duplicates collapsed", func(t *testing.T) {
		order := RebuildOrder([]string{"b_items", "a_items", "b_items"}, declared)
		assert.Equal(t, []string{"a_items", "b_items"}, order.Tables)
	})

	t.Run("league", func(t *testing.T) {
		league := schema.League()
		order := RebuildOrder(league.TableNames(), league)
		assert.Equal(t, []string{"guilds", "gym_channels", "trainers", "badges", "battle_logs", "gym_leaders"}, order.Tables)
	})

	t.Run("cycle", func(t *testing.T) {
		cyclic := schema.New(
			schema.Table{
				Name:        "eggs",
				Columns:     []schema.Column{{Name: "id", Type: "INTEGER", PrimaryKey: true}, {Name: "hen_id", Type: "INTEGER"}},
				ForeignKeys: []schema.ForeignKey{{Column: "hen_id", RefTable: "hens", RefColumn: "id"}},
			},
			schema.Table{
				Name:        "hens",
				Columns:     []schema.Column{{Name: "id", Type: "INTEGER", PrimaryKey: true}, {Name: "egg_id", Type: "INTEGER"}},
				ForeignKeys: []schema.ForeignKey{{Column: "egg_id", RefTable: "eggs", RefColumn: "id"}},
			},
			schema.Table{Name: "coops", Columns: []schema.Column{{Name: "id", Type: "INTEGER", PrimaryKey: true}}},
		)
		order := RebuildOrder([]string{"eggs", "hens", "coops"}, cyclic)
		assert.True(t, order.Cyclic)
		assert.Equal(t, []string{"coops", "eggs", "hens"}, order.Tables)
	})
}

func TestParseColumnExtras(t *testing.T) {
	ddl := `CREATE TABLE "battle_logs" (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		"result" TEXT NOT NULL CHECK (result IN ('won', 'lost')),
		note TEXT DEFAULT 'a, (tricky) CHECK (x)',
		score INTEGER CHECK (score >= 0 AND (score < 100)),
		[weird name] TEXT,
		CONSTRAINT ok CHECK (score > -1),
		FOREIGN KEY (id) REFERENCES other(id)
	)`
	extras := parseColumnExtras(ddl)

	assert.True(t, extras["id"].autoIncrement)
	assert.Equal(t, "result IN ('won', 'lost')", extras["result"].check)
	assert.Empty(t, extras["note"].check)
	assert.Equal(t, "score >= 0 AND (score < 100)", extras["score"].check)
	assert.False(t, extras["score"].autoIncrement)
	assert.Contains(t, extras, "weird name")
	assert.NotContains(t, extras, "constraint")
	assert.NotContains(t, extras, "foreign")
}

func TestMaskQuoted(t *testing.T) {
	in := `a 'x,(y)' "q""r" b`
	out := maskQuoted(in)
	assert.Len(t, out, len(in))
	assert.NotContains(t, out, ",")
	assert.NotContains(t, out, "(")
	assert.Equal(t, "a '", out[:3])
	assert.Equal(t, " b", out[len(out)-2:])
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"guilds"`, quoteIdent("guilds"))
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
}
