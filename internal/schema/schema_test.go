package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/gym-league/internal/util"
)

func TestLeague_IsValid(t *testing.T) {
	s := League()
	require.NoError(t, s.Validate())
	assert.Equal(t, []string{"guilds", "gym_channels", "trainers", "badges", "battle_logs", "gym_leaders"}, s.TableNames())

	leaders, ok := s.Table("gym_leaders")
	require.True(t, ok)
	require.Len(t, leaders.Uniques, 1)
	assert.Equal(t, []string{"user_id", "channel_id"}, leaders.Uniques[0].Columns)
	assert.Equal(t, []string{"guilds", "gym_channels"}, leaders.Dependencies())
}

func TestWithColumn_LeavesOriginalUntouched(t *testing.T) {
	base := League()
	next, err := base.WithColumn("trainers", Column{Name: "region", Type: "TEXT", Default: "'kanto'"})
	require.NoError(t, err)

	orig, _ := base.Table("trainers")
	_, has := orig.Column("region")
	assert.False(t, has)

	added, _ := next.Table("trainers")
	col, has := added.Column("region")
	require.True(t, has)
	assert.Equal(t, "'kanto'", col.Default)
	assert.Equal(t, base.Len(), next.Len())

	_, err = next.WithColumn("trainers", Column{Name: "region", Type: "TEXT"})
	assert.ErrorIs(t, err, util.ErrInvalidSchema)
	_, err = base.WithColumn("pokedex", Column{Name: "x", Type: "TEXT"})
	assert.ErrorIs(t, err, util.ErrInvalidSchema)
}

func TestTables_ReturnsCopies(t *testing.T) {
	s := League()
	tables := s.Tables()
	tables[0].Columns[0].Name = "mutated"
	tables[0].Indexes = nil

	g, _ := s.Table("guilds")
	assert.Equal(t, "id", g.Columns[0].Name)
}

func TestWithTable(t *testing.T) {
	s := New(Table{Name: "a", Columns: []Column{{Name: "id", Type: "TEXT", PrimaryKey: true}}})

	next, err := s.WithTable(Table{
		Name:        "b",
		Columns:     []Column{{Name: "id", Type: "TEXT", PrimaryKey: true}, {Name: "a_id", Type: "TEXT"}},
		ForeignKeys: []ForeignKey{{Column: "a_id", RefTable: "a", RefColumn: "id"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, next.TableNames())
	assert.Equal(t, 1, s.Len())

	_, err = s.WithTable(Table{
		Name:        "c",
		Columns:     []Column{{Name: "id", Type: "TEXT"}},
		ForeignKeys: []ForeignKey{{Column: "id", RefTable: "missing", RefColumn: "id"}},
	})
	assert.ErrorIs(t, err, util.ErrInvalidSchema)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		want  string
	}{
		{"bad name", Table{Name: "bad-name", Columns: []Column{{Name: "id", Type: "TEXT"}}}, "invalid table name"},
		{"duplicate column", Table{Name: "t", Columns: []Column{{Name: "id", Type: "TEXT"}, {Name: "id", Type: "TEXT"}}}, "duplicate column"},
		{"no type", Table{Name: "t", Columns: []Column{{Name: "id"}}}, "has no type"},
		{"autoincrement text", Table{Name: "t", Columns: []Column{{Name: "id", Type: "TEXT", PrimaryKey: true, AutoIncrement: true}}}, "AUTOINCREMENT"},
		{"unique column", Table{Name: "t", Columns: []Column{{Name: "id", Type: "TEXT"}}, Uniques: []Unique{{Name: "u", Columns: []string{"x"}}}}, "column x not declared"},
		{"empty index", Table{Name: "t", Columns: []Column{{Name: "id", Type: "TEXT"}}, Indexes: []Index{{Name: "idx_t"}}}, "has no columns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.table).Validate()
			require.ErrorIs(t, err, util.ErrInvalidSchema)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, "VARCHAR (20)", NormalizeType("  varchar   (20) "))
	assert.Equal(t, "INTEGER", NormalizeType("integer"))
}

func TestAddColumnSQL(t *testing.T) {
	sql, err := AddColumnSQL("trainers", Column{Name: "total_badges", Type: "INTEGER", NotNull: true, Default: "0"})
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE trainers ADD COLUMN total_badges INTEGER NOT NULL DEFAULT 0", sql)

	sql, err = AddColumnSQL("trainers", Column{Name: "nick", Type: "TEXT"})
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE trainers ADD COLUMN nick TEXT", sql)

	_, err = AddColumnSQL("trainers", Column{Name: "rank", Type: "INTEGER", NotNull: true})
	assert.ErrorIs(t, err, util.ErrInvalidColumn)
	_, err = AddColumnSQL("trainers", Column{Name: "pk", Type: "INTEGER", PrimaryKey: true})
	assert.ErrorIs(t, err, util.ErrInvalidColumn)
}

func TestCreateTableSQL(t *testing.T) {
	tbl := Table{
		Name: "badges",
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true},
			{Name: "trainer_id", Type: "TEXT", NotNull: true},
			{Name: "result", Type: "TEXT", Check: "result IN ('won', 'lost')"},
		},
		ForeignKeys: []ForeignKey{{Column: "trainer_id", RefTable: "trainers", RefColumn: "id"}},
		Uniques:     []Unique{{Name: "u", Columns: []string{"trainer_id", "result"}}},
	}
	got := CreateTableSQL("badges__rebuild_x", tbl)
	assert.Equal(t, `CREATE TABLE badges__rebuild_x (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  trainer_id TEXT NOT NULL,
  result TEXT CHECK (result IN ('won', 'lost')),
  FOREIGN KEY (trainer_id) REFERENCES trainers(id),
  UNIQUE (trainer_id, result)
)`, got)

	assert.Equal(t, "CREATE INDEX IF NOT EXISTS idx_b ON badges (trainer_id)", CreateIndexSQL("badges", Index{Name: "idx_b", Columns: []string{"trainer_id"}}))
}
