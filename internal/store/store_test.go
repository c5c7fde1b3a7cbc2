package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/gym-league/internal/report"
	"github.com/franz/gym-league/internal/schema"
	"github.com/franz/gym-league/internal/util"
)

func testDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "gym.db")
}

// setupTestStore opens a fresh league database
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), testDBPath(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// execRaw runs statements on a plain connection with foreign keys off,
// bypassing the store
func execRaw(t *testing.T, path string, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA foreign_keys = OFF")
	require.NoError(t, err)
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

// createLeague creates the declared league schema at path and closes it
func createLeague(t *testing.T, path string) {
	t.Helper()
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func countRows(t *testing.T, s *Store, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB().QueryRow(query, args...).Scan(&n))
	return n
}

func objectExists(t *testing.T, s *Store, kind, name string) bool {
	t.Helper()
	return countRows(t, s, "SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name) == 1
}

func TestOpen_FreshInstallCreatesLeagueTables(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, name := range schema.League().TableNames() {
		assert.True(t, objectExists(t, s, "table", name), "table %s", name)
	}
	for _, tbl := range schema.League().Tables() {
		for _, idx := range tbl.Indexes {
			assert.True(t, objectExists(t, s, "index", idx.Name), "index %s", idx.Name)
		}
	}

	live, err := s.Inspect(ctx)
	require.NoError(t, err)
	assert.Len(t, live.Names(), 6)

	issues, err := s.ValidateSchema(ctx)
	require.NoError(t, err)
	assert.Empty(t, issues)

	assert.Equal(t, PhaseReady, s.Phase())
	on, err := s.ForeignKeysEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, on)
	assert.NoError(t, s.CheckIntegrity(ctx))
}

func TestReconcile_Idempotent(t *testing.T) {
	path := testDBPath(t)
	ctx := context.Background()
	createLeague(t, path)

	s, err := OpenWithOptions(ctx, path, &Options{AutoRecreate: true, AutoCleanup: true})
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 2; i++ {
		res, err := s.Reconcile(ctx)
		require.NoError(t, err)
		assert.False(t, res.Changed(), "pass %d changed the schema: %+v", i, res)
		assert.Empty(t, res.Unresolved)
	}

	live, err := s.Inspect(ctx)
	require.NoError(t, err)
	assert.True(t, Diff(live, s.Schema()).InSync())
}

func TestReconcile_AddsMissingColumnWithDefault(t *testing.T) {
	path := testDBPath(t)
	ctx := context.Background()
	createLeague(t, path)

	execRaw(t, path,
		"DROP TABLE trainers",
		`CREATE TABLE trainers (
			id TEXT PRIMARY KEY,
			guild_id TEXT NOT NULL,
			username TEXT NOT NULL,
			display_name TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (guild_id) REFERENCES guilds(id)
		)`,
		"INSERT INTO guilds (id, name) VALUES ('g1', 'Pallet')",
		"INSERT INTO trainers (id, guild_id, username) VALUES ('t1', 'g1', 'ash')",
		"INSERT INTO trainers (id, guild_id, username) VALUES ('t2', 'g1', 'misty')",
	)

	s, err := OpenWithOptions(ctx, path, &Options{NoReconcile: true})
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Contains(t, res.AddedColumns, "trainers.total_badges")
	assert.Contains(t, res.CreatedIndexes, "idx_trainers_total_badges")
	assert.Empty(t, res.Rebuilt)

	for _, id := range []string{"t1", "t2"} {
		tr, err := s.GetTrainer(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, tr)
		assert.Equal(t, 0, tr.TotalBadges)
	}
	assert.Equal(t, 2, countRows(t, s, "SELECT COUNT(*) FROM trainers WHERE total_badges = 0"))

	issues, err := s.ValidateSchema(ctx)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestReconcile_StructuralWithoutRebuildStillAddsColumns(t *testing.T) {
	path := testDBPath(t)
	ctx := context.Background()
	createLeague(t, path)

	execRaw(t, path,
		"DROP TABLE trainers",
		`CREATE TABLE trainers (
			id TEXT PRIMARY KEY,
			guild_id TEXT NOT NULL,
			username TEXT NOT NULL,
			total_badges INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (guild_id) REFERENCES guilds(id)
		)`,
		"INSERT INTO guilds (id, name) VALUES ('g1', 'Pallet')",
		"INSERT INTO trainers (id, guild_id, username) VALUES ('t1', 'g1', 'ash')",
	)

	s, err := OpenWithOptions(ctx, path, &Options{NoReconcile: true, AutoRecreate: true})
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Rebuilt)
	assert.Equal(t, []string{"trainers.display_name"}, res.AddedColumns)
	assert.ElementsMatch(t, []string{"idx_trainers_guild_id", "idx_trainers_total_badges"}, res.CreatedIndexes)
	require.Len(t, res.Unresolved, 1)
	assert.Equal(t, IssueConstraint, res.Unresolved[0].Kind)
	assert.Equal(t, "total_badges", res.Unresolved[0].Column)
	assert.Contains(t, res.Unresolved[0].Message, "default 1, declared 0")

	require.NoError(t, s.AddTrainer(ctx, "t2", "g1", "misty", "Misty"))
	tr, err := s.GetTrainer(ctx, "t2")
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, "Misty", tr.DisplayName)

	again, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, again.Changed())
	assert.Len(t, again.Unresolved, 1)
}

const legacyGymLeaders = `CREATE TABLE gym_leaders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	guild_id TEXT NOT NULL,
	username TEXT NOT NULL,
	display_name TEXT,
	added_by TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (guild_id) REFERENCES guilds(id),
	FOREIGN KEY (channel_id) REFERENCES gym_channels(id)
)`

func seedLegacyGymLeaders(t *testing.T, path string) {
	t.Helper()
	createLeague(t, path)
	execRaw(t, path,
		"DROP TABLE gym_leaders",
		legacyGymLeaders,
		"INSERT INTO guilds (id, name) VALUES ('g1', 'Pallet')",
		"INSERT INTO gym_channels (id, guild_id, name, type) VALUES ('c1', 'g1', 'fire-gym', 'fire')",
		"INSERT INTO gym_channels (id, guild_id, name, type) VALUES ('c2', 'g1', 'water-gym', 'water')",
		"INSERT INTO gym_leaders (user_id, channel_id, guild_id, username) VALUES ('u1', 'c1', 'g1', 'blaine')",
		"INSERT INTO gym_leaders (user_id, channel_id, guild_id, username) VALUES ('u2', 'c1', 'g1', 'flannery')",
		"INSERT INTO gym_leaders (user_id, channel_id, guild_id, username, display_name) VALUES ('u3', 'c2', 'g1', 'misty', 'Misty')",
		"INSERT INTO gym_leaders (user_id, channel_id, guild_id, username) VALUES ('u1', 'c2', 'g1', 'blaine')",
		"INSERT INTO gym_leaders (user_id, channel_id, guild_id, username, added_by) VALUES ('u4', 'c2', 'g1', 'wallace', 'u3')",
	)
}

func TestReconcile_AddsUniqueConstraintByRebuild(t *testing.T) {
	path := testDBPath(t)
	ctx := context.Background()
	seedLegacyGymLeaders(t, path)

	before, err := OpenWithOptions(ctx, path, &Options{NoReconcile: true})
	require.NoError(t, err)
	beforeRows, err := before.Rows(ctx, "gym_leaders", 0)
	require.NoError(t, err)
	require.NoError(t, before.Close())
	require.Len(t, beforeRows, 5)

	s, err := OpenWithOptions(ctx, path, &Options{AutoRecreate: true})
	require.NoError(t, err)
	defer s.Close()

	afterRows, err := s.Rows(ctx, "gym_leaders", 0)
	require.NoError(t, err)
	require.Len(t, afterRows, 5)
	for i := range beforeRows {
		assert.True(t, beforeRows[i].Equal(afterRows[i]), "row %d: %v != %v", i, beforeRows[i], afterRows[i])
	}

	_, err = s.DB().Exec("INSERT INTO gym_leaders (user_id, channel_id, guild_id, username) VALUES ('u1', 'c1', 'g1', 'blaine')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE constraint failed")

	assert.True(t, objectExists(t, s, "index", "idx_gym_leaders_user_id"))
	assert.Equal(t, 0, countRows(t, s, "SELECT COUNT(*) FROM sqlite_master WHERE name LIKE '%__rebuild_%'"))

	issues, err := s.ValidateSchema(ctx)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestReconcile_StructuralMismatchReportedWithoutAutoRecreate(t *testing.T) {
	path := testDBPath(t)
	ctx := context.Background()
	seedLegacyGymLeaders(t, path)

	s, err := OpenWithOptions(ctx, path, &Options{NoReconcile: true})
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Rebuilt)

	var kinds []IssueKind
	for _, issue := range res.Unresolved {
		assert.Equal(t, "gym_leaders", issue.Table)
		kinds = append(kinds, issue.Kind)
	}
	assert.Contains(t, kinds, IssueMissingUnique)
	assert.Contains(t, kinds, IssueMissingIndex)

	// Additive gaps on a structurally mismatched table are left alone
	assert.False(t, objectExists(t, s, "index", "idx_gym_leaders_user_id"))

	_, err = s.DB().Exec("INSERT INTO gym_leaders (user_id, channel_id, guild_id, username) VALUES ('u1', 'c1', 'g1', 'blaine')")
	assert.NoError(t, err)
}

func TestReconcile_RebuildPreservesDataOnCheckChange(t *testing.T) {
	path := testDBPath(t)
	ctx := context.Background()
	createLeague(t, path)
	execRaw(t, path,
		"DROP TABLE battle_logs",
		`CREATE TABLE battle_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			trainer_id TEXT NOT NULL,
			gym_type TEXT NOT NULL,
			result TEXT NOT NULL,
			gym_leader_id TEXT,
			battle_date DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (guild_id) REFERENCES guilds(id),
			FOREIGN KEY (trainer_id) REFERENCES trainers(id)
		)`,
		"INSERT INTO guilds (id, name) VALUES ('g1', 'Pallet')",
		"INSERT INTO trainers (id, guild_id, username) VALUES ('t1', 'g1', 'ash')",
		"INSERT INTO battle_logs (guild_id, trainer_id, gym_type, result, gym_leader_id, battle_date) VALUES ('g1', 't1', 'fire', 'won', 'u1', '2024-01-02 03:04:05')",
		"INSERT INTO battle_logs (guild_id, trainer_id, gym_type, result) VALUES ('g1', 't1', 'water', 'lost')",
	)

	s, err := OpenWithOptions(ctx, path, &Options{AutoRecreate: true, NoReconcile: true})
	require.NoError(t, err)
	defer s.Close()

	before, err := s.Rows(ctx, "battle_logs", 0)
	require.NoError(t, err)

	res, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"battle_logs"}, res.Rebuilt)

	after, err := s.Rows(ctx, "battle_logs", 0)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.True(t, before[i].Equal(after[i]), "row %d", i)
	}

	_, err = s.DB().Exec("INSERT INTO battle_logs (guild_id, trainer_id, gym_type, result) VALUES ('g1', 't1', 'fire', 'draw')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHECK constraint failed")
}

func chainSchema() *schema.Schema {
	return schema.New(
		schema.Table{
			Name: "c_items",
			Columns: []schema.Column{
				{Name: "id", Type: "INTEGER", PrimaryKey: true},
				{Name: "b_id", Type: "INTEGER", NotNull: true},
				{Name: "label", Type: "TEXT"},
			},
			ForeignKeys: []schema.ForeignKey{{Column: "b_id", RefTable: "b_items", RefColumn: "id"}},
		},
		schema.Table{
			Name: "b_items",
			Columns: []schema.Column{
				{Name: "id", Type: "INTEGER", PrimaryKey: true},
				{Name: "a_id", Type: "INTEGER", NotNull: true},
				{Name: "label", Type: "TEXT"},
			},
			ForeignKeys: []schema.ForeignKey{{Column: "a_id", RefTable: "a_items", RefColumn: "id"}},
		},
		schema.Table{
			Name: "a_items",
			Columns: []schema.Column{
				{Name: "id", Type: "INTEGER", PrimaryKey: true},
				{Name: "label", Type: "TEXT"},
			},
		},
	)
}

func TestReconcile_RebuildsInDependencyOrder(t *testing.T) {
	path := testDBPath(t)
	ctx := context.Background()
	execRaw(t, path,
		"CREATE TABLE a_items (id INTEGER PRIMARY KEY, label INTEGER)",
		"CREATE TABLE b_items (id INTEGER PRIMARY KEY, a_id INTEGER NOT NULL, label INTEGER, FOREIGN KEY (a_id) REFERENCES a_items(id))",
		"CREATE TABLE c_items (id INTEGER PRIMARY KEY, b_id INTEGER NOT NULL, label INTEGER, FOREIGN KEY (b_id) REFERENCES b_items(id))",
		"INSERT INTO a_items (id, label) VALUES (1, 'alpha')",
		"INSERT INTO b_items (id, a_id, label) VALUES (10, 1, 'beta')",
		"INSERT INTO c_items (id, b_id, label) VALUES (100, 10, 'gamma')",
	)

	s, err := OpenWithOptions(ctx, path, &Options{Schema: chainSchema(), AutoRecreate: true, NoReconcile: true})
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, res.Rebuilt, 3)
	assert.False(t, res.Cyclic)

	pos := map[string]int{}
	for i, name := range res.Rebuilt {
		pos[name] = i
	}
	assert.Less(t, pos["a_items"], pos["b_items"])
	assert.Less(t, pos["b_items"], pos["c_items"])

	assert.Equal(t, 1, countRows(t, s, "SELECT COUNT(*) FROM c_items WHERE b_id = 10 AND label = 'gamma'"))
	violations, err := s.ForeignKeyViolations(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestRebuild_ForeignKeysReenabledAfterFailure(t *testing.T) {
	path := testDBPath(t)
	ctx := context.Background()
	createLeague(t, path)
	execRaw(t, path,
		"DROP TABLE battle_logs",
		`CREATE TABLE battle_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			trainer_id TEXT NOT NULL,
			gym_type TEXT NOT NULL,
			result TEXT NOT NULL,
			gym_leader_id TEXT,
			battle_date DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (guild_id) REFERENCES guilds(id),
			FOREIGN KEY (trainer_id) REFERENCES trainers(id)
		)`,
		"INSERT INTO guilds (id, name) VALUES ('g1', 'Pallet')",
		"INSERT INTO trainers (id, guild_id, username) VALUES ('t1', 'g1', 'ash')",
		// violates the declared check, so copying into the scratch table fails
		"INSERT INTO battle_logs (guild_id, trainer_id, gym_type, result) VALUES ('g1', 't1', 'fire', 'draw')",
	)

	s, err := OpenWithOptions(ctx, path, &Options{AutoRecreate: true, NoReconcile: true})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Reconcile(ctx)
	require.Error(t, err)
	assert.False(t, IsIntegrityError(err))

	on, err := s.ForeignKeysEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	_, err = s.DB().Exec("INSERT INTO battle_logs (guild_id, trainer_id, gym_type, result) VALUES ('g1', 'nobody', 'fire', 'won')")
	require.Error(t, err)
	assert.True(t, IsIntegrityError(err))

	assert.Equal(t, 0, countRows(t, s, "SELECT COUNT(*) FROM sqlite_master WHERE name LIKE '%__rebuild_%'"))
	assert.Equal(t, 1, countRows(t, s, "SELECT COUNT(*) FROM battle_logs WHERE result = 'draw'"))
}

func TestReconcile_RejectsNotNullColumnWithoutDefault(t *testing.T) {
	path := testDBPath(t)
	ctx := context.Background()
	createLeague(t, path)

	declared, err := schema.League().WithColumn("trainers", schema.Column{Name: "nickname", Type: "TEXT", NotNull: true})
	require.NoError(t, err)

	s, err := OpenWithOptions(ctx, path, &Options{Schema: declared, NoReconcile: true})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Reconcile(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrInvalidColumn))

	cols, err := tableColumnNames(ctx, s.DB(), "trainers")
	require.NoError(t, err)
	assert.NotContains(t, cols, "nickname")
}

func TestReconcile_UnusedTables(t *testing.T) {
	path := testDBPath(t)
	ctx := context.Background()
	createLeague(t, path)
	execRaw(t, path, "CREATE TABLE old_stats (id INTEGER PRIMARY KEY, total INTEGER)")

	s, err := OpenWithOptions(ctx, path, &Options{NoReconcile: true})
	require.NoError(t, err)
	res, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"old_stats"}, res.Unused)
	assert.True(t, objectExists(t, s, "table", "old_stats"))
	require.NoError(t, s.Close())

	s, err = OpenWithOptions(ctx, path, &Options{AutoCleanup: true, NoReconcile: true})
	require.NoError(t, err)
	defer s.Close()
	res, err = s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"old_stats"}, res.Dropped)
	assert.False(t, objectExists(t, s, "table", "old_stats"))
}

const legacyBadges = `CREATE TABLE badges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trainer_id TEXT NOT NULL,
	gym_type TEXT,
	gym_name TEXT NOT NULL,
	badge_image TEXT,
	earned_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	awarded_by TEXT,
	FOREIGN KEY (trainer_id) REFERENCES trainers(id)
)`

func seedOrphanBadges(t *testing.T, path string) {
	t.Helper()
	createLeague(t, path)
	execRaw(t, path,
		"DROP TABLE badges",
		legacyBadges,
		"INSERT INTO guilds (id, name) VALUES ('g1', 'Pallet')",
		"INSERT INTO trainers (id, guild_id, username) VALUES ('t1', 'g1', 'ash')",
		"INSERT INTO badges (trainer_id, gym_type, gym_name) VALUES ('t1', 'fire', 'Blaze Gym')",
		"INSERT INTO badges (trainer_id, gym_type, gym_name) VALUES ('ghost', 'water', 'Tide Gym')",
	)
}

func TestOpen_IntegrityFailureEscalatesToQuickFix(t *testing.T) {
	path := testDBPath(t)
	ctx := context.Background()
	seedOrphanBadges(t, path)

	events, err := report.NewEventLogger(t.TempDir(), report.LevelDebug)
	require.NoError(t, err)
	defer events.Close()

	s, err := OpenWithOptions(ctx, path, &Options{AutoRecreate: true, Events: events})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, PhaseReady, s.Phase())

	backups, err := filepath.Glob(path + ".backup.*")
	require.NoError(t, err)
	assert.Len(t, backups, 1)
	siblings, err := filepath.Glob(path + ".new.*")
	require.NoError(t, err)
	assert.Empty(t, siblings)

	assert.Equal(t, 2, countRows(t, s, "SELECT COUNT(*) FROM badges"))
	issues, err := s.ValidateSchema(ctx)
	require.NoError(t, err)
	assert.Empty(t, issues)

	on, err := s.ForeignKeysEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, events.Close())
	log, err := os.ReadFile(events.Path())
	require.NoError(t, err)
	assert.Contains(t, string(log), `"event":"rebuild"`)
	assert.Contains(t, string(log), `"event":"backup"`)
	assert.Contains(t, string(log), `"event":"recovery"`)
}

func TestOpen_FatalWhenQuickFixFails(t *testing.T) {
	path := testDBPath(t)
	ctx := context.Background()
	seedOrphanBadges(t, path)
	execRaw(t, path,
		"DROP TABLE battle_logs",
		`CREATE TABLE battle_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			trainer_id TEXT NOT NULL,
			gym_type TEXT NOT NULL,
			result TEXT NOT NULL,
			gym_leader_id TEXT,
			battle_date DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (guild_id) REFERENCES guilds(id),
			FOREIGN KEY (trainer_id) REFERENCES trainers(id)
		)`,
		"INSERT INTO battle_logs (guild_id, trainer_id, gym_type, result) VALUES ('g1', 't1', 'fire', 'draw')",
	)

	s, err := OpenWithOptions(ctx, path, &Options{AutoRecreate: true})
	require.Error(t, err)
	assert.Nil(t, s)

	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, util.ErrManualIntervention))
	assert.Contains(t, err.Error(), "manual intervention required")

	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	require.NotEmpty(t, fe.Backup)
	assert.Contains(t, err.Error(), fe.Backup)
	assert.FileExists(t, fe.Backup)
	assert.FileExists(t, path)

	siblings, err := filepath.Glob(path + ".new.*")
	require.NoError(t, err)
	assert.Empty(t, siblings)
}

func TestNukeAndRecreate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddGuild(ctx, "g1", "Pallet"))

	backup, err := s.NukeAndRecreate(ctx)
	require.NoError(t, err)
	assert.FileExists(t, backup)
	assert.True(t, strings.HasPrefix(filepath.Base(backup), "gym.db.backup."))

	g, err := s.GetGuild(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, g)

	issues, err := s.ValidateSchema(ctx)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestForceRebuildAll(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddGuild(ctx, "g1", "Pallet"))
	require.NoError(t, s.AddTrainer(ctx, "t1", "g1", "ash", "Ash"))
	_, err := s.AwardBadge(ctx, &Badge{TrainerID: "t1", GymType: "fire", GymName: "Blaze Gym"})
	require.NoError(t, err)

	order, err := s.ForceRebuildAll(ctx)
	require.NoError(t, err)
	require.Len(t, order, 6)
	assert.Equal(t, "guilds", order[0])

	tr, err := s.GetTrainer(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, 1, tr.TotalBadges)

	err = s.ForceRebuildTable(ctx, "nope")
	assert.True(t, errors.Is(err, util.ErrNotFound))
}

func TestRebuild_KeepsAutoIncrementSequence(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddGuild(ctx, "g1", "Pallet"))
	require.NoError(t, s.AddTrainer(ctx, "t1", "g1", "ash", "Ash"))

	logLoss := func() int64 {
		t.Helper()
		id, err := s.LogBattle(ctx, &BattleLog{GuildID: "g1", TrainerID: "t1", GymType: "fire", Result: ResultLost})
		require.NoError(t, err)
		return id
	}
	for range 3 {
		logLoss()
	}
	_, err := s.DB().Exec("DELETE FROM battle_logs WHERE id = 3")
	require.NoError(t, err)

	require.NoError(t, s.ForceRebuildTable(ctx, "battle_logs"))
	assert.Equal(t, int64(4), logLoss())

	_, err = s.DB().Exec("DELETE FROM battle_logs WHERE id = 4")
	require.NoError(t, err)
	res, err := s.QuickFix(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Copied["battle_logs"])
	assert.Equal(t, int64(5), logLoss())
}

func TestSchemaInfo(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddGuild(ctx, "g1", "Pallet"))

	info, err := s.SchemaInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.League().TableNames(), info.Expected)
	assert.Empty(t, info.NeedsRebuild)
	assert.Empty(t, info.Unused)

	for _, ti := range info.Tables {
		assert.True(t, ti.Live)
		assert.Equal(t, StateCompatible, ti.State)
		if ti.Name == "guilds" {
			assert.Equal(t, int64(1), ti.Rows)
		}
	}
}

func TestOpen_RejectsInvalidSchema(t *testing.T) {
	bad := schema.New(schema.Table{
		Name:        "orphans",
		Columns:     []schema.Column{{Name: "id", Type: "INTEGER", PrimaryKey: true}, {Name: "parent", Type: "INTEGER"}},
		ForeignKeys: []schema.ForeignKey{{Column: "parent", RefTable: "parents", RefColumn: "id"}},
	})
	_, err := OpenWithOptions(context.Background(), testDBPath(t), &Options{Schema: bad})
	assert.True(t, errors.Is(err, util.ErrInvalidSchema))
}
