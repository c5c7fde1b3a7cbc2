package schema

// League returns the declared schema of the gym league: guilds, their gym
// channels and leaders, trainers, badges and battle logs.
func League() *Schema {
	return New(
		Table{
			Name: "guilds",
			Columns: []Column{
				{Name: "id", Type: "TEXT", PrimaryKey: true, NotNull: true},
				{Name: "name", Type: "TEXT", NotNull: true},
				{Name: "category_id", Type: "TEXT"},
				{Name: "setup_completed", Type: "BOOLEAN", Default: "FALSE"},
				{Name: "created_at", Type: "DATETIME", Default: "CURRENT_TIMESTAMP"},
			},
		},
		Table{
			Name: "gym_channels",
			Columns: []Column{
				{Name: "id", Type: "TEXT", PrimaryKey: true, NotNull: true},
				{Name: "guild_id", Type: "TEXT", NotNull: true},
				{Name: "name", Type: "TEXT", NotNull: true},
				{Name: "type", Type: "TEXT", NotNull: true},
				{Name: "emoji", Type: "TEXT"},
				{Name: "is_open", Type: "BOOLEAN", Default: "TRUE"},
				{Name: "created_at", Type: "DATETIME", Default: "CURRENT_TIMESTAMP"},
			},
			ForeignKeys: []ForeignKey{
				{Column: "guild_id", RefTable: "guilds", RefColumn: "id"},
			},
			Indexes: []Index{
				{Name: "idx_gym_channels_guild_id", Columns: []string{"guild_id"}},
				{Name: "idx_gym_channels_type", Columns: []string{"type"}},
			},
		},
		Table{
			Name: "trainers",
			Columns: []Column{
				{Name: "id", Type: "TEXT", PrimaryKey: true, NotNull: true},
				{Name: "guild_id", Type: "TEXT", NotNull: true},
				{Name: "username", Type: "TEXT", NotNull: true},
				{Name: "display_name", Type: "TEXT"},
				{Name: "total_badges", Type: "INTEGER", Default: "0"},
				{Name: "created_at", Type: "DATETIME", Default: "CURRENT_TIMESTAMP"},
				{Name: "updated_at", Type: "DATETIME", Default: "CURRENT_TIMESTAMP"},
			},
			ForeignKeys: []ForeignKey{
				{Column: "guild_id", RefTable: "guilds", RefColumn: "id"},
			},
			Indexes: []Index{
				{Name: "idx_trainers_guild_id", Columns: []string{"guild_id"}},
				{Name: "idx_trainers_total_badges", Columns: []string{"total_badges"}},
			},
		},
		Table{
			Name: "badges",
			Columns: []Column{
				{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true},
				{Name: "trainer_id", Type: "TEXT", NotNull: true},
				{Name: "gym_type", Type: "TEXT", NotNull: true},
				{Name: "gym_name", Type: "TEXT", NotNull: true},
				{Name: "badge_image", Type: "TEXT"},
				{Name: "earned_at", Type: "DATETIME", Default: "CURRENT_TIMESTAMP"},
				{Name: "awarded_by", Type: "TEXT"},
			},
			ForeignKeys: []ForeignKey{
				{Column: "trainer_id", RefTable: "trainers", RefColumn: "id"},
			},
			Indexes: []Index{
				{Name: "idx_badges_trainer_id", Columns: []string{"trainer_id"}},
				{Name: "idx_badges_gym_type", Columns: []string{"gym_type"}},
				{Name: "idx_badges_earned_at", Columns: []string{"earned_at"}},
			},
		},
		Table{
			Name: "battle_logs",
			Columns: []Column{
				{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true},
				{Name: "guild_id", Type: "TEXT", NotNull: true},
				{Name: "trainer_id", Type: "TEXT", NotNull: true},
				{Name: "gym_type", Type: "TEXT", NotNull: true},
				{Name: "result", Type: "TEXT", NotNull: true, Check: "result IN ('won', 'lost')"},
				{Name: "gym_leader_id", Type: "TEXT"},
				{Name: "battle_date", Type: "DATETIME", Default: "CURRENT_TIMESTAMP"},
			},
			ForeignKeys: []ForeignKey{
				{Column: "guild_id", RefTable: "guilds", RefColumn: "id"},
				{Column: "trainer_id", RefTable: "trainers", RefColumn: "id"},
			},
			Indexes: []Index{
				{Name: "idx_battle_logs_guild_id", Columns: []string{"guild_id"}},
				{Name: "idx_battle_logs_trainer_id", Columns: []string{"trainer_id"}},
				{Name: "idx_battle_logs_battle_date", Columns: []string{"battle_date"}},
			},
		},
		Table{
			Name: "gym_leaders",
			Columns: []Column{
				{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true},
				{Name: "user_id", Type: "TEXT", NotNull: true},
				{Name: "channel_id", Type: "TEXT", NotNull: true},
				{Name: "guild_id", Type: "TEXT", NotNull: true},
				{Name: "username", Type: "TEXT", NotNull: true},
				{Name: "display_name", Type: "TEXT"},
				{Name: "added_by", Type: "TEXT"},
				{Name: "created_at", Type: "DATETIME", Default: "CURRENT_TIMESTAMP"},
			},
			ForeignKeys: []ForeignKey{
				{Column: "guild_id", RefTable: "guilds", RefColumn: "id"},
				{Column: "channel_id", RefTable: "gym_channels", RefColumn: "id"},
			},
			Uniques: []Unique{
				{Name: "unique_user_channel", Columns: []string{"user_id", "channel_id"}},
			},
			Indexes: []Index{
				{Name: "idx_gym_leaders_user_id", Columns: []string{"user_id"}},
				{Name: "idx_gym_leaders_channel_id", Columns: []string{"channel_id"}},
				{Name: "idx_gym_leaders_guild_id", Columns: []string{"guild_id"}},
			},
		},
	)
}
