package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AddGymLeader assigns a user to lead a gym channel. Re-adding an existing
// leader replaces the assignment.
func (s *Store) AddGymLeader(ctx context.Context, l *GymLeader) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO gym_leaders (user_id, channel_id, guild_id, username, display_name, added_by)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.UserID, l.ChannelID, l.GuildID, l.Username, nullIfEmpty(l.DisplayName), nullIfEmpty(l.AddedBy))
	if err != nil {
		return 0, fmt.Errorf("failed to add gym leader: %w", err)
	}
	return result.LastInsertId()
}

// RemoveGymLeader removes a leader from a channel and reports whether an
// assignment existed
func (s *Store) RemoveGymLeader(ctx context.Context, userID, channelID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM gym_leaders WHERE user_id = ? AND channel_id = ?", userID, channelID)
	if err != nil {
		return false, fmt.Errorf("failed to remove gym leader: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to remove gym leader: %w", err)
	}
	return n > 0, nil
}

// IsGymLeader reports whether the user leads the channel
func (s *Store) IsGymLeader(ctx context.Context, userID, channelID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM gym_leaders WHERE user_id = ? AND channel_id = ?",
		userID, channelID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check gym leader: %w", err)
	}
	return count > 0, nil
}

const leaderColumns = "gl.id, gl.user_id, gl.channel_id, gl.guild_id, gl.username, gl.display_name, gl.added_by, gl.created_at"

func scanLeader(l *GymLeader, extra ...any) []any {
	return append([]any{&l.ID, &l.UserID, &l.ChannelID, &l.GuildID, &l.Username}, extra...)
}

// GetChannelGymLeaders returns the leaders of a channel
func (s *Store) GetChannelGymLeaders(ctx context.Context, channelID string) ([]*GymLeader, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+leaderColumns+" FROM gym_leaders gl WHERE gl.channel_id = ? ORDER BY gl.created_at, gl.id",
		channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel gym leaders: %w", err)
	}
	defer rows.Close()

	var leaders []*GymLeader
	for rows.Next() {
		var l GymLeader
		var display, addedBy sql.NullString
		if err := rows.Scan(scanLeader(&l, &display, &addedBy, &l.CreatedAt)...); err != nil {
			return nil, fmt.Errorf("failed to scan gym leader: %w", err)
		}
		l.DisplayName = display.String
		l.AddedBy = addedBy.String
		leaders = append(leaders, &l)
	}
	return leaders, rows.Err()
}

// GetGymLeaderChannels returns the channels a user leads in a guild
func (s *Store) GetGymLeaderChannels(ctx context.Context, userID, guildID string) ([]*LeaderChannel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+leaderColumns+`, gc.name, gc.type, gc.emoji
		FROM gym_leaders gl
		JOIN gym_channels gc ON gl.channel_id = gc.id
		WHERE gl.user_id = ? AND gl.guild_id = ?
		ORDER BY gc.type, gc.name
	`, userID, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get gym leader channels: %w", err)
	}
	defer rows.Close()

	var channels []*LeaderChannel
	for rows.Next() {
		var lc LeaderChannel
		var display, addedBy, emoji sql.NullString
		dest := scanLeader(&lc.GymLeader, &display, &addedBy, &lc.CreatedAt, &lc.ChannelName, &lc.GymType, &emoji)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan gym leader channel: %w", err)
		}
		lc.DisplayName = display.String
		lc.AddedBy = addedBy.String
		lc.Emoji = emoji.String
		channels = append(channels, &lc)
	}
	return channels, rows.Err()
}
