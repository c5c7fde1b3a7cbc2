package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/franz/gym-league/internal/util"
)

// AddGymChannel registers a channel as a gym of the given type
func (s *Store) AddGymChannel(ctx context.Context, ch *GymChannel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gym_channels (id, guild_id, name, type, emoji)
		VALUES (?, ?, ?, ?, ?)
	`, ch.ID, ch.GuildID, ch.Name, ch.Type, nullIfEmpty(ch.Emoji))
	if err != nil {
		return fmt.Errorf("failed to add gym channel: %w", err)
	}
	return nil
}

const channelColumns = "id, guild_id, name, type, emoji, is_open, created_at"

func scanChannel(sc interface{ Scan(...any) error }) (*GymChannel, error) {
	var ch GymChannel
	var emoji sql.NullString
	var open sql.NullBool
	if err := sc.Scan(&ch.ID, &ch.GuildID, &ch.Name, &ch.Type, &emoji, &open, &ch.CreatedAt); err != nil {
		return nil, err
	}
	ch.Emoji = emoji.String
	ch.IsOpen = open.Bool
	return &ch, nil
}

// GetGymChannel retrieves a gym channel by ID
func (s *Store) GetGymChannel(ctx context.Context, id string) (*GymChannel, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+channelColumns+" FROM gym_channels WHERE id = ?", id)
	ch, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gym channel: %w", err)
	}
	return ch, nil
}

// GetGymChannels returns a guild's gym channels
func (s *Store) GetGymChannels(ctx context.Context, guildID string) ([]*GymChannel, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+channelColumns+" FROM gym_channels WHERE guild_id = ? ORDER BY type, name", guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get gym channels: %w", err)
	}
	defer rows.Close()

	var channels []*GymChannel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gym channel: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// UpdateChannelStatus opens or closes a gym
func (s *Store) UpdateChannelStatus(ctx context.Context, id string, open bool) error {
	result, err := s.db.ExecContext(ctx, "UPDATE gym_channels SET is_open = ? WHERE id = ?", open, id)
	if err != nil {
		return fmt.Errorf("failed to update channel status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("gym channel %s: %w", id, util.ErrNotFound)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
