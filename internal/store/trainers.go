package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AddTrainer registers a trainer, or refreshes their names if already
// known. The badge counter is kept.
func (s *Store) AddTrainer(ctx context.Context, id, guildID, username, displayName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trainers (id, guild_id, username, display_name, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			updated_at = CURRENT_TIMESTAMP
	`, id, guildID, username, nullIfEmpty(displayName))
	if err != nil {
		return fmt.Errorf("failed to add trainer: %w", err)
	}
	return nil
}

const trainerColumns = "t.id, t.guild_id, t.username, t.display_name, t.total_badges, t.created_at, t.updated_at"

func trainerDest(t *Trainer, display *sql.NullString, total *sql.NullInt64) []any {
	return []any{&t.ID, &t.GuildID, &t.Username, display, total, &t.CreatedAt, &t.UpdatedAt}
}

// GetTrainer retrieves a trainer by ID
func (s *Store) GetTrainer(ctx context.Context, id string) (*Trainer, error) {
	var t Trainer
	var display sql.NullString
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT "+trainerColumns+" FROM trainers t WHERE t.id = ?", id).
		Scan(trainerDest(&t, &display, &total)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trainer: %w", err)
	}
	t.DisplayName = display.String
	t.TotalBadges = int(total.Int64)
	return &t, nil
}

// GetLeaderboard ranks a guild's trainers by badges held, earliest
// registration first on ties
func (s *Store) GetLeaderboard(ctx context.Context, guildID string) ([]*LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+trainerColumns+`, COUNT(b.id) AS badge_count
		FROM trainers t
		LEFT JOIN badges b ON t.id = b.trainer_id
		WHERE t.guild_id = ?
		GROUP BY t.id
		ORDER BY badge_count DESC, t.created_at ASC, t.id ASC
	`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		var display sql.NullString
		var total sql.NullInt64
		dest := append(trainerDest(&e.Trainer, &display, &total), &e.BadgeCount)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		e.DisplayName = display.String
		e.TotalBadges = int(total.Int64)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
