package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/franz/gym-league/internal/util"
)

// AwardBadge inserts a badge and increments the trainer's counter in one
// transaction: either both happen or neither does.
func (s *Store) AwardBadge(ctx context.Context, b *Badge) (int64, error) {
	var id int64
	err := s.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO badges (trainer_id, gym_type, gym_name, badge_image, awarded_by)
			VALUES (?, ?, ?, ?, ?)
		`, b.TrainerID, b.GymType, b.GymName, nullIfEmpty(b.BadgeImage), nullIfEmpty(b.AwardedBy))
		if err != nil {
			return fmt.Errorf("failed to insert badge: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read badge id: %w", err)
		}

		result, err = tx.ExecContext(ctx, `
			UPDATE trainers
			SET total_badges = COALESCE(total_badges, 0) + 1, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, b.TrainerID)
		if err != nil {
			return fmt.Errorf("failed to update badge count: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("trainer %s: %w", b.TrainerID, util.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to award badge: %w", err)
	}
	return id, nil
}

// HasBadge reports whether the trainer already holds the gym type's badge
func (s *Store) HasBadge(ctx context.Context, trainerID, gymType string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM badges WHERE trainer_id = ? AND gym_type = ?",
		trainerID, gymType).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check badge: %w", err)
	}
	return count > 0, nil
}

// GetTrainerBadges returns a trainer's badges, most recent first
func (s *Store) GetTrainerBadges(ctx context.Context, trainerID string) ([]*Badge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trainer_id, gym_type, gym_name, badge_image, earned_at, awarded_by
		FROM badges
		WHERE trainer_id = ?
		ORDER BY earned_at DESC, id DESC
	`, trainerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trainer badges: %w", err)
	}
	defer rows.Close()

	var badges []*Badge
	for rows.Next() {
		var b Badge
		var image, awardedBy sql.NullString
		if err := rows.Scan(&b.ID, &b.TrainerID, &b.GymType, &b.GymName, &image, &b.EarnedAt, &awardedBy); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		b.BadgeImage = image.String
		b.AwardedBy = awardedBy.String
		badges = append(badges, &b)
	}
	return badges, rows.Err()
}
