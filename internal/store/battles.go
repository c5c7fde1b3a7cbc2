package store

import (
	"context"
	"database/sql"
	"fmt"
)

// LogBattle records a battle outcome, which must be ResultWon or ResultLost
func (s *Store) LogBattle(ctx context.Context, b *BattleLog) (int64, error) {
	if b.Result != ResultWon && b.Result != ResultLost {
		return 0, fmt.Errorf("invalid battle result %q", b.Result)
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO battle_logs (guild_id, trainer_id, gym_type, result, gym_leader_id)
		VALUES (?, ?, ?, ?, ?)
	`, b.GuildID, b.TrainerID, b.GymType, b.Result, nullIfEmpty(b.GymLeaderID))
	if err != nil {
		return 0, fmt.Errorf("failed to log battle: %w", err)
	}
	return result.LastInsertId()
}

// GetTrainerBattles returns a trainer's most recent battles. A limit <= 0
// returns all of them.
func (s *Store) GetTrainerBattles(ctx context.Context, trainerID string, limit int) ([]*BattleLog, error) {
	query := `
		SELECT id, guild_id, trainer_id, gym_type, result, gym_leader_id, battle_date
		FROM battle_logs
		WHERE trainer_id = ?
		ORDER BY battle_date DESC, id DESC`
	args := []any{trainerID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get trainer battles: %w", err)
	}
	defer rows.Close()

	var battles []*BattleLog
	for rows.Next() {
		var b BattleLog
		var leader sql.NullString
		if err := rows.Scan(&b.ID, &b.GuildID, &b.TrainerID, &b.GymType, &b.Result, &leader, &b.BattleDate); err != nil {
			return nil, fmt.Errorf("failed to scan battle: %w", err)
		}
		b.GymLeaderID = leader.String
		battles = append(battles, &b)
	}
	return battles, rows.Err()
}
