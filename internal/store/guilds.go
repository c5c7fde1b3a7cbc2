package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/franz/gym-league/internal/util"
)

// AddGuild registers a guild, or renames it if already known. Setup state is
// kept, and an empty name never overwrites a known one.
func (s *Store) AddGuild(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guilds (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = COALESCE(NULLIF(excluded.name, ''), guilds.name)
	`, id, name)
	if err != nil {
		return fmt.Errorf("failed to add guild: %w", err)
	}
	return nil
}

// UpdateGuildSetup records the guild's gym category and marks setup done
func (s *Store) UpdateGuildSetup(ctx context.Context, id, categoryID string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE guilds SET category_id = ?, setup_completed = TRUE WHERE id = ?",
		categoryID, id)
	if err != nil {
		return fmt.Errorf("failed to update guild setup: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("guild %s: %w", id, util.ErrNotFound)
	}
	return nil
}

const guildColumns = "id, name, category_id, setup_completed, created_at"

func scanGuild(sc interface{ Scan(...any) error }) (*Guild, error) {
	var g Guild
	var category sql.NullString
	var setup sql.NullBool
	if err := sc.Scan(&g.ID, &g.Name, &category, &setup, &g.CreatedAt); err != nil {
		return nil, err
	}
	g.CategoryID = category.String
	g.SetupCompleted = setup.Bool
	return &g, nil
}

// GetGuild retrieves a guild by ID
func (s *Store) GetGuild(ctx context.Context, id string) (*Guild, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+guildColumns+" FROM guilds WHERE id = ?", id)
	g, err := scanGuild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guild: %w", err)
	}
	return g, nil
}

// ListGuilds returns every guild ordered by name
func (s *Store) ListGuilds(ctx context.Context) ([]*Guild, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+guildColumns+" FROM guilds ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list guilds: %w", err)
	}
	defer rows.Close()

	var guilds []*Guild
	for rows.Next() {
		g, err := scanGuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guild: %w", err)
		}
		guilds = append(guilds, g)
	}
	return guilds, rows.Err()
}
