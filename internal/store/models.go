package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is a DATETIME column value. The driver hands back time.Time for
// well-formed values and the raw text otherwise; both are accepted.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Scan implements sql.Scanner
func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case int64:
		t.Time = time.Unix(v, 0).UTC()
		return nil
	}
	return fmt.Errorf("cannot scan %T into Timestamp", src)
}

func (t *Timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// Value implements driver.Valuer using SQLite's CURRENT_TIMESTAMP layout
func (t Timestamp) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.UTC().Format("2006-01-02 15:04:05"), nil
}

// MarshalJSON encodes a zero timestamp as null
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time)
}

// Guild is a community server using the bot
type Guild struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CategoryID     string    `json:"category_id,omitempty"`
	SetupCompleted bool      `json:"setup_completed"`
	CreatedAt      Timestamp `json:"created_at"`
}

// GymChannel is a channel acting as a gym of one type
type GymChannel struct {
	ID        string    `json:"id"`
	GuildID   string    `json:"guild_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Emoji     string    `json:"emoji,omitempty"`
	IsOpen    bool      `json:"is_open"`
	CreatedAt Timestamp `json:"created_at"`
}

// GymLeader is a user allowed to award a gym channel's badge
type GymLeader struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	ChannelID   string    `json:"channel_id"`
	GuildID     string    `json:"guild_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	AddedBy     string    `json:"added_by,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
}

// LeaderChannel is a leader's assignment joined with its channel
type LeaderChannel struct {
	GymLeader
	ChannelName string `json:"channel_name"`
	GymType     string `json:"gym_type"`
	Emoji       string `json:"emoji,omitempty"`
}

// Trainer is a guild member collecting badges
type Trainer struct {
	ID          string    `json:"id"`
	GuildID     string    `json:"guild_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	TotalBadges int       `json:"total_badges"`
	CreatedAt   Timestamp `json:"created_at"`
	UpdatedAt   Timestamp `json:"updated_at"`
}

// Name returns the display name, falling back to the username
func (t *Trainer) Name() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Username
}

// LeaderboardEntry is a trainer with the number of badge rows they hold
type LeaderboardEntry struct {
	Trainer
	BadgeCount int `json:"badge_count"`
}

// Badge is a gym badge earned by a trainer
type Badge struct {
	ID         int64     `json:"id"`
	TrainerID  string    `json:"trainer_id"`
	GymType    string    `json:"gym_type"`
	GymName    string    `json:"gym_name"`
	BadgeImage string    `json:"badge_image,omitempty"`
	EarnedAt   Timestamp `json:"earned_at"`
	AwardedBy  string    `json:"awarded_by,omitempty"`
}

// Battle results accepted by battle_logs
const (
	ResultWon  = "won"
	ResultLost = "lost"
)

// BattleLog records one gym battle
type BattleLog struct {
	ID          int64     `json:"id"`
	GuildID     string    `json:"guild_id"`
	TrainerID   string    `json:"trainer_id"`
	GymType     string    `json:"gym_type"`
	Result      string    `json:"result"`
	GymLeaderID string    `json:"gym_leader_id,omitempty"`
	BattleDate  Timestamp `json:"battle_date"`
}
