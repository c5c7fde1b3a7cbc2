// Package league holds the gym league rules and the chat command handlers
// that read and write league state through the store.
package league

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tier is the stage of the league a gym belongs to
type Tier int

const (
	TierGym Tier = iota
	TierEliteFour
	TierChampion
)

func (t Tier) String() string {
	switch t {
	case TierEliteFour:
		return "elite_four"
	case TierChampion:
		return "champion"
	default:
		return "gym"
	}
}

// Badge milestones
const (
	EliteFourMilestone = 8  // gym badges needed to challenge the Elite Four
	ChampionMilestone  = 12 // 8 gyms plus the Elite Four
)

// Gym is one challenge of the league and the badge it awards
type Gym struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Emoji       string `json:"emoji"`
	Color       int    `json:"color"`
	BadgeImage  string `json:"badge_image"`
	Description string `json:"description"`
	Tier        Tier   `json:"-"`
}

const spriteBase = "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/items/"

var gyms = []Gym{
	{Name: "Rock Gym", Type: "rock", Emoji: "🗿", Color: 0xB8860B, BadgeImage: spriteBase + "boulder-badge.png", Description: "The Rock-type Gym specializes in sturdy, defensive Pokemon."},
	{Name: "Water Gym", Type: "water", Emoji: "🌊", Color: 0x4682B4, BadgeImage: spriteBase + "cascade-badge.png", Description: "The Water-type Gym flows with powerful aquatic Pokemon."},
	{Name: "Electric Gym", Type: "electric", Emoji: "⚡", Color: 0xFFD700, BadgeImage: spriteBase + "thunder-badge.png", Description: "The Electric-type Gym sparks with shocking Pokemon."},
	{Name: "Grass Gym", Type: "grass", Emoji: "🌿", Color: 0x228B22, BadgeImage: spriteBase + "rainbow-badge.png", Description: "The Grass-type Gym blooms with natural Pokemon."},
	{Name: "Poison Gym", Type: "poison", Emoji: "☠️", Color: 0x8B008B, BadgeImage: spriteBase + "soul-badge.png", Description: "The Poison-type Gym is filled with toxic Pokemon."},
	{Name: "Psychic Gym", Type: "psychic", Emoji: "🔮", Color: 0xFF1493, BadgeImage: spriteBase + "marsh-badge.png", Description: "The Psychic-type Gym bends reality with mind Pokemon."},
	{Name: "Fire Gym", Type: "fire", Emoji: "🔥", Color: 0xFF4500, BadgeImage: spriteBase + "volcano-badge.png", Description: "The Fire-type Gym burns bright with fiery Pokemon."},
	{Name: "Ground Gym", Type: "ground", Emoji: "⛰️", Color: 0xD2691E, BadgeImage: spriteBase + "earth-badge.png", Description: "The Ground-type Gym stands firm with earthen Pokemon."},
	{Name: "Flying Gym", Type: "flying", Emoji: "🦅", Color: 0x87CEEB, BadgeImage: spriteBase + "zephyr-badge.png", Description: "The Flying-type Gym soars high with aerial Pokemon."},
	{Name: "Bug Gym", Type: "bug", Emoji: "🐛", Color: 0x228B22, BadgeImage: spriteBase + "hive-badge.png", Description: "The Bug-type Gym swarms with insect Pokemon."},
	{Name: "Normal Gym", Type: "normal", Emoji: "⭐", Color: 0xA8A878, BadgeImage: spriteBase + "plain-badge.png", Description: "The Normal-type Gym showcases versatile Pokemon."},
	{Name: "Ghost Gym", Type: "ghost", Emoji: "👻", Color: 0x705898, BadgeImage: spriteBase + "fog-badge.png", Description: "The Ghost-type Gym haunts with spectral Pokemon."},
	{Name: "Steel Gym", Type: "steel", Emoji: "⚙️", Color: 0xB8B8D0, BadgeImage: spriteBase + "mineral-badge.png", Description: "The Steel-type Gym forges strong metallic Pokemon."},
	{Name: "Fighting Gym", Type: "fighting", Emoji: "👊", Color: 0xC03028, BadgeImage: spriteBase + "storm-badge.png", Description: "The Fighting-type Gym trains powerful combat Pokemon."},
	{Name: "Dark Gym", Type: "dark", Emoji: "🌙", Color: 0x705848, BadgeImage: spriteBase + "dark-badge.png", Description: "The Dark-type Gym lurks with shadowy Pokemon."},
	{Name: "Dragon Gym", Type: "dragon", Emoji: "🐉", Color: 0x7038F8, BadgeImage: spriteBase + "rising-badge.png", Description: "The Dragon-type Gym commands majestic dragon Pokemon."},
	{Name: "Ice Gym", Type: "ice", Emoji: "🧊", Color: 0x98D8D8, BadgeImage: spriteBase + "glacier-badge.png", Description: "The Ice-type Gym freezes opponents with icy Pokemon."},
	{Name: "Fairy Gym", Type: "fairy", Emoji: "🧚", Color: 0xEE99AC, BadgeImage: spriteBase + "fairy-badge.png", Description: "The Fairy-type Gym enchants with magical Pokemon."},
}

var eliteFour = []Gym{
	{Name: "Elite Four - Lorelei", Type: "elite-ice", Emoji: "❄️", Color: 0xB0E0E6, BadgeImage: spriteBase + "elite-four-badge.png", Description: "Elite Four member specializing in Ice-type Pokemon.", Tier: TierEliteFour},
	{Name: "Elite Four - Bruno", Type: "elite-fighting", Emoji: "💪", Color: 0x8B4513, BadgeImage: spriteBase + "elite-four-badge.png", Description: "Elite Four member specializing in Fighting-type Pokemon.", Tier: TierEliteFour},
	{Name: "Elite Four - Agatha", Type: "elite-ghost", Emoji: "👻", Color: 0x4B0082, BadgeImage: spriteBase + "elite-four-badge.png", Description: "Elite Four member specializing in Ghost-type Pokemon.", Tier: TierEliteFour},
	{Name: "Elite Four - Lance", Type: "elite-dragon", Emoji: "🐲", Color: 0xDC143C, BadgeImage: spriteBase + "elite-four-badge.png", Description: "Elite Four member specializing in Dragon-type Pokemon.", Tier: TierEliteFour},
}

var champion = Gym{
	Name: "Champion Hall", Type: "champion", Emoji: "👑", Color: 0xFFD700,
	BadgeImage: spriteBase + "champion-badge.png", Description: "The ultimate challenge for Pokemon trainers.",
	Tier: TierChampion,
}

// Gyms returns the regular gyms
func Gyms() []Gym { return append([]Gym(nil), gyms...) }

// EliteFour returns the Elite Four challenges
func EliteFour() []Gym { return append([]Gym(nil), eliteFour...) }

// Champion returns the final challenge
func Champion() Gym { return champion }

// All returns every challenge in league order
func All() []Gym {
	all := make([]Gym, 0, len(gyms)+len(eliteFour)+1)
	all = append(all, gyms...)
	all = append(all, eliteFour...)
	return append(all, champion)
}

// ByType looks a challenge up by its type key
func ByType(gymType string) (Gym, bool) {
	for _, g := range All() {
		if g.Type == gymType {
			return g, true
		}
	}
	return Gym{}, false
}

// FromChannelName finds the challenge a channel hosts from its name, e.g.
// "fire-gym" or "elite-four-lorelei". Elite Four names embed regular type
// keys ("elite-ice") so they are matched first.
func FromChannelName(channel string) (Gym, bool) {
	channel = strings.ToLower(channel)
	for _, g := range eliteFour {
		if strings.Contains(channel, g.Type) || strings.Contains(channel, slug(g.Name)) {
			return g, true
		}
	}
	for _, g := range gyms {
		if strings.Contains(channel, g.Type) || strings.Contains(channel, slug(g.Name)) {
			return g, true
		}
	}
	if strings.Contains(channel, champion.Type) {
		return champion, true
	}
	return Gym{}, false
}

// TierOf classifies a stored badge type
func TierOf(gymType string) Tier {
	switch {
	case gymType == champion.Type:
		return TierChampion
	case strings.HasPrefix(gymType, "elite"):
		return TierEliteFour
	default:
		return TierGym
	}
}

// EmojiFor returns the challenge emoji for a badge type, or a plain medal
func EmojiFor(gymType string) string {
	if g, ok := ByType(gymType); ok {
		return g.Emoji
	}
	return "🏅"
}

// TypeTitle renders a type key for display: "elite-ice" becomes "Elite Ice"
func TypeTitle(gymType string) string {
	// a Caser keeps state, so one per call
	return cases.Title(language.English).String(strings.ReplaceAll(gymType, "-", " "))
}

func slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(name, "-", " "))), "-")
}

// Progress counts a trainer's badges per tier
type Progress struct {
	Gym       int  `json:"gym"`
	EliteFour int  `json:"elite_four"`
	Champion  bool `json:"champion"`
}

// ProgressOf tallies badge types
func ProgressOf(gymTypes []string) Progress {
	var p Progress
	for _, t := range gymTypes {
		switch TierOf(t) {
		case TierChampion:
			p.Champion = true
		case TierEliteFour:
			p.EliteFour++
		default:
			p.Gym++
		}
	}
	return p
}

// NextGoal describes what the trainer should aim for next
func (p Progress) NextGoal() string {
	switch {
	case p.Gym < EliteFourMilestone:
		return fmt.Sprintf("Earn %d more gym badges to challenge the Elite Four", EliteFourMilestone-p.Gym)
	case p.EliteFour < len(eliteFour):
		return fmt.Sprintf("Defeat %d more Elite Four members", len(eliteFour)-p.EliteFour)
	case !p.Champion:
		return "Challenge the Champion to complete your journey!"
	default:
		return "You have completed the Pokemon League!"
	}
}

// Achievements lists the titles the progress unlocks
func (p Progress) Achievements() []string {
	var out []string
	if p.Gym+p.EliteFour > 0 || p.Champion {
		out = append(out, "🌟 First Steps")
	}
	if p.Gym >= 4 {
		out = append(out, "🔥 Rising Star")
	}
	if p.Gym >= EliteFourMilestone {
		out = append(out, "👑 League Challenger")
	}
	if p.EliteFour >= len(eliteFour) {
		out = append(out, "⭐ Elite Trainer")
	}
	if p.Champion {
		out = append(out, "🏆 Champion")
	}
	return out
}

// Milestone returns the announcement for reaching a total badge count, or
// "" when the count is not a milestone
func Milestone(total int) string {
	switch total {
	case EliteFourMilestone:
		return "has earned 8 gym badges and can now challenge the Elite Four!"
	case ChampionMilestone:
		return "has defeated the Elite Four and can now challenge the Champion!"
	}
	return ""
}
