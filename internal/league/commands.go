package league

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/franz/gym-league/internal/store"
	"github.com/franz/gym-league/internal/util"
)

// Store is the slice of the data-access facade the handlers use
type Store interface {
	AddGuild(ctx context.Context, id, name string) error
	GetGuild(ctx context.Context, id string) (*store.Guild, error)
	ListGuilds(ctx context.Context) ([]*store.Guild, error)
	UpdateGuildSetup(ctx context.Context, id, categoryID string) error
	AddGymChannel(ctx context.Context, ch *store.GymChannel) error
	GetGymChannel(ctx context.Context, id string) (*store.GymChannel, error)
	GetGymChannels(ctx context.Context, guildID string) ([]*store.GymChannel, error)
	UpdateChannelStatus(ctx context.Context, id string, open bool) error
	AddGymLeader(ctx context.Context, l *store.GymLeader) (int64, error)
	RemoveGymLeader(ctx context.Context, userID, channelID string) (bool, error)
	IsGymLeader(ctx context.Context, userID, channelID string) (bool, error)
	GetChannelGymLeaders(ctx context.Context, channelID string) ([]*store.GymLeader, error)
	GetGymLeaderChannels(ctx context.Context, userID, guildID string) ([]*store.LeaderChannel, error)
	AddTrainer(ctx context.Context, id, guildID, username, displayName string) error
	GetTrainer(ctx context.Context, id string) (*store.Trainer, error)
	GetLeaderboard(ctx context.Context, guildID string) ([]*store.LeaderboardEntry, error)
	AwardBadge(ctx context.Context, b *store.Badge) (int64, error)
	HasBadge(ctx context.Context, trainerID, gymType string) (bool, error)
	GetTrainerBadges(ctx context.Context, trainerID string) ([]*store.Badge, error)
	LogBattle(ctx context.Context, b *store.BattleLog) (int64, error)
}

// User is a chat user referenced by an invocation
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

// Name returns the display name, falling back to the username
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Mention renders a user mention
func (u User) Mention() string {
	return "<@" + u.ID + ">"
}

// Invocation is one command issued by a chat user. The chat platform
// resolves user options into Users keyed by option name. Channels carries
// the gym type to channel ID map of channels the platform created for setup.
type Invocation struct {
	Command       string            `json:"command"`
	Args          map[string]string `json:"args,omitempty"`
	Users         map[string]User   `json:"users,omitempty"`
	Channels      map[string]string `json:"channels,omitempty"`
	ActorID       string            `json:"actor_id"`
	ActorName     string            `json:"actor_name"`
	GuildID       string            `json:"guild_id"`
	GuildName     string            `json:"guild_name"`
	ChannelID     string            `json:"channel_id"`
	ChannelName   string            `json:"channel_name"`
	IsAdmin       bool              `json:"is_admin"`
	HasLeaderRole bool              `json:"has_leader_role"`
}

func (inv *Invocation) actor() User {
	return User{ID: inv.ActorID, Username: inv.ActorName}
}

// userArg returns the named user option, or the actor when it is absent
func (inv *Invocation) userArg(name string) (User, bool) {
	if u, ok := inv.Users[name]; ok && u.ID != "" {
		return u, true
	}
	return inv.actor(), false
}

// Field is one titled block of an embed
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Embed is a rich message body
type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Footer      string  `json:"footer,omitempty"`
}

func (e *Embed) add(name, value string, inline bool) {
	e.Fields = append(e.Fields, Field{Name: name, Value: value, Inline: inline})
}

// Reply is what the chat platform should post in response. Announcement,
// when set, is posted to the channel as a separate message.
type Reply struct {
	Text         string `json:"text,omitempty"`
	Embed        *Embed `json:"embed,omitempty"`
	Ephemeral    bool   `json:"ephemeral,omitempty"`
	Announcement *Embed `json:"announcement,omitempty"`
}

// GenericFailure is the only text shown to users when a handler fails
const GenericFailure = "❌ Something went wrong. Please try again later."

const (
	colorBlue   = 0x3498db
	colorGreen  = 0x2ecc71
	colorRed    = 0xe74c3c
	colorOrange = 0xf39c12
	colorPurple = 0x9b59b6
	colorGold   = 0xffd700
)

func textReply(format string, args ...any) *Reply {
	return &Reply{Text: fmt.Sprintf(format, args...), Ephemeral: true}
}

type handler func(ctx context.Context, inv *Invocation) (*Reply, error)

// Dispatcher routes invocations to their handlers
type Dispatcher struct {
	store    Store
	webURL   string
	handlers map[string]handler
}

// NewDispatcher creates a dispatcher over the store. webURL is the public
// dashboard address used for profile links.
func NewDispatcher(s Store, webURL string) *Dispatcher {
	d := &Dispatcher{store: s, webURL: strings.TrimRight(webURL, "/")}
	d.handlers = map[string]handler{
		"profile":      d.profile,
		"badges":       d.badges,
		"leaderboard":  d.leaderboard,
		"won":          d.won,
		"lose":         d.lose,
		"addleader":    d.addLeader,
		"removeleader": d.removeLeader,
		"leaders":      d.leaders,
		"opengym":      func(ctx context.Context, inv *Invocation) (*Reply, error) { return d.setGymOpen(ctx, inv, true) },
		"closegym":     func(ctx context.Context, inv *Invocation) (*Reply, error) { return d.setGymOpen(ctx, inv, false) },
		"gymstatus":    d.gymStatus,
		"registergym":  d.registerGym,
		"setup":        d.setup,
		"guilds":       d.guilds,
		"help":         d.help,
		"gyminfo":      d.gymInfo,
	}
	return d
}

// Commands returns the supported command names, sorted
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the invocation. Handler errors are logged and replaced by a
// generic reply so no internal detail reaches the chat.
func (d *Dispatcher) Dispatch(ctx context.Context, inv *Invocation) *Reply {
	h, ok := d.handlers[strings.ToLower(strings.TrimPrefix(inv.Command, "/"))]
	if !ok {
		return textReply("❌ Unknown command `%s`.", inv.Command)
	}
	reply, err := h(ctx, inv)
	if err != nil {
		util.ErrorLog("Command %s failed in guild %s: %v", inv.Command, inv.GuildID, err)
		return &Reply{Text: GenericFailure, Ephemeral: true}
	}
	return reply
}

// ensureMember registers the guild and trainer rows a write depends on
func (d *Dispatcher) ensureMember(ctx context.Context, inv *Invocation, u User) error {
	if err := d.store.AddGuild(ctx, inv.GuildID, inv.GuildName); err != nil {
		return err
	}
	return d.store.AddTrainer(ctx, u.ID, inv.GuildID, u.Username, u.DisplayName)
}

// channelGym resolves the challenge hosted by the invocation's channel:
// the registered gym channel first, then the channel name
func (d *Dispatcher) channelGym(ctx context.Context, inv *Invocation) (Gym, bool, error) {
	ch, err := d.store.GetGymChannel(ctx, inv.ChannelID)
	if err != nil {
		return Gym{}, false, err
	}
	if ch != nil {
		if g, ok := ByType(ch.Type); ok {
			return g, true, nil
		}
	}
	g, ok := FromChannelName(inv.ChannelName)
	return g, ok, nil
}

func (d *Dispatcher) canLead(ctx context.Context, inv *Invocation) (bool, error) {
	if inv.IsAdmin || inv.HasLeaderRole {
		return true, nil
	}
	return d.store.IsGymLeader(ctx, inv.ActorID, inv.ChannelID)
}

// registeredChannel returns the invocation's channel when it is a gym of
// the same guild
func (d *Dispatcher) registeredChannel(ctx context.Context, inv *Invocation) (*store.GymChannel, error) {
	ch, err := d.store.GetGymChannel(ctx, inv.ChannelID)
	if err != nil || ch == nil || ch.GuildID != inv.GuildID {
		return nil, err
	}
	return ch, nil
}

func formatDate(ts store.Timestamp) string {
	if ts.IsZero() {
		return "unknown"
	}
	return ts.Format("Jan 2, 2006")
}

func badgeTypes(badges []*store.Badge) []string {
	types := make([]string, len(badges))
	for i, b := range badges {
		types[i] = b.GymType
	}
	return types
}

func (d *Dispatcher) profile(ctx context.Context, inv *Invocation) (*Reply, error) {
	target, _ := inv.userArg("trainer")

	trainer, err := d.store.GetTrainer(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	if trainer == nil {
		if err := d.ensureMember(ctx, inv, target); err != nil {
			return nil, err
		}
		if trainer, err = d.store.GetTrainer(ctx, target.ID); err != nil {
			return nil, err
		}
	}

	badges, err := d.store.GetTrainerBadges(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	p := ProgressOf(badgeTypes(badges))

	champ := "0/1"
	if p.Champion {
		champ = "1/1"
	}
	e := &Embed{Title: fmt.Sprintf("%s's Trainer Profile", target.Name()), Color: colorBlue}
	e.add("📊 Training Progress", fmt.Sprintf("🏅 **Gym Badges:** %d/%d\n⭐ **Elite Four:** %d/%d\n👑 **Champion:** %s",
		p.Gym, len(gyms), p.EliteFour, len(eliteFour), champ), true)
	e.add("🎯 Total Achievements", fmt.Sprintf("🏆 **Total Badges:** %d\n📅 **Trainer Since:** %s",
		len(badges), formatDate(trainer.CreatedAt)), true)

	if len(badges) > 0 {
		var recent []string
		for _, b := range badges[:min(5, len(badges))] {
			recent = append(recent, EmojiFor(b.GymType)+" "+b.GymName)
		}
		e.add("🆕 Recent Badges", strings.Join(recent, "\n"), false)
	} else {
		e.add("🎯 Getting Started", "No badges earned yet! Visit any gym channel to begin your Pokemon journey.", false)
	}
	if a := p.Achievements(); len(a) > 0 {
		e.add("🏅 Achievements Unlocked", strings.Join(a, " • "), false)
	}
	if d.webURL != "" {
		e.add("🌐 Full Profile", fmt.Sprintf("[View detailed profile on web](%s/trainer/%s)", d.webURL, target.ID), false)
	}
	e.Footer = "Use /badges to see all earned badges • Profile for " + target.Username
	return &Reply{Embed: e}, nil
}

func (d *Dispatcher) badges(ctx context.Context, inv *Invocation) (*Reply, error) {
	target, _ := inv.userArg("trainer")
	badges, err := d.store.GetTrainerBadges(ctx, target.ID)
	if err != nil {
		return nil, err
	}

	e := &Embed{Title: fmt.Sprintf("%s's Badge Collection", target.Name())}
	if len(badges) == 0 {
		e.Description = "🎯 No badges earned yet!\n\nStart your Pokemon journey by challenging gym leaders in their respective channels."
		e.Color = colorRed
		return &Reply{Embed: e}, nil
	}
	e.Description = fmt.Sprintf("🏆 **Total Badges:** %d", len(badges))
	e.Color = colorOrange

	byTier := map[Tier][]string{}
	for _, b := range badges {
		tier := TierOf(b.GymType)
		byTier[tier] = append(byTier[tier], fmt.Sprintf("%s **%s** - %s", EmojiFor(b.GymType), b.GymName, formatDate(b.EarnedAt)))
	}
	if list := byTier[TierGym]; len(list) > 0 {
		e.add(fmt.Sprintf("🏅 Gym Badges (%d/%d)", len(list), len(gyms)), strings.Join(list, "\n"), false)
	}
	if list := byTier[TierEliteFour]; len(list) > 0 {
		e.add(fmt.Sprintf("⭐ Elite Four (%d/%d)", len(list), len(eliteFour)), strings.Join(list, "\n"), false)
	}
	if list := byTier[TierChampion]; len(list) > 0 {
		e.add("👑 Champion (1/1)", list[0], false)
	}

	e.add("📈 Progress", "🎯 "+ProgressOf(badgeTypes(badges)).NextGoal(), false)
	e.add("🆕 Most Recent Badge", fmt.Sprintf("**%s** earned on %s", badges[0].GymName, formatDate(badges[0].EarnedAt)), true)
	return &Reply{Embed: e}, nil
}

func (d *Dispatcher) leaderboard(ctx context.Context, inv *Invocation) (*Reply, error) {
	entries, err := d.store.GetLeaderboard(ctx, inv.GuildID)
	if err != nil {
		return nil, err
	}

	e := &Embed{Title: "🏆 Pokemon League Leaderboard", Color: colorBlue, Footer: "Leaderboard for " + inv.GuildName}
	if len(entries) == 0 {
		e.Description = "No trainers have started their journey yet!"
		return &Reply{Embed: e}, nil
	}

	medals := []string{"🥇", "🥈", "🥉"}
	var lines []string
	for i, entry := range entries[:min(10, len(entries))] {
		rank := fmt.Sprintf("**%d.**", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		lines = append(lines, fmt.Sprintf("%s %s - %d badges", rank, entry.Name(), entry.BadgeCount))
	}
	e.Description = strings.Join(lines, "\n")
	return &Reply{Embed: e}, nil
}

func (d *Dispatcher) won(ctx context.Context, inv *Invocation) (*Reply, error) {
	ok, err := d.canLead(ctx, inv)
	if err != nil {
		return nil, err
	}
	if !ok {
		return textReply("❌ Only Gym Leaders can award badges!"), nil
	}
	trainer, given := inv.userArg("trainer")
	if !given {
		return textReply("❌ Please specify the trainer who won."), nil
	}
	gym, found, err := d.channelGym(ctx, inv)
	if err != nil {
		return nil, err
	}
	if !found {
		return textReply("❌ This command can only be used in gym channels!"), nil
	}

	if err := d.ensureMember(ctx, inv, trainer); err != nil {
		return nil, err
	}
	has, err := d.store.HasBadge(ctx, trainer.ID, gym.Type)
	if err != nil {
		return nil, err
	}
	if has {
		return textReply("❌ %s already has the %s badge!", trainer.Name(), gym.Name), nil
	}

	_, err = d.store.AwardBadge(ctx, &store.Badge{
		TrainerID:  trainer.ID,
		GymType:    gym.Type,
		GymName:    gym.Name,
		BadgeImage: gym.BadgeImage,
		AwardedBy:  inv.ActorID,
	})
	if err != nil {
		return nil, err
	}
	_, err = d.store.LogBattle(ctx, &store.BattleLog{
		GuildID: inv.GuildID, TrainerID: trainer.ID, GymType: gym.Type,
		Result: store.ResultWon, GymLeaderID: inv.ActorID,
	})
	if err != nil {
		return nil, err
	}

	e := &Embed{
		Title:       "🏅 Badge Awarded!",
		Description: fmt.Sprintf("Congratulations %s! You have earned the **%s** badge!", trainer.Mention(), gym.Name),
		Color:       gym.Color,
		Thumbnail:   gym.BadgeImage,
	}
	e.add("Gym", gym.Name, true)
	e.add("Gym Leader", inv.actor().Mention(), true)
	e.add("Battle Result", "🏆 Victory!", true)
	reply := &Reply{Embed: e}

	badges, err := d.store.GetTrainerBadges(ctx, trainer.ID)
	if err != nil {
		return nil, err
	}
	if msg := Milestone(len(badges)); msg != "" {
		title, color := "🌟 Milestone Achieved!", colorGold
		if len(badges) == ChampionMilestone {
			title, color = "👑 Elite Status!", 0xff6b6b
		}
		reply.Announcement = &Embed{Title: title, Description: trainer.Mention() + " " + msg, Color: color}
	}
	return reply, nil
}

func (d *Dispatcher) lose(ctx context.Context, inv *Invocation) (*Reply, error) {
	ok, err := d.canLead(ctx, inv)
	if err != nil {
		return nil, err
	}
	if !ok {
		return textReply("❌ Only Gym Leaders can log battle results!"), nil
	}
	trainer, given := inv.userArg("trainer")
	if !given {
		return textReply("❌ Please specify the trainer who lost."), nil
	}
	gym, found, err := d.channelGym(ctx, inv)
	if err != nil {
		return nil, err
	}
	if !found {
		return textReply("❌ This command can only be used in gym channels!"), nil
	}

	if err := d.ensureMember(ctx, inv, trainer); err != nil {
		return nil, err
	}
	_, err = d.store.LogBattle(ctx, &store.BattleLog{
		GuildID: inv.GuildID, TrainerID: trainer.ID, GymType: gym.Type,
		Result: store.ResultLost, GymLeaderID: inv.ActorID,
	})
	if err != nil {
		return nil, err
	}

	e := &Embed{
		Title:       "💔 Battle Lost",
		Description: fmt.Sprintf("%s fought valiantly but was defeated by the %s Gym Leader.", trainer.Mention(), gym.Name),
		Color:       colorRed,
		Thumbnail:   gym.BadgeImage,
	}
	e.add("Gym", gym.Name, true)
	e.add("Gym Leader", inv.actor().Mention(), true)
	e.add("Battle Result", "💔 Defeat", true)
	e.add("Encouragement", "Train harder and come back stronger!", false)
	return &Reply{Embed: e}, nil
}

func (d *Dispatcher) addLeader(ctx context.Context, inv *Invocation) (*Reply, error) {
	if !inv.IsAdmin {
		return textReply("❌ Only administrators can manage gym leaders!"), nil
	}
	user, given := inv.userArg("user")
	if !given {
		return textReply("❌ Please specify the user to appoint."), nil
	}
	ch, err := d.registeredChannel(ctx, inv)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return textReply("❌ This command can only be used in gym channels!"), nil
	}
	already, err := d.store.IsGymLeader(ctx, user.ID, ch.ID)
	if err != nil {
		return nil, err
	}
	if already {
		return textReply("❌ %s is already a gym leader of this channel!", user.Name()), nil
	}

	_, err = d.store.AddGymLeader(ctx, &store.GymLeader{
		UserID: user.ID, ChannelID: ch.ID, GuildID: inv.GuildID,
		Username: user.Username, DisplayName: user.DisplayName, AddedBy: inv.ActorID,
	})
	if err != nil {
		return nil, err
	}

	e := &Embed{
		Title:       "🏅 New Gym Leader Added!",
		Description: fmt.Sprintf("%s has been appointed as a gym leader for %s **%s**!", user.Mention(), ch.Emoji, ch.Name),
		Color:       colorGreen,
	}
	e.add("New Gym Leader", user.Mention(), true)
	e.add("Added By", inv.actor().Mention(), true)
	return &Reply{
		Embed:     e,
		Ephemeral: true,
		Announcement: &Embed{
			Title:       "🎉 Welcome New Gym Leader!",
			Description: fmt.Sprintf("%s is now a gym leader of this gym!", user.Mention()),
			Color:       colorBlue,
		},
	}, nil
}

func (d *Dispatcher) removeLeader(ctx context.Context, inv *Invocation) (*Reply, error) {
	if !inv.IsAdmin {
		return textReply("❌ Only administrators can manage gym leaders!"), nil
	}
	user, given := inv.userArg("user")
	if !given {
		return textReply("❌ Please specify the gym leader to remove."), nil
	}
	ch, err := d.registeredChannel(ctx, inv)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return textReply("❌ This command can only be used in gym channels!"), nil
	}
	removed, err := d.store.RemoveGymLeader(ctx, user.ID, ch.ID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return textReply("❌ %s is not a gym leader of this channel!", user.Name()), nil
	}

	return &Reply{
		Embed: &Embed{
			Title:       "🚪 Gym Leader Removed",
			Description: fmt.Sprintf("%s has been removed as a gym leader from %s **%s**.", user.Mention(), ch.Emoji, ch.Name),
			Color:       colorRed,
		},
		Ephemeral: true,
	}, nil
}

func (d *Dispatcher) leaders(ctx context.Context, inv *Invocation) (*Reply, error) {
	scope := inv.Args["scope"]
	if scope == "" {
		scope = "channel"
	}

	switch scope {
	case "channel":
		ch, err := d.registeredChannel(ctx, inv)
		if err != nil {
			return nil, err
		}
		if ch == nil {
			return textReply("❌ This is not a gym channel! Use this command in a gym channel to see its leaders."), nil
		}
		list, err := d.store.GetChannelGymLeaders(ctx, ch.ID)
		if err != nil {
			return nil, err
		}
		e := &Embed{Title: fmt.Sprintf("%s %s - Gym Leaders", ch.Emoji, ch.Name), Color: colorBlue}
		if len(list) == 0 {
			e.Description = "❌ No gym leaders assigned to this channel yet!"
		} else {
			var lines []string
			for i, l := range list {
				lines = append(lines, fmt.Sprintf("**%d.** <@%s> (%s)\n└ Added on %s", i+1, l.UserID, leaderName(l), formatDate(l.CreatedAt)))
			}
			e.Description = fmt.Sprintf("**%d** gym leader(s) assigned to this channel:\n\n%s", len(list), strings.Join(lines, "\n\n"))
		}
		return &Reply{Embed: e, Ephemeral: true}, nil

	case "me":
		assignments, err := d.store.GetGymLeaderChannels(ctx, inv.ActorID, inv.GuildID)
		if err != nil {
			return nil, err
		}
		e := &Embed{Title: fmt.Sprintf("%s's Gym Leader Assignments", inv.ActorName), Color: colorPurple}
		if len(assignments) == 0 {
			e.Description = "❌ You are not assigned as a gym leader to any channels in this server."
		} else {
			var lines []string
			for i, a := range assignments {
				lines = append(lines, fmt.Sprintf("**%d.** %s <#%s> (%s)\n└ Type: %s • Added: %s",
					i+1, a.Emoji, a.ChannelID, a.ChannelName, TypeTitle(a.GymType), formatDate(a.CreatedAt)))
			}
			e.Description = fmt.Sprintf("You are a gym leader for **%d** channel(s):\n\n%s", len(assignments), strings.Join(lines, "\n\n"))
		}
		return &Reply{Embed: e, Ephemeral: true}, nil

	case "all":
		if !inv.IsAdmin {
			return textReply("❌ Only administrators can view all server gym leaders!"), nil
		}
		channels, err := d.store.GetGymChannels(ctx, inv.GuildID)
		if err != nil {
			return nil, err
		}
		total := 0
		var b strings.Builder
		for _, ch := range channels {
			list, err := d.store.GetChannelGymLeaders(ctx, ch.ID)
			if err != nil {
				return nil, err
			}
			total += len(list)
			fmt.Fprintf(&b, "\n**%s %s**\n", ch.Emoji, ch.Name)
			if len(list) == 0 {
				b.WriteString("└ *No leaders assigned*\n")
			}
			for _, l := range list {
				fmt.Fprintf(&b, "└ <@%s> (%s)\n", l.UserID, leaderName(l))
			}
		}
		e := &Embed{
			Title:       "🏆 All Gym Leaders - " + inv.GuildName,
			Description: fmt.Sprintf("**%d** total gym leaders across **%d** gym channels:%s", total, len(channels), b.String()),
			Color:       colorOrange,
		}
		return &Reply{Embed: e, Ephemeral: true}, nil
	}
	return textReply("❌ Unknown scope `%s`. Use channel, me or all.", scope), nil
}

func leaderName(l *store.GymLeader) string {
	if l.DisplayName != "" {
		return l.DisplayName
	}
	return l.Username
}

func (d *Dispatcher) setGymOpen(ctx context.Context, inv *Invocation, open bool) (*Reply, error) {
	ok, err := d.canLead(ctx, inv)
	if err != nil {
		return nil, err
	}
	if !ok {
		return textReply("❌ Only Gym Leaders can manage gym status!"), nil
	}
	err = d.store.UpdateChannelStatus(ctx, inv.ChannelID, open)
	if errors.Is(err, util.ErrNotFound) {
		return textReply("❌ This command can only be used in gym channels!"), nil
	}
	if err != nil {
		return nil, err
	}

	e := &Embed{Title: "🟢 Gym Opened!", Description: "The gym is now open for battles. Trainers may challenge the Gym Leader!", Color: colorGreen}
	status := "🟢 Open"
	if !open {
		e = &Embed{Title: "🔴 Gym Closed!", Description: "The gym is temporarily closed. Please check back later!", Color: colorRed}
		status = "🔴 Closed"
	}
	e.add("Status", status, true)
	e.add("Changed by", inv.actor().Mention(), true)
	return &Reply{Embed: e}, nil
}

func (d *Dispatcher) gymStatus(ctx context.Context, inv *Invocation) (*Reply, error) {
	channels, err := d.store.GetGymChannels(ctx, inv.GuildID)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return textReply("❌ No gym channels found. Use `/registergym` to create the gym league first!"), nil
	}

	var b strings.Builder
	open, closed := 0, 0
	for _, ch := range channels {
		status := "🔴 Closed"
		if ch.IsOpen {
			status = "🟢 Open"
			open++
		} else {
			closed++
		}
		fmt.Fprintf(&b, "%s **%s**: %s\n", ch.Emoji, ch.Name, status)
	}

	e := &Embed{Title: "🏆 Gym League Status", Description: "Current status of all gyms in the league:", Color: colorBlue}
	e.add("Gym Status", b.String(), false)
	e.add("Summary", fmt.Sprintf("🟢 Open: %d\n🔴 Closed: %d", open, closed), true)
	return &Reply{Embed: e}, nil
}

func (d *Dispatcher) registerGym(ctx context.Context, inv *Invocation) (*Reply, error) {
	if !inv.IsAdmin {
		return textReply("❌ Only administrators can register gyms!"), nil
	}
	gymType := strings.ToLower(strings.TrimSpace(inv.Args["type"]))
	gym, ok := ByType(gymType)
	if !ok {
		return textReply("❌ Unknown gym type `%s`.", inv.Args["type"]), nil
	}
	existing, err := d.store.GetGymChannel(ctx, inv.ChannelID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return textReply("❌ This channel is already registered as the %s.", TypeTitle(existing.Type)+" gym"), nil
	}

	if err := d.store.AddGuild(ctx, inv.GuildID, inv.GuildName); err != nil {
		return nil, err
	}
	name := inv.ChannelName
	if name == "" {
		name = gym.Name
	}
	err = d.store.AddGymChannel(ctx, &store.GymChannel{
		ID: inv.ChannelID, GuildID: inv.GuildID, Name: name, Type: gym.Type, Emoji: gym.Emoji,
	})
	if err != nil {
		return nil, err
	}

	e := &Embed{
		Title:       fmt.Sprintf("%s %s Registered", gym.Emoji, gym.Name),
		Description: gym.Description,
		Color:       gym.Color,
		Thumbnail:   gym.BadgeImage,
	}
	e.add("Type", TypeTitle(gym.Type), true)
	e.add("Tier", TypeTitle(strings.ReplaceAll(gym.Tier.String(), "_", "-")), true)
	return &Reply{Embed: e, Ephemeral: true}, nil
}
