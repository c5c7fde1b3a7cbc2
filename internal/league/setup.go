package league

import (
	"context"
	"fmt"
	"strings"

	"github.com/franz/gym-league/internal/store"
)

// setup registers the channels the chat platform created for a new league.
// Channels are keyed by gym type; types without a channel are reported but
// do not block setup. A guild is set up once.
func (d *Dispatcher) setup(ctx context.Context, inv *Invocation) (*Reply, error) {
	if !inv.IsAdmin {
		return textReply("❌ Only administrators can set up the gym league!"), nil
	}
	guild, err := d.store.GetGuild(ctx, inv.GuildID)
	if err != nil {
		return nil, err
	}
	if guild != nil && guild.SetupCompleted {
		return textReply("❌ Pokemon Gym League is already set up in this server!"), nil
	}
	if len(inv.Channels) == 0 {
		return textReply("❌ No gym channels were provided for setup."), nil
	}
	for gymType := range inv.Channels {
		if _, ok := ByType(gymType); !ok {
			return textReply("❌ Unknown gym type `%s`.", gymType), nil
		}
	}

	if err := d.store.AddGuild(ctx, inv.GuildID, inv.GuildName); err != nil {
		return nil, err
	}

	var registered, kept int
	var missing []string
	for _, g := range All() {
		id := inv.Channels[g.Type]
		if id == "" {
			missing = append(missing, g.Emoji+" "+g.Name)
			continue
		}
		existing, err := d.store.GetGymChannel(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.GuildID != inv.GuildID {
				return textReply("❌ Channel <#%s> belongs to another server.", id), nil
			}
			kept++
			continue
		}
		err = d.store.AddGymChannel(ctx, &store.GymChannel{
			ID: id, GuildID: inv.GuildID, Name: g.Name, Type: g.Type, Emoji: g.Emoji,
		})
		if err != nil {
			return nil, err
		}
		registered++
	}

	if err := d.store.UpdateGuildSetup(ctx, inv.GuildID, inv.Args["category"]); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("✅ **Pokemon Gym League setup complete!**\n\n")
	fmt.Fprintf(&b, "📝 **Registered channels:** %d", registered)
	if kept > 0 {
		fmt.Fprintf(&b, " (%d already registered)", kept)
	}
	b.WriteString("\n")
	if d.webURL != "" {
		fmt.Fprintf(&b, "🌐 **Web leaderboard:** %s/?guild=%s\n", d.webURL, inv.GuildID)
	}
	if len(missing) > 0 {
		fmt.Fprintf(&b, "\n⚠️ **No channel for:** %s\n", strings.Join(missing, ", "))
	}
	b.WriteString("\n**🚀 Next Steps:**\n" +
		"1. Visit each gym channel\n" +
		"2. Use `/addleader @user` to assign gym leaders\n" +
		"3. Gym leaders can start managing battles!")
	return &Reply{Text: b.String(), Ephemeral: true}, nil
}

func (d *Dispatcher) guilds(ctx context.Context, inv *Invocation) (*Reply, error) {
	list, err := d.store.ListGuilds(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return textReply("❌ No servers are registered yet!"), nil
	}

	const shown = 10
	var b strings.Builder
	ready := 0
	for i, g := range list {
		if g.SetupCompleted {
			ready++
		}
		if i >= shown {
			continue
		}
		status := "⏳ not set up"
		if g.SetupCompleted {
			status = "✅ set up"
		}
		fmt.Fprintf(&b, "**%s**\n└ ID: `%s`\n└ League: %s\n\n", g.Name, g.ID, status)
	}
	if len(list) > shown {
		fmt.Fprintf(&b, "*... and %d more servers*", len(list)-shown)
	}

	e := &Embed{
		Title:       "🌐 Registered Servers",
		Description: fmt.Sprintf("The league knows %d server(s):", len(list)),
		Color:       colorBlue,
	}
	e.add("📋 Server List", strings.TrimSpace(b.String()), false)
	e.add("📊 Statistics", fmt.Sprintf("**Total Servers:** %d\n**Set Up:** %d", len(list), ready), true)
	if d.webURL != "" {
		e.add("🌐 Web Interface", fmt.Sprintf("Visit [%s](%s) to pick a server.", d.webURL, d.webURL), false)
	}
	return &Reply{Embed: e, Ephemeral: true}, nil
}

func (d *Dispatcher) help(ctx context.Context, inv *Invocation) (*Reply, error) {
	e := &Embed{
		Title:       "🤖 Pokemon Gym League Bot - Help",
		Description: "Welcome to the Pokemon Gym League! Here's everything you need to know.",
		Color:       colorBlue,
	}
	e.add("🎯 For Trainers", "`/profile` - View your training progress\n"+
		"`/badges` - See your badge collection\n"+
		"`/leaderboard` - Check server rankings\n"+
		"`/gyminfo` - Get information about gyms\n"+
		"`/gymstatus` - See which gyms are open", true)
	e.add("⚔️ For Gym Leaders", "`/won @trainer` - Award a badge for victory\n"+
		"`/lose @trainer` - Log a battle defeat\n"+
		"`/opengym` - Open your gym for battles\n"+
		"`/closegym` - Temporarily close your gym\n"+
		"`/leaders` - See who leads a gym", true)
	e.add("🛠️ For Admins", "`/setup` - Initialize the gym league\n"+
		"`/registergym` - Register one channel as a gym\n"+
		"`/addleader` `/removeleader` - Manage gym leaders\n"+
		"All gym leader commands work for admins", false)
	e.add("🏆 How to Battle", fmt.Sprintf("1. Visit any gym channel\n"+
		"2. Challenge the gym leader\n"+
		"3. Earn badges for victories!\n"+
		"4. Collect %d badges to challenge the Elite Four\n"+
		"5. Defeat the Elite Four to face the Champion", EliteFourMilestone), false)
	if d.webURL != "" {
		e.add("🌐 Web Interface", fmt.Sprintf("Visit the [web leaderboard](%s/?guild=%s) for statistics, trainer profiles and badge collections!", d.webURL, inv.GuildID), false)
	}
	e.Footer = "Pokemon Gym League Bot • Server: " + inv.GuildName
	return &Reply{Embed: e, Ephemeral: true}, nil
}

func (d *Dispatcher) gymInfo(ctx context.Context, inv *Invocation) (*Reply, error) {
	var e *Embed
	switch category := inv.Args["category"]; category {
	case "gyms":
		e = &Embed{
			Title:       "🏠 Gym Leaders Information",
			Description: fmt.Sprintf("Challenge these %d gym leaders to earn their badges!", len(gyms)),
			Color:       colorGreen,
		}
		for start := 0; start < len(gyms); start += 6 {
			end := min(start+6, len(gyms))
			var lines []string
			for _, g := range gyms[start:end] {
				lines = append(lines, fmt.Sprintf("%s **%s** - %s", g.Emoji, g.Name, strings.ToUpper(g.Type)))
			}
			e.add(fmt.Sprintf("Gyms %d-%d", start+1, end), strings.Join(lines, "\n"), true)
		}
		e.add("💡 How to Battle", "Visit any gym channel and challenge the gym leader! Each gym specializes in a different Pokemon type.", false)

	case "elite":
		e = &Embed{Title: "⭐ Elite Four Information", Description: "The ultimate challenge before facing the Champion!", Color: colorPurple}
		var members []string
		for _, g := range eliteFour {
			members = append(members, fmt.Sprintf("%s **%s**\n%s", g.Emoji, g.Name, g.Description))
		}
		e.add("Elite Four Members", strings.Join(members, "\n\n"), false)
		e.add("📋 Requirements", fmt.Sprintf("• Earn at least %d gym badges\n• Challenge each Elite Four member", EliteFourMilestone), false)

	case "champion":
		e = &Embed{Title: "👑 Champion Information", Description: champion.Description, Color: colorOrange, Thumbnail: champion.BadgeImage}
		e.add(champion.Emoji+" "+champion.Name, "Only those who have conquered all challenges may face the Champion.", false)
		e.add("📋 Requirements to Challenge", fmt.Sprintf("• Earn %d gym badges\n• Defeat all %d Elite Four members", EliteFourMilestone, len(eliteFour)), false)

	case "", "overview":
		e = &Embed{Title: "🏆 Pokemon Gym League Overview", Description: "Your complete guide to becoming a Pokemon Champion!", Color: colorBlue}
		e.add(fmt.Sprintf("🏠 Gym Leaders (%d Total)", len(gyms)), fmt.Sprintf("%d unique gyms await your challenge! Each specializes in a different Pokemon type.", len(gyms)), true)
		e.add(fmt.Sprintf("⭐ Elite Four (%d Members)", len(eliteFour)), fmt.Sprintf("%d elite trainers guard the path to the Champion. Requires %d+ gym badges.", len(eliteFour), EliteFourMilestone), true)
		e.add("👑 Champion (1 Final Boss)", "The ultimate challenge awaiting those who defeat the Elite Four.", true)
		if d.webURL != "" {
			e.add("🌐 Web Interface", fmt.Sprintf("[View detailed gym guide](%s/gyms)", d.webURL), false)
		}

	default:
		return textReply("❌ Unknown category `%s`. Use gyms, elite, champion or overview.", category), nil
	}
	e.Footer = "Use /gyminfo with different categories for specific info • " + inv.GuildName
	return &Reply{Embed: e}, nil
}
