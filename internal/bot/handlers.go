package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"modguard/internal/ledger"
	"modguard/internal/policy"
	"modguard/internal/storage"
	"modguard/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()

	switch data.Name {
	case "warn", "warnings", "mute", "kick", "ban", "policy", "admins", "modstats":
		if interaction.GuildID == "" {
			b.respond(session, interaction, "This command only works in a server.", true)
			return
		}
		if !b.isModerator(ctx, interaction.GuildID, interaction.Member) {
			b.respond(session, interaction, "You need moderator permissions to use this command.", true)
			return
		}
	}

	switch data.Name {
	case "warn":
		b.handleWarn(ctx, session, interaction, data.Options)
	case "warnings":
		b.handleWarnings(ctx, session, interaction, data.Options)
	case "mute":
		b.handleMute(ctx, session, interaction, data.Options)
	case "kick":
		b.handleKick(ctx, session, interaction, data.Options)
	case "ban":
		b.handleBan(ctx, session, interaction, data.Options)
	case "policy":
		b.handlePolicy(ctx, session, interaction, data.Options)
	case "admins":
		b.handleAdmins(ctx, session, interaction, data.Options)
	case "modstats":
		b.handleModStats(ctx, session, interaction, data.Options)
	case "balance":
		b.handleBalance(ctx, session, interaction, data.Options)
	case "earn":
		b.handleEarn(ctx, session, interaction)
	case "give":
		b.handleGive(ctx, session, interaction, data.Options)
	case "ping":
		b.respond(session, interaction, fmt.Sprintf("Pong! %dms", session.HeartbeatLatency().Milliseconds()), false)
	}
}

func (b *Bot) handleWarn(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	target := userOption(opts, "user", session)
	if target == nil {
		b.respond(session, interaction, "Could not resolve that member.", true)
		return
	}
	if target.Bot {
		b.respond(session, interaction, "Bots cannot be warned.", true)
		return
	}
	reason := stringOption(opts, "reason")
	moderatorID := interaction.Member.User.ID

	res, err := b.ledger.AddWarning(ctx, interaction.GuildID, target.ID, moderatorID, reason)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrEmptyReason):
			b.respond(session, interaction, "A reason is required to warn a member.", true)
		case errors.Is(err, ledger.ErrReasonTooLong):
			b.respond(session, interaction, fmt.Sprintf("The reason must be %d characters or fewer.", ledger.MaxReasonLength), true)
		default:
			b.logger.Error("warn command failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
			b.respond(session, interaction, "Could not record the warning. Nothing was saved.", true)
		}
		return
	}

	settings := b.guildSettings(ctx, interaction.GuildID)
	pol := guildPolicy(settings)
	action := policy.Decide(pol, res.Strikes)

	description := fmt.Sprintf("<@%s> has been warned. This is strike %d.", target.ID, res.Strikes)
	switch action {
	case policy.ActionMute:
		description += fmt.Sprintf(" Strike threshold reached: muting for %s.", utils.FormatDuration(pol.MuteDuration))
	case policy.ActionKick:
		description += " Strike threshold reached: kicking."
	case policy.ActionBan:
		if pol.BanDuration > 0 {
			description += fmt.Sprintf(" Strike threshold reached: banning for %s.", utils.FormatDuration(pol.BanDuration))
		} else {
			description += " Strike threshold reached: banning."
		}
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Reason", Value: res.Entry.Reason, Inline: false},
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Member warned", description, colorWarning, fields), false)
	b.notifyWarning(ctx, interaction.GuildID, target.ID, moderatorID, res.Entry.Reason, res.Strikes)

	if action != policy.ActionNone {
		b.executor.Apply(ctx, action, interaction.GuildID, target.ID, res.Strikes, pol)
	}
}

func (b *Bot) handleWarnings(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	target := userOption(opts, "user", session)
	if target == nil {
		b.respond(session, interaction, "Could not resolve that member.", true)
		return
	}

	entries, err := b.ledger.Warnings(ctx, interaction.GuildID, target.ID)
	if err != nil {
		b.logger.Error("warnings lookup failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respond(session, interaction, "Could not load the warning history.", true)
		return
	}

	if len(entries) == 0 {
		b.respondEmbed(session, interaction, b.commandEmbed("Warnings", fmt.Sprintf("<@%s> has no warnings.", target.ID), colorAction, nil), true)
		return
	}

	const maxShown = 5
	lines := make([]string, 0, maxShown)
	start := 0
	if len(entries) > maxShown {
		start = len(entries) - maxShown
	}
	for i, entry := range entries[start:] {
		lines = append(lines, fmt.Sprintf("%d. %s (<t:%d:R> by <@%s>)", start+i+1, entry.Reason, entry.CreatedAt.Unix(), entry.ModeratorID))
	}

	description := fmt.Sprintf("<@%s> has %d warning(s).", target.ID, len(entries))
	fields := []*discordgo.MessageEmbedField{{Name: "History", Value: strings.Join(lines, "\n"), Inline: false}}
	b.respondEmbed(session, interaction, b.commandEmbed("Warnings", description, colorWarning, fields), true)
}

func (b *Bot) handleMute(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	target := userOption(opts, "user", session)
	if target == nil {
		b.respond(session, interaction, "Could not resolve that member.", true)
		return
	}
	minutes := intOption(opts, "minutes")
	reason := stringOption(opts, "reason")
	if reason == "" {
		reason = "Muted by moderator"
	}

	ok, err := b.membership.CanTimeout(ctx, interaction.GuildID, target.ID)
	if err != nil || !ok {
		b.respond(session, interaction, "I cannot mute that member.", true)
		return
	}

	duration := time.Duration(minutes) * time.Minute
	until := time.Now().Add(duration)
	if err := b.membership.Timeout(ctx, interaction.GuildID, target.ID, until, reason); err != nil {
		b.logger.Warn("mute command failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respond(session, interaction, "The mute failed.", true)
		return
	}

	b.modlog.Record(ctx, storage.ActionRecord{
		GuildID:     interaction.GuildID,
		UserID:      target.ID,
		Action:      storage.ActionMute,
		ModeratorID: interaction.Member.User.ID,
		Reason:      reason,
		Metadata:    map[string]any{"duration_minutes": minutes},
		MutedUntil:  &until,
	})
	b.respondEmbed(session, interaction, b.commandEmbed("Member muted",
		fmt.Sprintf("<@%s> is muted for %s.", target.ID, utils.FormatDuration(duration)), colorAction, nil), false)
}

func (b *Bot) handleKick(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	target := userOption(opts, "user", session)
	if target == nil {
		b.respond(session, interaction, "Could not resolve that member.", true)
		return
	}
	reason := stringOption(opts, "reason")
	if reason == "" {
		reason = "Kicked by moderator"
	}

	ok, err := b.membership.CanKick(ctx, interaction.GuildID, target.ID)
	if err != nil || !ok {
		b.respond(session, interaction, "I cannot kick that member.", true)
		return
	}

	if err := b.membership.Kick(ctx, interaction.GuildID, target.ID, reason); err != nil {
		b.logger.Warn("kick command failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respond(session, interaction, "The kick failed.", true)
		return
	}

	b.modlog.Record(ctx, storage.ActionRecord{
		GuildID:     interaction.GuildID,
		UserID:      target.ID,
		Action:      storage.ActionKick,
		ModeratorID: interaction.Member.User.ID,
		Reason:      reason,
	})
	b.respondEmbed(session, interaction, b.commandEmbed("Member kicked",
		fmt.Sprintf("<@%s> has been kicked.", target.ID), colorAction, nil), false)
}

func (b *Bot) handleBan(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	target := userOption(opts, "user", session)
	if target == nil {
		b.respond(session, interaction, "Could not resolve that member.", true)
		return
	}
	minutes := intOption(opts, "minutes")
	reason := stringOption(opts, "reason")
	if reason == "" {
		reason = "Banned by moderator"
	}

	if err := b.membership.Ban(ctx, interaction.GuildID, target.ID, reason); err != nil {
		b.logger.Warn("ban command failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respond(session, interaction, "The ban failed.", true)
		return
	}

	banned := true
	rec := storage.ActionRecord{
		GuildID:     interaction.GuildID,
		UserID:      target.ID,
		Action:      storage.ActionBan,
		ModeratorID: interaction.Member.User.ID,
		Reason:      reason,
		Banned:      &banned,
	}

	description := fmt.Sprintf("<@%s> has been banned.", target.ID)
	if minutes > 0 {
		duration := time.Duration(minutes) * time.Minute
		until := time.Now().Add(duration)
		if _, err := b.store.CreateTempBan(ctx, interaction.GuildID, target.ID, until, reason); err != nil {
			b.logger.Error("temp ban record failed, ban is permanent until lifted manually",
				zap.String("guild_id", interaction.GuildID), zap.String("user_id", target.ID), zap.Error(err))
		} else {
			rec.BannedUntil = &until
			rec.Metadata = map[string]any{"duration_minutes": minutes}
			description = fmt.Sprintf("<@%s> has been banned for %s.", target.ID, utils.FormatDuration(duration))
		}
	}

	b.modlog.Record(ctx, rec)
	b.respondEmbed(session, interaction, b.commandEmbed("Member banned", description, colorAction, nil), false)
}

func (b *Bot) handlePolicy(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	action := stringOption(opts, "action")
	settings := b.guildSettings(ctx, interaction.GuildID)

	if action == "view" {
		b.respondEmbed(session, interaction, b.commandEmbed("Escalation policy", "Current strike thresholds.", colorAction, policyFields(settings)), true)
		return
	}
	if action != "set" {
		b.respond(session, interaction, "Unknown action.", true)
		return
	}

	if opt, ok := opts["mute_threshold"]; ok {
		settings.MuteThreshold = int(opt.IntValue())
	}
	if opt, ok := opts["kick_threshold"]; ok {
		settings.KickThreshold = int(opt.IntValue())
	}
	if opt, ok := opts["ban_threshold"]; ok {
		settings.BanThreshold = int(opt.IntValue())
	}
	if opt, ok := opts["mute_minutes"]; ok {
		settings.MuteMinutes = int(opt.IntValue())
	}
	if opt, ok := opts["ban_minutes"]; ok {
		settings.BanMinutes = int(opt.IntValue())
	}
	if opt, ok := opts["log_channel"]; ok {
		if channel := opt.ChannelValue(session); channel != nil {
			settings.ModLogChannel = channel.ID
		}
	}

	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.logger.Warn("policy update failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respond(session, interaction, "Could not save the policy.", true)
		return
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Escalation policy", "Policy updated.", colorAction, policyFields(settings)), true)
}

func policyFields(settings storage.GuildSettings) []*discordgo.MessageEmbedField {
	threshold := func(value int) string {
		if value <= 0 {
			return "disabled"
		}
		return fmt.Sprintf("%d strikes", value)
	}
	banDuration := "permanent"
	if settings.BanMinutes > 0 {
		banDuration = utils.FormatDuration(time.Duration(settings.BanMinutes) * time.Minute)
	}
	logChannel := "not set"
	if settings.ModLogChannel != "" {
		logChannel = "<#" + settings.ModLogChannel + ">"
	}
	return []*discordgo.MessageEmbedField{
		{Name: "Mute", Value: threshold(settings.MuteThreshold), Inline: true},
		{Name: "Kick", Value: threshold(settings.KickThreshold), Inline: true},
		{Name: "Ban", Value: threshold(settings.BanThreshold), Inline: true},
		{Name: "Mute duration", Value: utils.FormatDuration(time.Duration(settings.MuteMinutes) * time.Minute), Inline: true},
		{Name: "Ban duration", Value: banDuration, Inline: true},
		{Name: "Log channel", Value: logChannel, Inline: true},
	}
}

func (b *Bot) handleAdmins(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	action := stringOption(opts, "action")
	target := userOption(opts, "user", session)
	var roleID string
	if opt, ok := opts["role"]; ok {
		if role := opt.RoleValue(session, interaction.GuildID); role != nil {
			roleID = role.ID
		}
	}

	if action == "list" {
		users, _ := b.store.ListAdminUsers(ctx, interaction.GuildID)
		roles, _ := b.store.ListAdminRoles(ctx, interaction.GuildID)
		userLines := "none"
		roleLines := "none"
		if len(users) > 0 {
			lines := make([]string, 0, len(users))
			for _, id := range users {
				lines = append(lines, "<@"+id+">")
			}
			userLines = strings.Join(lines, "\n")
		}
		if len(roles) > 0 {
			lines := make([]string, 0, len(roles))
			for _, id := range roles {
				lines = append(lines, "<@&"+id+">")
			}
			roleLines = strings.Join(lines, "\n")
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Users", Value: userLines, Inline: false},
			{Name: "Roles", Value: roleLines, Inline: false},
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Bot moderators", "Users and roles allowed to moderate.", colorAction, fields), true)
		return
	}

	if target == nil && roleID == "" {
		b.respond(session, interaction, "Pick a user or a role.", true)
		return
	}

	if target != nil {
		if action == "add" {
			_ = b.store.AddAdminUser(ctx, interaction.GuildID, target.ID)
		} else {
			_ = b.store.RemoveAdminUser(ctx, interaction.GuildID, target.ID)
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Bot moderators", fmt.Sprintf("Updated <@%s>.", target.ID), colorAction, nil), true)
		return
	}

	if action == "add" {
		_ = b.store.AddAdminRole(ctx, interaction.GuildID, roleID)
	} else {
		_ = b.store.RemoveAdminRole(ctx, interaction.GuildID, roleID)
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Bot moderators", fmt.Sprintf("Updated <@&%s>.", roleID), colorAction, nil), true)
}

func (b *Bot) handleModStats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	period := stringOption(opts, "period")
	start := time.Now().Add(-24 * time.Hour)
	if period == "week" {
		start = time.Now().Add(-7 * 24 * time.Hour)
	}

	report, err := b.analytics.GuildReport(ctx, interaction.GuildID, start)
	if err != nil {
		b.logger.Error("modstats failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respond(session, interaction, "Could not build the report.", true)
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Warnings", Value: fmt.Sprintf("%d", report.Warnings), Inline: true},
		{Name: "Mutes", Value: fmt.Sprintf("%d", report.Mutes), Inline: true},
		{Name: "Kicks", Value: fmt.Sprintf("%d", report.Kicks), Inline: true},
		{Name: "Bans", Value: fmt.Sprintf("%d", report.Bans), Inline: true},
		{Name: "Unbans", Value: fmt.Sprintf("%d", report.Unbans), Inline: true},
	}
	title := "Moderation report (last day)"
	if period == "week" {
		title = "Moderation report (last week)"
	}
	b.respondEmbed(session, interaction, b.commandEmbed(title, fmt.Sprintf("%d actions taken.", report.Total()), colorAction, fields), true)
}

func (b *Bot) handleBalance(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	user := userOption(opts, "user", session)
	self := user == nil
	if self {
		user = interactionUser(interaction)
	}
	if user == nil {
		b.respond(session, interaction, "Could not resolve that account.", true)
		return
	}

	balance, err := b.store.GetBalance(ctx, user.ID)
	if err != nil {
		b.logger.Error("balance lookup failed", zap.String("user_id", user.ID), zap.Error(err))
		b.respond(session, interaction, "Could not load the balance.", true)
		return
	}
	if self {
		b.respond(session, interaction, fmt.Sprintf("You have %d coins.", balance), true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("<@%s> has %d coins.", user.ID, balance), true)
}

func (b *Bot) handleEarn(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	user := interactionUser(interaction)
	if user == nil {
		b.respond(session, interaction, "Could not resolve your account.", true)
		return
	}

	cooldown := time.Duration(b.cfg.Currency.CooldownHours) * time.Hour
	claimed, remaining, balance, err := b.store.ClaimDaily(ctx, user.ID, b.cfg.Currency.DailyReward, cooldown)
	if err != nil {
		b.logger.Error("daily claim failed", zap.String("user_id", user.ID), zap.Error(err))
		b.respond(session, interaction, "Could not process your claim.", true)
		return
	}
	if !claimed {
		b.respond(session, interaction, fmt.Sprintf("You already claimed today. Come back in %s.", utils.FormatDuration(remaining)), true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("You earned %d coins! Balance: %d.", b.cfg.Currency.DailyReward, balance), true)
}

func (b *Bot) handleGive(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	sender := interactionUser(interaction)
	if sender == nil {
		b.respond(session, interaction, "Could not resolve your account.", true)
		return
	}
	opts := optionMap(options)
	target := userOption(opts, "user", session)
	if target == nil {
		b.respond(session, interaction, "Could not resolve that member.", true)
		return
	}
	if target.ID == sender.ID {
		b.respond(session, interaction, "You cannot give coins to yourself.", true)
		return
	}
	if target.Bot {
		b.respond(session, interaction, "Bots have no use for coins.", true)
		return
	}
	amount := int64(intOption(opts, "amount"))
	if amount <= 0 {
		b.respond(session, interaction, "The amount must be positive.", true)
		return
	}

	balance, err := b.store.Transfer(ctx, sender.ID, target.ID, amount)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) {
			b.respond(session, interaction, fmt.Sprintf("You only have %d coins.", balance), true)
			return
		}
		b.logger.Error("transfer failed", zap.String("user_id", sender.ID), zap.Error(err))
		b.respond(session, interaction, "Could not complete the transfer.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Gave %d coins to <@%s>. You have %d left.", amount, target.ID, balance), false)
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := opts[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func intOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) int {
	if opt, ok := opts[name]; ok {
		return int(opt.IntValue())
	}
	return 0
}

func userOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string, session *discordgo.Session) *discordgo.User {
	if opt, ok := opts[name]; ok {
		return opt.UserValue(session)
	}
	return nil
}
