package bot

import (
	"context"
	"fmt"
	"time"

	"modguard/internal/analytics"
	"modguard/internal/config"
	"modguard/internal/escalation"
	"modguard/internal/ledger"
	"modguard/internal/modlog"
	"modguard/internal/policy"
	"modguard/internal/storage"
	"modguard/internal/tempban"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	colorAction  = 0x2ecc71
	colorWarning = 0xe67e22
	colorError   = 0xe74c3c
)

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *storage.Store
	ledger     *ledger.Ledger
	modlog     *modlog.Logger
	analytics  *analytics.Service
	executor   *escalation.Executor
	scheduler  *tempban.Scheduler
	membership *guildMembership
	session    *discordgo.Session
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, ledgerSvc *ledger.Ledger, modLog *modlog.Logger, analyticsSvc *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		ledger:    ledgerSvc,
		modlog:    modLog,
		analytics: analyticsSvc,
		session:   session,
	}

	b.membership = newGuildMembership(session)
	b.executor = escalation.New(b.membership, store, modLog, logger)
	b.scheduler = tempban.New(store, b.membership, modLog, logger)
	b.scheduler.WithPollInterval(time.Duration(cfg.Scheduler.PollSeconds) * time.Second)

	modLog.SetNotifier(func(ctx context.Context, rec storage.ActionRecord) {
		b.notifyAction(ctx, rec)
	})

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.scheduler.Start(context.Background())

	return nil
}

// Close stops the scheduler and the Discord session. The scheduler wait is
// bounded by ctx; pending unbans it leaves behind are rediscovered from
// storage on the next start.
func (b *Bot) Close(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		b.scheduler.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("scheduler stop interrupted", zap.Error(ctx.Err()))
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) guildSettings(ctx context.Context, guildID string) storage.GuildSettings {
	defaults := storage.GuildSettings{
		GuildID:       guildID,
		ModLogChannel: b.cfg.DefaultModLogChannel,
		MuteThreshold: b.cfg.Moderation.MuteThreshold,
		KickThreshold: b.cfg.Moderation.KickThreshold,
		BanThreshold:  b.cfg.Moderation.BanThreshold,
		MuteMinutes:   b.cfg.Moderation.MuteMinutes,
		BanMinutes:    b.cfg.Moderation.BanMinutes,
	}

	settings, err := b.store.GetGuildSettings(ctx, guildID, defaults)
	if err != nil {
		b.logger.Warn("guild settings fallback", zap.Error(err))
		return defaults
	}
	return settings
}

func guildPolicy(settings storage.GuildSettings) policy.Policy {
	return policy.Policy{
		MuteThreshold: thresholdPtr(settings.MuteThreshold),
		KickThreshold: thresholdPtr(settings.KickThreshold),
		BanThreshold:  thresholdPtr(settings.BanThreshold),
		MuteDuration:  time.Duration(settings.MuteMinutes) * time.Minute,
		BanDuration:   time.Duration(settings.BanMinutes) * time.Minute,
	}
}

func thresholdPtr(value int) *int {
	if value <= 0 {
		return nil
	}
	return &value
}

// isModerator gates moderation commands: stored admin users and roles first,
// then Discord's own administrator or moderate-members permission bits.
func (b *Bot) isModerator(ctx context.Context, guildID string, member *discordgo.Member) bool {
	if member == nil || member.User == nil {
		return false
	}

	users, err := b.store.ListAdminUsers(ctx, guildID)
	if err == nil {
		for _, id := range users {
			if id == member.User.ID {
				return true
			}
		}
	}
	roles, err := b.store.ListAdminRoles(ctx, guildID)
	if err == nil {
		roleSet := make(map[string]struct{}, len(roles))
		for _, id := range roles {
			roleSet[id] = struct{}{}
		}
		for _, roleID := range member.Roles {
			if _, ok := roleSet[roleID]; ok {
				return true
			}
		}
	}

	return member.Permissions&discordgo.PermissionAdministrator != 0 ||
		member.Permissions&discordgo.PermissionModerateMembers != 0
}

func (b *Bot) notifyAction(ctx context.Context, rec storage.ActionRecord) {
	settings := b.guildSettings(ctx, rec.GuildID)
	if settings.ModLogChannel == "" {
		return
	}

	actor := "system"
	if rec.ModeratorID != "" {
		actor = "<@" + rec.ModeratorID + ">"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Member", Value: "<@" + rec.UserID + ">", Inline: true},
		{Name: "Moderator", Value: actor, Inline: true},
		{Name: "Reason", Value: rec.Reason, Inline: false},
	}
	if rec.BannedUntil != nil {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Until", Value: rec.BannedUntil.UTC().Format(time.RFC1123), Inline: true})
	}
	if rec.MutedUntil != nil {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Until", Value: rec.MutedUntil.UTC().Format(time.RFC1123), Inline: true})
	}

	embed := &discordgo.MessageEmbed{
		Title:     "Moderation: " + rec.Action,
		Color:     colorWarning,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields:    fields,
	}
	if _, err := b.session.ChannelMessageSendEmbed(settings.ModLogChannel, embed); err != nil {
		b.logger.Warn("mod log notify failed", zap.String("guild_id", rec.GuildID), zap.Error(err))
	}
}

func (b *Bot) notifyWarning(ctx context.Context, guildID, userID, moderatorID, reason string, strikes int) {
	settings := b.guildSettings(ctx, guildID)
	if settings.ModLogChannel == "" {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:     "Moderation: warn",
		Color:     colorWarning,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Member", Value: "<@" + userID + ">", Inline: true},
			{Name: "Moderator", Value: "<@" + moderatorID + ">", Inline: true},
			{Name: "Strikes", Value: fmt.Sprintf("%d", strikes), Inline: true},
			{Name: "Reason", Value: reason, Inline: false},
		},
	}
	if _, err := b.session.ChannelMessageSendEmbed(settings.ModLogChannel, embed); err != nil {
		b.logger.Warn("mod log notify failed", zap.String("guild_id", guildID), zap.Error(err))
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}
