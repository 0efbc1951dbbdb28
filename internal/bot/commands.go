package bot

import "github.com/bwmarrin/discordgo"

func (b *Bot) registerCommands() error {
	minStrikes := 0.0
	minOne := 1.0

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "warn",
			Description: "Warn a member and record a strike",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to warn",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "reason for the warning",
					Required:    true,
				},
			},
		},
		{
			Name:        "warnings",
			Description: "Show a member's warning history",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to inspect",
					Required:    true,
				},
			},
		},
		{
			Name:        "mute",
			Description: "Time out a member",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to mute",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "duration in minutes",
					Required:    true,
					MinValue:    &minOne,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "reason for the mute",
					Required:    false,
				},
			},
		},
		{
			Name:        "kick",
			Description: "Kick a member",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to kick",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "reason for the kick",
					Required:    false,
				},
			},
		},
		{
			Name:        "ban",
			Description: "Ban a member, optionally for a limited time",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to ban",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "duration in minutes, omit for permanent",
					Required:    false,
					MinValue:    &minOne,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "reason for the ban",
					Required:    false,
				},
			},
		},
		{
			Name:        "policy",
			Description: "View or set the strike escalation policy",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "view or set",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "view", Value: "view"},
						{Name: "set", Value: "set"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "mute_threshold",
					Description: "strikes that trigger a mute, 0 disables",
					Required:    false,
					MinValue:    &minStrikes,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "kick_threshold",
					Description: "strikes that trigger a kick, 0 disables",
					Required:    false,
					MinValue:    &minStrikes,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "ban_threshold",
					Description: "strikes that trigger a ban, 0 disables",
					Required:    false,
					MinValue:    &minStrikes,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "mute_minutes",
					Description: "auto mute duration in minutes",
					Required:    false,
					MinValue:    &minStrikes,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "ban_minutes",
					Description: "auto ban duration in minutes, 0 is permanent",
					Required:    false,
					MinValue:    &minStrikes,
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "log_channel",
					Description: "channel for moderation log entries",
					Required:    false,
				},
			},
		},
		{
			Name:        "admins",
			Description: "Manage bot moderator users and roles",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "add, remove, or list",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "list", Value: "list"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "target user",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "target role",
					Required:    false,
				},
			},
		},
		{
			Name:        "modstats",
			Description: "Moderation activity report",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "period",
					Description: "day or week",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "day", Value: "day"},
						{Name: "week", Value: "week"},
					},
				},
			},
		},
		{
			Name:        "balance",
			Description: "Show a coin balance",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to look up, defaults to you",
					Required:    false,
				},
			},
		},
		{
			Name:        "earn",
			Description: "Claim your daily coins",
		},
		{
			Name:        "give",
			Description: "Give coins to another member",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to pay",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "coins to transfer",
					Required:    true,
					MinValue:    &minOne,
				},
			},
		},
		{
			Name:        "ping",
			Description: "Check bot latency",
		},
	}

	appID := b.session.State.User.ID
	_, err := b.session.ApplicationCommandBulkOverwrite(appID, "", commands)
	return err
}
