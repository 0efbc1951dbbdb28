package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

// guildMembership adapts the Discord session to the action interfaces used by
// the escalation executor and the temp-ban scheduler.
type guildMembership struct {
	session *discordgo.Session
}

func newGuildMembership(session *discordgo.Session) *guildMembership {
	return &guildMembership{session: session}
}

func (m *guildMembership) CanTimeout(ctx context.Context, guildID, userID string) (bool, error) {
	return m.canModerate(guildID, userID)
}

func (m *guildMembership) Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	return m.session.GuildMemberTimeout(guildID, userID, &until)
}

func (m *guildMembership) CanKick(ctx context.Context, guildID, userID string) (bool, error) {
	return m.canModerate(guildID, userID)
}

func (m *guildMembership) Kick(ctx context.Context, guildID, userID, reason string) error {
	return m.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (m *guildMembership) Ban(ctx context.Context, guildID, userID, reason string) error {
	return m.session.GuildBanCreateWithReason(guildID, userID, reason, 0)
}

func (m *guildMembership) Unban(ctx context.Context, guildID, userID string) error {
	return m.session.GuildBanDelete(guildID, userID)
}

// canModerate reports whether the bot outranks the member: the guild owner
// and members whose highest role sits at or above the bot's cannot be acted
// on, the API would reject it anyway.
func (m *guildMembership) canModerate(guildID, userID string) (bool, error) {
	guild, err := m.session.State.Guild(guildID)
	if err != nil || guild == nil {
		guild, err = m.session.Guild(guildID)
		if err != nil {
			return false, err
		}
	}
	if guild.OwnerID == userID {
		return false, nil
	}

	target := m.member(guildID, userID)
	if target == nil {
		return false, nil
	}
	self := m.member(guildID, m.session.State.User.ID)
	if self == nil {
		return false, nil
	}
	return highestRolePosition(guild, self) > highestRolePosition(guild, target), nil
}

func (m *guildMembership) member(guildID, userID string) *discordgo.Member {
	member, err := m.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return member
	}
	member, _ = m.session.GuildMember(guildID, userID)
	return member
}

func highestRolePosition(guild *discordgo.Guild, member *discordgo.Member) int {
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
	}
	position := 0
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil && role.Position > position {
			position = role.Position
		}
	}
	return position
}
