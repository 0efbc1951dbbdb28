package storage

import (
	"context"
	"database/sql"
	"errors"
)

type GuildSettings struct {
	GuildID       string
	ModLogChannel string
	MuteThreshold int
	KickThreshold int
	BanThreshold  int
	MuteMinutes   int
	BanMinutes    int
}

func (s *Store) GetGuildSettings(ctx context.Context, guildID string, defaults GuildSettings) (GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT mod_log_channel, mute_threshold, kick_threshold, ban_threshold, mute_minutes, ban_minutes
		FROM guild_settings WHERE guild_id = ?`, guildID)

	result := defaults
	result.GuildID = guildID

	err := row.Scan(
		&result.ModLogChannel,
		&result.MuteThreshold,
		&result.KickThreshold,
		&result.BanThreshold,
		&result.MuteMinutes,
		&result.BanMinutes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return GuildSettings{}, err
	}
	return result, nil
}

func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (
			guild_id, mod_log_channel, mute_threshold, kick_threshold, ban_threshold, mute_minutes, ban_minutes
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			mod_log_channel = excluded.mod_log_channel,
			mute_threshold = excluded.mute_threshold,
			kick_threshold = excluded.kick_threshold,
			ban_threshold = excluded.ban_threshold,
			mute_minutes = excluded.mute_minutes,
			ban_minutes = excluded.ban_minutes
	`,
		settings.GuildID,
		settings.ModLogChannel,
		settings.MuteThreshold,
		settings.KickThreshold,
		settings.BanThreshold,
		settings.MuteMinutes,
		settings.BanMinutes,
	)
	return err
}
