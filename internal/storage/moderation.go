package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const (
	ActionMute  = "mute"
	ActionKick  = "kick"
	ActionBan   = "ban"
	ActionUnban = "unban"
)

// ActionRecord is one append-only entry in a member's moderation history.
// ModeratorID is empty for system-issued actions and stored as NULL.
// The optional state fields update the member's durable flags alongside the
// append: MutedUntil sets the mute expiry, Banned sets the ban flag with
// BannedUntil as its expiry (nil clears it, meaning permanent or unbanned).
type ActionRecord struct {
	GuildID     string
	UserID      string
	Action      string
	ModeratorID string
	Reason      string
	Metadata    map[string]any
	MutedUntil  *time.Time
	Banned      *bool
	BannedUntil *time.Time
	CreatedAt   time.Time
}

type MemberState struct {
	GuildID      string
	UserID       string
	Strikes      int
	IsBanned     bool
	BannedUntil  *time.Time
	MutedUntil   *time.Time
	LastAction   string
	LastActionAt *time.Time
	LastWarnedAt *time.Time
}

func (s *Store) RecordAction(ctx context.Context, rec ActionRecord) error {
	now := time.Now()
	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	var moderator any
	if rec.ModeratorID != "" {
		moderator = rec.ModeratorID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO moderation_actions (guild_id, user_id, action, moderator_id, reason, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.GuildID, rec.UserID, rec.Action, moderator, rec.Reason, string(encoded), now.Unix())
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO moderation_state (guild_id, user_id, last_action, last_action_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			last_action = excluded.last_action,
			last_action_at = excluded.last_action_at
	`, rec.GuildID, rec.UserID, rec.Action, now.Unix())
	if err != nil {
		return err
	}

	if rec.MutedUntil != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE moderation_state SET muted_until = ? WHERE guild_id = ? AND user_id = ?
		`, rec.MutedUntil.Unix(), rec.GuildID, rec.UserID)
		if err != nil {
			return err
		}
	}
	if rec.Banned != nil {
		var bannedUntil any
		if rec.BannedUntil != nil {
			bannedUntil = rec.BannedUntil.Unix()
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE moderation_state SET is_banned = ?, banned_until = ? WHERE guild_id = ? AND user_id = ?
		`, boolToInt(*rec.Banned), bannedUntil, rec.GuildID, rec.UserID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) GetMemberState(ctx context.Context, guildID, userID string) (MemberState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT strikes, is_banned, banned_until, muted_until, last_action, last_action_at, last_warned_at
		FROM moderation_state
		WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)

	state := MemberState{GuildID: guildID, UserID: userID}
	var banned int
	var bannedUntil, mutedUntil, lastActionAt, lastWarnedAt sql.NullInt64
	err := row.Scan(&state.Strikes, &banned, &bannedUntil, &mutedUntil, &state.LastAction, &lastActionAt, &lastWarnedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return state, nil
		}
		return MemberState{}, err
	}
	state.IsBanned = banned == 1
	state.BannedUntil = unixPtr(bannedUntil)
	state.MutedUntil = unixPtr(mutedUntil)
	state.LastActionAt = unixPtr(lastActionAt)
	state.LastWarnedAt = unixPtr(lastWarnedAt)
	return state, nil
}

// CountActions returns per-kind totals of recorded actions for a guild since
// the given time.
func (s *Store) CountActions(ctx context.Context, guildID string, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT action, COUNT(*)
		FROM moderation_actions
		WHERE guild_id = ? AND created_at >= ?
		GROUP BY action
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}
	return counts, rows.Err()
}

func unixPtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := time.Unix(value.Int64, 0)
	return &t
}
