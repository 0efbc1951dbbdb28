package storage

import (
	"context"
	"database/sql"
	"time"
)

type WarningEntry struct {
	ID          int64
	GuildID     string
	UserID      string
	ModeratorID string
	Reason      string
	CreatedAt   time.Time
}

// AppendWarning inserts a warning and returns the full ordered history for
// the member, including the new entry. The insert, the re-read, and the
// strike counter update share one transaction so concurrent warns for the
// same member never lose an entry or return a stale count.
func (s *Store) AppendWarning(ctx context.Context, guildID, userID, moderatorID, reason string) ([]WarningEntry, error) {
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO warnings (guild_id, user_id, moderator_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, guildID, userID, moderatorID, reason, now.Unix())
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, guild_id, user_id, moderator_id, reason, created_at
		FROM warnings
		WHERE guild_id = ? AND user_id = ?
		ORDER BY id
	`, guildID, userID)
	if err != nil {
		return nil, err
	}
	entries, err := scanWarnings(rows)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO moderation_state (guild_id, user_id, strikes, last_warned_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			strikes = excluded.strikes,
			last_warned_at = excluded.last_warned_at
	`, guildID, userID, len(entries), now.Unix())
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) ListWarnings(ctx context.Context, guildID, userID string) ([]WarningEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, moderator_id, reason, created_at
		FROM warnings
		WHERE guild_id = ? AND user_id = ?
		ORDER BY id
	`, guildID, userID)
	if err != nil {
		return nil, err
	}
	return scanWarnings(rows)
}

// CountWarnings returns how many warnings were issued in the guild since the
// given time.
func (s *Store) CountWarnings(ctx context.Context, guildID string, since time.Time) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM warnings WHERE guild_id = ? AND created_at >= ?
	`, guildID, since.Unix())
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanWarnings(rows *sql.Rows) ([]WarningEntry, error) {
	defer rows.Close()

	entries := []WarningEntry{}
	for rows.Next() {
		var entry WarningEntry
		var created int64
		if err := rows.Scan(&entry.ID, &entry.GuildID, &entry.UserID, &entry.ModeratorID, &entry.Reason, &created); err != nil {
			return nil, err
		}
		entry.CreatedAt = time.Unix(created, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
