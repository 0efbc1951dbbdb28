package storage

import (
	"context"
	"errors"
	"time"
)

// ErrWatchUnsupported is returned by temp-ban watch implementations that
// cannot deliver insert notifications; callers fall back to polling.
var ErrWatchUnsupported = errors.New("storage: temp ban watch not supported")

type TempBan struct {
	ID        int64
	GuildID   string
	UserID    string
	UnbanAt   time.Time
	Reason    string
	CreatedAt time.Time
}

func (s *Store) CreateTempBan(ctx context.Context, guildID, userID string, unbanAt time.Time, reason string) (TempBan, error) {
	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO temp_bans (guild_id, user_id, unban_at, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, guildID, userID, unbanAt.UnixMilli(), reason, now.Unix())
	if err != nil {
		return TempBan{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return TempBan{}, err
	}

	ban := TempBan{
		ID:        id,
		GuildID:   guildID,
		UserID:    userID,
		UnbanAt:   unbanAt,
		Reason:    reason,
		CreatedAt: now,
	}
	s.notifyTempBan(ban)
	return ban, nil
}

func (s *Store) ListTempBans(ctx context.Context) ([]TempBan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, unban_at, reason, created_at
		FROM temp_bans
		ORDER BY unban_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bans []TempBan
	for rows.Next() {
		var ban TempBan
		var unbanAt, created int64
		if err := rows.Scan(&ban.ID, &ban.GuildID, &ban.UserID, &unbanAt, &ban.Reason, &created); err != nil {
			return nil, err
		}
		ban.UnbanAt = time.UnixMilli(unbanAt)
		ban.CreatedAt = time.Unix(created, 0)
		bans = append(bans, ban)
	}
	return bans, rows.Err()
}

func (s *Store) DeleteTempBan(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM temp_bans WHERE id = ?`, id)
	return err
}

// WatchTempBans delivers temp bans created through this store until ctx is
// done. All writes flow through the one process, so an in-process fanout is
// enough; a missed notification is recovered by the scheduler's rescans.
func (s *Store) WatchTempBans(ctx context.Context) (<-chan TempBan, error) {
	ch := make(chan TempBan, 16)

	s.watchMu.Lock()
	s.watchers = append(s.watchers, ch)
	s.watchMu.Unlock()

	go func() {
		<-ctx.Done()
		s.watchMu.Lock()
		for i, watcher := range s.watchers {
			if watcher == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				close(ch)
				break
			}
		}
		s.watchMu.Unlock()
	}()

	return ch, nil
}

func (s *Store) notifyTempBan(ban TempBan) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- ban:
		default:
		}
	}
}
