package modlog

import (
	"context"

	"modguard/internal/storage"

	"go.uber.org/zap"
)

// Logger persists moderation actions and mirrors them to the process log.
// An optional notifier announces entries to the guild's log channel.
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, storage.ActionRecord)
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.ActionRecord)) {
	l.notify = notify
}

// Record appends the action entry. Persistence failures are logged but not
// returned: the moderation action already happened and the caller must not
// treat it as failed.
func (l *Logger) Record(ctx context.Context, rec storage.ActionRecord) {
	if l.store != nil {
		if err := l.store.RecordAction(ctx, rec); err != nil {
			l.logger.Error("moderation record failed",
				zap.String("guild_id", rec.GuildID),
				zap.String("user_id", rec.UserID),
				zap.String("action", rec.Action),
				zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, rec)
	}
	l.logger.Info("moderation action",
		zap.String("guild_id", rec.GuildID),
		zap.String("user_id", rec.UserID),
		zap.String("action", rec.Action),
		zap.String("moderator_id", rec.ModeratorID),
		zap.String("reason", rec.Reason))
}

// ClearBan records the system unban that ends a temporary ban.
func (l *Logger) ClearBan(ctx context.Context, guildID, userID string) {
	banned := false
	l.Record(ctx, storage.ActionRecord{
		GuildID: guildID,
		UserID:  userID,
		Action:  storage.ActionUnban,
		Reason:  "Temporary ban expired",
		Banned:  &banned,
	})
}
