package ledger

import (
	"context"
	"errors"
	"strings"

	"modguard/internal/storage"

	"go.uber.org/zap"
)

// MaxReasonLength bounds warning reasons; Discord caps option strings well
// below this, the limit guards other entry points.
const MaxReasonLength = 512

var (
	ErrMissingGuild  = errors.New("ledger: guild id is required")
	ErrMissingUser   = errors.New("ledger: user id is required")
	ErrEmptyReason   = errors.New("ledger: reason must not be empty")
	ErrReasonTooLong = errors.New("ledger: reason exceeds maximum length")
)

type Result struct {
	Entries []storage.WarningEntry
	Entry   storage.WarningEntry
	Strikes int
}

type Ledger struct {
	store  *storage.Store
	logger *zap.Logger
}

func New(store *storage.Store, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

// AddWarning validates and appends a warning, returning the member's full
// history with the new entry applied. A storage failure here is surfaced to
// the caller: the user-visible operation did not happen.
func (l *Ledger) AddWarning(ctx context.Context, guildID, userID, moderatorID, reason string) (Result, error) {
	if guildID == "" {
		return Result{}, ErrMissingGuild
	}
	if userID == "" {
		return Result{}, ErrMissingUser
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Result{}, ErrEmptyReason
	}
	if len([]rune(reason)) > MaxReasonLength {
		return Result{}, ErrReasonTooLong
	}

	entries, err := l.store.AppendWarning(ctx, guildID, userID, moderatorID, reason)
	if err != nil {
		l.logger.Error("warning append failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return Result{}, err
	}

	return Result{
		Entries: entries,
		Entry:   entries[len(entries)-1],
		Strikes: len(entries),
	}, nil
}

// Warnings returns the ordered history for a member; an unknown member has
// an empty history, not an error.
func (l *Ledger) Warnings(ctx context.Context, guildID, userID string) ([]storage.WarningEntry, error) {
	if guildID == "" {
		return nil, ErrMissingGuild
	}
	if userID == "" {
		return nil, ErrMissingUser
	}
	return l.store.ListWarnings(ctx, guildID, userID)
}
