package analytics

import (
	"context"
	"time"

	"modguard/internal/storage"

	"go.uber.org/zap"
)

// Report summarizes moderation activity in a guild over a window.
type Report struct {
	GuildID  string
	Since    time.Time
	Warnings int
	Mutes    int
	Kicks    int
	Bans     int
	Unbans   int
}

func (r Report) Total() int {
	return r.Mutes + r.Kicks + r.Bans + r.Unbans
}

type Service struct {
	store  *storage.Store
	logger *zap.Logger
}

func NewService(store *storage.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// GuildReport aggregates recorded actions and warnings since the given time.
func (s *Service) GuildReport(ctx context.Context, guildID string, since time.Time) (Report, error) {
	counts, err := s.store.CountActions(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}
	warnings, err := s.store.CountWarnings(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}
	return Report{
		GuildID:  guildID,
		Since:    since,
		Warnings: warnings,
		Mutes:    counts[storage.ActionMute],
		Kicks:    counts[storage.ActionKick],
		Bans:     counts[storage.ActionBan],
		Unbans:   counts[storage.ActionUnban],
	}, nil
}
