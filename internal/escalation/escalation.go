package escalation

import (
	"context"
	"time"

	"modguard/internal/modlog"
	"modguard/internal/policy"
	"modguard/internal/storage"

	"go.uber.org/zap"
)

// Reason attached to automatic strike actions.
const ThresholdReason = "Strike threshold reached"

// Membership is the guild-membership backend the executor acts against.
// Capability checks answer whether role hierarchy permits the action.
type Membership interface {
	CanTimeout(ctx context.Context, guildID, userID string) (bool, error)
	Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error
	CanKick(ctx context.Context, guildID, userID string) (bool, error)
	Kick(ctx context.Context, guildID, userID, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string) error
	Unban(ctx context.Context, guildID, userID string) error
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Executor struct {
	membership Membership
	store      *storage.Store
	log        *modlog.Logger
	logger     *zap.Logger
	clock      Clock
}

func New(membership Membership, store *storage.Store, log *modlog.Logger, logger *zap.Logger) *Executor {
	return &Executor{
		membership: membership,
		store:      store,
		log:        log,
		logger:     logger,
		clock:      realClock{},
	}
}

func (e *Executor) WithClock(clock Clock) {
	e.clock = clock
}

// Apply performs the decided escalation. The warning that triggered it is
// already recorded, so every failure here is logged and swallowed: a missing
// capability or backend error must never surface as a failed warn.
func (e *Executor) Apply(ctx context.Context, action policy.Action, guildID, userID string, strikes int, p policy.Policy) {
	switch action {
	case policy.ActionMute:
		e.applyMute(ctx, guildID, userID, strikes, p)
	case policy.ActionKick:
		e.applyKick(ctx, guildID, userID, strikes)
	case policy.ActionBan:
		e.applyBan(ctx, guildID, userID, strikes, p)
	}
}

func (e *Executor) applyMute(ctx context.Context, guildID, userID string, strikes int, p policy.Policy) {
	if p.MuteDuration <= 0 {
		return
	}
	ok, err := e.membership.CanTimeout(ctx, guildID, userID)
	if err != nil {
		e.logger.Warn("mute capability check failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return
	}
	if !ok {
		e.logger.Warn("member not moderatable, mute skipped", zap.String("guild_id", guildID), zap.String("user_id", userID))
		return
	}

	until := e.clock.Now().Add(p.MuteDuration)
	if err := e.membership.Timeout(ctx, guildID, userID, until, ThresholdReason); err != nil {
		e.logger.Warn("auto mute failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return
	}

	e.log.Record(ctx, storage.ActionRecord{
		GuildID: guildID,
		UserID:  userID,
		Action:  storage.ActionMute,
		Reason:  ThresholdReason,
		Metadata: map[string]any{
			"strikes":          strikes,
			"duration_minutes": int(p.MuteDuration.Minutes()),
		},
		MutedUntil: &until,
	})
}

func (e *Executor) applyKick(ctx context.Context, guildID, userID string, strikes int) {
	ok, err := e.membership.CanKick(ctx, guildID, userID)
	if err != nil {
		e.logger.Warn("kick capability check failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return
	}
	if !ok {
		e.logger.Warn("member not kickable, kick skipped", zap.String("guild_id", guildID), zap.String("user_id", userID))
		return
	}

	if err := e.membership.Kick(ctx, guildID, userID, ThresholdReason); err != nil {
		e.logger.Warn("auto kick failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return
	}

	e.log.Record(ctx, storage.ActionRecord{
		GuildID:  guildID,
		UserID:   userID,
		Action:   storage.ActionKick,
		Reason:   ThresholdReason,
		Metadata: map[string]any{"strikes": strikes},
	})
}

func (e *Executor) applyBan(ctx context.Context, guildID, userID string, strikes int, p policy.Policy) {
	if err := e.membership.Ban(ctx, guildID, userID, ThresholdReason); err != nil {
		e.logger.Warn("auto ban failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return
	}

	banned := true
	rec := storage.ActionRecord{
		GuildID:  guildID,
		UserID:   userID,
		Action:   storage.ActionBan,
		Reason:   ThresholdReason,
		Metadata: map[string]any{"strikes": strikes},
		Banned:   &banned,
	}

	if p.BanDuration > 0 {
		until := e.clock.Now().Add(p.BanDuration)
		if _, err := e.store.CreateTempBan(ctx, guildID, userID, until, ThresholdReason); err != nil {
			e.logger.Error("temp ban record failed, ban is permanent until lifted manually",
				zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		} else {
			rec.BannedUntil = &until
			rec.Metadata["duration_minutes"] = int(p.BanDuration.Minutes())
		}
	}

	e.log.Record(ctx, rec)
}
