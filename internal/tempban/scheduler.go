package tempban

import (
	"context"
	"errors"
	"sync"
	"time"

	"modguard/internal/modlog"
	"modguard/internal/storage"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// Store is the pending-unban persistence the scheduler drives. WatchTempBans
// may return storage.ErrWatchUnsupported, in which case the scheduler polls.
type Store interface {
	ListTempBans(ctx context.Context) ([]storage.TempBan, error)
	DeleteTempBan(ctx context.Context, id int64) error
	WatchTempBans(ctx context.Context) (<-chan storage.TempBan, error)
}

type Unbanner interface {
	Unban(ctx context.Context, guildID, userID string) error
}

// Scheduler lifts temporary bans at their expiry. Records survive restarts:
// on Start every stored ban is either executed (overdue) or given a one-shot
// timer, and new records arrive through the store watch or periodic rescans.
type Scheduler struct {
	store      Store
	membership Unbanner
	log        *modlog.Logger
	logger     *zap.Logger
	clock      Clock
	pollEvery  time.Duration

	mu       sync.Mutex
	inflight map[int64]struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(store Store, membership Unbanner, log *modlog.Logger, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:      store,
		membership: membership,
		log:        log,
		logger:     logger,
		clock:      realClock{},
		pollEvery:  time.Minute,
		inflight:   make(map[int64]struct{}),
	}
}

func (s *Scheduler) WithClock(clock Clock) {
	s.clock = clock
}

func (s *Scheduler) WithPollInterval(d time.Duration) {
	if d > 0 {
		s.pollEvery = d
	}
}

// Start scans existing records, arms the periodic rescan, and follows the
// store for new inserts when it supports watching. The rescan runs in both
// modes: the watch is only an accelerator, a notification lost to a full
// watcher buffer is recovered at the next rescan.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	if err := s.scan(ctx); err != nil {
		s.logger.Error("temp ban scan failed", zap.Error(err))
	}

	s.schedulePoll(ctx)

	feed, err := s.store.WatchTempBans(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrWatchUnsupported) {
			s.logger.Error("temp ban watch failed, polling only", zap.Error(err))
		} else {
			s.logger.Warn("temp ban watch unsupported, polling only")
		}
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case ban, ok := <-feed:
				if !ok {
					return
				}
				s.Schedule(ctx, ban)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends watching and polling. Timers already armed still fire; their
// unbans are due regardless of shutdown and are rediscovered from storage if
// the process exits first.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) scan(ctx context.Context) error {
	bans, err := s.store.ListTempBans(ctx)
	if err != nil {
		return err
	}
	for _, ban := range bans {
		s.Schedule(ctx, ban)
	}
	return nil
}

// Schedule arranges exactly one unban for the record. A record already
// scheduled or executing is ignored until it settles, so rescans and watch
// deliveries never double-fire.
func (s *Scheduler) Schedule(ctx context.Context, ban storage.TempBan) {
	s.mu.Lock()
	if _, busy := s.inflight[ban.ID]; busy {
		s.mu.Unlock()
		return
	}
	s.inflight[ban.ID] = struct{}{}
	s.mu.Unlock()

	delay := ban.UnbanAt.Sub(s.clock.Now())
	if delay <= 0 {
		s.execute(ctx, ban)
		return
	}

	s.clock.AfterFunc(delay, func() {
		s.execute(context.Background(), ban)
	})
}

// execute lifts the ban and then deletes the record. The delete happens only
// after the unban call settles: a crash in between leaves the record to be
// rediscovered, never lost. An unresolvable guild or member counts as
// settled, there is nothing left to unban.
func (s *Scheduler) execute(ctx context.Context, ban storage.TempBan) {
	defer func() {
		s.mu.Lock()
		delete(s.inflight, ban.ID)
		s.mu.Unlock()
	}()

	if err := s.membership.Unban(ctx, ban.GuildID, ban.UserID); err != nil {
		s.logger.Warn("unban failed, removing expired record",
			zap.Int64("ban_id", ban.ID),
			zap.String("guild_id", ban.GuildID),
			zap.String("user_id", ban.UserID),
			zap.Error(err))
	}

	if err := s.store.DeleteTempBan(ctx, ban.ID); err != nil {
		s.logger.Error("temp ban delete failed", zap.Int64("ban_id", ban.ID), zap.Error(err))
		return
	}

	if s.log != nil {
		s.log.ClearBan(ctx, ban.GuildID, ban.UserID)
	}
}

func (s *Scheduler) schedulePoll(ctx context.Context) {
	s.clock.AfterFunc(s.pollEvery, func() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := s.scan(ctx); err != nil {
			s.logger.Error("temp ban poll failed", zap.Error(err))
		}
		s.schedulePoll(ctx)
	})
}
