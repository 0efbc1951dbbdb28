package tempban

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"modguard/internal/modlog"
	"modguard/internal/storage"

	"go.uber.org/zap"
)

type fakeTimer struct {
	stopped bool
	fn      func()
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	delays []time.Duration
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{fn: fn}
	f.timers = append(f.timers, t)
	f.delays = append(f.delays, d)
	return t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	pending := append([]*fakeTimer{}, f.timers...)
	f.timers = nil
	f.delays = nil
	f.mu.Unlock()
	for _, timer := range pending {
		timer.fn()
	}
}

type fakeBanStore struct {
	mu          sync.Mutex
	bans        map[int64]storage.TempBan
	watchable   bool
	watchCh     chan storage.TempBan
	deleted     []int64
	listErrOnce error
}

func newFakeBanStore(watchable bool) *fakeBanStore {
	return &fakeBanStore{
		bans:      make(map[int64]storage.TempBan),
		watchable: watchable,
		watchCh:   make(chan storage.TempBan, 4),
	}
}

func (f *fakeBanStore) add(ban storage.TempBan) {
	f.mu.Lock()
	f.bans[ban.ID] = ban
	f.mu.Unlock()
}

func (f *fakeBanStore) ListTempBans(ctx context.Context) ([]storage.TempBan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErrOnce != nil {
		err := f.listErrOnce
		f.listErrOnce = nil
		return nil, err
	}
	var bans []storage.TempBan
	for _, ban := range f.bans {
		bans = append(bans, ban)
	}
	return bans, nil
}

func (f *fakeBanStore) DeleteTempBan(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bans, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBanStore) WatchTempBans(ctx context.Context) (<-chan storage.TempBan, error) {
	if !f.watchable {
		return nil, storage.ErrWatchUnsupported
	}
	return f.watchCh, nil
}

func (f *fakeBanStore) remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bans)
}

type fakeUnbanner struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeUnbanner) Unban(ctx context.Context, guildID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, guildID+":"+userID)
	return f.err
}

func (f *fakeUnbanner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestScheduler(store Store, unbanner Unbanner, clock Clock) *Scheduler {
	s := New(store, unbanner, modlog.NewLogger(nil, zap.NewNop()), zap.NewNop())
	s.WithClock(clock)
	return s
}

func TestFutureBanFiresOnce(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	store := newFakeBanStore(true)
	unbanner := &fakeUnbanner{}
	store.add(storage.TempBan{ID: 1, GuildID: "g1", UserID: "u1", UnbanAt: clock.Now().Add(time.Hour)})

	s := newTestScheduler(store, unbanner, clock)
	s.Start(context.Background())
	defer s.Stop()

	if unbanner.count() != 0 {
		t.Fatalf("unban fired before expiry")
	}

	clock.Advance(2 * time.Hour)
	if unbanner.count() != 1 {
		t.Fatalf("expected exactly one unban, got %d", unbanner.count())
	}
	if store.remaining() != 0 {
		t.Fatalf("expected record removed after unban")
	}
}

func TestOverdueBanExecutesImmediately(t *testing.T) {
	clock := &fakeClock{now: time.Unix(10000, 0)}
	store := newFakeBanStore(true)
	unbanner := &fakeUnbanner{}
	store.add(storage.TempBan{ID: 7, GuildID: "g1", UserID: "u1", UnbanAt: clock.Now().Add(-time.Minute)})

	s := newTestScheduler(store, unbanner, clock)
	s.Start(context.Background())
	defer s.Stop()

	if unbanner.count() != 1 {
		t.Fatalf("expected overdue ban lifted at startup, got %d calls", unbanner.count())
	}
	if store.remaining() != 0 {
		t.Fatalf("expected record removed")
	}
}

func TestScheduleIsIdempotent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	store := newFakeBanStore(true)
	unbanner := &fakeUnbanner{}
	ban := storage.TempBan{ID: 3, GuildID: "g1", UserID: "u1", UnbanAt: clock.Now().Add(time.Hour)}
	store.add(ban)

	s := newTestScheduler(store, unbanner, clock)
	ctx := context.Background()
	s.Schedule(ctx, ban)
	s.Schedule(ctx, ban)
	s.Schedule(ctx, ban)

	clock.Advance(2 * time.Hour)
	if unbanner.count() != 1 {
		t.Fatalf("expected one unban despite repeated scheduling, got %d", unbanner.count())
	}
}

func TestUnbanFailureStillRemovesRecord(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	store := newFakeBanStore(true)
	unbanner := &fakeUnbanner{err: context.DeadlineExceeded}
	store.add(storage.TempBan{ID: 9, GuildID: "gone", UserID: "u1", UnbanAt: clock.Now().Add(-time.Second)})

	s := newTestScheduler(store, unbanner, clock)
	s.Start(context.Background())
	defer s.Stop()

	if store.remaining() != 0 {
		t.Fatalf("record must be removed even when the unban call fails")
	}
}

func TestWatchDeliversNewBans(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	store := newFakeBanStore(true)
	unbanner := &fakeUnbanner{}

	s := newTestScheduler(store, unbanner, clock)
	s.Start(context.Background())
	defer s.Stop()

	ban := storage.TempBan{ID: 4, GuildID: "g1", UserID: "u2", UnbanAt: clock.Now().Add(30 * time.Minute)}
	store.add(ban)
	store.watchCh <- ban

	deadline := time.Now().Add(time.Second)
	for {
		clock.mu.Lock()
		pending := len(clock.timers)
		clock.mu.Unlock()
		if pending > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("watched ban was never scheduled")
		}
		time.Sleep(time.Millisecond)
	}

	clock.Advance(time.Hour)
	if unbanner.count() != 1 {
		t.Fatalf("expected watched ban lifted, got %d calls", unbanner.count())
	}
}

func TestRescanRecoversMissedWatchDeliveries(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	store := newFakeBanStore(true)
	unbanner := &fakeUnbanner{}

	s := newTestScheduler(store, unbanner, clock)
	s.WithPollInterval(10 * time.Second)
	s.Start(context.Background())
	defer s.Stop()

	// Inserted but never delivered on the watch channel, as happens when a
	// burst overflows the watcher buffer.
	for i := int64(0); i < 20; i++ {
		store.add(storage.TempBan{ID: 100 + i, GuildID: "g1", UserID: fmt.Sprintf("u%d", i), UnbanAt: clock.Now().Add(5 * time.Second)})
	}

	clock.Advance(10 * time.Second)
	if unbanner.count() != 20 {
		t.Fatalf("expected rescan to lift all missed bans, got %d calls", unbanner.count())
	}
	if store.remaining() != 0 {
		t.Fatalf("expected all records removed, %d left", store.remaining())
	}
}

func TestPollingFallbackPicksUpInserts(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	store := newFakeBanStore(false)
	unbanner := &fakeUnbanner{}

	s := newTestScheduler(store, unbanner, clock)
	s.WithPollInterval(10 * time.Second)
	s.Start(context.Background())
	defer s.Stop()

	store.add(storage.TempBan{ID: 5, GuildID: "g1", UserID: "u3", UnbanAt: clock.Now().Add(5 * time.Second)})

	// First advance runs the poll, which finds the now-due record.
	clock.Advance(10 * time.Second)
	if unbanner.count() != 1 {
		t.Fatalf("expected polled ban lifted, got %d calls", unbanner.count())
	}
}
