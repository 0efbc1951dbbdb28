package escalation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"modguard/internal/modlog"
	"modguard/internal/policy"
	"modguard/internal/storage"

	"go.uber.org/zap"
)

type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }

type fakeMembership struct {
	canTimeout bool
	canKick    bool

	timeouts []time.Time
	kicks    int
	bans     int
	unbans   int

	timeoutErr error
	banErr     error
}

func (f *fakeMembership) CanTimeout(ctx context.Context, guildID, userID string) (bool, error) {
	return f.canTimeout, nil
}

func (f *fakeMembership) Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	if f.timeoutErr != nil {
		return f.timeoutErr
	}
	f.timeouts = append(f.timeouts, until)
	return nil
}

func (f *fakeMembership) CanKick(ctx context.Context, guildID, userID string) (bool, error) {
	return f.canKick, nil
}

func (f *fakeMembership) Kick(ctx context.Context, guildID, userID, reason string) error {
	f.kicks++
	return nil
}

func (f *fakeMembership) Ban(ctx context.Context, guildID, userID, reason string) error {
	if f.banErr != nil {
		return f.banErr
	}
	f.bans++
	return nil
}

func (f *fakeMembership) Unban(ctx context.Context, guildID, userID string) error {
	f.unbans++
	return nil
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func newTestExecutor(t *testing.T, membership Membership, store *storage.Store, now time.Time) *Executor {
	t.Helper()
	logger := zap.NewNop()
	e := New(membership, store, modlog.NewLogger(store, logger), logger)
	e.WithClock(fixedClock{now: now})
	return e
}

func TestApplyMuteTimesOutMember(t *testing.T) {
	store := newTestStore(t)
	membership := &fakeMembership{canTimeout: true}
	now := time.Unix(1700000000, 0)
	e := newTestExecutor(t, membership, store, now)

	p := policy.Policy{MuteDuration: 30 * time.Minute}
	e.Apply(context.Background(), policy.ActionMute, "g1", "u1", 2, p)

	if len(membership.timeouts) != 1 {
		t.Fatalf("expected one timeout, got %d", len(membership.timeouts))
	}
	want := now.Add(30 * time.Minute)
	if !membership.timeouts[0].Equal(want) {
		t.Fatalf("timeout until %v, want %v", membership.timeouts[0], want)
	}
}

func TestApplyMuteSkippedWhenNotModeratable(t *testing.T) {
	store := newTestStore(t)
	membership := &fakeMembership{canTimeout: false}
	e := newTestExecutor(t, membership, store, time.Now())

	e.Apply(context.Background(), policy.ActionMute, "g1", "u1", 2, policy.Policy{MuteDuration: time.Minute})

	if len(membership.timeouts) != 0 {
		t.Fatalf("expected no timeout for unmoderatable member")
	}
}

func TestApplyMuteSkippedWhenDurationZero(t *testing.T) {
	store := newTestStore(t)
	membership := &fakeMembership{canTimeout: true}
	e := newTestExecutor(t, membership, store, time.Now())

	e.Apply(context.Background(), policy.ActionMute, "g1", "u1", 2, policy.Policy{})

	if len(membership.timeouts) != 0 {
		t.Fatalf("expected no timeout when mute duration is zero")
	}
}

func TestApplyKick(t *testing.T) {
	store := newTestStore(t)
	membership := &fakeMembership{canKick: true}
	e := newTestExecutor(t, membership, store, time.Now())

	e.Apply(context.Background(), policy.ActionKick, "g1", "u1", 3, policy.Policy{})

	if membership.kicks != 1 {
		t.Fatalf("expected one kick, got %d", membership.kicks)
	}
}

func TestApplyBanCreatesTempBan(t *testing.T) {
	store := newTestStore(t)
	membership := &fakeMembership{}
	now := time.Unix(1700000000, 0)
	e := newTestExecutor(t, membership, store, now)

	p := policy.Policy{BanDuration: 24 * time.Hour}
	e.Apply(context.Background(), policy.ActionBan, "g1", "u1", 5, p)

	if membership.bans != 1 {
		t.Fatalf("expected one ban, got %d", membership.bans)
	}
	bans, err := store.ListTempBans(context.Background())
	if err != nil {
		t.Fatalf("list temp bans: %v", err)
	}
	if len(bans) != 1 {
		t.Fatalf("expected one temp ban record, got %d", len(bans))
	}
	want := now.Add(24 * time.Hour)
	if !bans[0].UnbanAt.Equal(want) {
		t.Fatalf("unban at %v, want %v", bans[0].UnbanAt, want)
	}
}

func TestApplyPermanentBanHasNoTempRecord(t *testing.T) {
	store := newTestStore(t)
	membership := &fakeMembership{}
	e := newTestExecutor(t, membership, store, time.Now())

	e.Apply(context.Background(), policy.ActionBan, "g1", "u1", 5, policy.Policy{BanDuration: 0})

	if membership.bans != 1 {
		t.Fatalf("expected one ban, got %d", membership.bans)
	}
	bans, err := store.ListTempBans(context.Background())
	if err != nil {
		t.Fatalf("list temp bans: %v", err)
	}
	if len(bans) != 0 {
		t.Fatalf("permanent ban must not create a temp ban record, got %d", len(bans))
	}
}

func TestApplySwallowsBackendFailure(t *testing.T) {
	store := newTestStore(t)
	membership := &fakeMembership{canTimeout: true, timeoutErr: errors.New("missing permissions"), banErr: errors.New("missing permissions")}
	e := newTestExecutor(t, membership, store, time.Now())

	// Apply has no error return; the assertion is that nothing panics and
	// no temp ban record leaks from the failed ban.
	e.Apply(context.Background(), policy.ActionMute, "g1", "u1", 2, policy.Policy{MuteDuration: time.Minute})
	e.Apply(context.Background(), policy.ActionBan, "g1", "u1", 5, policy.Policy{BanDuration: time.Hour})

	bans, err := store.ListTempBans(context.Background())
	if err != nil {
		t.Fatalf("list temp bans: %v", err)
	}
	if len(bans) != 0 {
		t.Fatalf("failed ban must not create a temp ban record")
	}
}

func TestApplyNoneIsNoop(t *testing.T) {
	store := newTestStore(t)
	membership := &fakeMembership{canTimeout: true, canKick: true}
	e := newTestExecutor(t, membership, store, time.Now())

	e.Apply(context.Background(), policy.ActionNone, "g1", "u1", 1, policy.Policy{MuteDuration: time.Minute, BanDuration: time.Hour})

	if len(membership.timeouts) != 0 || membership.kicks != 0 || membership.bans != 0 {
		t.Fatalf("no action decided, nothing should execute")
	}
}
