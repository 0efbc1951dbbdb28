package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"modguard/internal/storage"

	"go.uber.org/zap"
)

func newTestLedger(t *testing.T) (*Ledger, *storage.Store) {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(store.Close)
	return New(store, zap.NewNop()), store
}

func TestAddWarningReturnsFullHistory(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	reasons := []string{"spam", "slurs", "spam again"}
	var res Result
	var err error
	for _, reason := range reasons {
		res, err = l.AddWarning(ctx, "g1", "u1", "mod1", reason)
		if err != nil {
			t.Fatalf("add warning: %v", err)
		}
	}

	if res.Strikes != len(reasons) {
		t.Fatalf("strikes = %d, want %d", res.Strikes, len(reasons))
	}
	if len(res.Entries) != len(reasons) {
		t.Fatalf("entries = %d, want %d", len(res.Entries), len(reasons))
	}
	for i, entry := range res.Entries {
		if entry.Reason != reasons[i] {
			t.Fatalf("entry %d reason %q, want %q", i, entry.Reason, reasons[i])
		}
	}
	if res.Entry.Reason != reasons[len(reasons)-1] {
		t.Fatalf("latest entry reason %q, want %q", res.Entry.Reason, reasons[len(reasons)-1])
	}
}

func TestAddWarningRejectsEmptyReason(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	for _, reason := range []string{"", "   ", "\t\n"} {
		if _, err := l.AddWarning(ctx, "g1", "u1", "mod1", reason); !errors.Is(err, ErrEmptyReason) {
			t.Fatalf("reason %q: got %v, want ErrEmptyReason", reason, err)
		}
	}

	entries, err := l.Warnings(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("warnings: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected warnings must leave no entries, got %d", len(entries))
	}
}

func TestAddWarningRejectsOversizedReason(t *testing.T) {
	l, _ := newTestLedger(t)

	long := strings.Repeat("x", MaxReasonLength+1)
	if _, err := l.AddWarning(context.Background(), "g1", "u1", "mod1", long); !errors.Is(err, ErrReasonTooLong) {
		t.Fatalf("got %v, want ErrReasonTooLong", err)
	}
}

func TestAddWarningRequiresIDs(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.AddWarning(ctx, "", "u1", "mod1", "spam"); !errors.Is(err, ErrMissingGuild) {
		t.Fatalf("got %v, want ErrMissingGuild", err)
	}
	if _, err := l.AddWarning(ctx, "g1", "", "mod1", "spam"); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("got %v, want ErrMissingUser", err)
	}
	if _, err := l.Warnings(ctx, "", "u1"); !errors.Is(err, ErrMissingGuild) {
		t.Fatalf("got %v, want ErrMissingGuild", err)
	}
	if _, err := l.Warnings(ctx, "g1", ""); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("got %v, want ErrMissingUser", err)
	}
}

func TestWarningsUnknownMemberIsEmpty(t *testing.T) {
	l, _ := newTestLedger(t)

	entries, err := l.Warnings(context.Background(), "g1", "nobody")
	if err != nil {
		t.Fatalf("warnings: %v", err)
	}
	if entries == nil {
		t.Fatalf("expected empty slice, got nil")
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(entries))
	}
}

func TestWarningsIsolatedPerGuildAndMember(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.AddWarning(ctx, "g1", "u1", "mod1", "spam"); err != nil {
		t.Fatalf("add warning: %v", err)
	}
	if _, err := l.AddWarning(ctx, "g2", "u1", "mod1", "spam elsewhere"); err != nil {
		t.Fatalf("add warning: %v", err)
	}
	if _, err := l.AddWarning(ctx, "g1", "u2", "mod1", "other member"); err != nil {
		t.Fatalf("add warning: %v", err)
	}

	entries, err := l.Warnings(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("warnings: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry for g1/u1, got %d", len(entries))
	}
	if entries[0].Reason != "spam" {
		t.Fatalf("reason %q, want %q", entries[0].Reason, "spam")
	}
}
