package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/arven/deadwatch/internal/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCursorRoundtrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	// Unknown cursor reads as zero.
	cur, err := store.GetCursor(ctx, 1, "srv-1", domain.FileKindKillfeed)
	if err != nil {
		t.Fatalf("GetCursor: %v", err)
	}
	if cur.LastLine != 0 {
		t.Errorf("fresh cursor LastLine = %d, want 0", cur.LastLine)
	}

	cur.LastLine = 103
	if err := store.SaveCursor(ctx, cur); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}

	got, err := store.GetCursor(ctx, 1, "srv-1", domain.FileKindKillfeed)
	if err != nil {
		t.Fatalf("GetCursor: %v", err)
	}
	if got.LastLine != 103 {
		t.Errorf("LastLine = %d, want 103", got.LastLine)
	}

	// Upsert overwrites.
	got.LastLine = 200
	if err := store.SaveCursor(ctx, got); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}
	again, err := store.GetCursor(ctx, 1, "srv-1", domain.FileKindKillfeed)
	if err != nil {
		t.Fatalf("GetCursor: %v", err)
	}
	if again.LastLine != 200 {
		t.Errorf("LastLine = %d after upsert, want 200", again.LastLine)
	}

	// Cursors are scoped per (tenant, server, kind).
	other, err := store.GetCursor(ctx, 1, "srv-1", domain.FileKindLog)
	if err != nil {
		t.Fatalf("GetCursor: %v", err)
	}
	if other.LastLine != 0 {
		t.Errorf("log cursor LastLine = %d, want 0", other.LastLine)
	}
}

func TestResetCursor(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	cur := &domain.ReadCursor{TenantID: 1, ServerID: "srv-1", FileKind: domain.FileKindLog, LastLine: 500}
	if err := store.SaveCursor(ctx, cur); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}
	if err := store.ResetCursor(ctx, 1, "srv-1", domain.FileKindLog); err != nil {
		t.Fatalf("ResetCursor: %v", err)
	}
	got, err := store.GetCursor(ctx, 1, "srv-1", domain.FileKindLog)
	if err != nil {
		t.Fatalf("GetCursor: %v", err)
	}
	if got.LastLine != 0 {
		t.Errorf("LastLine = %d after reset, want 0", got.LastLine)
	}
}

func testEvent(id string, tenantID int64, kind string, ts time.Time) *domain.NormalizedEvent {
	return &domain.NormalizedEvent{
		ID:         id,
		TenantID:   tenantID,
		ServerID:   "srv-1",
		Kind:       kind,
		Timestamp:  ts,
		ActorName:  "Player A",
		TargetName: "Player B",
		Weapon:     "Rifle",
		Distance:   250,
		RawSource:  domain.SourceCSV,
	}
}

func TestEventInsertAndQuery(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	events := []*domain.NormalizedEvent{
		testEvent("ev-1", 1, domain.EventKill, base),
		testEvent("ev-2", 1, domain.EventSuicide, base.Add(time.Minute)),
		testEvent("ev-3", 1, domain.EventKill, base.Add(2*time.Minute)),
		testEvent("ev-4", 2, domain.EventKill, base),
	}
	for _, ev := range events {
		if err := store.InsertEvent(ctx, ev); err != nil {
			t.Fatalf("InsertEvent(%s): %v", ev.ID, err)
		}
	}

	t.Run("tenant isolation", func(t *testing.T) {
		got, err := store.GetEvents(ctx, EventFilter{TenantID: 1})
		if err != nil {
			t.Fatalf("GetEvents: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("got %d events for tenant 1, want 3", len(got))
		}
		// Newest first.
		if got[0].ID != "ev-3" || got[2].ID != "ev-1" {
			t.Errorf("order = %s..%s, want ev-3..ev-1", got[0].ID, got[2].ID)
		}
	})

	t.Run("kind filter", func(t *testing.T) {
		got, err := store.GetEvents(ctx, EventFilter{TenantID: 1, Kind: domain.EventSuicide})
		if err != nil {
			t.Fatalf("GetEvents: %v", err)
		}
		if len(got) != 1 || got[0].ID != "ev-2" {
			t.Errorf("got %v, want just ev-2", got)
		}
	})

	t.Run("since filter", func(t *testing.T) {
		since := base.Add(time.Minute)
		got, err := store.GetEvents(ctx, EventFilter{TenantID: 1, Since: &since})
		if err != nil {
			t.Fatalf("GetEvents: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("got %d events since %v, want 2", len(got), since)
		}
	})

	t.Run("limit", func(t *testing.T) {
		got, err := store.GetEvents(ctx, EventFilter{TenantID: 1, Limit: 1})
		if err != nil {
			t.Fatalf("GetEvents: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("got %d events with limit 1, want 1", len(got))
		}
	})

	t.Run("fields roundtrip", func(t *testing.T) {
		got, err := store.GetEvents(ctx, EventFilter{TenantID: 2})
		if err != nil {
			t.Fatalf("GetEvents: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("got %d events for tenant 2, want 1", len(got))
		}
		ev := got[0]
		if ev.ActorName != "Player A" || ev.TargetName != "Player B" {
			t.Errorf("got actor %q target %q", ev.ActorName, ev.TargetName)
		}
		if ev.Weapon != "Rifle" || ev.Distance != 250 {
			t.Errorf("got weapon %q distance %d", ev.Weapon, ev.Distance)
		}
		if !ev.Timestamp.Equal(base) {
			t.Errorf("Timestamp = %v, want %v", ev.Timestamp, base)
		}
	})

	t.Run("count", func(t *testing.T) {
		n, err := store.CountEvents(ctx, 1)
		if err != nil {
			t.Fatalf("CountEvents: %v", err)
		}
		if n != 3 {
			t.Errorf("CountEvents = %d, want 3", n)
		}
	})
}

func TestDuplicateEventIDRejected(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := store.InsertEvent(ctx, testEvent("ev-1", 1, domain.EventKill, ts)); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if err := store.InsertEvent(ctx, testEvent("ev-1", 1, domain.EventKill, ts)); err == nil {
		t.Error("duplicate primary key accepted")
	}
}

func TestUserLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.CreateUser(ctx, "alice", "hash-a", true); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := store.CreateUser(ctx, "bob", "hash-b", false); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := store.CreateUser(ctx, "alice", "hash-c", false); err == nil {
		t.Error("duplicate username accepted")
	}

	alice, err := store.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if !alice.IsAdmin || alice.PasswordHash != "hash-a" {
		t.Errorf("got admin=%v hash=%q", alice.IsAdmin, alice.PasswordHash)
	}
	if alice.LastLogin != nil {
		t.Error("fresh user has a last login")
	}

	byID, err := store.GetUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if byID.Username != "alice" {
		t.Errorf("Username = %q, want alice", byID.Username)
	}

	if err := store.UpdateUserLastLogin(ctx, alice.ID); err != nil {
		t.Fatalf("UpdateUserLastLogin: %v", err)
	}
	alice, err = store.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if alice.LastLogin == nil {
		t.Error("last login not recorded")
	}

	if err := store.UpdateUserPassword(ctx, alice.ID, "hash-new"); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}
	alice, _ = store.GetUserByUsername(ctx, "alice")
	if alice.PasswordHash != "hash-new" {
		t.Errorf("PasswordHash = %q, want hash-new", alice.PasswordHash)
	}

	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" || users[1].Username != "bob" {
		t.Errorf("ListUsers = %v, want alice then bob", users)
	}

	if err := store.DeleteUser(ctx, "bob"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := store.DeleteUser(ctx, "bob"); err == nil {
		t.Error("deleting a missing user succeeded")
	}
}
