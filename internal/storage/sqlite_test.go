package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kotaehq/kotae/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "calls.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndGetCall(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	call := &models.CallRecord{
		CallSID:    "CA123",
		Caller:     "+15551234567",
		Org:        "acme",
		Transcript: "when do you open",
		Reply:      "we open at nine",
	}
	if err := store.CreateCall(ctx, call); err != nil {
		t.Fatalf("CreateCall: %v", err)
	}
	if call.ID == "" {
		t.Fatal("CreateCall did not assign an ID")
	}
	if call.CreatedAt.IsZero() {
		t.Fatal("CreateCall did not assign a timestamp")
	}

	got, err := store.GetCall(ctx, call.ID)
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if got.CallSID != call.CallSID || got.Transcript != call.Transcript || got.Reply != call.Reply {
		t.Fatalf("GetCall returned %+v", got)
	}
}

func TestGetCallBySID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateCall(ctx, &models.CallRecord{CallSID: "CA9", Org: "acme", Transcript: "first"}); err != nil {
		t.Fatalf("CreateCall: %v", err)
	}

	got, err := store.GetCallBySID(ctx, "CA9")
	if err != nil {
		t.Fatalf("GetCallBySID: %v", err)
	}
	if got.Transcript != "first" {
		t.Fatalf("GetCallBySID returned %+v", got)
	}

	if _, err := store.GetCallBySID(ctx, "CA-missing"); err == nil {
		t.Fatal("expected error for unknown SID")
	}
}

func TestGetCallNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetCall(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for missing call")
	}
}

func TestListCallsByOrg(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, org := range []string{"acme", "acme", "globex"} {
		if err := store.CreateCall(ctx, &models.CallRecord{CallSID: "CA", Org: org}); err != nil {
			t.Fatalf("CreateCall: %v", err)
		}
	}

	acme, err := store.ListCalls(ctx, "acme", 0, 10)
	if err != nil {
		t.Fatalf("ListCalls: %v", err)
	}
	if len(acme) != 2 {
		t.Fatalf("got %d acme calls, want 2", len(acme))
	}

	all, err := store.ListCalls(ctx, "", 0, 10)
	if err != nil {
		t.Fatalf("ListCalls: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d calls, want 3", len(all))
	}

	n, err := store.CountCalls(ctx, "acme")
	if err != nil {
		t.Fatalf("CountCalls: %v", err)
	}
	if n != 2 {
		t.Fatalf("CountCalls = %d, want 2", n)
	}
}

func TestCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "calls.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	_ = store.Close()
}
