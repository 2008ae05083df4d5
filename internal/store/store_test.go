package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "parley.db")
	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestUpsertAndLookupUser(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	in := User{
		ID:        "u1",
		Username:  "Alice",
		IsAdmin:   true,
		CreatedAt: time.UnixMilli(1_700_000_000_000).UTC(),
	}
	if err := st.UpsertUser(ctx, in); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := st.UserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != in.ID || got.Username != in.Username || !got.IsAdmin {
		t.Fatalf("unexpected user: %#v", got)
	}
	if !got.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("expected created_at=%s got=%s", in.CreatedAt, got.CreatedAt)
	}
}

func TestUpsertPreservesCreatedAt(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	created := time.UnixMilli(1_700_000_000_000).UTC()
	if err := st.UpsertUser(ctx, User{ID: "u1", Username: "Alice", CreatedAt: created}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := st.UpsertUser(ctx, User{ID: "u1", Username: "Alice Cooper", IsAdmin: true}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := st.UserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Username != "Alice Cooper" || !got.IsAdmin {
		t.Fatalf("update not applied: %#v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at changed on update: %s", got.CreatedAt)
	}

	n, err := st.UserCount(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count=%d err=%v, want 1", n, err)
	}
}

func TestUpsertValidation(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.UpsertUser(ctx, User{Username: "noid"}); err == nil {
		t.Fatal("expected error for missing id")
	}
	if err := st.UpsertUser(ctx, User{ID: "u1"}); err == nil {
		t.Fatal("expected error for missing username")
	}
}

func TestUserNotFound(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	if _, err := st.UserByID(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
}

func TestUsersOrderedByID(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	for _, u := range []User{
		{ID: "charlie", Username: "Charlie"},
		{ID: "alice", Username: "Alice"},
		{ID: "bob", Username: "Bob"},
	} {
		if err := st.UpsertUser(ctx, u); err != nil {
			t.Fatalf("upsert %s: %v", u.ID, err)
		}
	}

	users, err := st.Users(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %#v", users)
	}
	for i, want := range []string{"alice", "bob", "charlie"} {
		if users[i].ID != want {
			t.Fatalf("position %d: got %q, want %q", i, users[i].ID, want)
		}
	}
}

func TestSetAdmin(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.UpsertUser(ctx, User{ID: "u1", Username: "Alice"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.SetAdmin(ctx, "u1", true); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	got, err := st.UserByID(ctx, "u1")
	if err != nil || !got.IsAdmin {
		t.Fatalf("admin flag not set: %#v err=%v", got, err)
	}

	if err := st.SetAdmin(ctx, "ghost", true); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("set admin on missing user: got %v, want ErrUserNotFound", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "parley.db")
	ctx := context.Background()

	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.UpsertUser(ctx, User{ID: "u1", Username: "Alice"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() {
		_ = st2.Close()
	})
	got, err := st2.UserByID(ctx, "u1")
	if err != nil || got.Username != "Alice" {
		t.Fatalf("data lost across reopen: %#v err=%v", got, err)
	}
}
