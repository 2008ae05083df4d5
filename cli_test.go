package main

import (
	"context"
	"path/filepath"
	"testing"

	"parley/server/internal/store"
)

// cliDBSetup creates a temp directory with an initialized user directory and
// returns the database path.
func cliDBSetup(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "parley.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	st.Close()
	return dbPath
}

func cliDBWithUsers(t *testing.T, users ...store.User) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "parley.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	for _, u := range users {
		if err := st.UpsertUser(context.Background(), u); err != nil {
			t.Fatalf("UpsertUser(%q): %v", u.ID, err)
		}
	}
	st.Close()
	return dbPath
}

func TestRunCLIVersionReturnsTrue(t *testing.T) {
	if !RunCLI([]string{"version"}, "not-used.db", "secret") {
		t.Error("RunCLI(version) should return true")
	}
}

func TestRunCLIUnknownSubcommandReturnsFalse(t *testing.T) {
	if RunCLI([]string{"nonexistent-cmd"}, "not-used.db", "secret") {
		t.Error("RunCLI(unknown) should return false")
	}
}

func TestRunCLIEmptyArgsReturnsFalse(t *testing.T) {
	if RunCLI([]string{}, "not-used.db", "secret") {
		t.Error("RunCLI([]) should return false")
	}
}

func TestRunCLIStatus(t *testing.T) {
	dbPath := cliDBSetup(t)
	if !RunCLI([]string{"status"}, dbPath, "secret") {
		t.Error("RunCLI(status) should return true")
	}
}

func TestRunCLIUsersCreateAndList(t *testing.T) {
	dbPath := cliDBSetup(t)

	if !RunCLI([]string{"users", "create", "u1", "Alice"}, dbPath, "secret") {
		t.Fatal("RunCLI(users create) should return true")
	}
	if !RunCLI([]string{"users", "list"}, dbPath, "secret") {
		t.Fatal("RunCLI(users list) should return true")
	}
	if !RunCLI([]string{"users"}, dbPath, "secret") {
		t.Fatal("RunCLI(users) should default to list and return true")
	}

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()
	u, err := st.UserByID(context.Background(), "u1")
	if err != nil || u.Username != "Alice" || u.IsAdmin {
		t.Fatalf("created user wrong: %#v err=%v", u, err)
	}
}

func TestRunCLIUsersAdmin(t *testing.T) {
	dbPath := cliDBWithUsers(t, store.User{ID: "u1", Username: "Alice"})

	if !RunCLI([]string{"users", "admin", "u1"}, dbPath, "secret") {
		t.Fatal("RunCLI(users admin) should return true")
	}

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()
	u, err := st.UserByID(context.Background(), "u1")
	if err != nil || !u.IsAdmin {
		t.Fatalf("admin flag not set: %#v err=%v", u, err)
	}
}

func TestRunCLIUsersToken(t *testing.T) {
	dbPath := cliDBWithUsers(t, store.User{ID: "u1", Username: "Alice", IsAdmin: true})

	if !RunCLI([]string{"users", "token", "u1"}, dbPath, "secret") {
		t.Fatal("RunCLI(users token) should return true")
	}
}
