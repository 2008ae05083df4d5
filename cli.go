package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"parley/server/internal/auth"
	"parley/server/internal/store"
)

// RunCLI handles subcommand execution. Returns true if a subcommand was handled.
func RunCLI(args []string, dbPath, jwtSecret string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("parley server %s\n", Version)
		return true
	case "status":
		return cliStatus(dbPath)
	case "users":
		return cliUsers(args[1:], dbPath, jwtSecret)
	default:
		return false
	}
}

func cliStatus(dbPath string) bool {
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	n, err := st.UserCount(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Database: %s\n", dbPath)
	fmt.Printf("Users: %d\n", n)
	fmt.Printf("Version: %s\n", Version)
	return true
}

func cliUsers(args []string, dbPath, jwtSecret string) bool {
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()

	if len(args) == 0 || args[0] == "list" {
		users, err := st.Users(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if len(users) == 0 {
			fmt.Println("No users found.")
			return true
		}
		for _, u := range users {
			admin := ""
			if u.IsAdmin {
				admin = " (admin)"
			}
			fmt.Printf("  %s  %s%s\n", u.ID, u.Username, admin)
		}
		return true
	}

	switch args[0] {
	case "create":
		if len(args) < 3 {
			break
		}
		id, name := args[1], args[2]
		if err := st.UpsertUser(ctx, store.User{ID: id, Username: name}); err != nil {
			fmt.Fprintf(os.Stderr, "error creating user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created user %q (%s)\n", name, id)
		return true

	case "admin":
		if len(args) < 2 {
			break
		}
		if err := st.SetAdmin(ctx, args[1], true); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("User %s is now an admin\n", args[1])
		return true

	case "token":
		if len(args) < 2 {
			break
		}
		u, err := st.UserByID(ctx, args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		issuer := auth.NewIssuer(jwtSecret, 24*time.Hour)
		token, err := issuer.Issue(auth.Identity{UserID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error issuing token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return true
	}

	fmt.Fprintf(os.Stderr, "Usage: server users [list|create <id> <name>|admin <id>|token <id>]\n")
	os.Exit(1)
	return true
}
