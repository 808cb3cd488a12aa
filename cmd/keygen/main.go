package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/modelgate/modelgate/internal/config"
	"github.com/modelgate/modelgate/internal/storage/sqldb"
)

// keygen mints a fresh API key for an existing user and stores it on the
// user's row. The plaintext key is printed once; it is not recoverable later
// other than by reading the database directly.
func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/keygen/main.go <user-id>")
		fmt.Println("Mints a new API key for the given user and prints it once")
		os.Exit(1)
	}
	userID := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	store, err := sqldb.New(sqldb.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	user, err := store.FindByID(ctx, userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to look up user: %v\n", err)
		os.Exit(1)
	}
	if user == nil {
		fmt.Fprintf(os.Stderr, "No user with id %q\n", userID)
		os.Exit(1)
	}

	key := uuid.NewString()
	if err := store.UpdateAPIKey(ctx, userID, key); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to store API key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User:    %s <%s>\n", user.Name, user.Email)
	fmt.Printf("API Key: %s\n", key)
	fmt.Println("\nSend it in the x-api-key header:")
	fmt.Printf("  curl -H \"x-api-key: %s\" http://localhost:%d/api/llm/list\n", key, cfg.Server.Port)
}
