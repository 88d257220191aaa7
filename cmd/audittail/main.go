// Package main provides a CLI tool for inspecting the settlement audit trail.
// It reads straight from the audit_events table, so it works against any
// deployment whose DATABASE_URL it is pointed at.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"poolpay/internal/audit"
	"poolpay/internal/platform/database"
)

func main() {
	actorFlag := flag.String("actor", "", "List events for this account instead of the most recent ones")
	limitFlag := flag.Int("limit", 50, "Maximum number of recent events to print")
	flag.Parse()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL must be set")
		os.Exit(1)
	}

	cfg := database.DefaultConfig()
	cfg.URL = url
	db, err := database.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := audit.NewPostgres(db.DB())
	var events []audit.Event
	if *actorFlag != "" {
		events, err = store.ListByActor(ctx, *actorFlag)
	} else {
		events, err = store.ListRecent(ctx, *limitFlag)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "listing audit events failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			fmt.Fprintf(os.Stderr, "encoding event failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Fprintf(os.Stderr, "%d events\n", len(events))
}
