package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"driftq/internal/database"
	"driftq/internal/models"

	"github.com/rs/zerolog"
)

// Offline maintenance tool for the queue database. Run it only while the
// daemon is stopped; the store is single-writer.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		dbPath  = flag.String("db", "./data/queue.db", "path to sqlite queue db")
		requeue = flag.Bool("requeue", false, "reset failed actions back to pending")
	)
	flag.Parse()

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rehydrated, err := db.RehydrateInFlight(ctx)
	if err != nil {
		return fmt.Errorf("rehydrate: %w", err)
	}
	if rehydrated > 0 {
		fmt.Printf("rehydrated %d in-flight action(s) to pending\n", rehydrated)
	}

	if *requeue {
		failed, err := db.ListFailedActions(ctx)
		if err != nil {
			return fmt.Errorf("list failed: %w", err)
		}
		for i := range failed {
			if err := db.UpdateActionStatus(ctx, failed[i].ID, models.ActionPending, ""); err != nil {
				return fmt.Errorf("requeue %s: %w", failed[i].ID, err)
			}
		}
		fmt.Printf("requeued %d failed action(s)\n", len(failed))
	}

	counts, err := db.CountActionsByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	fmt.Printf("pending=%d in_flight=%d failed=%d\n",
		counts[models.ActionPending], counts[models.ActionInFlight], counts[models.ActionFailed])

	actions, err := db.ListActions(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	for i := range actions {
		a := &actions[i]
		fmt.Printf("%6d  %-36s  %-16s  %-9s  attempts=%d  %s\n",
			a.Seq, a.ID, a.ActionType, a.Status, a.Attempts, a.ErrorText())
	}
	return nil
}
