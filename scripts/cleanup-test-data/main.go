// cleanup-test-data removes test submissions from the database. A submission
// counts as test data when its client unique id matches one of the patterns
// below; dependents cascade with the submission row.
//
// Patterns matched (case-insensitive):
// - ^ss\d+$ (synthetic ids from the webhook test fixtures, e.g. "SS42")
// - ^test   (starts with "test")
// - ^dummy  (dummy prefix)
// - ^sample (sample prefix)
//
// Usage: go run ./scripts/cleanup-test-data [-dry-run=false]
//
// Database connection: standard PG* environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/fieldsift/kobo-ingest/pkg/config"
	"github.com/fieldsift/kobo-ingest/pkg/database"
)

// testClientPatterns are used with PostgreSQL's ~* operator.
var testClientPatterns = []string{
	`^ss\d+$`,
	`^test`,
	`^dummy`,
	`^sample`,
}

func main() {
	dryRun := flag.Bool("dry-run", true, "show what would be deleted without deleting")
	flag.Parse()

	cfg, err := config.Load("cleanup-test-data")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: 2,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	for _, pattern := range testClientPatterns {
		if *dryRun {
			var count int
			err := db.QueryRow(ctx, `
				SELECT COUNT(*)
				FROM kobo_submissions s
				JOIN clients c ON c.submission_id = s.id
				WHERE c.unique_id ~* $1`, pattern,
			).Scan(&count)
			if err != nil {
				log.Fatalf("Failed to count matches for %q: %v", pattern, err)
			}
			fmt.Printf("pattern %-12q would delete %d submission(s)\n", pattern, count)
			continue
		}

		result, err := db.Exec(ctx, `
			DELETE FROM kobo_submissions
			WHERE id IN (
				SELECT submission_id FROM clients WHERE unique_id ~* $1
			)`, pattern)
		if err != nil {
			log.Fatalf("Failed to delete matches for %q: %v", pattern, err)
		}
		fmt.Printf("pattern %-12q deleted %d submission(s)\n", pattern, result.RowsAffected())
	}

	if *dryRun {
		fmt.Println("Dry run only; re-run with -dry-run=false to delete.")
	}
}
