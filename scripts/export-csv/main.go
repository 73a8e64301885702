// export-csv flattens stored submissions and their dependents to a CSV file.
// List-valued survey fields were joined into single cells at ingestion time.
//
// Usage: go run ./scripts/export-csv [-out submissions.csv]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/fieldsift/kobo-ingest/pkg/config"
	"github.com/fieldsift/kobo-ingest/pkg/database"
	"github.com/fieldsift/kobo-ingest/pkg/export"
	"github.com/fieldsift/kobo-ingest/pkg/repositories"
)

func main() {
	out := flag.String("out", "submissions.csv", "output file path")
	flag.Parse()

	cfg, err := config.Load("export-csv")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	f, err := os.Create(*out)
	if err != nil {
		logger.Fatal("Failed to create output file", zap.Error(err))
	}
	defer f.Close()

	exporter := export.NewExporter(repositories.NewSubmissionRepository(db), logger)
	if err := exporter.Export(ctx, f); err != nil {
		logger.Fatal("Export failed", zap.Error(err))
	}
	fmt.Printf("Wrote %s\n", *out)
}
