// backfill runs one pull-ingestion pass: drain the paginated Kobo data
// endpoint and feed every record through the normalization pipeline.
// Duplicates already stored are skipped, so re-running is safe.
//
// Usage: go run ./scripts/backfill [-page-size N]
//
// Configuration comes from config.yaml / environment (KOBO_API_URL,
// KOBO_API_TOKEN, PG* variables).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/fieldsift/kobo-ingest/pkg/adapters/kobo"
	"github.com/fieldsift/kobo-ingest/pkg/assembler"
	"github.com/fieldsift/kobo-ingest/pkg/config"
	"github.com/fieldsift/kobo-ingest/pkg/database"
	"github.com/fieldsift/kobo-ingest/pkg/mapper"
	"github.com/fieldsift/kobo-ingest/pkg/repositories"
	"github.com/fieldsift/kobo-ingest/pkg/services"
)

func main() {
	pageSize := flag.Int("page-size", 0, "records per page (0 = configured default)")
	flag.Parse()

	cfg, err := config.Load("backfill")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Kobo.APIURL == "" {
		log.Fatal("KOBO_API_URL is not configured")
	}
	if *pageSize > 0 {
		cfg.Kobo.PageSize = *pageSize
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

	table := mapper.DefaultMapping()
	if cfg.MappingPath != "" {
		if table, err = mapper.LoadMappingFile(cfg.MappingPath, table); err != nil {
			logger.Fatal("Failed to load mapping file", zap.Error(err))
		}
	}

	client := kobo.NewClient(kobo.Config{
		APIURL:   cfg.Kobo.APIURL,
		APIToken: cfg.Kobo.APIToken,
		Language: cfg.Kobo.Language,
		PageSize: cfg.Kobo.PageSize,
		Timeout:  cfg.Kobo.FetchTimeout(),
	}, logger)

	repo := repositories.NewSubmissionRepository(db)
	ingester := services.NewIngestService(table, assembler.New(), repo, logger)
	runner := kobo.NewRunner(client, ingester, nil, logger)

	summary, runErr := runner.Run(ctx)
	fmt.Printf("Total records processed: %d\n", summary.Total())
	fmt.Printf("  committed: %d\n", summary.Committed)
	fmt.Printf("  skipped:   %d\n", summary.Skipped)
	fmt.Printf("  rejected:  %d\n", summary.Rejected)
	fmt.Printf("  failed:    %d\n", summary.Failed)

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Run ended early: %v\n", runErr)
		os.Exit(1)
	}
}
