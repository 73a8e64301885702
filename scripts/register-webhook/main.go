// register-webhook registers this service's /webhook endpoint with the forms
// platform so it starts pushing submissions.
//
// Usage: go run ./scripts/register-webhook
//
// Requires WEBHOOK_REGISTRATION_URL and WEBHOOK_URL (or the corresponding
// config.yaml entries) plus KOBO_API_TOKEN.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/fieldsift/kobo-ingest/pkg/adapters/kobo"
	"github.com/fieldsift/kobo-ingest/pkg/config"
)

func main() {
	cfg, err := config.Load("register-webhook")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Kobo.WebhookRegistrationURL == "" || cfg.Kobo.WebhookURL == "" {
		log.Fatal("WEBHOOK_REGISTRATION_URL and WEBHOOK_URL must be configured")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	client := kobo.NewClient(kobo.Config{
		APIToken: cfg.Kobo.APIToken,
		Timeout:  30 * time.Second,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := client.RegisterWebhook(ctx, cfg.Kobo.WebhookRegistrationURL, cfg.Kobo.WebhookURL); err != nil {
		log.Fatalf("Failed to register webhook: %v", err)
	}
	fmt.Printf("Webhook registered: %s\n", cfg.Kobo.WebhookURL)
}
