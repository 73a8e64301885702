package kobo

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fieldsift/kobo-ingest/pkg/apperrors"
	"github.com/fieldsift/kobo-ingest/pkg/models"
	"github.com/fieldsift/kobo-ingest/pkg/retry"
	"github.com/fieldsift/kobo-ingest/pkg/services"
)

// Runner drives one pull-ingestion run: drain the paginated source and feed
// each record through the pipeline, one at a time. Records are processed
// sequentially because the coordinator's read-then-insert duplicate check is
// not safe under concurrent writers (the storage-level unique constraint
// turns that race into a skip, not corruption).
type Runner struct {
	client   *Client
	ingester services.IngestService
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewRunner creates a pull-ingestion runner. retryCfg controls re-attempts
// of records that failed on a transient storage error; nil uses defaults.
func NewRunner(client *Client, ingester services.IngestService, retryCfg *retry.Config, logger *zap.Logger) *Runner {
	return &Runner{
		client:   client,
		ingester: ingester,
		retryCfg: retryCfg,
		logger:   logger.Named("pull-runner"),
	}
}

// Run drains the source until it reports no further page or a transport
// error occurs. On transport failure the summary of records already ingested
// is returned alongside the error; per-record failures never abort the run.
func (r *Runner) Run(ctx context.Context) (models.BatchSummary, error) {
	var summary models.BatchSummary

	pages := r.client.Pages()
	for {
		page, err := pages.Next(ctx)
		if err != nil {
			var te *apperrors.TransportError
			if errors.As(err, &te) {
				r.logger.Warn("Pull run ended early on transport error",
					zap.Int("records_ingested", summary.Total()),
					zap.Error(err))
			}
			return summary, err
		}
		if page == nil {
			break
		}

		for _, raw := range page.Results {
			summary.Add(r.ingestWithRetry(ctx, raw))
		}
	}

	r.logger.Info("Pull run complete",
		zap.Int("total", summary.Total()),
		zap.Int("committed", summary.Committed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("rejected", summary.Rejected),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// ingestWithRetry re-attempts a record whose failure looks transient
// (storage connectivity, timeouts). Rejections and integrity violations are
// permanent and never retried.
func (r *Runner) ingestWithRetry(ctx context.Context, raw map[string]any) models.IngestOutcome {
	outcome := r.ingester.Ingest(ctx, raw)
	if outcome.State != models.StateFailed || !retry.IsRetryable(outcome.Err) {
		return outcome
	}

	err := retry.Do(ctx, r.retryCfg, func() error {
		outcome = r.ingester.Ingest(ctx, raw)
		if outcome.State == models.StateFailed && retry.IsRetryable(outcome.Err) {
			return outcome.Err
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Record failed after retries",
			zap.Int64("external_id", outcome.ExternalID),
			zap.Error(err))
	}
	return outcome
}
