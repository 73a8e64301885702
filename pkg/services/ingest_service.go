package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fieldsift/kobo-ingest/pkg/apperrors"
	"github.com/fieldsift/kobo-ingest/pkg/assembler"
	"github.com/fieldsift/kobo-ingest/pkg/mapper"
	"github.com/fieldsift/kobo-ingest/pkg/models"
	"github.com/fieldsift/kobo-ingest/pkg/repositories"
)

// IngestService runs one raw payload through the full pipeline: field
// mapping, assembly, duplicate check, atomic persistence. Per-record failures
// are reported in the outcome, never as a batch-aborting error.
type IngestService interface {
	Ingest(ctx context.Context, raw map[string]any) models.IngestOutcome
}

type ingestService struct {
	table  []mapper.FieldMapping
	asm    *assembler.Assembler
	store  repositories.RecordStore
	logger *zap.Logger
}

// NewIngestService creates an IngestService using the given mapping table
// and record store.
func NewIngestService(table []mapper.FieldMapping, asm *assembler.Assembler, store repositories.RecordStore, logger *zap.Logger) IngestService {
	return &ingestService{
		table:  table,
		asm:    asm,
		store:  store,
		logger: logger.Named("ingest"),
	}
}

var _ IngestService = (*ingestService)(nil)

// Ingest processes a single record. Error policy: malformed non-identifying
// fields are nulled and logged; identifier failures reject the record before
// any write; a duplicate external id is a logged skip; constraint breaches
// roll the record's transaction back and mark it failed.
func (s *ingestService) Ingest(ctx context.Context, raw map[string]any) models.IngestOutcome {
	mapped, fieldErrs := mapper.Map(raw, s.table)
	for _, ferr := range fieldErrs {
		var mf *apperrors.MalformedFieldError
		if errors.As(ferr, &mf) {
			s.logger.Warn("Nulled malformed field",
				zap.String("key", mf.Key),
				zap.Any("value", mf.Value),
				zap.Error(mf.Err))
		}
	}

	rec, err := s.asm.Assemble(mapped)
	if err != nil {
		s.logger.Warn("Rejected record", zap.Error(err))
		return models.IngestOutcome{State: models.StateRejected, Err: err}
	}
	externalID := rec.Submission.ExternalID

	exists, err := s.store.ExistsByExternalID(ctx, externalID)
	if err != nil {
		return models.IngestOutcome{State: models.StateFailed, ExternalID: externalID, Err: err}
	}
	if exists {
		s.logger.Info("Skipping duplicate submission", zap.Int64("external_id", externalID))
		return models.IngestOutcome{State: models.StateSkipped, ExternalID: externalID}
	}

	submissionID, err := s.store.CreateRecord(ctx, rec)
	if err != nil {
		// A concurrent writer can win the external-id race between the
		// existence check and the insert; the unique constraint turns
		// that into a skip rather than a double insert.
		if errors.Is(err, apperrors.ErrDuplicateRecord) {
			s.logger.Info("Skipping duplicate submission (insert race)",
				zap.Int64("external_id", externalID))
			return models.IngestOutcome{State: models.StateSkipped, ExternalID: externalID}
		}

		var iv *apperrors.IntegrityViolationError
		if errors.As(err, &iv) {
			s.logger.Error("Record rolled back on constraint violation",
				zap.Int64("external_id", externalID),
				zap.String("constraint", iv.Constraint),
				zap.Error(iv.Err))
			return models.IngestOutcome{State: models.StateFailed, ExternalID: externalID, Err: err}
		}

		s.logger.Error("Failed to persist record",
			zap.Int64("external_id", externalID),
			zap.Error(err))
		return models.IngestOutcome{State: models.StateFailed, ExternalID: externalID, Err: err}
	}

	s.logger.Info("Committed submission",
		zap.Int64("external_id", externalID),
		zap.Int64("submission_id", submissionID),
		zap.Bool("has_client", rec.Client != nil),
		zap.Bool("has_business_info", rec.Business != nil))

	return models.IngestOutcome{
		State:        models.StateCommitted,
		ExternalID:   externalID,
		SubmissionID: submissionID,
	}
}
