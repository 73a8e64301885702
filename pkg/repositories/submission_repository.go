package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fieldsift/kobo-ingest/pkg/apperrors"
	"github.com/fieldsift/kobo-ingest/pkg/database"
	"github.com/fieldsift/kobo-ingest/pkg/models"
)

// PostgreSQL SQLSTATE classes the write path cares about.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Name of the unique constraint guarding the deduplication key. A violation
// here means a concurrent writer won the race for the same external id, which
// is a skip, not a failure.
const externalIDConstraint = "kobo_submissions_external_id_key"

// RecordStore is the persistence boundary for assembled records. CreateRecord
// is atomic: either every row for the record lands or none do.
type RecordStore interface {
	ExistsByExternalID(ctx context.Context, externalID int64) (bool, error)
	CreateRecord(ctx context.Context, rec *models.Record) (int64, error)
	GetByExternalID(ctx context.Context, externalID int64) (*models.Record, error)
	ListRecords(ctx context.Context, limit, offset int) ([]*models.Record, error)
	DeleteByExternalID(ctx context.Context, externalID int64) error
}

type submissionRepository struct {
	db *database.DB
}

// NewSubmissionRepository creates a RecordStore backed by PostgreSQL.
func NewSubmissionRepository(db *database.DB) RecordStore {
	return &submissionRepository{db: db}
}

var _ RecordStore = (*submissionRepository)(nil)

// ExistsByExternalID reports whether a submission with the given external id
// is already stored.
func (r *submissionRepository) ExistsByExternalID(ctx context.Context, externalID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM kobo_submissions WHERE external_id = $1)`,
		externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing submission: %w", err)
	}
	return exists, nil
}

// CreateRecord writes the submission and its dependents in one transaction
// and returns the generated internal submission id. A unique violation on the
// external id maps to apperrors.ErrDuplicateRecord; any other constraint
// breach maps to *apperrors.IntegrityViolationError. In both cases the
// transaction has rolled back and the store holds no rows for the record.
func (r *submissionRepository) CreateRecord(ctx context.Context, rec *models.Record) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	submissionID, err := insertSubmission(ctx, tx, &rec.Submission)
	if err != nil {
		return 0, classifyConstraintErr(err)
	}
	rec.Submission.ID = submissionID

	if rec.Client != nil {
		rec.Client.SubmissionID = submissionID
		if rec.Client.ID, err = insertClient(ctx, tx, rec.Client); err != nil {
			return 0, classifyConstraintErr(err)
		}
	}

	if rec.Business != nil {
		rec.Business.SubmissionID = submissionID
		if rec.Business.ID, err = insertBusinessInfo(ctx, tx, rec.Business); err != nil {
			return 0, classifyConstraintErr(err)
		}
	}

	rec.Metadata.SubmissionID = submissionID
	if rec.Metadata.ID, err = insertSurveyMetadata(ctx, tx, &rec.Metadata); err != nil {
		return 0, classifyConstraintErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit record: %w", err)
	}
	return submissionID, nil
}

func insertSubmission(ctx context.Context, tx pgx.Tx, sub *models.Submission) (int64, error) {
	query := `
		INSERT INTO kobo_submissions (
			external_id, form_uuid, instance_id,
			submission_time, start_time, end_time, survey_date,
			geolocation, status, tags, notes, validation_status,
			submitted_by, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	var id int64
	err := tx.QueryRow(ctx, query,
		sub.ExternalID,
		sub.FormUUID,
		sub.InstanceID,
		sub.SubmissionTime,
		sub.StartTime,
		sub.EndTime,
		sub.SurveyDate,
		sub.Geolocation,
		sub.Status,
		sub.Tags,
		sub.Notes,
		sub.ValidationStatus,
		sub.SubmittedBy,
		sub.Version,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert submission: %w", err)
	}
	return id, nil
}

func insertClient(ctx context.Context, tx pgx.Tx, c *models.Client) (int64, error) {
	query := `
		INSERT INTO clients (
			submission_id, unique_id, client_name, client_id_manifest,
			location, client_phone, alt_phone, phone_type, gender, age,
			nationality, strata, disability, education, client_status,
			sole_income_earner, responsible_people
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`

	var id int64
	err := tx.QueryRow(ctx, query,
		c.SubmissionID,
		c.UniqueID,
		c.ClientName,
		c.IDManifest,
		c.Location,
		c.Phone,
		c.AltPhone,
		c.PhoneType,
		c.Gender,
		c.Age,
		c.Nationality,
		c.Strata,
		c.Disability,
		c.Education,
		c.ClientStatus,
		c.SoleIncomeEarner,
		c.ResponsiblePeople,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert client: %w", err)
	}
	return id, nil
}

func insertBusinessInfo(ctx context.Context, tx pgx.Tx, b *models.BusinessInfo) (int64, error) {
	query := `
		INSERT INTO business_info (
			submission_id, country_name, region_name, bda_name,
			cohort, program, biz_status, biz_operating
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err := tx.QueryRow(ctx, query,
		b.SubmissionID,
		b.CountryName,
		b.RegionName,
		b.BDAName,
		b.Cohort,
		b.Program,
		b.BizStatus,
		b.BizOperating,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert business info: %w", err)
	}
	return id, nil
}

func insertSurveyMetadata(ctx context.Context, tx pgx.Tx, m *models.SurveyMetadata) (int64, error) {
	query := `
		INSERT INTO survey_metadata (submission_id, form_uuid, instance_id, form_version)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var id int64
	err := tx.QueryRow(ctx, query,
		m.SubmissionID,
		m.FormUUID,
		m.InstanceID,
		m.FormVersion,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert survey metadata: %w", err)
	}
	return id, nil
}

// classifyConstraintErr maps PostgreSQL constraint violations onto the
// pipeline's error taxonomy. Non-constraint errors pass through unchanged.
func classifyConstraintErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == externalIDConstraint {
			return fmt.Errorf("%w: %s", apperrors.ErrDuplicateRecord, pgErr.ConstraintName)
		}
		return &apperrors.IntegrityViolationError{Constraint: pgErr.ConstraintName, Err: err}
	case pgForeignKeyViolation:
		return &apperrors.IntegrityViolationError{Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}

// GetByExternalID loads a submission and its dependents.
func (r *submissionRepository) GetByExternalID(ctx context.Context, externalID int64) (*models.Record, error) {
	query := `
		SELECT id, external_id, form_uuid, instance_id,
		       submission_time, start_time, end_time, survey_date,
		       geolocation, status, tags, notes, validation_status,
		       submitted_by, version
		FROM kobo_submissions
		WHERE external_id = $1`

	var rec models.Record
	sub := &rec.Submission
	err := r.db.QueryRow(ctx, query, externalID).Scan(
		&sub.ID, &sub.ExternalID, &sub.FormUUID, &sub.InstanceID,
		&sub.SubmissionTime, &sub.StartTime, &sub.EndTime, &sub.SurveyDate,
		&sub.Geolocation, &sub.Status, &sub.Tags, &sub.Notes, &sub.ValidationStatus,
		&sub.SubmittedBy, &sub.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	if err := r.loadDependents(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecords returns submissions with dependents, newest external id first.
// Used by the CSV export.
func (r *submissionRepository) ListRecords(ctx context.Context, limit, offset int) ([]*models.Record, error) {
	query := `
		SELECT id, external_id, form_uuid, instance_id,
		       submission_time, start_time, end_time, survey_date,
		       geolocation, status, tags, notes, validation_status,
		       submitted_by, version
		FROM kobo_submissions
		ORDER BY external_id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		var rec models.Record
		sub := &rec.Submission
		if err := rows.Scan(
			&sub.ID, &sub.ExternalID, &sub.FormUUID, &sub.InstanceID,
			&sub.SubmissionTime, &sub.StartTime, &sub.EndTime, &sub.SurveyDate,
			&sub.Geolocation, &sub.Status, &sub.Tags, &sub.Notes, &sub.ValidationStatus,
			&sub.SubmittedBy, &sub.Version,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}

	for _, rec := range records {
		if err := r.loadDependents(ctx, rec); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (r *submissionRepository) loadDependents(ctx context.Context, rec *models.Record) error {
	var c models.Client
	err := r.db.QueryRow(ctx, `
		SELECT id, submission_id, unique_id, client_name, client_id_manifest,
		       location, client_phone, alt_phone, phone_type, gender, age,
		       nationality, strata, disability, education, client_status,
		       sole_income_earner, responsible_people
		FROM clients WHERE submission_id = $1`, rec.Submission.ID,
	).Scan(
		&c.ID, &c.SubmissionID, &c.UniqueID, &c.ClientName, &c.IDManifest,
		&c.Location, &c.Phone, &c.AltPhone, &c.PhoneType, &c.Gender, &c.Age,
		&c.Nationality, &c.Strata, &c.Disability, &c.Education, &c.ClientStatus,
		&c.SoleIncomeEarner, &c.ResponsiblePeople,
	)
	switch {
	case err == nil:
		rec.Client = &c
	case errors.Is(err, pgx.ErrNoRows):
		// no client section for this submission
	default:
		return fmt.Errorf("failed to load client: %w", err)
	}

	var b models.BusinessInfo
	err = r.db.QueryRow(ctx, `
		SELECT id, submission_id, country_name, region_name, bda_name,
		       cohort, program, biz_status, biz_operating
		FROM business_info WHERE submission_id = $1`, rec.Submission.ID,
	).Scan(
		&b.ID, &b.SubmissionID, &b.CountryName, &b.RegionName, &b.BDAName,
		&b.Cohort, &b.Program, &b.BizStatus, &b.BizOperating,
	)
	switch {
	case err == nil:
		rec.Business = &b
	case errors.Is(err, pgx.ErrNoRows):
		// no business section for this submission
	default:
		return fmt.Errorf("failed to load business info: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		SELECT id, submission_id, form_uuid, instance_id, form_version
		FROM survey_metadata WHERE submission_id = $1`, rec.Submission.ID,
	).Scan(
		&rec.Metadata.ID, &rec.Metadata.SubmissionID,
		&rec.Metadata.FormUUID, &rec.Metadata.InstanceID, &rec.Metadata.FormVersion,
	)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to load survey metadata: %w", err)
	}
	return nil
}

// DeleteByExternalID removes a submission; dependents cascade.
func (r *submissionRepository) DeleteByExternalID(ctx context.Context, externalID int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM kobo_submissions WHERE external_id = $1`, externalID)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
