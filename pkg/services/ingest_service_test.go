package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldsift/kobo-ingest/pkg/apperrors"
	"github.com/fieldsift/kobo-ingest/pkg/assembler"
	"github.com/fieldsift/kobo-ingest/pkg/mapper"
	"github.com/fieldsift/kobo-ingest/pkg/models"
	"github.com/fieldsift/kobo-ingest/pkg/repositories"
)

// fakeStore is an in-memory RecordStore for coordinator tests.
type fakeStore struct {
	records   map[int64]*models.Record
	createErr error
	existsErr error
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[int64]*models.Record)}
}

func (f *fakeStore) ExistsByExternalID(_ context.Context, externalID int64) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.records[externalID]
	return ok, nil
}

func (f *fakeStore) CreateRecord(_ context.Context, rec *models.Record) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	if _, ok := f.records[rec.Submission.ExternalID]; ok {
		return 0, apperrors.ErrDuplicateRecord
	}
	f.nextID++
	rec.Submission.ID = f.nextID
	f.records[rec.Submission.ExternalID] = rec
	return f.nextID, nil
}

func (f *fakeStore) GetByExternalID(_ context.Context, externalID int64) (*models.Record, error) {
	rec, ok := f.records[externalID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) ListRecords(_ context.Context, _, _ int) ([]*models.Record, error) {
	var out []*models.Record
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeStore) DeleteByExternalID(_ context.Context, externalID int64) error {
	delete(f.records, externalID)
	return nil
}

var _ repositories.RecordStore = (*fakeStore)(nil)

func newTestService(store repositories.RecordStore) IngestService {
	return NewIngestService(mapper.DefaultMapping(), assembler.New(), store, zap.NewNop())
}

func validPayload(externalID float64) map[string]any {
	return map[string]any{
		"_id":                  externalID,
		"formhub/uuid":         "a7eb959a-da4c-485b-8334-ee761ab1e4a7",
		"meta/instanceID":      "uuid:5c59e249-b88e-4742-abb6-942f79627cb6",
		"sec_a/unique_id":      "SS42",
		"sec_c/cd_client_name": "Test Client",
		"sec_c/cd_disability":  "No",
	}
}

func TestIngest_CommitsFreshRecord(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	out := svc.Ingest(context.Background(), validPayload(42))

	assert.Equal(t, models.StateCommitted, out.State)
	assert.Equal(t, int64(42), out.ExternalID)
	assert.NotZero(t, out.SubmissionID)
	require.NoError(t, out.Err)

	rec, err := store.GetByExternalID(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, rec.Client)
	assert.Equal(t, "SS42", rec.Client.UniqueID)
	assert.False(t, rec.Client.Disability)
	assert.Nil(t, rec.Business)
}

func TestIngest_ReingestingSameIDIsNoOp(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	first := svc.Ingest(context.Background(), validPayload(42))
	require.Equal(t, models.StateCommitted, first.State)

	second := svc.Ingest(context.Background(), validPayload(42))
	assert.Equal(t, models.StateSkipped, second.State)
	assert.NoError(t, second.Err)
	assert.Len(t, store.records, 1)
}

func TestIngest_DuplicateInsertRaceIsSkip(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	// Simulate a concurrent writer landing between the existence check
	// and the insert: the store reports not-exists but rejects the write.
	store.createErr = apperrors.ErrDuplicateRecord

	out := svc.Ingest(context.Background(), validPayload(42))
	assert.Equal(t, models.StateSkipped, out.State)
	assert.NoError(t, out.Err)
}

func TestIngest_RejectsInvalidInstanceID(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	raw := validPayload(42)
	raw["meta/instanceID"] = "uuid:junk"

	out := svc.Ingest(context.Background(), raw)
	assert.Equal(t, models.StateRejected, out.State)

	var invalid *apperrors.InvalidIdentifierError
	assert.True(t, errors.As(out.Err, &invalid))
	assert.Empty(t, store.records, "rejected record must not reach the store")
}

func TestIngest_RejectsMissingExternalID(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	raw := validPayload(42)
	delete(raw, "_id")

	out := svc.Ingest(context.Background(), raw)
	assert.Equal(t, models.StateRejected, out.State)
	assert.Empty(t, store.records)
}

func TestIngest_MalformedFieldIsNulledNotFatal(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	raw := validPayload(42)
	raw["sec_c/cd_age"] = "thirty"

	out := svc.Ingest(context.Background(), raw)
	require.Equal(t, models.StateCommitted, out.State)

	rec, err := store.GetByExternalID(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, rec.Client)
	assert.Nil(t, rec.Client.Age, "malformed age must be nulled, not defaulted")
}

func TestIngest_IntegrityViolationFailsRecord(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	store.createErr = &apperrors.IntegrityViolationError{
		Constraint: "clients_unique_id_key",
		Err:        errors.New("duplicate key value"),
	}

	out := svc.Ingest(context.Background(), validPayload(42))
	assert.Equal(t, models.StateFailed, out.State)

	var iv *apperrors.IntegrityViolationError
	assert.True(t, errors.As(out.Err, &iv))
}

func TestIngest_StorageErrorFailsRecord(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	store.existsErr = errors.New("connection refused")

	out := svc.Ingest(context.Background(), validPayload(42))
	assert.Equal(t, models.StateFailed, out.State)
	assert.Error(t, out.Err)
}
