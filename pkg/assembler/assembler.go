// Package assembler builds draft entities from one mapped payload. It does
// not touch storage; the ingest service decides what happens to the drafts.
package assembler

import (
	"errors"
	"time"

	"github.com/fieldsift/kobo-ingest/pkg/apperrors"
	"github.com/fieldsift/kobo-ingest/pkg/mapper"
	"github.com/fieldsift/kobo-ingest/pkg/models"
)

// Assembler turns mapped payloads into draft records. The clock is
// injectable so tests can pin "now"; timestamps absent from a payload
// default to the current time, which suits manually-triggered submissions
// but can mask late or replayed ones.
type Assembler struct {
	clock func() time.Time
}

// New returns an Assembler using the wall clock.
func New() *Assembler {
	return NewWithClock(time.Now)
}

// NewWithClock returns an Assembler with a custom time source.
func NewWithClock(clock func() time.Time) *Assembler {
	return &Assembler{clock: clock}
}

// Assemble produces a draft Submission plus dependents from one mapped
// payload. The Client sub-record is built only when the client unique-id key
// mapped; BusinessInfo only when the business country key mapped;
// SurveyMetadata always. Errors are identifier failures and reject the whole
// record.
func (a *Assembler) Assemble(m mapper.Mapped) (*models.Record, error) {
	externalID := m.Int(mapper.TargetExternalID)
	if externalID == nil {
		return nil, &apperrors.InvalidIdentifierError{
			Key: "_id", Err: errors.New("missing external id"),
		}
	}

	formUUID, err := mapper.NormalizeIdentifier("formhub/uuid", deref(m.String(mapper.TargetFormUUID)))
	if err != nil {
		return nil, err
	}

	instanceID, err := mapper.NormalizeIdentifier("meta/instanceID", deref(m.String(mapper.TargetInstanceID)))
	if err != nil {
		return nil, err
	}

	now := a.clock()
	today := now.Truncate(24 * time.Hour)

	rec := &models.Record{
		Submission: models.Submission{
			ExternalID:       int64(*externalID),
			FormUUID:         formUUID,
			InstanceID:       instanceID,
			SubmissionTime:   timeOr(m.Time(mapper.TargetSubmissionTime), now),
			StartTime:        timeOr(m.Time(mapper.TargetStartTime), now),
			EndTime:          timeOr(m.Time(mapper.TargetEndTime), now),
			SurveyDate:       timeOr(m.Time(mapper.TargetSurveyDate), today),
			Geolocation:      m.String(mapper.TargetGeolocation),
			Status:           m.String(mapper.TargetStatus),
			Tags:             m.String(mapper.TargetTags),
			Notes:            m.String(mapper.TargetNotes),
			ValidationStatus: m.String(mapper.TargetValidationStatus),
			SubmittedBy:      m.String(mapper.TargetSubmittedBy),
			Version:          m.String(mapper.TargetVersion),
		},
		Metadata: models.SurveyMetadata{
			FormUUID:    formUUID,
			InstanceID:  instanceID,
			FormVersion: m.String(mapper.TargetVersion),
		},
	}

	if m.Has(mapper.TargetClientUniqueID) {
		rec.Client = &models.Client{
			UniqueID:          deref(m.String(mapper.TargetClientUniqueID)),
			ClientName:        deref(m.String(mapper.TargetClientName)),
			IDManifest:        m.String(mapper.TargetClientIDManifest),
			Location:          m.String(mapper.TargetClientLocation),
			Phone:             m.String(mapper.TargetClientPhone),
			AltPhone:          m.String(mapper.TargetClientAltPhone),
			PhoneType:         m.String(mapper.TargetClientPhoneType),
			Gender:            m.String(mapper.TargetClientGender),
			Age:               m.Int(mapper.TargetClientAge),
			Nationality:       m.String(mapper.TargetClientNationality),
			Strata:            m.String(mapper.TargetClientStrata),
			Disability:        m.Bool(mapper.TargetClientDisability),
			Education:         m.String(mapper.TargetClientEducation),
			ClientStatus:      m.String(mapper.TargetClientStatus),
			SoleIncomeEarner:  m.Bool(mapper.TargetSoleIncomeEarner),
			ResponsiblePeople: m.Int(mapper.TargetResponsiblePeople),
		}
	}

	if m.Has(mapper.TargetBizCountryName) {
		rec.Business = &models.BusinessInfo{
			CountryName:  deref(m.String(mapper.TargetBizCountryName)),
			RegionName:   m.String(mapper.TargetBizRegionName),
			BDAName:      m.String(mapper.TargetBDAName),
			Cohort:       m.String(mapper.TargetCohort),
			Program:      m.String(mapper.TargetProgram),
			BizStatus:    m.String(mapper.TargetBizStatus),
			BizOperating: m.Bool(mapper.TargetBizOperating),
		}
	}

	return rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil {
		return fallback
	}
	return *t
}
