package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission is one ingested survey response. ExternalID is the id assigned
// by the survey tool and is the global deduplication key; ID is the internal
// primary key generated at insert time.
type Submission struct {
	ID               int64
	ExternalID       int64
	FormUUID         uuid.UUID
	InstanceID       uuid.UUID
	SubmissionTime   time.Time
	StartTime        time.Time
	EndTime          time.Time
	SurveyDate       time.Time
	Geolocation      *string
	Status           *string
	Tags             *string
	Notes            *string
	ValidationStatus *string
	SubmittedBy      *string
	Version          *string
}

// Client holds the respondent's identity and demographic details. Present
// only when the payload carries the client unique-id section. Lifecycle-bound
// to its Submission (cascades on delete).
type Client struct {
	ID                int64
	SubmissionID      int64
	UniqueID          string
	ClientName        string
	IDManifest        *string
	Location          *string
	Phone             *string
	AltPhone          *string
	PhoneType         *string
	Gender            *string
	Age               *int
	Nationality       *string
	Strata            *string
	Disability        bool
	Education         *string
	ClientStatus      *string
	SoleIncomeEarner  bool
	ResponsiblePeople *int
}

// BusinessInfo describes the respondent's enterprise. Present only when the
// payload carries the business country section.
type BusinessInfo struct {
	ID           int64
	SubmissionID int64
	CountryName  string
	RegionName   *string
	BDAName      *string
	Cohort       *string
	Program      *string
	BizStatus    *string
	BizOperating bool
}

// SurveyMetadata is a denormalized copy of the submission's form and
// instance identifiers, kept for query convenience. Exactly one per
// submission.
type SurveyMetadata struct {
	ID           int64
	SubmissionID int64
	FormUUID     uuid.UUID
	InstanceID   uuid.UUID
	FormVersion  *string
}

// Record bundles one assembled submission with its optional dependents.
// Client and Business are nil when their payload sections are absent;
// Metadata is always populated.
type Record struct {
	Submission Submission
	Client     *Client
	Business   *BusinessInfo
	Metadata   SurveyMetadata
}
