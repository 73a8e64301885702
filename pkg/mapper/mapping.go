package mapper

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Kind declares the coercion rule applied to a raw value.
type Kind string

const (
	KindString   Kind = "string"
	KindInt      Kind = "int"
	KindBool     Kind = "bool" // exact "Yes"/"yes" -> true, anything else -> false
	KindDateTime Kind = "datetime"
	KindDate     Kind = "date"
	KindOpaque   Kind = "opaque" // structured blob rendered to a canonical string
)

// FieldMapping is one row of the mapping table: a survey-tool key path, the
// domain field it lands on, and the coercion applied on the way. The table is
// data, not code, so new survey fields are configuration changes.
type FieldMapping struct {
	SourceKey string `yaml:"source"`
	Target    string `yaml:"target"`
	Kind      Kind   `yaml:"kind"`
}

// Target field names produced by the default mapping. The assembler reads
// mapped values by these names.
const (
	TargetExternalID       = "external_id"
	TargetFormUUID         = "form_uuid"
	TargetInstanceID       = "instance_id"
	TargetSubmissionTime   = "submission_time"
	TargetStartTime        = "start_time"
	TargetEndTime          = "end_time"
	TargetSurveyDate       = "survey_date"
	TargetGeolocation      = "geolocation"
	TargetStatus           = "status"
	TargetTags             = "tags"
	TargetNotes            = "notes"
	TargetValidationStatus = "validation_status"
	TargetSubmittedBy      = "submitted_by"
	TargetVersion          = "version"

	TargetClientUniqueID    = "client_unique_id"
	TargetClientName        = "client_name"
	TargetClientIDManifest  = "client_id_manifest"
	TargetClientLocation    = "client_location"
	TargetClientPhone       = "client_phone"
	TargetClientAltPhone    = "client_alt_phone"
	TargetClientPhoneType   = "client_phone_type"
	TargetClientGender      = "client_gender"
	TargetClientAge         = "client_age"
	TargetClientNationality = "client_nationality"
	TargetClientStrata      = "client_strata"
	TargetClientDisability  = "client_disability"
	TargetClientEducation   = "client_education"
	TargetClientStatus      = "client_status"
	TargetSoleIncomeEarner  = "sole_income_earner"
	TargetResponsiblePeople = "responsible_people"

	TargetBizCountryName = "biz_country_name"
	TargetBizRegionName  = "biz_region_name"
	TargetBDAName        = "bda_name"
	TargetCohort         = "cohort"
	TargetProgram        = "program"
	TargetBizStatus      = "biz_status"
	TargetBizOperating   = "biz_operating"
)

// DefaultMapping returns the built-in table for KoboToolbox survey payloads.
func DefaultMapping() []FieldMapping {
	return []FieldMapping{
		{SourceKey: "_id", Target: TargetExternalID, Kind: KindInt},
		{SourceKey: "formhub/uuid", Target: TargetFormUUID, Kind: KindString},
		{SourceKey: "meta/instanceID", Target: TargetInstanceID, Kind: KindString},
		{SourceKey: "_submission_time", Target: TargetSubmissionTime, Kind: KindDateTime},
		{SourceKey: "starttime", Target: TargetStartTime, Kind: KindDateTime},
		{SourceKey: "endtime", Target: TargetEndTime, Kind: KindDateTime},
		{SourceKey: "cd_survey_date", Target: TargetSurveyDate, Kind: KindDate},
		{SourceKey: "_geolocation", Target: TargetGeolocation, Kind: KindOpaque},
		{SourceKey: "_status", Target: TargetStatus, Kind: KindString},
		{SourceKey: "_tags", Target: TargetTags, Kind: KindOpaque},
		{SourceKey: "_notes", Target: TargetNotes, Kind: KindOpaque},
		{SourceKey: "_validation_status", Target: TargetValidationStatus, Kind: KindOpaque},
		{SourceKey: "_submitted_by", Target: TargetSubmittedBy, Kind: KindString},
		{SourceKey: "__version__", Target: TargetVersion, Kind: KindString},

		{SourceKey: "sec_a/unique_id", Target: TargetClientUniqueID, Kind: KindString},
		{SourceKey: "sec_c/cd_client_name", Target: TargetClientName, Kind: KindString},
		{SourceKey: "sec_c/cd_client_id_manifest", Target: TargetClientIDManifest, Kind: KindString},
		{SourceKey: "sec_c/cd_location", Target: TargetClientLocation, Kind: KindString},
		{SourceKey: "sec_c/cd_clients_phone", Target: TargetClientPhone, Kind: KindString},
		{SourceKey: "sec_c/cd_phoneno_alt_number", Target: TargetClientAltPhone, Kind: KindString},
		{SourceKey: "sec_c/cd_clients_phone_smart_feature", Target: TargetClientPhoneType, Kind: KindString},
		{SourceKey: "sec_c/cd_gender", Target: TargetClientGender, Kind: KindString},
		{SourceKey: "sec_c/cd_age", Target: TargetClientAge, Kind: KindInt},
		{SourceKey: "sec_c/cd_nationality", Target: TargetClientNationality, Kind: KindString},
		{SourceKey: "sec_c/cd_strata", Target: TargetClientStrata, Kind: KindString},
		{SourceKey: "sec_c/cd_disability", Target: TargetClientDisability, Kind: KindBool},
		{SourceKey: "sec_c/cd_education", Target: TargetClientEducation, Kind: KindString},
		{SourceKey: "sec_c/cd_client_status", Target: TargetClientStatus, Kind: KindString},
		{SourceKey: "sec_c/cd_sole_income_earner", Target: TargetSoleIncomeEarner, Kind: KindBool},
		{SourceKey: "sec_c/cd_howrespble_pple", Target: TargetResponsiblePeople, Kind: KindInt},

		{SourceKey: "sec_a/cd_biz_country_name", Target: TargetBizCountryName, Kind: KindString},
		{SourceKey: "sec_a/cd_biz_region_name", Target: TargetBizRegionName, Kind: KindString},
		{SourceKey: "sec_b/bda_name", Target: TargetBDAName, Kind: KindString},
		{SourceKey: "sec_b/cd_cohort", Target: TargetCohort, Kind: KindString},
		{SourceKey: "sec_b/cd_program", Target: TargetProgram, Kind: KindString},
		{SourceKey: "group_mx5fl16/cd_biz_status", Target: TargetBizStatus, Kind: KindString},
		{SourceKey: "group_mx5fl16/bd_biz_operating", Target: TargetBizOperating, Kind: KindBool},
	}
}

// LoadMappingFile reads a mapping table from a YAML file. Entries with a
// source key already present in base replace that row; new source keys are
// appended. Pass DefaultMapping() as base to extend the built-in table.
func LoadMappingFile(path string, base []FieldMapping) ([]FieldMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var overrides []FieldMapping
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file %s: %w", path, err)
	}

	for i, m := range overrides {
		if m.SourceKey == "" || m.Target == "" {
			return nil, fmt.Errorf("mapping entry %d in %s is missing source or target", i, path)
		}
		switch m.Kind {
		case KindString, KindInt, KindBool, KindDateTime, KindDate, KindOpaque:
		case "":
			overrides[i].Kind = KindString
		default:
			return nil, fmt.Errorf("mapping entry %q has unknown kind %q", m.SourceKey, m.Kind)
		}
	}

	return MergeMapping(base, overrides), nil
}

// MergeMapping overlays overrides onto base, matching rows by source key.
// Order of base rows is preserved; new rows are appended in override order.
func MergeMapping(base, overrides []FieldMapping) []FieldMapping {
	merged := make([]FieldMapping, len(base))
	copy(merged, base)

	index := make(map[string]int, len(merged))
	for i, m := range merged {
		index[m.SourceKey] = i
	}

	for _, o := range overrides {
		if i, ok := index[o.SourceKey]; ok {
			merged[i] = o
		} else {
			index[o.SourceKey] = len(merged)
			merged = append(merged, o)
		}
	}

	return merged
}
