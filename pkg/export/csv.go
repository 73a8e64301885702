// Package export flattens stored submissions to delimited text. List-valued
// fields were already joined into single cells by the mapper's canonical
// rendering, so every column is a plain string here.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fieldsift/kobo-ingest/pkg/models"
	"github.com/fieldsift/kobo-ingest/pkg/repositories"
)

const pageSize = 500

var header = []string{
	"external_id", "form_uuid", "instance_id",
	"submission_time", "start_time", "end_time", "survey_date",
	"geolocation", "status", "tags", "notes", "validation_status",
	"submitted_by", "version",
	"client_unique_id", "client_name", "client_location", "client_phone",
	"client_gender", "client_age", "client_nationality", "client_disability",
	"client_education", "client_status", "sole_income_earner", "responsible_people",
	"biz_country_name", "biz_region_name", "bda_name", "cohort", "program",
	"biz_status", "biz_operating",
}

// Exporter streams stored submissions to CSV.
type Exporter struct {
	store  repositories.RecordStore
	logger *zap.Logger
}

// NewExporter creates an Exporter over the given store.
func NewExporter(store repositories.RecordStore, logger *zap.Logger) *Exporter {
	return &Exporter{store: store, logger: logger.Named("export")}
}

// Export writes all stored submissions with their dependents to w as CSV.
func (e *Exporter) Export(ctx context.Context, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	total := 0
	for offset := 0; ; offset += pageSize {
		records, err := e.store.ListRecords(ctx, pageSize, offset)
		if err != nil {
			return fmt.Errorf("failed to list records: %w", err)
		}
		if len(records) == 0 {
			break
		}

		for _, rec := range records {
			if err := cw.Write(row(rec)); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
			total++
		}
		if len(records) < pageSize {
			break
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	e.logger.Info("Exported submissions", zap.Int("rows", total))
	return nil
}

func row(rec *models.Record) []string {
	sub := rec.Submission
	cols := []string{
		strconv.FormatInt(sub.ExternalID, 10),
		sub.FormUUID.String(),
		sub.InstanceID.String(),
		sub.SubmissionTime.Format(time.RFC3339),
		sub.StartTime.Format(time.RFC3339),
		sub.EndTime.Format(time.RFC3339),
		sub.SurveyDate.Format("2006-01-02"),
		str(sub.Geolocation),
		str(sub.Status),
		str(sub.Tags),
		str(sub.Notes),
		str(sub.ValidationStatus),
		str(sub.SubmittedBy),
		str(sub.Version),
	}

	if c := rec.Client; c != nil {
		cols = append(cols,
			c.UniqueID, c.ClientName, str(c.Location), str(c.Phone),
			str(c.Gender), intStr(c.Age), str(c.Nationality),
			strconv.FormatBool(c.Disability), str(c.Education),
			str(c.ClientStatus), strconv.FormatBool(c.SoleIncomeEarner),
			intStr(c.ResponsiblePeople),
		)
	} else {
		cols = append(cols, make([]string, 12)...)
	}

	if b := rec.Business; b != nil {
		cols = append(cols,
			b.CountryName, str(b.RegionName), str(b.BDAName),
			str(b.Cohort), str(b.Program), str(b.BizStatus),
			strconv.FormatBool(b.BizOperating),
		)
	} else {
		cols = append(cols, make([]string, 7)...)
	}

	return cols
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intStr(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
