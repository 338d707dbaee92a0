/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract: dates become
  ISO strings, decimals become fixed-point strings, and the optional grade
  level stays nullable.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Response: Complex response wrappers

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/schulwerk/vplan-engine/ingest"
	"github.com/schulwerk/vplan-engine/plan"
	"github.com/schulwerk/vplan-engine/reconcile"
)

const dateParamLayout = "2006-01-02"

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ScheduleRecordDTO represents one normalized plan entry.
type ScheduleRecordDTO struct {
	ID               string `json:"id"`
	SourceFile       string `json:"sourceFile"`
	Date             string `json:"date"`
	Class            string `json:"class"`
	Period           int    `json:"period"`
	Subject          string `json:"subject"`
	Teacher          string `json:"teacher"`
	Room             string `json:"room"`
	Info             string `json:"info"`
	IsCancelled      bool   `json:"isCancelled"`
	IsSelfStudy      bool   `json:"isSelfStudy"`
	CancelledSubject string `json:"cancelledSubject,omitempty"`
	CancelledTeacher string `json:"cancelledTeacher,omitempty"`
	GradeLevel       *int   `json:"gradeLevel"`
}

// RecordsResponse wraps a record selection with the facet values the
// dashboard builds its filter controls from.
type RecordsResponse struct {
	Records           []ScheduleRecordDTO `json:"records"`
	Total             int                 `json:"total"`
	CancelledSubjects []string            `json:"cancelledSubjects"`
}

// DayCountDTO is the per-date entry count.
type DayCountDTO struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// VarianceDTO is one reconciled Soll/Ist/Delta row.
type VarianceDTO struct {
	ID             string `json:"id"`
	SchoolYear     string `json:"schoolYear"`
	Year           int    `json:"year"`
	Week           int    `json:"week"`
	Class          string `json:"class"`
	Subject        string `json:"subject"`
	GradeLevel     int    `json:"gradeLevel"`
	PlannedHours   string `json:"plannedHours"`
	ActualHours    string `json:"actualHours"`
	DeltaHours     string `json:"deltaHours"`
	CancelledCount int    `json:"cancelledCount"`
	HasNoData      bool   `json:"hasNoData"`
}

// WeeklyDeltaDTO is one aggregated heatmap cell.
type WeeklyDeltaDTO struct {
	SchoolYear string `json:"schoolYear"`
	Year       int    `json:"year"`
	Week       int    `json:"week"`
	Label      string `json:"label"`
	Soll       string `json:"soll"`
	Delta      string `json:"delta"`
	RelDelta   string `json:"relDelta"`
}

// RebuildResponse reports an administrative quota rebuild.
type RebuildResponse struct {
	SchoolYears []string `json:"schoolYears"`
}

// RewriteResponse reports the overwrite-all normalization pass.
type RewriteResponse struct {
	Records int `json:"records"`
}

// IngestRunResponse wraps a run report.
type IngestRunResponse struct {
	Report *ingest.RunReport `json:"report"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toScheduleRecordDTO(r plan.ScheduleRecord) ScheduleRecordDTO {
	return ScheduleRecordDTO{
		ID:               r.ID,
		SourceFile:       r.SourceFile,
		Date:             r.Date.Format(dateParamLayout),
		Class:            r.Class,
		Period:           r.Period,
		Subject:          r.Subject,
		Teacher:          r.Teacher,
		Room:             r.Room,
		Info:             r.Info,
		IsCancelled:      r.IsCancelled,
		IsSelfStudy:      r.IsSelfStudy,
		CancelledSubject: r.CancelledSubject,
		CancelledTeacher: r.CancelledTeacher,
		GradeLevel:       r.GradeLevel,
	}
}

func toScheduleRecordDTOs(records []plan.ScheduleRecord) []ScheduleRecordDTO {
	dtos := make([]ScheduleRecordDTO, 0, len(records))
	for _, r := range records {
		dtos = append(dtos, toScheduleRecordDTO(r))
	}
	return dtos
}

func toDayCountDTOs(counts []plan.DayCount) []DayCountDTO {
	dtos := make([]DayCountDTO, 0, len(counts))
	for _, c := range counts {
		dtos = append(dtos, DayCountDTO{Date: c.Date.Format(dateParamLayout), Count: c.Count})
	}
	return dtos
}

func toVarianceDTO(r reconcile.VarianceRecord) VarianceDTO {
	return VarianceDTO{
		ID:             r.ID,
		SchoolYear:     r.SchoolYear,
		Year:           r.Week.Year,
		Week:           r.Week.Week,
		Class:          r.Class,
		Subject:        r.Subject,
		GradeLevel:     r.GradeLevel,
		PlannedHours:   r.PlannedHours.String(),
		ActualHours:    r.ActualHours.String(),
		DeltaHours:     r.DeltaHours.String(),
		CancelledCount: r.CancelledCount,
		HasNoData:      r.HasNoData,
	}
}

func toVarianceDTOs(rows []reconcile.VarianceRecord) []VarianceDTO {
	dtos := make([]VarianceDTO, 0, len(rows))
	for _, r := range rows {
		dtos = append(dtos, toVarianceDTO(r))
	}
	return dtos
}

func toWeeklyDeltaDTOs(rows []reconcile.WeeklyDelta) []WeeklyDeltaDTO {
	dtos := make([]WeeklyDeltaDTO, 0, len(rows))
	for _, r := range rows {
		dtos = append(dtos, WeeklyDeltaDTO{
			SchoolYear: r.SchoolYear,
			Year:       r.Week.Year,
			Week:       r.Week.Week,
			Label:      r.Label,
			Soll:       r.Soll.String(),
			Delta:      r.Delta.String(),
			RelDelta:   r.RelDelta.StringFixed(1),
		})
	}
	return dtos
}

func parseDateParam(s string) (time.Time, error) {
	return time.Parse(dateParamLayout, s)
}
