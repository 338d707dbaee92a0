/*
handlers.go - HTTP API handlers for the substitution-plan dashboard

PURPOSE:
  Exposes the schedule store and the reconciliation engine via REST API.
  Handles HTTP request/response, JSON and CSV serialization, and delegates
  to domain logic.

ENDPOINTS:
  Records:
    GET  /api/records                  Filtered schedule records
    GET  /api/records/export           Same selection as CSV
    GET  /api/records/per-day          Entry counts per date

  Variance:
    GET  /api/variance/{schoolYear}             Reconciled Soll/Ist/Delta rows
    GET  /api/variance/{schoolYear}/export      Same rows as CSV
    GET  /api/variance/{schoolYear}/by-subject  Weekly relative delta per subject
    GET  /api/variance/{schoolYear}/by-class    Weekly relative delta per class

  Ingestion:
    POST /api/ingest/run               Trigger a rolling-window run
    GET  /api/ingest/status            Report of the last run

  Admin:
    POST /api/admin/quota/rebuild      Re-expand all quota tables
    POST /api/admin/records/rewrite    Overwrite-all normalization pass

QUERY PARAMETERS (records endpoints):
  from, to            ISO dates (inclusive)
  classes             comma-separated class labels
  grades              comma-separated grade levels
  cancelled           true/false, absent means both
  selfStudy           true/false, absent means both
  cancelledSubject    comma-separated; "Kein Fach" selects blank subjects

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown school year, no run yet
  - 500: Internal errors

SEE ALSO:
  - dto.go: Response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/schulwerk/vplan-engine/ingest"
	"github.com/schulwerk/vplan-engine/plan"
	"github.com/schulwerk/vplan-engine/quota"
	"github.com/schulwerk/vplan-engine/reconcile"
	"github.com/schulwerk/vplan-engine/tabular"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

const (
	scheduleCacheKey = "schedule"
	defaultCacheTTL  = 10 * time.Minute
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Records      *tabular.RecordStore
	Variance     *tabular.VarianceStore
	Orchestrator *ingest.Orchestrator

	cache *ttlCache
}

// NewHandler creates a new handler with the given stores. A cacheTTL of
// zero selects the default.
func NewHandler(records *tabular.RecordStore, variance *tabular.VarianceStore, orch *ingest.Orchestrator, cacheTTL time.Duration) *Handler {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Handler{
		Records:      records,
		Variance:     variance,
		Orchestrator: orch,
		cache:        newTTLCache(cacheTTL),
	}
}

// loadSchedule reads the full schedule table through the TTL cache.
func (h *Handler) loadSchedule(r *http.Request) ([]plan.ScheduleRecord, error) {
	value, err := h.cache.get(scheduleCacheKey, func() (any, error) {
		return h.Records.LoadAll(r.Context())
	})
	if err != nil {
		return nil, err
	}
	return value.([]plan.ScheduleRecord), nil
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListRecords returns the schedule records matching the query filter.
// GET /api/records
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	records, err := h.loadSchedule(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return
	}

	selected := filter.Apply(records)
	writeJSON(w, http.StatusOK, RecordsResponse{
		Records:           toScheduleRecordDTOs(selected),
		Total:             len(selected),
		CancelledSubjects: plan.CancelledSubjects(records),
	})
}

// ExportRecords streams the filtered selection as CSV, using the stored
// (German) column layout.
// GET /api/records/export
func (h *Handler) ExportRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	records, err := h.loadSchedule(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="vertretungsplan.csv"`)

	cw := csv.NewWriter(w)
	cw.Write(tabular.ScheduleColumns)
	for _, rec := range filter.Apply(records) {
		cw.Write(tabular.EncodeScheduleRow(rec))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Printf("[API] CSV export aborted: %v", err)
	}
}

// RecordsPerDay returns the entry count per calendar date for the
// filtered selection.
// GET /api/records/per-day
func (h *Handler) RecordsPerDay(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	records, err := h.loadSchedule(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return
	}

	writeJSON(w, http.StatusOK, toDayCountDTOs(plan.CountPerDay(filter.Apply(records))))
}

// filterFromQuery builds the record filter from query parameters.
func filterFromQuery(r *http.Request) (plan.Filter, error) {
	var f plan.Filter
	q := r.URL.Query()

	if s := q.Get("from"); s != "" {
		from, err := parseDateParam(s)
		if err != nil {
			return f, err
		}
		f.From = from
	}
	if s := q.Get("to"); s != "" {
		to, err := parseDateParam(s)
		if err != nil {
			return f, err
		}
		f.To = to
	}
	if values := splitParam(q.Get("classes")); len(values) > 0 {
		f.Classes = make(map[string]bool)
		for _, v := range values {
			f.Classes[v] = true
		}
	}
	if values := splitParam(q.Get("grades")); len(values) > 0 {
		f.Grades = make(map[int]bool)
		for _, v := range values {
			grade, err := strconv.Atoi(v)
			if err != nil {
				return f, err
			}
			f.Grades[grade] = true
		}
	}
	var err error
	if f.Cancelled, err = triStateParam(q.Get("cancelled")); err != nil {
		return f, err
	}
	if f.SelfStudy, err = triStateParam(q.Get("selfStudy")); err != nil {
		return f, err
	}
	if values := splitParam(q.Get("cancelledSubject")); len(values) > 0 {
		f.CancelledSubject = make(map[string]bool)
		for _, v := range values {
			f.CancelledSubject[v] = true
		}
	}
	return f, nil
}

func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func triStateParam(s string) (plan.TriState, error) {
	switch s {
	case "":
		return plan.TriAny, nil
	case "true":
		return plan.TriYes, nil
	case "false":
		return plan.TriNo, nil
	default:
		return plan.TriAny, errors.New("boolean parameter must be true or false")
	}
}

// =============================================================================
// VARIANCE HANDLERS
// =============================================================================

// reconcileYear loads quota and schedule and reconciles them for one
// school year, all through the TTL cache.
func (h *Handler) reconcileYear(r *http.Request, schoolYear string) ([]reconcile.VarianceRecord, error) {
	value, err := h.cache.get("variance:"+schoolYear, func() (any, error) {
		quotaRows, err := h.Variance.LoadQuota(r.Context(), schoolYear)
		if err != nil {
			return nil, err
		}
		schedule, err := h.Records.LoadAll(r.Context())
		if err != nil {
			return nil, err
		}
		return reconcile.Reconcile(quotaRows, schedule, schoolYear), nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]reconcile.VarianceRecord), nil
}

// GetVariance returns the reconciled Soll/Ist/Delta rows for one school year.
// GET /api/variance/{schoolYear}
func (h *Handler) GetVariance(w http.ResponseWriter, r *http.Request) {
	schoolYear := chi.URLParam(r, "schoolYear")

	rows, err := h.reconcileYear(r, schoolYear)
	if errors.Is(err, quota.ErrNoQuotaForYear) {
		writeError(w, http.StatusNotFound, "No quota table for school year "+schoolYear, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toVarianceDTOs(rows))
}

// ExportVariance streams the reconciled rows as CSV in the stored column
// layout.
// GET /api/variance/{schoolYear}/export
func (h *Handler) ExportVariance(w http.ResponseWriter, r *http.Request) {
	schoolYear := chi.URLParam(r, "schoolYear")

	rows, err := h.reconcileYear(r, schoolYear)
	if errors.Is(err, quota.ErrNoQuotaForYear) {
		writeError(w, http.StatusNotFound, "No quota table for school year "+schoolYear, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Reconciliation failed", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="vergleich-`+schoolYear+`.csv"`)

	cw := csv.NewWriter(w)
	cw.Write(tabular.VarianceColumns)
	for _, row := range rows {
		cw.Write([]string{
			row.ID,
			row.SchoolYear,
			strconv.Itoa(row.Week.Year),
			strconv.Itoa(row.Week.Week),
			row.Class,
			row.Subject,
			strconv.Itoa(row.GradeLevel),
			row.PlannedHours.String(),
			row.ActualHours.String(),
			row.DeltaHours.String(),
			formatNoData(row.HasNoData),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Printf("[API] CSV export aborted: %v", err)
	}
}

func formatNoData(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// VarianceBySubject returns the weekly delta aggregation per subject.
// GET /api/variance/{schoolYear}/by-subject
func (h *Handler) VarianceBySubject(w http.ResponseWriter, r *http.Request) {
	h.aggregatedVariance(w, r, reconcile.AggregateBySubject)
}

// VarianceByClass returns the weekly delta aggregation per class.
// GET /api/variance/{schoolYear}/by-class
func (h *Handler) VarianceByClass(w http.ResponseWriter, r *http.Request) {
	h.aggregatedVariance(w, r, reconcile.AggregateByClass)
}

func (h *Handler) aggregatedVariance(w http.ResponseWriter, r *http.Request, aggregate func([]reconcile.VarianceRecord) []reconcile.WeeklyDelta) {
	schoolYear := chi.URLParam(r, "schoolYear")

	rows, err := h.reconcileYear(r, schoolYear)
	if errors.Is(err, quota.ErrNoQuotaForYear) {
		writeError(w, http.StatusNotFound, "No quota table for school year "+schoolYear, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeeklyDeltaDTOs(aggregate(rows)))
}

// =============================================================================
// INGESTION HANDLERS
// =============================================================================

// RunIngestion triggers an ingestion run. With ?force=true the refresh
// trigger is bypassed.
// POST /api/ingest/run
func (h *Handler) RunIngestion(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	report, err := h.Orchestrator.Run(r.Context(), force)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Ingestion run failed", err)
		return
	}
	if report.Appended > 0 {
		h.cache.invalidate()
	}
	writeJSON(w, http.StatusOK, IngestRunResponse{Report: report})
}

// IngestStatus returns the report of the last run in this process.
// GET /api/ingest/status
func (h *Handler) IngestStatus(w http.ResponseWriter, r *http.Request) {
	report := h.Orchestrator.LastReport()
	if report == nil {
		writeError(w, http.StatusNotFound, "No ingestion run yet", nil)
		return
	}
	writeJSON(w, http.StatusOK, IngestRunResponse{Report: report})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RebuildQuota re-expands and rewrites the quota table of every
// configured school year.
// POST /api/admin/quota/rebuild
func (h *Handler) RebuildQuota(w http.ResponseWriter, r *http.Request) {
	rebuilt, err := h.Variance.RebuildAll(r.Context())
	if errors.Is(err, quota.ErrNoQuotaForYear) {
		writeError(w, http.StatusNotFound, "Quota configuration sheet missing", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Quota rebuild failed", err)
		return
	}
	h.cache.invalidate()
	writeJSON(w, http.StatusOK, RebuildResponse{SchoolYears: rebuilt})
}

// RewriteRecords runs the overwrite-all normalization pass: every stored
// row is loaded through the coercion layer and written back, dropping
// rows with unparseable dates and refreshing derived columns.
// POST /api/admin/records/rewrite
func (h *Handler) RewriteRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.Records.LoadAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return
	}
	if err := h.Records.OverwriteAll(r.Context(), records); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to rewrite records", err)
		return
	}
	h.cache.invalidate()
	writeJSON(w, http.StatusOK, RewriteResponse{Records: len(records)})
}

// Health is the liveness endpoint.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
