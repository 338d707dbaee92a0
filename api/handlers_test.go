/*
handlers_test.go - Unit tests for API handlers

Tests run against the in-memory workbook wired through real stores, with
the feed faked at the Fetcher seam.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schulwerk/vplan-engine/feed"
	"github.com/schulwerk/vplan-engine/ingest"
	"github.com/schulwerk/vplan-engine/plan"
	"github.com/schulwerk/vplan-engine/store/memory"
	"github.com/schulwerk/vplan-engine/tabular"
)

// emptyFeed answers every fetch with "no document".
type emptyFeed struct{}

func (emptyFeed) Fetch(_ context.Context, date time.Time) ([]byte, error) {
	return nil, fmt.Errorf("%w: %s", feed.ErrNotFound, feed.ResourceName(date))
}

func cancelledRecord(day time.Time, class, subject string) plan.ScheduleRecord {
	info := subject + " fällt aus"
	return plan.ScheduleRecord{
		ID:               plan.RecordID(day, class, 1, "---", "", "", info),
		SourceFile:       feed.ResourceName(day),
		Date:             day,
		Class:            class,
		Period:           1,
		Subject:          "---",
		Info:             info,
		IsCancelled:      true,
		CancelledSubject: subject,
		GradeLevel:       plan.ExtractGradeLevel(class),
	}
}

func heldRecord(day time.Time, class, subject string) plan.ScheduleRecord {
	r := cancelledRecord(day, class, subject)
	r.ID = plan.RecordID(day, class, 2, subject, "Schmidt", "204", "Raumtausch")
	r.Period = 2
	r.Subject = subject
	r.Info = "Raumtausch"
	r.IsCancelled = false
	r.CancelledSubject = ""
	return r
}

// newTestServer seeds one configured school year (2024-2025, weeks 48-49
// of 2024, classes 6/1 and 7/1) plus a handful of week-48 records.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	wb := memory.New()

	cfg := wb.Sheet("schuljahr")
	require.NoError(t, cfg.ClearAndWriteHeader(ctx, []string{
		"Schuljahr", "Jahr-Start", "KW-Start", "Jahr-Ende", "KW-Ende", "Klassen",
	}))
	require.NoError(t, cfg.AppendRows(ctx, [][]string{
		{"2024-2025", "2024", "48", "2024", "49", "6/1; 7/1"},
	}))

	soll := wb.Sheet("soll-2024-2025")
	require.NoError(t, soll.ClearAndWriteHeader(ctx, []string{"Klassenstufe", "Mathe", "Deutsch"}))
	require.NoError(t, soll.AppendRows(ctx, [][]string{
		{"6", "4", "5"},
		{"7", "4", "4"},
	}))

	records := tabular.NewRecordStore(wb.Sheet("vertretungsplan"))
	variance := tabular.NewVarianceStore(wb)
	_, err := variance.RebuildAll(ctx)
	require.NoError(t, err)

	// Week 48 of 2024: two cancelled Mathe periods for 6/1, one held one.
	monday := plan.Day(2024, 11, 25)
	_, err = records.AppendNew(ctx, []plan.ScheduleRecord{
		cancelledRecord(monday, "6/1", "Mathe"),
		cancelledRecord(monday.AddDate(0, 0, 1), "6/1", "Mathe"),
		heldRecord(monday.AddDate(0, 0, 1), "6/1", "Deutsch"),
		heldRecord(monday.AddDate(0, 0, 2), "7/1", "Mathe"),
	})
	require.NoError(t, err)

	orch := ingest.New(emptyFeed{}, records, 1)
	handler := NewHandler(records, variance, orch, time.Minute)
	srv := httptest.NewServer(NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func postJSON(t *testing.T, srv *httptest.Server, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp := getJSON(t, srv, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListRecords_Unfiltered(t *testing.T) {
	srv := newTestServer(t)

	var body RecordsResponse
	resp := getJSON(t, srv, "/api/records", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4, body.Total)
	assert.Contains(t, body.CancelledSubjects, "Mathe")
	assert.Contains(t, body.CancelledSubjects, plan.NoSubjectBucket)
}

func TestListRecords_Filtered(t *testing.T) {
	srv := newTestServer(t)

	var body RecordsResponse
	resp := getJSON(t, srv, "/api/records?cancelled=true&classes=6/1", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, body.Total)
	for _, r := range body.Records {
		assert.True(t, r.IsCancelled)
		assert.Equal(t, "6/1", r.Class)
	}
}

func TestListRecords_BadDateParam(t *testing.T) {
	srv := newTestServer(t)
	resp := getJSON(t, srv, "/api/records?from=25.11.2024", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListRecords_BadTriStateParam(t *testing.T) {
	srv := newTestServer(t)
	resp := getJSON(t, srv, "/api/records?cancelled=yes", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportRecords_CSV(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/records/export?cancelled=true")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")

	lines := strings.Split(strings.TrimSpace(readAll(t, resp)), "\n")
	require.Len(t, lines, 3) // header + two cancelled rows
	assert.Equal(t, strings.Join(tabular.ScheduleColumns, ","), strings.TrimSpace(lines[0]))
}

func TestRecordsPerDay(t *testing.T) {
	srv := newTestServer(t)

	var body []DayCountDTO
	resp := getJSON(t, srv, "/api/records/per-day", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body, 3)
	assert.Equal(t, "2024-11-25", body[0].Date)
	assert.Equal(t, 1, body[0].Count)
	assert.Equal(t, "2024-11-26", body[1].Date)
	assert.Equal(t, 2, body[1].Count)
}

func TestGetVariance(t *testing.T) {
	srv := newTestServer(t)

	var body []VarianceDTO
	resp := getJSON(t, srv, "/api/variance/2024-2025", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Only week 48 has schedule data; week 49 rows are excluded.
	require.Len(t, body, 4)
	byKey := make(map[string]VarianceDTO)
	for _, row := range body {
		assert.Equal(t, 48, row.Week)
		byKey[row.Class+"/"+row.Subject] = row
	}

	mathe := byKey["6/1/Mathe"]
	assert.Equal(t, "4", mathe.PlannedHours)
	assert.Equal(t, "2", mathe.ActualHours)
	assert.Equal(t, "2", mathe.DeltaHours)
	assert.False(t, mathe.HasNoData)

	deutsch := byKey["6/1/Deutsch"]
	assert.Equal(t, "5", deutsch.ActualHours)
	assert.Equal(t, "0", deutsch.DeltaHours)
}

func TestGetVariance_UnknownYear(t *testing.T) {
	srv := newTestServer(t)
	resp := getJSON(t, srv, "/api/variance/1999-2000", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVarianceBySubject(t *testing.T) {
	srv := newTestServer(t)

	var body []WeeklyDeltaDTO
	resp := getJSON(t, srv, "/api/variance/2024-2025/by-subject", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body, 2) // Mathe and Deutsch in week 48

	byLabel := make(map[string]WeeklyDeltaDTO)
	for _, row := range body {
		byLabel[row.Label] = row
	}
	// Mathe: Soll 4+4 across both classes, two cancelled periods.
	assert.Equal(t, "8", byLabel["Mathe"].Soll)
	assert.Equal(t, "2", byLabel["Mathe"].Delta)
	assert.Equal(t, "25.0", byLabel["Mathe"].RelDelta)
}

func TestVarianceExport_CSV(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/variance/2024-2025/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := strings.Split(strings.TrimSpace(readAll(t, resp)), "\n")
	require.Len(t, lines, 5) // header + four variance rows
	assert.Equal(t, strings.Join(tabular.VarianceColumns, ","), strings.TrimSpace(lines[0]))
}

func TestIngestEndpoints(t *testing.T) {
	srv := newTestServer(t)

	// No run yet.
	resp := getJSON(t, srv, "/api/ingest/status", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var run IngestRunResponse
	resp = postJSON(t, srv, "/api/ingest/run?force=true", &run)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, run.Report)
	assert.True(t, run.Report.Triggered)
	assert.Equal(t, 0, run.Report.Appended, "empty feed appends nothing")

	var status IngestRunResponse
	resp = getJSON(t, srv, "/api/ingest/status", &status)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, run.Report.RunID, status.Report.RunID)
}

func TestRebuildQuota(t *testing.T) {
	srv := newTestServer(t)

	var body RebuildResponse
	resp := postJSON(t, srv, "/api/admin/quota/rebuild", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"2024-2025"}, body.SchoolYears)
}

func TestRewriteRecords(t *testing.T) {
	srv := newTestServer(t)

	var body RewriteResponse
	resp := postJSON(t, srv, "/api/admin/records/rewrite", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4, body.Records)

	// The rewritten store still serves the same selection.
	var records RecordsResponse
	resp = getJSON(t, srv, "/api/records", &records)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4, records.Total)
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return sb.String()
}
