package ingest_test

import (
	"context"
	"fmt"
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

// fakeFeed serves canned documents per date and records which days were
// requested.
type fakeFeed struct {
	docs      map[string][]byte
	errs      map[string]error
	requested map[string]bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		docs:      make(map[string][]byte),
		errs:      make(map[string]error),
		requested: make(map[string]bool),
	}
}

func (f *fakeFeed) Fetch(_ context.Context, date time.Time) ([]byte, error) {
	key := date.Format("20060102")
	f.requested[key] = true
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if doc, ok := f.docs[key]; ok {
		return doc, nil
	}
	return nil, fmt.Errorf("%w: %s", feed.ErrNotFound, key)
}

// documentFor builds a minimal one-action document dated via the German
// title line.
func documentFor(date time.Time) []byte {
	weekdays := map[time.Weekday]string{
		time.Monday: "Montag", time.Tuesday: "Dienstag", time.Wednesday: "Mittwoch",
		time.Thursday: "Donnerstag", time.Friday: "Freitag",
	}
	months := [...]string{"", "Januar", "Februar", "März", "April", "Mai", "Juni",
		"Juli", "August", "September", "Oktober", "November", "Dezember"}
	title := fmt.Sprintf("%s, %d. %s %d",
		weekdays[date.Weekday()], date.Day(), months[date.Month()], date.Year())
	return []byte(fmt.Sprintf(`<vp>
  <kopf><datei>VplanKl%s.xml</datei><titel>%s</titel></kopf>
  <haupt>
    <aktion>
      <klasse>6/1</klasse><stunde>3</stunde><fach>---</fach>
      <lehrer>Schmidt</lehrer><raum>204</raum>
      <info>Mathe fällt aus Lehmann</info>
    </aktion>
  </haupt>
</vp>`, date.Format("20060102"), title))
}

// tuesday is a fixed reference date: Tuesday, 2024-11-26.
var tuesday = time.Date(2024, 11, 26, 9, 30, 0, 0, time.UTC)

func TestLastSchoolDay(t *testing.T) {
	tests := []struct {
		name  string
		today time.Time
		want  time.Time
	}{
		{"tuesday yields monday", tuesday, plan.Day(2024, 11, 25)},
		{"monday yields previous friday", plan.Day(2024, 11, 25), plan.Day(2024, 11, 22)},
		{"wednesday yields tuesday", plan.Day(2024, 11, 27), plan.Day(2024, 11, 26)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ingest.LastSchoolDay(tt.today))
		})
	}
}

func TestFetchWindow_WeekdaysOnly(t *testing.T) {
	window := ingest.FetchWindow(tuesday)

	// 2024-11-18 (Mon) .. 2024-11-25 (Mon), skipping the weekend.
	require.Len(t, window, 6)
	assert.Equal(t, plan.Day(2024, 11, 18), window[0])
	assert.Equal(t, plan.Day(2024, 11, 25), window[len(window)-1])
	for _, day := range window {
		wd := day.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
	}
}

func TestNeedsRefresh(t *testing.T) {
	current := plan.ScheduleRecord{Date: plan.Day(2024, 11, 25)}
	stale := plan.ScheduleRecord{Date: plan.Day(2024, 11, 20)}

	assert.True(t, ingest.NeedsRefresh(nil, tuesday), "empty store always refreshes")
	assert.True(t, ingest.NeedsRefresh([]plan.ScheduleRecord{stale}, tuesday))
	assert.False(t, ingest.NeedsRefresh([]plan.ScheduleRecord{stale, current}, tuesday))
}

func newTestOrchestrator(t *testing.T, f *fakeFeed) (*ingest.Orchestrator, *tabular.RecordStore) {
	t.Helper()
	records := tabular.NewRecordStore(memory.New().Sheet("vertretungsplan"))
	return ingest.NewAt(f, records, 2, func() time.Time { return tuesday }), records
}

func TestOrchestrator_RunFetchesWindowAndAppends(t *testing.T) {
	f := newFakeFeed()
	f.docs["20241125"] = documentFor(plan.Day(2024, 11, 25))
	f.docs["20241122"] = documentFor(plan.Day(2024, 11, 22))
	orch, records := newTestOrchestrator(t, f)

	report, err := orch.Run(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, report.Triggered)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Appended)
	assert.Len(t, report.Days, 6)

	loaded, err := records.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	// Weekend days were never requested.
	assert.False(t, f.requested["20241123"])
	assert.False(t, f.requested["20241124"])
}

func TestOrchestrator_SecondRunIsSkipped(t *testing.T) {
	f := newFakeFeed()
	f.docs["20241125"] = documentFor(plan.Day(2024, 11, 25))
	orch, _ := newTestOrchestrator(t, f)

	report, err := orch.Run(context.Background(), false)
	require.NoError(t, err)
	require.True(t, report.Triggered)

	// The last school day is now stored, so nothing triggers.
	report, err = orch.Run(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, report.Triggered)
	assert.Equal(t, 0, report.Appended)
}

func TestOrchestrator_ForcedRunAppendsNothingNew(t *testing.T) {
	f := newFakeFeed()
	f.docs["20241125"] = documentFor(plan.Day(2024, 11, 25))
	orch, _ := newTestOrchestrator(t, f)

	_, err := orch.Run(context.Background(), false)
	require.NoError(t, err)

	report, err := orch.Run(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, report.Triggered)
	assert.Equal(t, 0, report.Appended, "re-fetched unchanged day must not re-append")
}

func TestOrchestrator_BadDayDoesNotFailRun(t *testing.T) {
	f := newFakeFeed()
	f.docs["20241125"] = documentFor(plan.Day(2024, 11, 25))
	f.docs["20241122"] = []byte("<vp><haupt></haupt></vp>") // header missing
	f.errs["20241121"] = &feed.TransientError{StatusCode: 502}
	orch, records := newTestOrchestrator(t, f)

	report, err := orch.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Appended)

	byDay := make(map[string]ingest.DayOutcome)
	for _, d := range report.Days {
		byDay[d.Date.Format("20060102")] = d
	}
	assert.Equal(t, ingest.DayFetched, byDay["20241125"].Status)
	assert.Equal(t, ingest.DayFailed, byDay["20241122"].Status)
	assert.Equal(t, ingest.DayTransient, byDay["20241121"].Status)
	assert.Equal(t, ingest.DayAbsent, byDay["20241118"].Status)

	loaded, err := records.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestOrchestrator_LastReport(t *testing.T) {
	f := newFakeFeed()
	orch, _ := newTestOrchestrator(t, f)

	assert.Nil(t, orch.LastReport())

	report, err := orch.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, orch.LastReport().RunID)
}
