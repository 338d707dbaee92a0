/*
Package ingest orchestrates the rolling-window feed ingestion.

PURPOSE:
  Decides which days need fetching, runs the fetch/parse fan-out, and
  appends the normalized records to the store in one pass. This is the
  only writer of the schedule table.

KEY CONCEPTS:
  Last School Day: Yesterday, except on Mondays where it is the previous
    Friday. The feed never publishes weekend documents.

  Rolling Window: Last school day minus seven days through the last
    school day, weekdays only. Re-fetching already stored days is safe:
    content-hashed IDs make the append a no-op for unchanged rows, while
    late corrections to a published day land as new rows.

  Refresh Trigger: A run is skipped entirely when the store already holds
    the last school day, unless forced. The store being empty always
    triggers.

ERROR MODEL (per day, a run never fails wholesale on one bad day):
  - absent document: logged at info level, day skipped
  - transient fetch failure: logged as error, day skipped, healed by a
    later run
  - parse failure: the whole day is discarded; partial days would corrupt
    the cancellation counts downstream

CONCURRENCY:
  Days are fetched and parsed on a bounded errgroup pool, each worker
  writing into its own result slot. The single AppendNew call at the end
  keeps the store writer sequential.

SEE ALSO:
  - feed/: the HTTP client driven here
  - plan/parser.go: per-document normalization
  - tabular/records.go: append-only dedup semantics
*/
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/schulwerk/vplan-engine/feed"
	"github.com/schulwerk/vplan-engine/plan"
	"github.com/schulwerk/vplan-engine/tabular"
)

const defaultWorkers = 4

// Fetcher retrieves the raw plan document for one day.
type Fetcher interface {
	Fetch(ctx context.Context, date time.Time) ([]byte, error)
}

// DayStatus classifies the outcome of one day in a run.
type DayStatus string

const (
	DayFetched   DayStatus = "fetched"
	DayAbsent    DayStatus = "absent"
	DayTransient DayStatus = "transient"
	DayFailed    DayStatus = "failed"
)

// DayOutcome reports what happened to a single day of the window.
type DayOutcome struct {
	Date    time.Time `json:"date"`
	Status  DayStatus `json:"status"`
	Records int       `json:"records"`
	Error   string    `json:"error,omitempty"`
}

// RunReport summarizes one ingestion run.
type RunReport struct {
	RunID      string       `json:"runId"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Triggered  bool         `json:"triggered"`
	Forced     bool         `json:"forced"`
	Days       []DayOutcome `json:"days,omitempty"`
	Appended   int          `json:"appended"`
}

// Orchestrator runs the fetch window against the record store.
type Orchestrator struct {
	fetcher Fetcher
	records *tabular.RecordStore
	workers int
	now     func() time.Time

	mu   sync.Mutex
	last *RunReport
}

// New creates an orchestrator. workers <= 0 selects the default pool size.
func New(fetcher Fetcher, records *tabular.RecordStore, workers int) *Orchestrator {
	return NewAt(fetcher, records, workers, time.Now)
}

// NewAt is New with an injectable clock, for tests that pin the window.
func NewAt(fetcher Fetcher, records *tabular.RecordStore, workers int, now func() time.Time) *Orchestrator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Orchestrator{
		fetcher: fetcher,
		records: records,
		workers: workers,
		now:     now,
	}
}

// =============================================================================
// WINDOW CALCULATION
// =============================================================================

// LastSchoolDay returns the most recent weekday before today: yesterday,
// or the previous Friday when today is a Monday.
func LastSchoolDay(today time.Time) time.Time {
	today = today.Truncate(24 * time.Hour)
	if today.Weekday() == time.Monday {
		return today.AddDate(0, 0, -3)
	}
	return today.AddDate(0, 0, -1)
}

// FetchWindow returns the weekdays between last school day minus seven
// days and the last school day, inclusive, in ascending order.
func FetchWindow(today time.Time) []time.Time {
	end := LastSchoolDay(today)
	start := end.AddDate(0, 0, -7)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	return days
}

// NeedsRefresh reports whether a run should fetch: the store is empty or
// the last school day has no stored records yet.
func NeedsRefresh(stored []plan.ScheduleRecord, today time.Time) bool {
	if len(stored) == 0 {
		return true
	}
	want := LastSchoolDay(today).Format("20060102")
	for _, r := range stored {
		if r.Date.Format("20060102") == want {
			return false
		}
	}
	return true
}

// =============================================================================
// RUN
// =============================================================================

// Run executes one ingestion pass. With force set, the refresh trigger is
// bypassed and the full window is fetched regardless.
func (o *Orchestrator) Run(ctx context.Context, force bool) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: o.now(),
		Forced:    force,
	}

	stored, err := o.records.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stored records: %w", err)
	}

	today := o.now()
	if !force && !NeedsRefresh(stored, today) {
		report.FinishedAt = o.now()
		o.remember(report)
		log.Printf("[Ingest] run %s: store is current, nothing to fetch", report.RunID)
		return report, nil
	}
	report.Triggered = true

	window := FetchWindow(today)
	outcomes := make([]DayOutcome, len(window))
	parsed := make([][]plan.ScheduleRecord, len(window))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, day := range window {
		i, day := i, day
		g.Go(func() error {
			outcomes[i], parsed[i] = o.ingestDay(gctx, day)
			return nil
		})
	}
	// Workers report per-day failures through their outcome slot; the
	// group error is only ever a context cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := gctx.Err(); err != nil {
		return nil, err
	}

	var batch []plan.ScheduleRecord
	for _, dayRecords := range parsed {
		batch = append(batch, dayRecords...)
	}
	appended, err := o.records.AppendNew(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("append fetched records: %w", err)
	}

	report.Days = outcomes
	report.Appended = appended
	report.FinishedAt = o.now()
	o.remember(report)
	log.Printf("[Ingest] run %s: %d days fetched, %d new records", report.RunID, len(window), appended)
	return report, nil
}

func (o *Orchestrator) ingestDay(ctx context.Context, day time.Time) (DayOutcome, []plan.ScheduleRecord) {
	outcome := DayOutcome{Date: day}

	raw, err := o.fetcher.Fetch(ctx, day)
	if errors.Is(err, feed.ErrNotFound) {
		log.Printf("[Ingest] no document for %s", day.Format("02.01.2006"))
		outcome.Status = DayAbsent
		return outcome, nil
	}
	var transient *feed.TransientError
	if errors.As(err, &transient) {
		log.Printf("[Ingest] fetch failed for %s: %v", day.Format("02.01.2006"), err)
		outcome.Status = DayTransient
		outcome.Error = err.Error()
		return outcome, nil
	}
	if err != nil {
		log.Printf("[Ingest] fetch failed for %s: %v", day.Format("02.01.2006"), err)
		outcome.Status = DayFailed
		outcome.Error = err.Error()
		return outcome, nil
	}

	records, err := plan.ParseDocument(raw)
	if err != nil {
		log.Printf("[Ingest] discarding %s: %v", feed.ResourceName(day), err)
		outcome.Status = DayFailed
		outcome.Error = err.Error()
		return outcome, nil
	}

	outcome.Status = DayFetched
	outcome.Records = len(records)
	return outcome, records
}

func (o *Orchestrator) remember(report *RunReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = report
}

// LastReport returns the report of the most recent run, or nil when no
// run has happened in this process yet.
func (o *Orchestrator) LastReport() *RunReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}
