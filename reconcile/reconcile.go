/*
Package reconcile joins planned-hours quotas against observed cancellations.

PURPOSE:
  For every (school year, ISO year, ISO week, class, subject, grade) with a
  nonzero quota, count the matching cancelled schedule records and derive:

    actualHours = plannedHours - cancelledCount   (Ist)
    deltaHours  = cancelledCount                  (Delta)

  The result is recomputed wholesale from current quota + schedule state on
  every call; it is never patched incrementally.

JOIN SEMANTICS:
  - The quota subject matches the schedule row's CANCELLED subject
    (Ausfall-Fach), not the raw subject field — a cancelled period names the
    subject that was lost in its info text, while the raw subject is "---".
  - Class and subject are compared exactly after trimming surrounding
    whitespace. Case and internal spacing are NOT normalized; a quota
    subject "mathe" will not match feed entries naming "Mathe".
  - Only weeks actually present in the schedule data appear in the output.
    The earliest present week floors the quota range (data collection
    started mid-year), and weeks inside the range with no feed data at all
    (school holidays) are dropped entirely.

EDGE CASES:
  - cancelledCount may exceed plannedHours; actualHours then goes negative
    and is passed through unclamped.
  - An empty schedule short-circuits: every quota row comes back with
    actualHours = plannedHours, deltaHours = 0 and HasNoData = true.

SEE ALSO:
  - quota/: the planned-hours baseline
  - plan/: the schedule records being counted
*/
package reconcile

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/schulwerk/vplan-engine/plan"
	"github.com/schulwerk/vplan-engine/quota"
)

// =============================================================================
// VARIANCE RECORD
// =============================================================================

// VarianceRecord is one reconciliation result row.
type VarianceRecord struct {
	ID             string
	SchoolYear     string
	Week           plan.ISOWeek
	Class          string
	Subject        string
	GradeLevel     int
	PlannedHours   decimal.Decimal // Soll
	CancelledCount int
	ActualHours    decimal.Decimal // Ist = Soll - CancelledCount
	DeltaHours     decimal.Decimal // Delta = CancelledCount
	HasNoData      bool
}

// joinKey is the full reconciliation join key.
type joinKey struct {
	week    plan.ISOWeek
	class   string
	subject string
	grade   int
	gradeOK bool
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Reconcile computes variance rows for one school year from the quota table
// and the current schedule records. Both inputs are taken as-is; the quota
// slice is expected to already be scoped to schoolYear.
func Reconcile(quotaRows []quota.Record, schedule []plan.ScheduleRecord, schoolYear string) []VarianceRecord {
	schedule = dedupByID(schedule)

	presentWeeks := make(map[plan.ISOWeek]bool)
	for _, r := range schedule {
		presentWeeks[plan.ISOWeekOf(r.Date)] = true
	}

	if len(presentWeeks) == 0 {
		// No observed data at all: quotas pass through untouched.
		out := make([]VarianceRecord, 0, len(quotaRows))
		for _, q := range quotaRows {
			out = append(out, VarianceRecord{
				ID:           q.ID,
				SchoolYear:   q.SchoolYear,
				Week:         q.Week,
				Class:        q.Class,
				Subject:      q.Subject,
				GradeLevel:   q.GradeLevel,
				PlannedHours: q.PlannedHours,
				ActualHours:  q.PlannedHours,
				DeltaHours:   decimal.Zero,
				HasNoData:    true,
			})
		}
		return out
	}

	minWeek := minPresentWeek(presentWeeks)

	// Count cancellations per join key. Rows without a grade level can
	// never match a quota row (quotas require a grade) and are left out.
	counts := make(map[joinKey]int)
	for _, r := range schedule {
		if !r.IsCancelled {
			continue
		}
		key := joinKey{
			week:    plan.ISOWeekOf(r.Date),
			class:   strings.TrimSpace(r.Class),
			subject: strings.TrimSpace(r.CancelledSubject),
			gradeOK: r.GradeLevel != nil,
		}
		if r.GradeLevel != nil {
			key.grade = *r.GradeLevel
		}
		counts[key]++
	}

	var out []VarianceRecord
	for _, q := range quotaRows {
		if q.Week.Before(minWeek) {
			continue
		}
		if !presentWeeks[q.Week] {
			continue
		}

		key := joinKey{
			week:    q.Week,
			class:   strings.TrimSpace(q.Class),
			subject: strings.TrimSpace(q.Subject),
			grade:   q.GradeLevel,
			gradeOK: true,
		}
		count := counts[key] // missing match means zero cancellations

		countDec := decimal.NewFromInt(int64(count))
		out = append(out, VarianceRecord{
			ID:             q.ID,
			SchoolYear:     schoolYear,
			Week:           q.Week,
			Class:          q.Class,
			Subject:        q.Subject,
			GradeLevel:     q.GradeLevel,
			PlannedHours:   q.PlannedHours,
			CancelledCount: count,
			ActualHours:    q.PlannedHours.Sub(countDec), // may go negative, unclamped
			DeltaHours:     countDec,
			HasNoData:      false,
		})
	}
	return out
}

func dedupByID(records []plan.ScheduleRecord) []plan.ScheduleRecord {
	seen := make(map[string]bool, len(records))
	out := make([]plan.ScheduleRecord, 0, len(records))
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

func minPresentWeek(weeks map[plan.ISOWeek]bool) plan.ISOWeek {
	var min plan.ISOWeek
	first := true
	for w := range weeks {
		if first || w.Before(min) {
			min = w
			first = false
		}
	}
	return min
}

// =============================================================================
// AGGREGATIONS (heatmap inputs)
// =============================================================================

// WeeklyDelta is the summed variance for one (week, label) bucket, where the
// label is a subject or a class depending on the grouping.
type WeeklyDelta struct {
	SchoolYear string
	Week       plan.ISOWeek
	Label      string
	Soll       decimal.Decimal
	Delta      decimal.Decimal
	// RelDelta is Delta/Soll as a percentage; zero when Soll is zero.
	RelDelta decimal.Decimal
}

// AggregateBySubject sums variance rows per (week, subject).
func AggregateBySubject(rows []VarianceRecord) []WeeklyDelta {
	return aggregate(rows, func(r VarianceRecord) string { return r.Subject })
}

// AggregateByClass sums variance rows per (week, class).
func AggregateByClass(rows []VarianceRecord) []WeeklyDelta {
	return aggregate(rows, func(r VarianceRecord) string { return r.Class })
}

func aggregate(rows []VarianceRecord, label func(VarianceRecord) string) []WeeklyDelta {
	type bucketKey struct {
		week  plan.ISOWeek
		label string
	}
	buckets := make(map[bucketKey]*WeeklyDelta)
	for _, r := range rows {
		k := bucketKey{week: r.Week, label: label(r)}
		b, ok := buckets[k]
		if !ok {
			b = &WeeklyDelta{SchoolYear: r.SchoolYear, Week: r.Week, Label: k.label}
			buckets[k] = b
		}
		b.Soll = b.Soll.Add(r.PlannedHours)
		b.Delta = b.Delta.Add(r.DeltaHours)
	}

	out := make([]WeeklyDelta, 0, len(buckets))
	for _, b := range buckets {
		if !b.Soll.IsZero() {
			b.RelDelta = b.Delta.Div(b.Soll).Mul(decimal.NewFromInt(100))
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Week != out[j].Week {
			return out[i].Week.Before(out[j].Week)
		}
		return out[i].Label < out[j].Label
	})
	return out
}
