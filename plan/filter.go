package plan

import (
	"sort"
	"time"
)

// NoSubjectBucket is the label under which records without a cancelled
// subject appear in the cancelled-subject filter.
const NoSubjectBucket = "Kein Fach"

// TriState is a three-valued filter: match everything, only true, or only
// false.
type TriState int

const (
	TriAny TriState = iota
	TriYes
	TriNo
)

func (t TriState) matches(v bool) bool {
	switch t {
	case TriYes:
		return v
	case TriNo:
		return !v
	default:
		return true
	}
}

// Filter is a pure conjunctive selection over ScheduleRecords. Zero values
// mean "no constraint": nil sets match everything, zero times are open
// bounds.
type Filter struct {
	From             time.Time
	To               time.Time
	Classes          map[string]bool
	Grades           map[int]bool // records with nil grade never match a non-nil set
	Cancelled        TriState
	SelfStudy        TriState
	CancelledSubject map[string]bool // use NoSubjectBucket for empty subjects
}

// Apply returns the records matching every constraint of the filter.
func (f Filter) Apply(records []ScheduleRecord) []ScheduleRecord {
	var out []ScheduleRecord
	for _, r := range records {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f Filter) matches(r ScheduleRecord) bool {
	if !f.From.IsZero() && r.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Date.After(f.To) {
		return false
	}
	if f.Classes != nil && !f.Classes[r.Class] {
		return false
	}
	if f.Grades != nil {
		if r.GradeLevel == nil || !f.Grades[*r.GradeLevel] {
			return false
		}
	}
	if !f.Cancelled.matches(r.IsCancelled) {
		return false
	}
	if !f.SelfStudy.matches(r.IsSelfStudy) {
		return false
	}
	if f.CancelledSubject != nil {
		subject := r.CancelledSubject
		if subject == "" {
			subject = NoSubjectBucket
		}
		if !f.CancelledSubject[subject] {
			return false
		}
	}
	return true
}

// DayCount is the number of records on one calendar date.
type DayCount struct {
	Date  time.Time
	Count int
}

// CountPerDay aggregates records per calendar date, sorted ascending. The
// dashboard bar chart is driven by this.
func CountPerDay(records []ScheduleRecord) []DayCount {
	counts := make(map[time.Time]int)
	for _, r := range records {
		counts[r.Date]++
	}
	out := make([]DayCount, 0, len(counts))
	for date, n := range counts {
		out = append(out, DayCount{Date: date, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// CancelledSubjects returns the sorted set of cancelled-subject labels
// present in the records, with empty subjects folded into NoSubjectBucket.
func CancelledSubjects(records []ScheduleRecord) []string {
	seen := make(map[string]bool)
	for _, r := range records {
		subject := r.CancelledSubject
		if subject == "" {
			subject = NoSubjectBucket
		}
		seen[subject] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
